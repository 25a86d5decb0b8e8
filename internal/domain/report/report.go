package report

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
)

// Report is the aggregate root for an imaging report.
type Report struct {
	shared.ClinicScoped
	PatientID   uuid.UUID
	Patient     PatientSnapshot
	Layout      LayoutOptions
	Branding    ClinicBranding
	Images      []ImageAsset
	ImagesCount int
	Status      Status
	Filename    string
	GeneratedAt *time.Time
}

// NewReport validates the inputs and creates a report in the saved state.
func NewReport(clinicID uuid.UUID, patient PatientSnapshot, layout LayoutOptions, branding ClinicBranding, images []ImageAsset) (*Report, error) {
	if clinicID == uuid.Nil {
		return nil, shared.NewValidationError("clinic is required")
	}
	if err := patient.Validate(); err != nil {
		return nil, err
	}
	if err := layout.Validate(); err != nil {
		return nil, err
	}
	if err := branding.Validate(); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, shared.NewValidationError("at least one image is required")
	}
	if len(images) > MaxImagesPerReport {
		return nil, shared.NewValidationError(fmt.Sprintf("a report holds at most %d images", MaxImagesPerReport))
	}

	ordered := make([]ImageAsset, len(images))
	for i, img := range images {
		img.Position = i
		ordered[i] = img
	}

	return &Report{
		ClinicScoped: shared.NewClinicScoped(clinicID),
		Patient:      patient,
		Layout:       layout,
		Branding:     branding,
		Images:       ordered,
		ImagesCount:  len(ordered),
		Status:       StatusSaved,
	}, nil
}

// AttachPatient links the report to the live patient record.
func (r *Report) AttachPatient(patientID uuid.UUID) {
	r.PatientID = patientID
}

// MarkGenerated records a render. saved moves to generated; a regeneration
// stays generated and only swaps the file and timestamp. The previous file
// name is returned so its artifact can be removed.
func (r *Report) MarkGenerated(filename string, at time.Time) (previous string, err error) {
	if filename == "" {
		return "", shared.NewValidationError("generated file name is required")
	}
	if !r.Status.IsValid() {
		return "", shared.ErrInvalidState
	}
	previous = r.Filename
	r.Filename = filename
	r.Status = StatusGenerated
	r.GeneratedAt = &at
	r.UpdatedAt = at
	return previous, nil
}

// IsGenerated reports whether a PDF exists for the report.
func (r *Report) IsGenerated() bool {
	return r.Status == StatusGenerated
}

// ArtifactName builds the stored file name for a render at the given time.
func (r *Report) ArtifactName(at time.Time) string {
	return ArtifactFilename(r.Patient, r.Layout.Kind, at)
}

// DisplayFilename is the file name shown in listings.
func (r *Report) DisplayFilename() string {
	if r.Filename != "" {
		return r.Filename
	}
	return "report-" + r.ID.String() + ".pdf"
}
