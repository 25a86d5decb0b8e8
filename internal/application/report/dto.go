package report

import (
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
)

// =============================================================================
// Request DTOs
// =============================================================================

// PatientDTO is the patient block of a report request
type PatientDTO struct {
	Name       string `json:"name" binding:"required,max=255"`
	UHID       string `json:"uhid" binding:"required,max=100"`
	Age        int    `json:"age" binding:"min=0,max=150"`
	Sex        string `json:"sex" binding:"required,sex"`
	ReferredBy string `json:"referredBy" binding:"max=255"`
}

// ImageDTO is one uploaded image, base64 with or without a data URI prefix
type ImageDTO struct {
	Name string `json:"name" binding:"max=255"`
	Data string `json:"data" binding:"required"`
}

// BrandingDTO is the clinic header block
type BrandingDTO struct {
	Name    string `json:"name" binding:"max=255"`
	Address string `json:"address" binding:"max=2000"`
	Logo    string `json:"logo"`
}

// ReportRequest is the body of /generate-pdf and /save-report
type ReportRequest struct {
	PatientData   PatientDTO   `json:"patientData" binding:"required"`
	Images        []ImageDTO   `json:"images" binding:"required,min=1,max=60,dive"`
	ImagesPerPage int          `json:"imagesPerPage" binding:"required,min=1"`
	ImageSize     int          `json:"imageSize" binding:"min=0,max=300"`
	ReportType    string       `json:"reportType" binding:"required,report_kind"`
	ClinicData    *BrandingDTO `json:"clinicData"`
	PreviewOnly   bool         `json:"previewOnly"`
}

// =============================================================================
// Response DTOs
// =============================================================================

// PDFResult is a rendered report
type PDFResult struct {
	// ReportID is uuid.Nil for previews
	ReportID uuid.UUID
	// Filename is the stored artifact name; empty for previews
	Filename     string
	DownloadName string
	Inline       bool
	PDF          []byte
	PageCount    int
	Attempts     int
}

// SaveResult is returned by SaveReport
type SaveResult struct {
	ReportID uuid.UUID `json:"reportId"`
}

// ReportParams are the saved layout and branding parameters of a report
type ReportParams struct {
	PatientData   PatientDTO  `json:"patientData"`
	ImagesPerPage int         `json:"imagesPerPage"`
	ImageSize     int         `json:"imageSize"`
	ReportType    string      `json:"reportType"`
	ClinicData    BrandingDTO `json:"clinicData"`
}

// ReportListItem is one row of GET /reports
type ReportListItem struct {
	ID          uuid.UUID     `json:"id"`
	Filename    string        `json:"filename"`
	PatientName string        `json:"patientName"`
	UHID        string        `json:"uhid"`
	Age         int           `json:"age"`
	Sex         string        `json:"sex"`
	ReferredBy  string        `json:"referredBy"`
	ReportType  string        `json:"reportType"`
	Date        time.Time     `json:"date"`
	ImagesCount int           `json:"imagesCount"`
	Status      string        `json:"status"`
	GeneratedAt *time.Time    `json:"generatedAt,omitempty"`
	ReportData  *ReportParams `json:"reportData"`
}

// SettingsResponse is the clinic's branding
type SettingsResponse struct {
	Name      string     `json:"name"`
	Address   string     `json:"address"`
	Logo      string     `json:"logo,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Artifact is an opened report PDF. The caller must close Content.
type Artifact struct {
	Filename string
	Content  io.ReadCloser
}

// =============================================================================
// Mapping
// =============================================================================

// snapshot converts the patient block into the domain snapshot
func (p PatientDTO) snapshot() (report.PatientSnapshot, error) {
	sex, ok := report.ParseSex(p.Sex)
	if !ok {
		return report.PatientSnapshot{}, shared.NewValidationError("patient sex must be Male, Female or Other")
	}
	s := report.PatientSnapshot{
		Name:       strings.TrimSpace(p.Name),
		ExternalID: strings.TrimSpace(p.UHID),
		Age:        p.Age,
		Sex:        sex,
		ReferredBy: strings.TrimSpace(p.ReferredBy),
	}
	return s, s.Validate()
}

func (b BrandingDTO) branding() report.ClinicBranding {
	return report.ClinicBranding{
		DisplayName: strings.TrimSpace(b.Name),
		AddressText: b.Address,
		Logo:        strings.TrimSpace(b.Logo),
	}
}

func (r ReportRequest) images() ([]report.ImageAsset, error) {
	assets := make([]report.ImageAsset, 0, len(r.Images))
	for _, img := range r.Images {
		a, err := report.NewImageAsset(img.Name, img.Data)
		if err != nil {
			return nil, err
		}
		assets = append(assets, a)
	}
	return assets, nil
}

func (r ReportRequest) layout() (report.LayoutOptions, error) {
	return report.NewLayoutOptions(r.ImagesPerPage, r.ImageSize, report.Kind(strings.ToLower(r.ReportType)))
}

func toPatientDTO(s report.PatientSnapshot) PatientDTO {
	return PatientDTO{
		Name:       s.Name,
		UHID:       s.ExternalID,
		Age:        s.Age,
		Sex:        string(s.Sex),
		ReferredBy: s.ReferredBy,
	}
}

func toListItem(r *report.Report) ReportListItem {
	return ReportListItem{
		ID:          r.ID,
		Filename:    r.DisplayFilename(),
		PatientName: r.Patient.Name,
		UHID:        r.Patient.ExternalID,
		Age:         r.Patient.Age,
		Sex:         string(r.Patient.Sex),
		ReferredBy:  r.Patient.ReferredBy,
		ReportType:  r.Layout.Kind.String(),
		Date:        r.CreatedAt,
		ImagesCount: r.ImagesCount,
		Status:      string(r.Status),
		GeneratedAt: r.GeneratedAt,
		ReportData: &ReportParams{
			PatientData:   toPatientDTO(r.Patient),
			ImagesPerPage: r.Layout.ImagesPerPage,
			ImageSize:     r.Layout.ImageSizePercent,
			ReportType:    r.Layout.Kind.String(),
			ClinicData: BrandingDTO{
				Name:    r.Branding.DisplayName,
				Address: r.Branding.AddressText,
				Logo:    r.Branding.Logo,
			},
		},
	}
}

func toSettingsResponse(b report.ClinicBranding, updatedAt *time.Time) *SettingsResponse {
	return &SettingsResponse{
		Name:      b.DisplayName,
		Address:   b.AddressText,
		Logo:      b.Logo,
		UpdatedAt: updatedAt,
	}
}
