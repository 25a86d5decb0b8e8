package report

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
)

var externalIDExpr = regexp.MustCompile(`^[A-Za-z0-9_-]{1,100}$`)

// PatientSnapshot is the patient data embedded in a report at the time it was
// saved. It never changes afterwards even if the live Patient does.
type PatientSnapshot struct {
	Name       string `json:"name"`
	ExternalID string `json:"uhid"`
	Age        int    `json:"age"`
	Sex        Sex    `json:"sex"`
	ReferredBy string `json:"referredBy,omitempty"`
}

// Validate checks the required patient fields.
func (p PatientSnapshot) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return shared.NewValidationError("patient name is required")
	}
	if len(p.Name) > 255 {
		return shared.NewValidationError("patient name cannot exceed 255 characters")
	}
	if !externalIDExpr.MatchString(p.ExternalID) {
		return shared.NewValidationError("patient id must be 1-100 letters, digits, '-' or '_'")
	}
	if p.Age < 0 || p.Age > 150 {
		return shared.NewValidationError("patient age must be between 0 and 150")
	}
	if !p.Sex.IsValid() {
		return shared.NewValidationError("patient sex must be Male, Female or Other")
	}
	if len(p.ReferredBy) > 255 {
		return shared.NewValidationError("referred by cannot exceed 255 characters")
	}
	return nil
}

// Patient is the live, clinic-scoped patient record. It is unique per
// (clinic, external id) and refreshed from the latest snapshot on each save.
type Patient struct {
	shared.ClinicScoped
	Name       string
	ExternalID string
	Age        int
	Sex        Sex
	ReferredBy string
}

// NewPatient creates a patient from a validated snapshot.
func NewPatient(clinicID uuid.UUID, s PatientSnapshot) *Patient {
	p := &Patient{ClinicScoped: shared.NewClinicScoped(clinicID)}
	p.apply(s)
	return p
}

// Refresh overwrites the mutable fields with the latest snapshot.
func (p *Patient) Refresh(s PatientSnapshot) {
	p.apply(s)
	p.Touch()
}

// Snapshot returns the current state as an immutable snapshot.
func (p *Patient) Snapshot() PatientSnapshot {
	return PatientSnapshot{
		Name:       p.Name,
		ExternalID: p.ExternalID,
		Age:        p.Age,
		Sex:        p.Sex,
		ReferredBy: p.ReferredBy,
	}
}

func (p *Patient) apply(s PatientSnapshot) {
	p.Name = strings.TrimSpace(s.Name)
	p.ExternalID = s.ExternalID
	p.Age = s.Age
	p.Sex = s.Sex
	p.ReferredBy = strings.TrimSpace(s.ReferredBy)
}
