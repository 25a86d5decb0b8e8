package report

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
)

// ClinicBranding is the header block printed on every report.
type ClinicBranding struct {
	DisplayName string `json:"name"`
	AddressText string `json:"address"`
	Logo        string `json:"logo,omitempty"`
}

// Validate checks branding limits. The logo, when present, must be an image.
func (b ClinicBranding) Validate() error {
	if len(b.DisplayName) > 255 {
		return shared.NewValidationError("clinic name cannot exceed 255 characters")
	}
	if len(b.AddressText) > 2000 {
		return shared.NewValidationError("clinic address cannot exceed 2000 characters")
	}
	if b.Logo != "" {
		if _, err := NewImageAsset("logo", b.Logo); err != nil {
			return shared.NewValidationError("logo must be a base64 image or data URI")
		}
	}
	return nil
}

// LogoURI returns the logo as an embeddable data URI, or "" when unset.
func (b ClinicBranding) LogoURI() string {
	return ToDataURI(strings.TrimSpace(b.Logo))
}

// OrDefault fills an empty display name.
func (b ClinicBranding) OrDefault(fallback ClinicBranding) ClinicBranding {
	if strings.TrimSpace(b.DisplayName) == "" {
		b.DisplayName = fallback.DisplayName
	}
	if strings.TrimSpace(b.AddressText) == "" {
		b.AddressText = fallback.AddressText
	}
	return b
}

// DefaultBranding is used when a clinic has saved nothing yet.
func DefaultBranding() ClinicBranding {
	return ClinicBranding{DisplayName: "Medical Clinic"}
}

// Settings is the per-clinic branding record.
type Settings struct {
	shared.ClinicScoped
	Branding ClinicBranding
}

// NewSettings creates a settings record for a clinic.
func NewSettings(clinicID uuid.UUID, b ClinicBranding) *Settings {
	return &Settings{
		ClinicScoped: shared.NewClinicScoped(clinicID),
		Branding:     b,
	}
}

// Update replaces the branding.
func (s *Settings) Update(b ClinicBranding) {
	s.Branding = b
	s.Touch()
}

// SettingsRepository persists branding per clinic.
type SettingsRepository interface {
	FindByClinic(ctx context.Context, clinicID uuid.UUID) (*Settings, error)
	Save(ctx context.Context, s *Settings) error
}
