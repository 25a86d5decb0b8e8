package report

import (
	"context"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SettingsService reads and updates a clinic's report branding
type SettingsService struct {
	repo   report.SettingsRepository
	logger *zap.Logger
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(repo report.SettingsRepository, logger *zap.Logger) *SettingsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{repo: repo, logger: logger}
}

// Get returns the clinic's branding, or the default when none was saved
func (s *SettingsService) Get(ctx context.Context, clinicID uuid.UUID) (*SettingsResponse, error) {
	settings, err := s.repo.FindByClinic(ctx, clinicID)
	if shared.IsNotFound(err) {
		return toSettingsResponse(report.DefaultBranding(), nil), nil
	}
	if err != nil {
		return nil, err
	}
	return toSettingsResponse(settings.Branding, &settings.UpdatedAt), nil
}

// Update replaces the clinic's branding
func (s *SettingsService) Update(ctx context.Context, clinicID uuid.UUID, req BrandingDTO) (*SettingsResponse, error) {
	branding := req.branding()
	if err := branding.Validate(); err != nil {
		return nil, err
	}

	settings, err := s.repo.FindByClinic(ctx, clinicID)
	switch {
	case err == nil:
		settings.Update(branding)
	case shared.IsNotFound(err):
		settings = report.NewSettings(clinicID, branding)
	default:
		return nil, err
	}

	if err := s.repo.Save(ctx, settings); err != nil {
		return nil, err
	}

	s.logger.Info("clinic settings updated", zap.String("clinic_id", clinicID.String()))
	return toSettingsResponse(settings.Branding, &settings.UpdatedAt), nil
}

// loadBranding returns the stored branding filled with defaults
func loadBranding(ctx context.Context, repo report.SettingsRepository, clinicID uuid.UUID) (report.ClinicBranding, error) {
	settings, err := repo.FindByClinic(ctx, clinicID)
	if shared.IsNotFound(err) {
		return report.DefaultBranding(), nil
	}
	if err != nil {
		return report.ClinicBranding{}, err
	}
	return settings.Branding.OrDefault(report.DefaultBranding()), nil
}
