package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/persistence/models"
)

// SettingsStore implements report.SettingsRepository.
type SettingsStore struct {
	store Store
}

// NewSettingsStore creates a new SettingsStore
func NewSettingsStore(store Store) *SettingsStore {
	return &SettingsStore{store: store}
}

// FindByClinic returns the clinic's branding record.
func (s *SettingsStore) FindByClinic(ctx context.Context, clinicID uuid.UUID) (*report.Settings, error) {
	var record models.ClinicSettingsModel
	if err := s.store.FindOne(ctx, Where("clinic_id", clinicID), &record); err != nil {
		return nil, notFoundAs("settings", err)
	}
	return record.ToDomain(), nil
}

// Save upserts the branding record; there is at most one per clinic.
func (s *SettingsStore) Save(ctx context.Context, settings *report.Settings) error {
	record := models.ClinicSettingsModelFromDomain(settings)
	err := s.store.Update(ctx, Where("id", settings.ID, "clinic_id", settings.ClinicID), record)
	if shared.IsNotFound(err) {
		return s.store.Create(ctx, record)
	}
	return err
}

var _ report.SettingsRepository = (*SettingsStore)(nil)
