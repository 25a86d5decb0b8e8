package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/persistence/models"
)

// PatientStore implements report.PatientRepository.
type PatientStore struct {
	store Store
}

// NewPatientStore creates a new PatientStore
func NewPatientStore(store Store) *PatientStore {
	return &PatientStore{store: store}
}

// FindByExternalID finds the clinic's patient with the given external id.
func (s *PatientStore) FindByExternalID(ctx context.Context, clinicID uuid.UUID, externalID string) (*report.Patient, error) {
	var record models.PatientModel
	if err := s.store.FindOne(ctx, Where("clinic_id", clinicID, "external_id", externalID), &record); err != nil {
		return nil, notFoundAs("patient", err)
	}
	return record.ToDomain(), nil
}

// Save updates the patient row, inserting it when it does not exist yet.
func (s *PatientStore) Save(ctx context.Context, p *report.Patient) error {
	record := models.PatientModelFromDomain(p)
	err := s.store.Update(ctx, Where("id", p.ID, "clinic_id", p.ClinicID), record)
	if shared.IsNotFound(err) {
		return s.store.Create(ctx, record)
	}
	return err
}

var _ report.PatientRepository = (*PatientStore)(nil)
