package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/clinic"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/persistence/models"
)

// ClinicStore implements clinic.Repository.
type ClinicStore struct {
	store Store
}

// NewClinicStore creates a new ClinicStore
func NewClinicStore(store Store) *ClinicStore {
	return &ClinicStore{store: store}
}

// Create inserts a new clinic account.
func (s *ClinicStore) Create(ctx context.Context, c *clinic.Clinic) error {
	return s.store.Create(ctx, models.ClinicAccountModelFromDomain(c))
}

// Update writes the account back.
func (s *ClinicStore) Update(ctx context.Context, c *clinic.Clinic) error {
	err := s.store.Update(ctx, Where("id", c.ID), models.ClinicAccountModelFromDomain(c))
	return notFoundAs("clinic", err)
}

// FindByID finds an account by id.
func (s *ClinicStore) FindByID(ctx context.Context, id uuid.UUID) (*clinic.Clinic, error) {
	return s.findOne(ctx, Where("id", id))
}

// FindByEmail finds an account by its lower-cased email.
func (s *ClinicStore) FindByEmail(ctx context.Context, email string) (*clinic.Clinic, error) {
	return s.findOne(ctx, Where("email", strings.ToLower(strings.TrimSpace(email))))
}

// ExistsByEmail reports whether an account uses email.
func (s *ClinicStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return true, nil
	case shared.IsNotFound(err):
		return false, nil
	default:
		return false, err
	}
}

func (s *ClinicStore) findOne(ctx context.Context, q Query) (*clinic.Clinic, error) {
	var record models.ClinicAccountModel
	if err := s.store.FindOne(ctx, q, &record); err != nil {
		return nil, notFoundAs("clinic", err)
	}
	return record.ToDomain(), nil
}

var _ clinic.Repository = (*ClinicStore)(nil)
