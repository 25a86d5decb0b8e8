package report

import (
	"context"

	"github.com/google/uuid"
)

// Store persists reports together with their images. Every operation is
// scoped by clinic id; a report owned by another clinic is reported as
// not found.
type Store interface {
	// SaveReport inserts a new report with its images, or updates the
	// report row of an existing one. Images are never updated in place.
	SaveReport(ctx context.Context, r *Report) (uuid.UUID, error)
	// LoadReport returns the report with its images in upload order.
	LoadReport(ctx context.Context, id, clinicID uuid.UUID) (*Report, error)
	// DeleteReport removes the report and its images.
	DeleteReport(ctx context.Context, id, clinicID uuid.UUID) error
	// ListReports returns the clinic's reports newest first, without image data.
	ListReports(ctx context.Context, clinicID uuid.UUID) ([]*Report, error)
	// FindByFilename returns the report whose rendered artifact has this name.
	FindByFilename(ctx context.Context, clinicID uuid.UUID, filename string) (*Report, error)
}

// PatientRepository persists live patient records.
type PatientRepository interface {
	FindByExternalID(ctx context.Context, clinicID uuid.UUID, externalID string) (*Patient, error)
	Save(ctx context.Context, p *Patient) error
}
