package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/persistence/models"
)

// ReportStore implements report.Store over any Store backend.
type ReportStore struct {
	store Store
}

// NewReportStore creates a new ReportStore
func NewReportStore(store Store) *ReportStore {
	return &ReportStore{store: store}
}

// SaveReport inserts the report and its images, or updates only the report
// row when a report with the same id already belongs to the clinic. Images
// are written before the report so that a reader never sees a report whose
// images are missing.
func (s *ReportStore) SaveReport(ctx context.Context, r *report.Report) (uuid.UUID, error) {
	record, err := models.ReportModelFromDomain(r)
	if err != nil {
		return uuid.Nil, shared.NewStoreError("encode report", err)
	}
	owned := Where("id", r.ID, "clinic_id", r.ClinicID)

	err = s.store.Transaction(ctx, func(tx Store) error {
		var existing models.ReportModel
		err := tx.FindOne(ctx, owned, &existing)
		switch {
		case err == nil:
			record.CreatedAt = existing.CreatedAt
			return tx.Update(ctx, owned, record)
		case !shared.IsNotFound(err):
			return err
		}

		for _, img := range r.Images {
			if err := tx.Create(ctx, models.ReportImageModelFromDomain(r, img)); err != nil {
				s.discardImages(ctx, tx, r)
				return err
			}
		}
		if err := tx.Create(ctx, record); err != nil {
			s.discardImages(ctx, tx, r)
			return err
		}
		return nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	return r.ID, nil
}

// discardImages removes images written for a report whose save failed. On
// the relational backends the rollback already does this.
func (s *ReportStore) discardImages(ctx context.Context, tx Store, r *report.Report) {
	_, _ = tx.Delete(ctx, Where("report_id", r.ID, "clinic_id", r.ClinicID), &models.ReportImageModel{})
}

// LoadReport returns the report with its images ordered by position.
func (s *ReportStore) LoadReport(ctx context.Context, id, clinicID uuid.UUID) (*report.Report, error) {
	r, err := s.findOne(ctx, Where("id", id, "clinic_id", clinicID))
	if err != nil {
		return nil, err
	}

	var images []models.ReportImageModel
	q := Where("report_id", id, "clinic_id", clinicID).Order("position", false)
	if err := s.store.Find(ctx, q, &images); err != nil {
		return nil, err
	}
	r.Images = make([]report.ImageAsset, len(images))
	for i := range images {
		r.Images[i] = images[i].ToDomain()
	}
	return r, nil
}

// DeleteReport removes the report and its images. A report of another
// clinic is reported as not found and left untouched.
func (s *ReportStore) DeleteReport(ctx context.Context, id, clinicID uuid.UUID) error {
	owned := Where("id", id, "clinic_id", clinicID)

	var existing models.ReportModel
	if err := s.store.FindOne(ctx, owned, &existing); err != nil {
		return notFoundAs("report", err)
	}

	return s.store.Transaction(ctx, func(tx Store) error {
		if _, err := tx.Delete(ctx, Where("report_id", id, "clinic_id", clinicID), &models.ReportImageModel{}); err != nil {
			return err
		}
		n, err := tx.Delete(ctx, owned, &models.ReportModel{})
		if err != nil {
			return err
		}
		if n == 0 {
			return shared.NewNotFoundError("report")
		}
		return nil
	})
}

// ListReports returns the clinic's reports newest first, without images.
func (s *ReportStore) ListReports(ctx context.Context, clinicID uuid.UUID) ([]*report.Report, error) {
	var records []models.ReportModel
	if err := s.store.Find(ctx, Where("clinic_id", clinicID).Order("created_at", true), &records); err != nil {
		return nil, err
	}

	reports := make([]*report.Report, 0, len(records))
	for i := range records {
		r, err := records[i].ToDomain()
		if err != nil {
			return nil, shared.NewStoreError("decode report "+records[i].ID.String(), err)
		}
		reports = append(reports, r)
	}
	return reports, nil
}

// FindByFilename returns the clinic's report rendered under filename.
func (s *ReportStore) FindByFilename(ctx context.Context, clinicID uuid.UUID, filename string) (*report.Report, error) {
	return s.findOne(ctx, Where("clinic_id", clinicID, "filename", filename))
}

func (s *ReportStore) findOne(ctx context.Context, q Query) (*report.Report, error) {
	var record models.ReportModel
	if err := s.store.FindOne(ctx, q, &record); err != nil {
		return nil, notFoundAs("report", err)
	}
	r, err := record.ToDomain()
	if err != nil {
		return nil, shared.NewStoreError("decode report "+record.ID.String(), err)
	}
	return r, nil
}

// notFoundAs names the missing resource in a not-found error.
func notFoundAs(resource string, err error) error {
	if shared.IsNotFound(err) {
		return shared.NewNotFoundError(resource)
	}
	return err
}

var _ report.Store = (*ReportStore)(nil)
