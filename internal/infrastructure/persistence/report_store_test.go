package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/persistence/models"
	"github.com/medimaging/backend/internal/infrastructure/persistence/tenant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReportStore_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewReportStore(newSQLiteDatabase(t).Store())
	clinicID := uuid.New()

	r := newTestReport(t, clinicID, "UH001", 3)
	id, err := store.SaveReport(ctx, r)
	require.NoError(t, err)
	assert.Equal(t, r.ID, id)

	loaded, err := store.LoadReport(ctx, id, clinicID)
	require.NoError(t, err)
	assert.Equal(t, r.Patient, loaded.Patient)
	assert.Equal(t, r.Layout, loaded.Layout)
	assert.Equal(t, "Sunrise Clinic", loaded.Branding.DisplayName)
	assert.Equal(t, report.StatusSaved, loaded.Status)
	assert.Equal(t, 3, loaded.ImagesCount)
	require.Len(t, loaded.Images, 3)
	for i, img := range loaded.Images {
		assert.Equal(t, i, img.Position)
		assert.Equal(t, r.Images[i].ID, img.ID)
		assert.Equal(t, pixelPNG, img.Data)
	}
}

func TestReportStore_LoadIsClinicScoped(t *testing.T) {
	ctx := context.Background()
	store := NewReportStore(newSQLiteDatabase(t).Store())

	r := newTestReport(t, uuid.New(), "UH001", 1)
	_, err := store.SaveReport(ctx, r)
	require.NoError(t, err)

	_, err = store.LoadReport(ctx, r.ID, uuid.New())
	assert.True(t, shared.IsNotFound(err))

	err = store.DeleteReport(ctx, r.ID, uuid.New())
	assert.True(t, shared.IsNotFound(err))

	_, err = store.LoadReport(ctx, r.ID, r.ClinicID)
	assert.NoError(t, err, "a foreign delete must leave the report intact")
}

func TestReportStore_SaveExistingUpdatesOnlyReportRow(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t)
	store := NewReportStore(db.Store())

	r := newTestReport(t, uuid.New(), "UH002", 2)
	_, err := store.SaveReport(ctx, r)
	require.NoError(t, err)

	generatedAt := time.Date(2026, 10, 19, 14, 5, 9, 0, time.UTC)
	_, err = r.MarkGenerated(r.ArtifactName(generatedAt), generatedAt)
	require.NoError(t, err)
	_, err = store.SaveReport(ctx, r)
	require.NoError(t, err)

	loaded, err := store.LoadReport(ctx, r.ID, r.ClinicID)
	require.NoError(t, err)
	assert.Equal(t, report.StatusGenerated, loaded.Status)
	assert.Equal(t, "Jane_Doe_UH002_xray_2026-10-19T14-05-09.pdf", loaded.Filename)
	require.NotNil(t, loaded.GeneratedAt)
	assert.True(t, generatedAt.Equal(*loaded.GeneratedAt))
	assert.Len(t, loaded.Images, 2)

	var images []models.ReportImageModel
	require.NoError(t, db.Store().Find(ctx, Where("report_id", r.ID, "clinic_id", r.ClinicID), &images))
	assert.Len(t, images, 2, "images are never duplicated on update")

	byName, err := store.FindByFilename(ctx, r.ClinicID, loaded.Filename)
	require.NoError(t, err)
	assert.Equal(t, r.ID, byName.ID)
}

func TestReportStore_ListReports(t *testing.T) {
	ctx := context.Background()
	store := NewReportStore(newSQLiteDatabase(t).Store())
	clinicID := uuid.New()

	older := newTestReport(t, clinicID, "UH010", 1)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := newTestReport(t, clinicID, "UH011", 2)
	foreign := newTestReport(t, uuid.New(), "UH012", 1)

	for _, r := range []*report.Report{older, newer, foreign} {
		_, err := store.SaveReport(ctx, r)
		require.NoError(t, err)
	}

	reports, err := store.ListReports(ctx, clinicID)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, newer.ID, reports[0].ID)
	assert.Equal(t, older.ID, reports[1].ID)
	assert.Empty(t, reports[0].Images)
	assert.Equal(t, 2, reports[0].ImagesCount)
}

func TestReportStore_DeleteRemovesImages(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t)
	store := NewReportStore(db.Store())

	r := newTestReport(t, uuid.New(), "UH020", 2)
	_, err := store.SaveReport(ctx, r)
	require.NoError(t, err)

	require.NoError(t, store.DeleteReport(ctx, r.ID, r.ClinicID))

	_, err = store.LoadReport(ctx, r.ID, r.ClinicID)
	assert.True(t, shared.IsNotFound(err))

	var images []models.ReportImageModel
	require.NoError(t, db.Store().Find(ctx, Where("report_id", r.ID, "clinic_id", r.ClinicID), &images))
	assert.Empty(t, images)

	err = store.DeleteReport(ctx, r.ID, r.ClinicID)
	assert.True(t, shared.IsNotFound(err))
}

func TestPatientStore_SaveUpserts(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore(newSQLiteDatabase(t).Store())
	clinicID := uuid.New()

	snapshot := report.PatientSnapshot{Name: "Jane Doe", ExternalID: "UH001", Age: 42, Sex: report.SexFemale}
	p := report.NewPatient(clinicID, snapshot)
	require.NoError(t, store.Save(ctx, p))

	found, err := store.FindByExternalID(ctx, clinicID, "UH001")
	require.NoError(t, err)
	assert.Equal(t, p.ID, found.ID)

	snapshot.Age = 43
	found.Refresh(snapshot)
	require.NoError(t, store.Save(ctx, found))

	again, err := store.FindByExternalID(ctx, clinicID, "UH001")
	require.NoError(t, err)
	assert.Equal(t, 43, again.Age)

	_, err = store.FindByExternalID(ctx, uuid.New(), "UH001")
	assert.True(t, shared.IsNotFound(err))
}

func TestPatientStore_UniquePerClinic(t *testing.T) {
	ctx := context.Background()
	store := NewPatientStore(newSQLiteDatabase(t).Store())
	clinicID := uuid.New()
	snapshot := report.PatientSnapshot{Name: "Jane Doe", ExternalID: "UH001", Age: 42, Sex: report.SexFemale}

	require.NoError(t, store.Save(ctx, report.NewPatient(clinicID, snapshot)))
	err := store.Save(ctx, report.NewPatient(clinicID, snapshot))
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)

	assert.NoError(t, store.Save(ctx, report.NewPatient(uuid.New(), snapshot)), "another clinic may reuse the id")
}

func TestSettingsStore(t *testing.T) {
	ctx := context.Background()
	store := NewSettingsStore(newSQLiteDatabase(t).Store())
	clinicID := uuid.New()

	_, err := store.FindByClinic(ctx, clinicID)
	assert.True(t, shared.IsNotFound(err))

	s := report.NewSettings(clinicID, report.ClinicBranding{DisplayName: "Sunrise", AddressText: "1 Main St"})
	require.NoError(t, store.Save(ctx, s))

	s.Update(report.ClinicBranding{DisplayName: "Sunrise Imaging", AddressText: "2 Main St"})
	require.NoError(t, store.Save(ctx, s))

	got, err := store.FindByClinic(ctx, clinicID)
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Imaging", got.Branding.DisplayName)
	assert.Equal(t, "2 Main St", got.Branding.AddressText)
}

func TestReportStore_ClinicScopeGuard(t *testing.T) {
	ctx := context.Background()
	db := newSQLiteDatabase(t)
	r := newTestReport(t, uuid.New(), "UH030", 1)
	_, err := NewReportStore(db.Store()).SaveReport(ctx, r)
	require.NoError(t, err)

	var images []models.ReportImageModel
	err = db.Store().Find(ctx, Where("report_id", r.ID), &images)
	assert.ErrorIs(t, err, tenant.ErrUnscopedStatement, "a query on a clinic-owned table must name the clinic")

	_, err = db.Store().Delete(ctx, Where("report_id", r.ID), &models.ReportImageModel{})
	assert.ErrorIs(t, err, tenant.ErrUnscopedStatement)

	orphan := newTestReport(t, uuid.New(), "UH031", 1)
	orphan.ClinicID = uuid.Nil
	_, err = NewReportStore(db.Store()).SaveReport(ctx, orphan)
	assert.ErrorIs(t, err, tenant.ErrMissingClinic)
}
