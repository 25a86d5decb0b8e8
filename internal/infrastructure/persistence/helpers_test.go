package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const pixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII="

// newSQLiteDatabase opens an in-memory SQLite database with the full schema.
// A single connection keeps the in-memory database alive for the test.
func newSQLiteDatabase(t *testing.T) *Database {
	t.Helper()

	cfg := GormConfig(nil)
	cfg.Logger = gormlogger.Discard
	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	d, err := NewDatabaseFromGorm(config.DriverSQLite, db)
	require.NoError(t, err)
	require.NoError(t, d.AutoMigrate(context.Background()))
	return d
}

// newMockDatabase creates a Database over a mocked PostgreSQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()

	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})
	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormlogger.Discard,
	})
	require.NoError(t, err)

	d, err := NewDatabaseFromGorm(config.DriverPostgres, gormDB)
	require.NoError(t, err)
	return d, mock, mockDB
}

func newTestReport(t *testing.T, clinicID uuid.UUID, externalID string, images int) *report.Report {
	t.Helper()

	layout, err := report.NewLayoutOptions(4, 0, report.KindXRay)
	require.NoError(t, err)

	assets := make([]report.ImageAsset, images)
	for i := range assets {
		assets[i], err = report.NewImageAsset("scan.png", pixelPNG)
		require.NoError(t, err)
	}

	patient := report.PatientSnapshot{
		Name:       "Jane Doe",
		ExternalID: externalID,
		Age:        42,
		Sex:        report.SexFemale,
		ReferredBy: "Dr. Who",
	}
	r, err := report.NewReport(clinicID, patient, layout, report.ClinicBranding{DisplayName: "Sunrise Clinic"}, assets)
	require.NoError(t, err)
	return r
}
