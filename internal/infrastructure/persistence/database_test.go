package persistence

import (
	"context"
	"testing"

	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(context.Background(), &config.DatabaseConfig{Driver: "mysql"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported")
}

func TestNewDatabase_SQLite(t *testing.T) {
	cfg := &config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"}

	db, err := NewDatabase(context.Background(), cfg, nil)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, config.DriverSQLite, db.Driver())
	assert.NotNil(t, db.Gorm())
	assert.IsType(t, &GormStore{}, db.Store())
	require.NoError(t, db.AutoMigrate(context.Background()))
	assert.True(t, db.Gorm().Migrator().HasTable("report_images"))
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()

	require.NoError(t, db.Ping(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()

	require.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_StoreTransaction(t *testing.T) {
	t.Run("commits on success", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := db.Store().Transaction(context.Background(), func(tx Store) error {
			assert.IsType(t, &GormStore{}, tx)
			return nil
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		mock.ExpectBegin()
		mock.ExpectRollback()

		err := db.Store().Transaction(context.Background(), func(tx Store) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDatabase_UseWithoutGorm(t *testing.T) {
	d := &Database{driver: config.DriverMongo}
	assert.NoError(t, d.Use(nil))

	stats, err := d.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.MaxOpenConnections)
}
