// Package integration runs the report service against real PostgreSQL and
// Redis instances started with testcontainers. Every test is skipped under
// -short.
package integration

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/medimaging/backend/internal/infrastructure/migration"
	"github.com/medimaging/backend/internal/infrastructure/persistence"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sharedMu       sync.Mutex
	sharedPostgres testcontainers.Container
	sharedDSN      string
	sharedRedis    testcontainers.Container
	sharedRedisURL string
)

// TestDB is a migrated PostgreSQL database wrapped the way the server wraps it
type TestDB struct {
	*persistence.Database
	t *testing.T
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test requires Docker; skipped with -short")
	}
}

// NewTestDB returns a connection to the shared PostgreSQL container with
// every table truncated. The schema is applied once per package run with
// the migrations embedded in the binary.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	skipShort(t)

	dsn := postgresDSN(t)

	gormConfig := persistence.GormConfig(nil)
	gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	if os.Getenv("TEST_DB_DEBUG") != "" {
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(gormpostgres.Open(dsn), gormConfig)
	require.NoError(t, err, "Failed to connect to database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(5)
	sqlDB.SetMaxIdleConns(2)
	t.Cleanup(func() { _ = sqlDB.Close() })

	database, err := persistence.NewDatabaseFromGorm(config.DriverPostgres, db)
	require.NoError(t, err)
	tdb := &TestDB{Database: database, t: t}
	tdb.CleanTables()
	return tdb
}

func postgresDSN(t *testing.T) string {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedPostgres != nil {
		return sharedDSN
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("reports_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("reports123"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	defer sqlDB.Close()

	m, err := migration.New(sqlDB, "", nil)
	require.NoError(t, err)
	require.NoError(t, m.Up(), "Failed to run migrations")

	sharedPostgres = container
	sharedDSN = dsn
	return dsn
}

// CleanTables truncates every application table
func (tdb *TestDB) CleanTables() {
	tdb.t.Helper()

	var tables []string
	err := tdb.Gorm().Raw(`
		SELECT tablename FROM pg_tables
		WHERE schemaname = 'public'
		AND tablename != 'schema_migrations'
	`).Scan(&tables).Error
	require.NoError(tdb.t, err, "Failed to get table names")

	for _, table := range tables {
		err := tdb.Gorm().Exec(fmt.Sprintf("TRUNCATE TABLE %q CASCADE", table)).Error
		require.NoError(tdb.t, err, "Failed to truncate %s", table)
	}
}

// NewRedisClient returns a client on the shared Redis container with an
// empty keyspace.
func NewRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	skipShort(t)

	opts, err := redis.ParseURL(redisURL(t))
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}

func redisURL(t *testing.T) string {
	t.Helper()
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if sharedRedis != nil {
		return sharedRedisURL
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	sharedRedis = container
	sharedRedisURL = "redis://" + endpoint
	return sharedRedisURL
}

// terminateContainers stops the shared containers; called from TestMain.
func terminateContainers() {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, c := range []testcontainers.Container{sharedPostgres, sharedRedis} {
		if c != nil {
			_ = c.Terminate(ctx)
		}
	}
	sharedPostgres, sharedRedis = nil, nil
}
