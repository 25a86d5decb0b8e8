package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/medimaging/backend/internal/infrastructure/logger"
	"github.com/medimaging/backend/internal/infrastructure/persistence/models"
	"github.com/medimaging/backend/internal/infrastructure/persistence/tenant"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Database owns the connection of the configured backend and the Store
// built on it. Exactly one of the gorm handle or the mongo client is set.
type Database struct {
	driver string
	gormDB *gorm.DB
	client *mongo.Client
	mongo  *MongoStore
	store  Store
}

// NewDatabase opens the backend selected by cfg.Driver and verifies it
// answers a ping.
func NewDatabase(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger) (*Database, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return openGorm(ctx, config.DriverPostgres, postgres.Open(cfg.DSN()), cfg, log)
	case config.DriverSQLite:
		return openGorm(ctx, config.DriverSQLite, sqlite.Open(cfg.SQLitePath), cfg, log)
	case config.DriverMongo:
		return openMongo(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// NewDatabaseFromGorm wraps an already opened gorm handle and installs the
// clinic scope guard on it.
func NewDatabaseFromGorm(driver string, db *gorm.DB) (*Database, error) {
	if err := db.Use(ClinicScopeGuard()); err != nil && !errors.Is(err, gorm.ErrRegistered) {
		return nil, fmt.Errorf("failed to install clinic scope guard: %w", err)
	}
	return &Database{driver: driver, gormDB: db, store: NewGormStore(db)}, nil
}

// ClinicScopeGuard guards every clinic-owned table on clinic_id.
func ClinicScopeGuard() *tenant.Guard {
	return tenant.NewGuard(tenant.DefaultColumn,
		models.PatientModel{}.TableName(),
		models.ReportModel{}.TableName(),
		models.ReportImageModel{}.TableName(),
		models.ClinicSettingsModel{}.TableName(),
	)
}

// GormConfig is the gorm configuration every relational connection uses.
func GormConfig(log *zap.Logger) *gorm.Config {
	cfg := &gorm.Config{
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
	if log != nil {
		cfg.Logger = logger.NewGormLogger(log, logger.MapGormLogLevel("warn"))
	}
	return cfg
}

func openGorm(ctx context.Context, driver string, dialector gorm.Dialector, cfg *config.DatabaseConfig, log *zap.Logger) (*Database, error) {
	db, err := gorm.Open(dialector, GormConfig(log))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if driver == config.DriverSQLite {
		// SQLite serializes writers; one connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
		sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return NewDatabaseFromGorm(driver, db)
}

func openMongo(ctx context.Context, cfg *config.DatabaseConfig) (*Database, error) {
	opts := options.Client().
		ApplyURI(cfg.MongoURI).
		SetRegistry(NewRegistry()).
		SetMaxPoolSize(uint64(cfg.MaxOpenConns))

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	store := NewMongoStore(client.Database(cfg.MongoDatabase))
	return &Database{driver: config.DriverMongo, client: client, mongo: store, store: store}, nil
}

// Driver returns the configured backend name.
func (d *Database) Driver() string {
	return d.driver
}

// Store returns the backend-neutral store.
func (d *Database) Store() Store {
	return d.store
}

// Gorm returns the gorm handle, or nil for the document backend.
func (d *Database) Gorm() *gorm.DB {
	return d.gormDB
}

// Use registers a gorm plugin. It is a no-op for the document backend.
func (d *Database) Use(plugin gorm.Plugin) error {
	if d.gormDB == nil {
		return nil
	}
	return d.gormDB.Use(plugin)
}

// AutoMigrate brings the schema up to date without the migrate CLI. It
// creates tables on the relational backends and indexes on mongo.
func (d *Database) AutoMigrate(ctx context.Context) error {
	if d.mongo != nil {
		return d.mongo.EnsureIndexes(ctx)
	}
	return d.gormDB.WithContext(ctx).AutoMigrate(
		&models.ClinicAccountModel{},
		&models.ClinicSettingsModel{},
		&models.PatientModel{},
		&models.ReportModel{},
		&models.ReportImageModel{},
	)
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	if d.client != nil {
		return d.client.Ping(ctx, readpref.Primary())
	}
	sqlDB, err := d.gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.client != nil {
		return d.client.Disconnect(context.Background())
	}
	if d.gormDB == nil {
		return errors.New("database is not open")
	}
	sqlDB, err := d.gormDB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Stats returns connection pool statistics. The document backend reports
// zero values.
func (d *Database) Stats() (ConnectionStats, error) {
	if d.gormDB == nil {
		return ConnectionStats{}, nil
	}
	sqlDB, err := d.gormDB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
}
