package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include bound variables in db.statement; never in production
	SlowQueryThresh time.Duration // default 200ms
	DBSystem        string        // default "postgresql"
}

// DefaultDBTracingConfig returns default configuration for database tracing.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin is a gorm.Plugin that installs otelgorm and annotates
// its spans with row counts, table names and slow query markers.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

var _ gorm.Plugin = (*DBTracingPlugin)(nil)

// NewDBTracingPlugin creates a new database tracing plugin with the given configuration.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = 200 * time.Millisecond
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = "postgresql"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// Name implements gorm.Plugin.
func (p *DBTracingPlugin) Name() string {
	return "clinic-reports:db-tracing"
}

// Initialize implements gorm.Plugin. A disabled plugin registers nothing.
func (p *DBTracingPlugin) Initialize(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	if err := p.registerCallbacks(db); err != nil {
		return err
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

// registerCallbacks stamps the start time before each gorm step and
// annotates otelgorm's span after it.
func (p *DBTracingPlugin) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("otel_timing:before_create", markQueryStart),
		cb.Query().Before("gorm:query").Register("otel_timing:before_query", markQueryStart),
		cb.Update().Before("gorm:update").Register("otel_timing:before_update", markQueryStart),
		cb.Delete().Before("gorm:delete").Register("otel_timing:before_delete", markQueryStart),
		cb.Row().Before("gorm:row").Register("otel_timing:before_row", markQueryStart),
		cb.Raw().Before("gorm:raw").Register("otel_timing:before_raw", markQueryStart),

		cb.Create().After("gorm:create").Register("otel_timing:after_create", p.annotate),
		cb.Query().After("gorm:query").Register("otel_timing:after_query", p.annotate),
		cb.Update().After("gorm:update").Register("otel_timing:after_update", p.annotate),
		cb.Delete().After("gorm:delete").Register("otel_timing:after_delete", p.annotate),
		cb.Row().After("gorm:row").Register("otel_timing:after_row", p.annotate),
		cb.Raw().After("gorm:raw").Register("otel_timing:after_raw", p.annotate),
	)
}

type contextKey string

const queryStartTimeKey contextKey = "otel_query_start_time"

func markQueryStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = context.WithValue(db.Statement.Context, queryStartTimeKey, time.Now())
	}
}

// annotate adds row counts and the table to the active span, marks real
// errors, and flags statements slower than the threshold.
func (p *DBTracingPlugin) annotate(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// A missing report is an expected outcome, not a failed query.
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	start, ok := ctx.Value(queryStartTimeKey).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > p.config.SlowQueryThresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
		))
	}
}
