package telemetry

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBMetricsConfig holds configuration for database metrics collection.
type DBMetricsConfig struct {
	Enabled            bool
	SlowQueryThreshold time.Duration // default 200ms
}

// DefaultDBMetricsConfig returns default configuration for database metrics.
func DefaultDBMetricsConfig() DBMetricsConfig {
	return DBMetricsConfig{
		Enabled:            true,
		SlowQueryThreshold: 200 * time.Millisecond,
	}
}

// DBMetrics holds the query instruments and the pool gauge registration.
type DBMetrics struct {
	queryTotal     *Counter
	queryDuration  *Histogram
	slowQueryTotal *Counter

	registration metric.Registration
	config       DBMetricsConfig
	logger       *zap.Logger
}

// NewDBMetrics creates the query instruments. Pool gauges are observed from
// sqlDB on each collection; pass nil to skip them.
func NewDBMetrics(meter metric.Meter, sqlDB *sql.DB, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}

	m := &DBMetrics{config: cfg, logger: logger}
	var err error

	if m.queryTotal, err = NewCounter(meter, "db_query_total",
		"Total number of database queries by operation", "{query}"); err != nil {
		return nil, err
	}
	if m.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency in seconds",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.slowQueryTotal, err = NewCounter(meter, "db_slow_query_total",
		"Queries slower than the configured threshold", "{query}"); err != nil {
		return nil, err
	}

	if sqlDB != nil {
		if m.registration, err = registerPoolGauges(meter, sqlDB); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func registerPoolGauges(meter metric.Meter, sqlDB *sql.DB) (metric.Registration, error) {
	connections, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Number of connections in the pool by state"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	maxOpen, err := meter.Int64ObservableGauge("db_pool_connections_max",
		metric.WithDescription("Maximum number of open connections"),
		metric.WithUnit("{connection}"))
	if err != nil {
		return nil, err
	}
	waits, err := meter.Int64ObservableCounter("db_pool_wait_total",
		metric.WithDescription("Connections waited for because the pool was exhausted"),
		metric.WithUnit("{wait}"))
	if err != nil {
		return nil, err
	}

	return meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(connections, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(connections, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(connections, int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		o.ObserveInt64(maxOpen, int64(stats.MaxOpenConnections))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, connections, maxOpen, waits)
}

// RecordQuery records one finished statement.
func (m *DBMetrics) RecordQuery(ctx context.Context, operation, table string, duration time.Duration, err error) {
	operation = strings.ToUpper(operation)
	if operation == "" {
		operation = "OTHER"
	}
	outcome := "ok"
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		outcome = "error"
	}

	m.queryTotal.Inc(ctx, AttrDBOperation.String(operation), AttrOutcome.String(outcome))
	m.queryDuration.RecordDuration(ctx, duration, AttrDBOperation.String(operation))

	if duration > m.config.SlowQueryThreshold {
		if table == "" {
			table = "unknown"
		}
		m.slowQueryTotal.Inc(ctx, AttrDBTable.String(table))
	}
}

// Stop unregisters the pool gauges. Safe to call more than once.
func (m *DBMetrics) Stop() {
	if m.registration == nil {
		return
	}
	if err := m.registration.Unregister(); err != nil {
		m.logger.Warn("Failed to unregister pool gauges", zap.Error(err))
	}
	m.registration = nil
}

// DBMetricsPlugin is a gorm.Plugin feeding DBMetrics from statement callbacks.
type DBMetricsPlugin struct {
	metrics *DBMetrics
}

var _ gorm.Plugin = (*DBMetricsPlugin)(nil)

// NewDBMetricsPlugin creates a new GORM plugin for database metrics.
func NewDBMetricsPlugin(metrics *DBMetrics) *DBMetricsPlugin {
	return &DBMetricsPlugin{metrics: metrics}
}

// Name implements gorm.Plugin.
func (p *DBMetricsPlugin) Name() string {
	return "clinic-reports:db-metrics"
}

// Initialize implements gorm.Plugin.
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	if p.metrics == nil || !p.metrics.config.Enabled {
		return nil
	}
	record := func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) { p.record(db, op) }
	}
	raw := func(db *gorm.DB) { p.record(db, detectOperationType(db.Statement.SQL.String())) }

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("db_metrics:before_create", markQueryStart),
		cb.Query().Before("gorm:query").Register("db_metrics:before_query", markQueryStart),
		cb.Update().Before("gorm:update").Register("db_metrics:before_update", markQueryStart),
		cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", markQueryStart),
		cb.Row().Before("gorm:row").Register("db_metrics:before_row", markQueryStart),
		cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", markQueryStart),

		cb.Create().After("gorm:create").Register("db_metrics:after_create", record("INSERT")),
		cb.Query().After("gorm:query").Register("db_metrics:after_query", record("SELECT")),
		cb.Update().After("gorm:update").Register("db_metrics:after_update", record("UPDATE")),
		cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", record("DELETE")),
		cb.Row().After("gorm:row").Register("db_metrics:after_row", raw),
		cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", raw),
	)
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	var elapsed time.Duration
	if start, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed = time.Since(start)
	}
	p.metrics.RecordQuery(ctx, operation, db.Statement.Table, elapsed, db.Error)
}

func detectOperationType(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}

// RegisterDBMetrics builds DBMetrics over db's pool and installs the plugin.
// It returns nil when metrics are disabled or the provider is not exporting.
func RegisterDBMetrics(db *gorm.DB, mp *MeterProvider, cfg DBMetricsConfig, logger *zap.Logger) (*DBMetrics, error) {
	if !cfg.Enabled || mp == nil || !mp.IsEnabled() {
		return nil, nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	m, err := NewDBMetrics(mp.Meter("clinic-reports/db"), sqlDB, cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := db.Use(NewDBMetricsPlugin(m)); err != nil {
		m.Stop()
		return nil, err
	}
	logger.Info("Database metrics registered",
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold))
	return m, nil
}
