package main

import (
	"context"
	"errors"

	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/medimaging/backend/internal/infrastructure/logger"
	"github.com/medimaging/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// observability bundles the OpenTelemetry providers and the profiler so
// they can be flushed together on shutdown.
type observability struct {
	tracer   *telemetry.TracerProvider
	meter    *telemetry.MeterProvider
	logs     *telemetry.LoggerProvider
	profiler *telemetry.Profiler
	reports  *telemetry.ReportMetrics
	db       *telemetry.DBMetrics
}

// setupObservability starts every provider the config enables. The
// returned logger also ships entries to the collector when log export is on.
func setupObservability(ctx context.Context, cfg *config.Config, log *zap.Logger) (*observability, *zap.Logger, error) {
	tc := cfg.Telemetry
	obs := &observability{}
	var err error

	obs.tracer, err = telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           tc.Enabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, nil, err
	}

	obs.meter, err = telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           tc.MetricsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.MetricsExportInterval,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	obs.reports, err = telemetry.NewReportMetrics(obs.meter.Meter("clinic-reports/report"))
	if err != nil {
		return nil, nil, err
	}

	obs.logs, err = telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		ServiceVersion:    version,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	if obs.logs.IsEnabled() {
		log = telemetry.NewBridgedLogger(log.Core(), telemetry.NewZapOTELCore(telemetry.ZapBridgeConfig{
			ServiceName:    tc.ServiceName,
			LoggerProvider: obs.logs,
			Level:          logger.ParseLevel(cfg.Log.Level),
		}), zap.AddCaller())
	}

	obs.profiler, err = telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         tc.ProfilingEnabled,
		ServerAddress:   tc.ProfilerAddress,
		ApplicationName: tc.ServiceName,
		ProfileTypes:    tc.ProfileTypes,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	if tc.SpanProfiles && obs.profiler.IsEnabled() {
		if err := obs.tracer.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles not enabled", zap.Error(err))
		}
	}

	return obs, log, nil
}

// shutdown flushes and stops everything in reverse start order.
func (o *observability) shutdown(ctx context.Context) error {
	if o.db != nil {
		o.db.Stop()
	}
	return errors.Join(
		o.profiler.Stop(),
		o.logs.Shutdown(ctx),
		o.meter.Shutdown(ctx),
		o.tracer.Shutdown(ctx),
	)
}

// httpMeter returns the meter for HTTP server metrics, or nil when metric
// export is off so the middleware is skipped entirely.
func (o *observability) httpMeter() metric.Meter {
	if o.meter == nil || !o.meter.IsEnabled() {
		return nil
	}
	return o.meter.Meter("clinic-reports/http")
}
