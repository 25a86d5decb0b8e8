package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/medimaging/backend/internal/domain/shared"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// ReportMetrics records the report pipeline: renders, their latency and
// size, and saved or deleted reports.
type ReportMetrics struct {
	renderTotal    *Counter
	renderDuration *Histogram
	renderAttempts *Histogram
	pageCount      *Histogram
	storedTotal    *Counter
	deletedTotal   *Counter
}

// NewReportMetrics registers the report instruments on meter.
func NewReportMetrics(meter metric.Meter) (*ReportMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	m := &ReportMetrics{}
	var err error

	if m.renderTotal, err = NewCounter(meter,
		"reports_render_total", "PDF renders by report kind, source and outcome", "{renders}",
	); err != nil {
		return nil, err
	}
	if m.renderDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "reports_render_duration_seconds",
		Description: "Wall time of a PDF render including retries",
		Unit:        "s",
		Boundaries:  RenderDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.renderAttempts, err = NewHistogram(meter, HistogramOpts{
		Name:        "reports_render_attempts",
		Description: "Browser attempts needed per successful render",
		Unit:        "{attempts}",
		Boundaries:  []float64{1, 2, 3, 5},
	}); err != nil {
		return nil, err
	}
	if m.pageCount, err = NewHistogram(meter, HistogramOpts{
		Name:        "reports_pdf_pages",
		Description: "Pages per rendered PDF",
		Unit:        "{pages}",
		Boundaries:  PageCountBuckets,
	}); err != nil {
		return nil, err
	}
	if m.storedTotal, err = NewCounter(meter,
		"reports_stored_total", "Reports persisted, by kind", "{reports}",
	); err != nil {
		return nil, err
	}
	if m.deletedTotal, err = NewCounter(meter,
		"reports_deleted_total", "Reports deleted", "{reports}",
	); err != nil {
		return nil, err
	}
	return m, nil
}

// RenderCompleted records one finished render, successful or not.
func (m *ReportMetrics) RenderCompleted(ctx context.Context, kind, source string, pages, attempts int, elapsed time.Duration, err error) {
	attrs := []attribute.KeyValue{AttrReportKind.String(kind), AttrSource.String(source)}

	if err != nil {
		code := shared.CodeRenderFailed
		var de *shared.DomainError
		if errors.As(err, &de) {
			code = de.Code
		}
		m.renderTotal.Inc(ctx, append(attrs, AttrOutcome.String("failure"), AttrErrorCode.String(code))...)
		m.renderDuration.RecordDuration(ctx, elapsed, append(attrs, AttrOutcome.String("failure"))...)
		return
	}

	ok := append(attrs, AttrOutcome.String("success"))
	m.renderTotal.Inc(ctx, ok...)
	m.renderDuration.RecordDuration(ctx, elapsed, ok...)
	m.renderAttempts.Record(ctx, float64(attempts), attrs...)
	m.pageCount.Record(ctx, float64(pages), attrs...)
}

// ReportStored counts a report written to the store.
func (m *ReportMetrics) ReportStored(ctx context.Context, kind string) {
	m.storedTotal.Inc(ctx, AttrReportKind.String(kind))
}

// ReportDeleted counts a deleted report.
func (m *ReportMetrics) ReportDeleted(ctx context.Context) {
	m.deletedTotal.Inc(ctx)
}
