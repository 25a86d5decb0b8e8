package report

import (
	"context"
	"time"
)

// Render sources recorded with every render
const (
	SourceRequest = "request"
	SourceSaved   = "saved"
)

// Recorder receives report pipeline measurements
type Recorder interface {
	RenderCompleted(ctx context.Context, kind, source string, pages, attempts int, elapsed time.Duration, err error)
	ReportStored(ctx context.Context, kind string)
	ReportDeleted(ctx context.Context)
}

type nopRecorder struct{}

func (nopRecorder) RenderCompleted(context.Context, string, string, int, int, time.Duration, error) {}
func (nopRecorder) ReportStored(context.Context, string)                                          {}
func (nopRecorder) ReportDeleted(context.Context)                                                 {}
