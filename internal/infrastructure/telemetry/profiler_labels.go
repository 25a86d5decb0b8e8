package telemetry

import (
	"context"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys.
const (
	ProfilingLabelOperation = "operation"
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
)

// MaxLabelValueLength caps label values to keep profile series bounded.
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels: one series per
// report or request would swamp the profiler. Do not modify at runtime.
var HighCardinalityLabels = map[string]bool{
	"report_id":  true,
	"patient_id": true,
	"request_id": true,
	"trace_id":   true,
	"span_id":    true,
	"filename":   true,
}

// WithProfilingLabels runs fn with pprof labels attached, so CPU samples
// taken inside it can be filtered by label in Pyroscope. The labels are
// sanitized first; with nothing left fn runs unlabeled.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(labels)
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// sanitizeLabels returns key/value pairs sorted by key, without empty or
// high-cardinality entries, with snake_case keys and capped values.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		if clean := sanitizeLabelKey(key); clean != "" {
			pairs = append(pairs, clean, value)
		}
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
