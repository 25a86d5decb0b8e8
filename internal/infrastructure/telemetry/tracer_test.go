package telemetry_test

import (
	"context"
	"testing"

	"github.com/medimaging/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     1.0,
		ServiceName:       "clinic-reports-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, tp.IsEnabled())
	assert.NotNil(t, tp.Tracer("test"))
	assert.NoError(t, tp.ForceFlush(ctx))
	assert.NoError(t, tp.Shutdown(ctx))
}

func TestNewTracerProvider_SamplingRatios(t *testing.T) {
	ctx := context.Background()

	for _, ratio := range []float64{0.0, 0.25, 1.0} {
		tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
			SamplingRatio: ratio,
			ServiceName:   "clinic-reports-test",
		}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, tp.IsEnabled())
		assert.NoError(t, tp.Shutdown(ctx))
	}
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	// The gRPC exporter connects lazily, so no collector is needed to build
	// the provider; flushing would need one.
	if testing.Short() {
		t.Skip("skipping exporter setup in short mode")
	}
	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           true,
		CollectorEndpoint: "localhost:14317",
		SamplingRatio:     0.5,
		ServiceName:       "clinic-reports-test",
		Insecure:          true,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.True(t, tp.IsEnabled())

	require.NoError(t, tp.EnableSpanProfiles())
	assert.True(t, tp.IsSpanProfilesEnabled())
	require.NoError(t, tp.EnableSpanProfiles(), "second call is a no-op")

	_ = tp.Shutdown(ctx)
}

func TestTracerProvider_EnableSpanProfiles_Disabled(t *testing.T) {
	tp, err := telemetry.NewTracerProvider(context.Background(), telemetry.Config{}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, tp.EnableSpanProfiles())
	assert.False(t, tp.IsSpanProfilesEnabled())
}
