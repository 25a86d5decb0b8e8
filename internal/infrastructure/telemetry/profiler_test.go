package telemetry_test

import (
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/medimaging/backend/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestParseProfileTypes(t *testing.T) {
	types, err := telemetry.ParseProfileTypes([]string{"cpu", " Alloc_Space ", "mutex", "cpu"})
	require.NoError(t, err)
	assert.Equal(t, []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileMutexCount,
		pyroscope.ProfileMutexDuration,
	}, types)

	_, err = telemetry.ParseProfileTypes([]string{"heap"})
	assert.ErrorContains(t, err, `unknown profile type "heap"`)

	types, err = telemetry.ParseProfileTypes(nil)
	require.NoError(t, err)
	assert.Empty(t, types)
}

func TestNewProfiler(t *testing.T) {
	t.Run("disabled is a no-op", func(t *testing.T) {
		p, err := telemetry.NewProfiler(telemetry.ProfilerConfig{}, zaptest.NewLogger(t))
		require.NoError(t, err)
		assert.False(t, p.IsEnabled())
		assert.NoError(t, p.Stop())
		assert.NoError(t, p.Stop())
	})

	t.Run("requires a server address", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:         true,
			ApplicationName: "clinic-reports",
		}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "server address")
	})

	t.Run("requires an application name", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:       true,
			ServerAddress: "http://localhost:4040",
		}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "application name")
	})

	t.Run("rejects unknown profile types", func(t *testing.T) {
		_, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
			Enabled:         true,
			ServerAddress:   "http://localhost:4040",
			ApplicationName: "clinic-reports",
			ProfileTypes:    []string{"gpu"},
		}, zaptest.NewLogger(t))
		assert.ErrorContains(t, err, "gpu")
	})
}
