package middleware

import (
	"context"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/medimaging/backend/internal/infrastructure/telemetry"
)

// ProfilingConfig holds configuration for the profiling middleware.
type ProfilingConfig struct {
	Enabled bool
	// SkipPaths are matched against the route pattern
	SkipPaths []string
}

// DefaultProfilingConfig returns the profiling configuration with health
// checks skipped.
func DefaultProfilingConfig() ProfilingConfig {
	return ProfilingConfig{
		Enabled:   true,
		SkipPaths: []string{"/health"},
	}
}

// Profiling tags CPU samples taken while a request is handled with its route
// pattern and method, so a slow endpoint can be picked out in Pyroscope.
// Patterns are used instead of paths: report file names would explode the
// label set.
func Profiling(cfg ProfilingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" || slices.Contains(cfg.SkipPaths, route) {
			c.Next()
			return
		}

		labels := map[string]string{
			telemetry.ProfilingLabelRoute:  route,
			telemetry.ProfilingLabelMethod: c.Request.Method,
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
