package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig holds Pyroscope continuous profiling configuration.
type ProfilerConfig struct {
	Enabled           bool
	ServerAddress     string // e.g. "http://pyroscope:4040"
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	// ProfileTypes are short names: cpu, alloc_objects, alloc_space,
	// inuse_objects, inuse_space, goroutines, mutex, block.
	ProfileTypes []string
}

// profileTypeNames maps config names to pyroscope profile types. mutex and
// block expand to both their count and duration profiles.
var profileTypeNames = map[string][]pyroscope.ProfileType{
	"cpu":           {pyroscope.ProfileCPU},
	"alloc_objects": {pyroscope.ProfileAllocObjects},
	"alloc_space":   {pyroscope.ProfileAllocSpace},
	"inuse_objects": {pyroscope.ProfileInuseObjects},
	"inuse_space":   {pyroscope.ProfileInuseSpace},
	"goroutines":    {pyroscope.ProfileGoroutines},
	"mutex":         {pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration},
	"block":         {pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration},
}

// ParseProfileTypes resolves config names to pyroscope profile types.
// Duplicates collapse; an unknown name is an error.
func ParseProfileTypes(names []string) ([]pyroscope.ProfileType, error) {
	seen := make(map[pyroscope.ProfileType]bool)
	var types []pyroscope.ProfileType
	for _, name := range names {
		mapped, ok := profileTypeNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown profile type %q", name)
		}
		for _, pt := range mapped {
			if !seen[pt] {
				seen[pt] = true
				types = append(types, pt)
			}
		}
	}
	return types, nil
}

// Profiler wraps the Pyroscope profiler with lifecycle management.
type Profiler struct {
	profiler *pyroscope.Profiler
	logger   *zap.Logger
	config   ProfilerConfig
	mu       sync.Mutex
	stopped  bool
}

// NewProfiler creates and starts a new Pyroscope profiler.
// If profiling is disabled, it returns a no-op profiler.
func NewProfiler(cfg ProfilerConfig, logger *zap.Logger) (*Profiler, error) {
	p := &Profiler{
		logger: logger,
		config: cfg,
	}

	if !cfg.Enabled {
		logger.Info("Continuous profiling disabled, using no-op profiler")
		return p, nil
	}

	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("profiler server address is required when profiling is enabled")
	}
	if cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler application name is required when profiling is enabled")
	}

	profileTypes, err := ParseProfileTypes(cfg.ProfileTypes)
	if err != nil {
		return nil, err
	}
	for _, pt := range profileTypes {
		switch pt {
		case pyroscope.ProfileMutexCount:
			runtime.SetMutexProfileFraction(5)
		case pyroscope.ProfileBlockCount:
			runtime.SetBlockProfileRate(5)
		}
	}

	tags := map[string]string{}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		tags["hostname"] = hostname
	}
	if podName := os.Getenv("POD_NAME"); podName != "" {
		tags["pod"] = podName
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            pyroscopeLogger{logger: logger.Named("pyroscope").Sugar()},
		Tags:              tags,
		ProfileTypes:      profileTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start Pyroscope profiler: %w", err)
	}
	p.profiler = profiler

	logger.Info("Pyroscope profiler started",
		zap.String("server_address", cfg.ServerAddress),
		zap.String("application_name", cfg.ApplicationName),
		zap.Strings("profile_types", cfg.ProfileTypes),
	)
	return p, nil
}

// Stop flushes pending profiles and stops the profiler. It is safe to call
// more than once. pyroscope's Stop takes no context, so a hung server can
// delay shutdown until its internal upload timeout.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped || p.profiler == nil {
		p.stopped = true
		return nil
	}
	p.stopped = true

	if err := p.profiler.Stop(); err != nil {
		p.logger.Error("Error stopping profiler", zap.Error(err))
		return fmt.Errorf("failed to stop profiler: %w", err)
	}
	p.logger.Info("Pyroscope profiler stopped")
	return nil
}

// IsEnabled returns whether profiling is running.
func (p *Profiler) IsEnabled() bool {
	return p.config.Enabled && p.profiler != nil
}

// pyroscopeLogger adapts zap to pyroscope.Logger
type pyroscopeLogger struct {
	logger *zap.SugaredLogger
}

func (l pyroscopeLogger) Infof(format string, args ...any)  { l.logger.Infof(format, args...) }
func (l pyroscopeLogger) Debugf(format string, args ...any) { l.logger.Debugf(format, args...) }
func (l pyroscopeLogger) Errorf(format string, args ...any) { l.logger.Errorf(format, args...) }
