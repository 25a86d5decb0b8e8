// Package scheduler runs background maintenance jobs on fixed intervals.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// JobStatus is the outcome of the latest run of a job
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
	JobStatusSkipped JobStatus = "SKIPPED"
)

// Job is one unit of periodic work
type Job interface {
	Run(ctx context.Context) error
}

// JobFunc adapts a function to Job
type JobFunc func(ctx context.Context) error

// Run calls f(ctx)
func (f JobFunc) Run(ctx context.Context) error { return f(ctx) }

// Locker keeps a job from running on two replicas at once.
// cache.ReportLocker satisfies it.
type Locker interface {
	Acquire(ctx context.Context, id uuid.UUID, ttl time.Duration) (release func(), err error)
}

// JobConfig describes when and how a job runs
type JobConfig struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Defaults to the interval.
	Timeout time.Duration
	// RunOnStart runs the job once right after Start instead of waiting a
	// full interval.
	RunOnStart bool
}

// JobState is a snapshot of a registered job
type JobState struct {
	Name        string
	Status      JobStatus
	Runs        int
	Failures    int
	LastError   string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

type entry struct {
	config JobConfig
	job    Job
	lockID uuid.UUID

	mu    sync.Mutex
	state JobState
}

func (e *entry) snapshot() JobState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Scheduler runs registered jobs on their intervals until stopped
type Scheduler struct {
	locker Locker
	logger *zap.Logger
	now    func() time.Time

	mu        sync.Mutex
	entries   []*entry
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithLocker makes every run take a cluster-wide lock first. A run whose
// lock is held elsewhere is skipped.
func WithLocker(locker Locker) Option {
	return func(s *Scheduler) {
		s.locker = locker
	}
}

// WithLogger sets the scheduler logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler with no jobs
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a job. Jobs cannot be added once the scheduler is running.
func (s *Scheduler) Register(cfg JobConfig, job Job) error {
	if cfg.Name == "" || cfg.Interval <= 0 || job == nil {
		return fmt.Errorf("%w: job %q needs a name, a positive interval and a body", ErrInvalidConfig, cfg.Name)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = cfg.Interval
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}
	for _, e := range s.entries {
		if e.config.Name == cfg.Name {
			return fmt.Errorf("%w: job %q registered twice", ErrInvalidConfig, cfg.Name)
		}
	}
	s.entries = append(s.entries, &entry{
		config: cfg,
		job:    job,
		lockID: uuid.NewSHA1(uuid.NameSpaceOID, []byte("scheduler:"+cfg.Name)),
		state:  JobState{Name: cfg.Name, Status: JobStatusPending},
	})
	return nil
}

// Start launches one loop per job
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, e := range s.entries {
		s.wg.Add(1)
		go s.runLoop(ctx, e)
	}

	s.logger.Info("Scheduler started", zap.Int("jobs", len(s.entries)))
	return nil
}

// Stop cancels running jobs and waits for their loops to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// Jobs returns the state of every registered job
func (s *Scheduler) Jobs() []JobState {
	s.mu.Lock()
	entries := append([]*entry(nil), s.entries...)
	s.mu.Unlock()

	states := make([]JobState, 0, len(entries))
	for _, e := range entries {
		states = append(states, e.snapshot())
	}
	return states
}

// RunNow runs the named job once on the caller's goroutine
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var target *entry
	for _, e := range s.entries {
		if e.config.Name == name {
			target = e
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return shared.NewNotFoundError("job " + name)
	}
	return s.execute(ctx, target)
}

func (s *Scheduler) runLoop(ctx context.Context, e *entry) {
	defer s.wg.Done()

	if e.config.RunOnStart {
		_ = s.execute(ctx, e)
	}

	ticker := time.NewTicker(e.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.execute(ctx, e)
		}
	}
}

// execute runs the job once under its timeout and lock, recording the outcome
func (s *Scheduler) execute(ctx context.Context, e *entry) error {
	log := s.logger.With(zap.String("job", e.config.Name))

	runCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	if s.locker != nil {
		release, err := s.locker.Acquire(runCtx, e.lockID, e.config.Timeout)
		if err != nil {
			if errors.Is(err, shared.ErrConflict) {
				log.Debug("Job is running elsewhere, skipping")
				e.mu.Lock()
				e.state.Status = JobStatusSkipped
				e.mu.Unlock()
				return nil
			}
			log.Warn("Failed to take job lock", zap.Error(err))
			s.finish(e, err)
			return err
		}
		defer release()
	}

	started := s.now()
	e.mu.Lock()
	e.state.Status = JobStatusRunning
	e.state.StartedAt = &started
	e.mu.Unlock()

	err := e.job.Run(runCtx)
	s.finish(e, err)
	if err != nil {
		log.Error("Job failed", zap.Error(err))
		return err
	}
	log.Debug("Job completed", zap.Duration("duration", s.now().Sub(started)))
	return nil
}

func (s *Scheduler) finish(e *entry, err error) {
	completed := s.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state.Runs++
	e.state.CompletedAt = &completed
	if err != nil {
		e.state.Status = JobStatusFailed
		e.state.Failures++
		e.state.LastError = err.Error()
		return
	}
	e.state.Status = JobStatusSuccess
	e.state.LastError = ""
}
