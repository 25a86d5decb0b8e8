package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when a job is registered with a bad schedule
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSchedulerRunning is returned when jobs are registered after Start
	ErrSchedulerRunning = errors.New("scheduler is already running")

	// ErrListingUnsupported is returned when the artifact store cannot enumerate its content
	ErrListingUnsupported = errors.New("artifact store does not support listing")
)
