package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/printing"
	"go.uber.org/zap"
)

// SweepJobName is the name the artifact sweep registers under
const SweepJobName = "artifact-sweep"

// ReportFinder resolves an artifact back to its report; report.Store
// satisfies it.
type ReportFinder interface {
	FindByFilename(ctx context.Context, clinicID uuid.UUID, filename string) (*report.Report, error)
}

// SweeperConfig tunes the orphan sweep
type SweeperConfig struct {
	// GracePeriod protects artifacts written by a render whose report row
	// has not been committed yet.
	GracePeriod time.Duration
	// MaxDeletes caps removals per run; zero means unlimited.
	MaxDeletes int
}

// DefaultSweeperConfig returns a one hour grace period and no delete cap
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{GracePeriod: time.Hour}
}

// SweepResult counts what one sweep saw and did
type SweepResult struct {
	Scanned  int
	Young    int
	Orphaned int
	Removed  int
	Failed   int
}

// ArtifactSweeper removes stored PDFs that no report points at. They are
// left behind when a render succeeds but the report row is never written,
// or when a best-effort artifact delete fails.
type ArtifactSweeper struct {
	store   printing.ArtifactStore
	reports ReportFinder
	config  SweeperConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewArtifactSweeper creates a sweeper over store
func NewArtifactSweeper(store printing.ArtifactStore, reports ReportFinder, config SweeperConfig, logger *zap.Logger) *ArtifactSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArtifactSweeper{
		store:   store,
		reports: reports,
		config:  config,
		logger:  logger,
		now:     time.Now,
	}
}

// Run implements Job
func (s *ArtifactSweeper) Run(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}

// Sweep lists the store once and deletes every orphan older than the grace
// period. Lookup failures other than not-found leave the artifact alone.
func (s *ArtifactSweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult

	lister, ok := s.store.(printing.ArtifactLister)
	if !ok {
		return result, ErrListingUnsupported
	}
	artifacts, err := lister.List(ctx)
	if err != nil {
		return result, err
	}

	cutoff := s.now().Add(-s.config.GracePeriod)
	for _, a := range artifacts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Scanned++
		if a.ModifiedAt.After(cutoff) {
			result.Young++
			continue
		}

		_, err := s.reports.FindByFilename(ctx, a.ClinicID, a.Filename)
		if err == nil {
			continue
		}
		if !shared.IsNotFound(err) {
			result.Failed++
			s.logger.Warn("Failed to resolve artifact owner",
				zap.String("clinic_id", a.ClinicID.String()),
				zap.String("filename", a.Filename),
				zap.Error(err))
			continue
		}

		result.Orphaned++
		if s.config.MaxDeletes > 0 && result.Removed >= s.config.MaxDeletes {
			continue
		}
		if err := s.store.Delete(ctx, a.ClinicID, a.Filename); err != nil {
			result.Failed++
			s.logger.Warn("Failed to remove orphan artifact",
				zap.String("clinic_id", a.ClinicID.String()),
				zap.String("filename", a.Filename),
				zap.Error(err))
			continue
		}
		result.Removed++
	}

	s.logger.Info("Artifact sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("orphaned", result.Orphaned),
		zap.Int("removed", result.Removed),
		zap.Int("failed", result.Failed))
	return result, nil
}
