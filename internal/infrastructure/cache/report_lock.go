// Package cache provides Redis-backed coordination with in-process fallbacks.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultLockTTL is how long a report lock survives a crashed holder.
const DefaultLockTTL = 4 * time.Minute

// ReportLocker serialises renders of the same saved report. Acquire fails
// with shared.ErrConflict when another render holds the lock.
type ReportLocker interface {
	Acquire(ctx context.Context, reportID uuid.UUID, ttl time.Duration) (release func(), err error)
}

func lockKey(prefix string, reportID uuid.UUID) string {
	return prefix + reportID.String()
}
