package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
)

type lockEntry struct {
	token     uint64
	expiresAt time.Time
}

// InMemoryReportLocker implements ReportLocker for a single process.
type InMemoryReportLocker struct {
	mu    sync.Mutex
	locks map[uuid.UUID]lockEntry
	next  uint64
	now   func() time.Time
}

// NewInMemoryReportLocker creates an empty locker.
func NewInMemoryReportLocker() *InMemoryReportLocker {
	return &InMemoryReportLocker{
		locks: make(map[uuid.UUID]lockEntry),
		now:   time.Now,
	}
}

// Acquire takes the lock unless a live one exists. Expired locks are taken over.
func (l *InMemoryReportLocker) Acquire(_ context.Context, reportID uuid.UUID, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if e, held := l.locks[reportID]; held && now.Before(e.expiresAt) {
		return nil, shared.ErrConflict
	}
	l.next++
	token := l.next
	l.locks[reportID] = lockEntry{token: token, expiresAt: now.Add(ttl)}

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if e, held := l.locks[reportID]; held && e.token == token {
			delete(l.locks, reportID)
		}
	}, nil
}

// Size returns the number of held locks (for testing/monitoring)
func (l *InMemoryReportLocker) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}

// Ensure InMemoryReportLocker implements ReportLocker
var _ ReportLocker = (*InMemoryReportLocker)(nil)
