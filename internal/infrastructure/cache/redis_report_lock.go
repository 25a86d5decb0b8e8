package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/medimaging/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const reportLockPrefix = "report:lock:"

// releaseScript deletes the key only if it still holds our token, so a lock
// that expired and was taken by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisReportLocker implements ReportLocker with SET NX PX. It is safe across
// several server instances sharing one Redis.
type RedisReportLocker struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisReportLocker creates a locker over an existing client.
func NewRedisReportLocker(client *redis.Client, logger *zap.Logger) *RedisReportLocker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisReportLocker{client: client, keyPrefix: reportLockPrefix, logger: logger}
}

// Acquire takes the lock for ttl. The returned release is idempotent.
func (l *RedisReportLocker) Acquire(ctx context.Context, reportID uuid.UUID, ttl time.Duration) (func(), error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	key := lockKey(l.keyPrefix, reportID)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire report lock: %w", err)
	}
	if !ok {
		return nil, shared.ErrConflict
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The request context may already be cancelled.
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			l.logger.Warn("failed to release report lock",
				zap.String("report_id", reportID.String()),
				zap.Error(err))
		}
	}, nil
}

// Ensure RedisReportLocker implements ReportLocker
var _ ReportLocker = (*RedisReportLocker)(nil)

// NewReportLocker returns a Redis locker when Redis is enabled and reachable,
// and an in-process locker otherwise. The client is returned so it can be
// shared and closed by the caller; it is nil for the in-process locker.
func NewReportLocker(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (ReportLocker, *redis.Client) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Info("Redis disabled, using in-process report locks")
		return NewInMemoryReportLocker(), nil
	}
	client, err := NewRedisClient(ctx, cfg)
	if err != nil {
		// Fall back to in-memory with warning
		logger.Warn("Redis unavailable, falling back to in-process report locks. "+
			"Concurrent renders of one report on different instances are not serialised.",
			zap.Error(err),
		)
		return NewInMemoryReportLocker(), nil
	}
	logger.Info("using Redis report locks", zap.String("addr", cfg.Addr()))
	return NewRedisReportLocker(client, logger), client
}
