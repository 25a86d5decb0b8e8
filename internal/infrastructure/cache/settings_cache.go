package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	settingsKeyPrefix        = "clinic:settings:"
	DefaultSettingsLocalTTL  = 30 * time.Second
	DefaultSettingsSharedTTL = 10 * time.Minute
	DefaultSettingsChannel   = "clinic-settings:invalidate"
)

// SettingsCacheConfig tunes the two cache tiers
type SettingsCacheConfig struct {
	// LocalTTL bounds how stale the in-process copy may be when an
	// invalidation message is lost.
	LocalTTL  time.Duration
	SharedTTL time.Duration
	Channel   string
}

// DefaultSettingsCacheConfig returns 30s local, 10m shared entries.
func DefaultSettingsCacheConfig() SettingsCacheConfig {
	return SettingsCacheConfig{
		LocalTTL:  DefaultSettingsLocalTTL,
		SharedTTL: DefaultSettingsSharedTTL,
		Channel:   DefaultSettingsChannel,
	}
}

// SettingsCacheStats counts lookups per tier
type SettingsCacheStats struct {
	LocalHits    int64
	LocalMisses  int64
	SharedHits   int64
	SharedMisses int64
}

type settingsEntry struct {
	settings  report.Settings
	expiresAt time.Time
}

// CachedSettingsRepository puts a read-through cache in front of a
// SettingsRepository. Branding is read on every render, written rarely.
//
//	L1: in-process map, short TTL
//	L2: Redis JSON, shared by every instance (optional)
//
// A save drops both tiers and publishes the clinic id so the other
// instances evict their L1 copy. Missing settings are never cached.
type CachedSettingsRepository struct {
	repo   report.SettingsRepository
	client *redis.Client
	config SettingsCacheConfig
	local  sync.Map // uuid.UUID -> *settingsEntry
	now    func() time.Time
	logger *zap.Logger

	localHits    atomic.Int64
	localMisses  atomic.Int64
	sharedHits   atomic.Int64
	sharedMisses atomic.Int64
}

// CachedSettingsOption configures a CachedSettingsRepository
type CachedSettingsOption func(*CachedSettingsRepository)

// WithSettingsCacheConfig sets TTLs and the invalidation channel
func WithSettingsCacheConfig(cfg SettingsCacheConfig) CachedSettingsOption {
	return func(c *CachedSettingsRepository) {
		c.config = cfg
	}
}

// WithSettingsCacheLogger sets the logger
func WithSettingsCacheLogger(logger *zap.Logger) CachedSettingsOption {
	return func(c *CachedSettingsRepository) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCachedSettingsRepository wraps repo. A nil client keeps only the
// in-process tier.
func NewCachedSettingsRepository(repo report.SettingsRepository, client *redis.Client, opts ...CachedSettingsOption) *CachedSettingsRepository {
	c := &CachedSettingsRepository{
		repo:   repo,
		client: client,
		config: DefaultSettingsCacheConfig(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.config.LocalTTL <= 0 {
		c.config.LocalTTL = DefaultSettingsLocalTTL
	}
	if c.config.SharedTTL <= 0 {
		c.config.SharedTTL = DefaultSettingsSharedTTL
	}
	if c.config.Channel == "" {
		c.config.Channel = DefaultSettingsChannel
	}
	return c
}

// FindByClinic reads L1, then L2, then the repository.
func (c *CachedSettingsRepository) FindByClinic(ctx context.Context, clinicID uuid.UUID) (*report.Settings, error) {
	if s, ok := c.loadLocal(clinicID); ok {
		c.localHits.Add(1)
		return s, nil
	}
	c.localMisses.Add(1)

	if s, ok := c.loadShared(ctx, clinicID); ok {
		c.sharedHits.Add(1)
		c.storeLocal(s)
		return copySettings(s), nil
	}

	s, err := c.repo.FindByClinic(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	c.storeLocal(s)
	c.storeShared(ctx, s)
	return copySettings(s), nil
}

// Save writes through to the repository and evicts the clinic everywhere.
func (c *CachedSettingsRepository) Save(ctx context.Context, s *report.Settings) error {
	if err := c.repo.Save(ctx, s); err != nil {
		return err
	}
	c.Invalidate(ctx, s.ClinicID)
	return nil
}

// Invalidate evicts a clinic from both tiers and tells the other instances.
func (c *CachedSettingsRepository) Invalidate(ctx context.Context, clinicID uuid.UUID) {
	c.local.Delete(clinicID)
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, settingsKey(clinicID)).Err(); err != nil {
		c.logger.Warn("failed to evict cached settings",
			zap.String("clinic_id", clinicID.String()), zap.Error(err))
	}
	if err := c.client.Publish(ctx, c.config.Channel, clinicID.String()).Err(); err != nil {
		c.logger.Warn("failed to publish settings invalidation",
			zap.String("clinic_id", clinicID.String()), zap.Error(err))
	}
}

// Subscribe evicts L1 entries named on the invalidation channel until ctx
// is cancelled. It blocks; run it in a goroutine. Without Redis it returns
// at once.
func (c *CachedSettingsRepository) Subscribe(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	pubsub := c.client.Subscribe(ctx, c.config.Channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	c.logger.Info("Subscribed to settings invalidation", zap.String("channel", c.config.Channel))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			clinicID, err := uuid.Parse(msg.Payload)
			if err != nil {
				c.logger.Warn("ignoring malformed settings invalidation", zap.String("payload", msg.Payload))
				continue
			}
			c.local.Delete(clinicID)
		}
	}
}

// Stats returns the lookup counters
func (c *CachedSettingsRepository) Stats() SettingsCacheStats {
	return SettingsCacheStats{
		LocalHits:    c.localHits.Load(),
		LocalMisses:  c.localMisses.Load(),
		SharedHits:   c.sharedHits.Load(),
		SharedMisses: c.sharedMisses.Load(),
	}
}

func (c *CachedSettingsRepository) loadLocal(clinicID uuid.UUID) (*report.Settings, bool) {
	v, ok := c.local.Load(clinicID)
	if !ok {
		return nil, false
	}
	entry := v.(*settingsEntry)
	if c.now().After(entry.expiresAt) {
		c.local.CompareAndDelete(clinicID, v)
		return nil, false
	}
	return copySettings(&entry.settings), true
}

func (c *CachedSettingsRepository) storeLocal(s *report.Settings) {
	c.local.Store(s.ClinicID, &settingsEntry{
		settings:  *s,
		expiresAt: c.now().Add(c.config.LocalTTL),
	})
}

// cachedSettings is the L2 wire form
type cachedSettings struct {
	ID        uuid.UUID             `json:"id"`
	ClinicID  uuid.UUID             `json:"clinicId"`
	Branding  report.ClinicBranding `json:"branding"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
}

func (c *CachedSettingsRepository) loadShared(ctx context.Context, clinicID uuid.UUID) (*report.Settings, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, settingsKey(clinicID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("settings cache read failed", zap.String("clinic_id", clinicID.String()), zap.Error(err))
		}
		c.sharedMisses.Add(1)
		return nil, false
	}

	var rec cachedSettings
	if err := json.Unmarshal(data, &rec); err != nil || rec.ClinicID != clinicID {
		c.logger.Warn("dropping corrupt cached settings", zap.String("clinic_id", clinicID.String()))
		_ = c.client.Del(ctx, settingsKey(clinicID)).Err()
		c.sharedMisses.Add(1)
		return nil, false
	}
	return &report.Settings{
		ClinicScoped: shared.ClinicScoped{
			BaseEntity: shared.BaseEntity{ID: rec.ID, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt},
			ClinicID:   rec.ClinicID,
		},
		Branding: rec.Branding,
	}, true
}

func (c *CachedSettingsRepository) storeShared(ctx context.Context, s *report.Settings) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(cachedSettings{
		ID:        s.ID,
		ClinicID:  s.ClinicID,
		Branding:  s.Branding,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, settingsKey(s.ClinicID), data, c.config.SharedTTL).Err(); err != nil {
		c.logger.Warn("settings cache write failed", zap.String("clinic_id", s.ClinicID.String()), zap.Error(err))
	}
}

func settingsKey(clinicID uuid.UUID) string {
	return settingsKeyPrefix + clinicID.String()
}

// copySettings keeps callers from mutating a cached entry
func copySettings(s *report.Settings) *report.Settings {
	cp := *s
	return &cp
}

var _ report.SettingsRepository = (*CachedSettingsRepository)(nil)
