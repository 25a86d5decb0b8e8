package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medimaging/backend/internal/domain/report"
	"github.com/medimaging/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSettingsRepo is an in-memory SettingsRepository that counts reads
type countingSettingsRepo struct {
	mu    sync.Mutex
	byID  map[uuid.UUID]report.Settings
	reads int
}

func newCountingSettingsRepo() *countingSettingsRepo {
	return &countingSettingsRepo{byID: make(map[uuid.UUID]report.Settings)}
}

func (r *countingSettingsRepo) FindByClinic(_ context.Context, clinicID uuid.UUID) (*report.Settings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads++
	s, ok := r.byID[clinicID]
	if !ok {
		return nil, shared.ErrNotFound
	}
	return &s, nil
}

func (r *countingSettingsRepo) Save(_ context.Context, s *report.Settings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[s.ClinicID] = *s
	return nil
}

func (r *countingSettingsRepo) readCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reads
}

func TestCachedSettingsRepository_LocalTier(t *testing.T) {
	ctx := context.Background()
	repo := newCountingSettingsRepo()
	clinicID := uuid.New()
	require.NoError(t, repo.Save(ctx, report.NewSettings(clinicID, report.ClinicBranding{DisplayName: "Sunrise"})))

	cache := NewCachedSettingsRepository(repo, nil)
	clock := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return clock }

	for range 3 {
		s, err := cache.FindByClinic(ctx, clinicID)
		require.NoError(t, err)
		assert.Equal(t, "Sunrise", s.Branding.DisplayName)
	}
	assert.Equal(t, 1, repo.readCount())
	stats := cache.Stats()
	assert.Equal(t, int64(2), stats.LocalHits)
	assert.Equal(t, int64(1), stats.LocalMisses)

	clock = clock.Add(DefaultSettingsLocalTTL + time.Second)
	_, err := cache.FindByClinic(ctx, clinicID)
	require.NoError(t, err)
	assert.Equal(t, 2, repo.readCount(), "an expired entry is reloaded")
}

func TestCachedSettingsRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := newCountingSettingsRepo()
	clinicID := uuid.New()
	require.NoError(t, repo.Save(ctx, report.NewSettings(clinicID, report.ClinicBranding{DisplayName: "Sunrise"})))
	cache := NewCachedSettingsRepository(repo, nil)

	first, err := cache.FindByClinic(ctx, clinicID)
	require.NoError(t, err)
	first.Branding.DisplayName = "mutated by caller"

	second, err := cache.FindByClinic(ctx, clinicID)
	require.NoError(t, err)
	assert.Equal(t, "Sunrise", second.Branding.DisplayName)
}

func TestCachedSettingsRepository_SaveEvicts(t *testing.T) {
	ctx := context.Background()
	repo := newCountingSettingsRepo()
	clinicID := uuid.New()
	cache := NewCachedSettingsRepository(repo, nil)

	_, err := cache.FindByClinic(ctx, clinicID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = cache.FindByClinic(ctx, clinicID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.Equal(t, 2, repo.readCount(), "missing settings are not cached")

	settings := report.NewSettings(clinicID, report.ClinicBranding{DisplayName: "Before"})
	require.NoError(t, cache.Save(ctx, settings))
	got, err := cache.FindByClinic(ctx, clinicID)
	require.NoError(t, err)
	assert.Equal(t, "Before", got.Branding.DisplayName)

	got.Update(report.ClinicBranding{DisplayName: "After", AddressText: "1 Main St"})
	require.NoError(t, cache.Save(ctx, got))

	got, err = cache.FindByClinic(ctx, clinicID)
	require.NoError(t, err)
	assert.Equal(t, "After", got.Branding.DisplayName)
	assert.Equal(t, "1 Main St", got.Branding.AddressText)
}

func TestCachedSettingsRepository_Defaults(t *testing.T) {
	cache := NewCachedSettingsRepository(newCountingSettingsRepo(), nil,
		WithSettingsCacheConfig(SettingsCacheConfig{}),
		WithSettingsCacheLogger(nil))

	assert.Equal(t, DefaultSettingsCacheConfig(), cache.config)
	assert.NotNil(t, cache.logger)
	assert.NoError(t, cache.Subscribe(context.Background()), "without Redis there is nothing to subscribe to")
}
