package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/medimaging/backend/internal/infrastructure/auth"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryTokenBlacklist_AddToBlacklist(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	err := blacklist.AddToBlacklist(ctx, "test-jti-1", 1*time.Hour)
	require.NoError(t, err)

	isBlacklisted, err := blacklist.IsBlacklisted(ctx, "test-jti-1")
	require.NoError(t, err)
	assert.True(t, isBlacklisted)

	// Verify a different JTI is not blacklisted
	isBlacklisted, err = blacklist.IsBlacklisted(ctx, "test-jti-2")
	require.NoError(t, err)
	assert.False(t, isBlacklisted)
}

func TestInMemoryTokenBlacklist_ExpirationCleanup(t *testing.T) {
	blacklist := auth.NewInMemoryTokenBlacklist()
	ctx := context.Background()

	err := blacklist.AddToBlacklist(ctx, "test-jti-expire", 1*time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	isBlacklisted, err := blacklist.IsBlacklisted(ctx, "test-jti-expire")
	require.NoError(t, err)
	assert.False(t, isBlacklisted)
}

func TestNewTokenBlacklist(t *testing.T) {
	assert.IsType(t, &auth.InMemoryTokenBlacklist{}, auth.NewTokenBlacklist(nil))

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()
	assert.IsType(t, &auth.RedisTokenBlacklist{}, auth.NewTokenBlacklist(client))
}

func TestRedisTokenBlacklist_ExpiredTokenIsNoop(t *testing.T) {
	// No server is listening; a non-positive TTL must return before any call.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	defer client.Close()

	err := auth.NewRedisTokenBlacklist(client).AddToBlacklist(context.Background(), "jti", 0)
	assert.NoError(t, err)
}
