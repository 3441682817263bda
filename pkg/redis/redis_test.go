package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb, zap.NewNop()), mr
}

func TestBlacklistToken(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.BlacklistToken(ctx, "jti-1", time.Minute))

	ok, err := c.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	ok, err = c.IsBlacklisted(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlacklistToken_ExpiredIsNoop(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.BlacklistToken(ctx, "jti-2", 0))
	ok, err := c.IsBlacklisted(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckRateLimit(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := c.CheckRateLimit(ctx, "rl:test", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed, "hit %d should pass", i+1)
	}

	allowed, err := c.CheckRateLimit(ctx, "rl:test", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestResetToken_SingleUse(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	token, err := c.CreateResetToken(ctx, "user-1", time.Minute)
	require.NoError(t, err)

	userID, err := c.ConsumeResetToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)

	_, err = c.ConsumeResetToken(ctx, token)
	assert.ErrorIs(t, err, ErrResetTokenNotFound)
}
