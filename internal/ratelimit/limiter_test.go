package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_PerKeyBuckets(t *testing.T) {
	l := NewLimiter(Limit{RPS: 1, Burst: 1}, map[string]Limit{
		"jupiter": {RPS: 1, Burst: 3},
	})

	assert.True(t, l.get("birdeye").Allow())
	assert.False(t, l.get("birdeye").Allow(), "burst of one is spent")

	for i := 0; i < 3; i++ {
		assert.True(t, l.get("jupiter").Allow())
	}
	assert.False(t, l.get("jupiter").Allow())

	assert.True(t, l.get("solscan").Allow(), "other keys have their own bucket")
}

func TestLimiter_DisabledWhenRPSZero(t *testing.T) {
	l := NewLimiter(Limit{}, nil)
	for i := 0; i < 100; i++ {
		require.True(t, l.get("rpc").Allow())
	}
}

func TestLimiter_WaitHonoursContext(t *testing.T) {
	l := NewLimiter(Limit{RPS: 0.1, Burst: 1}, nil)
	require.NoError(t, l.Wait(context.Background(), "rpc"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(ctx, "rpc"))
}

func TestLimiter_NilIsUnlimited(t *testing.T) {
	var l *Limiter
	assert.NoError(t, l.Wait(context.Background(), "x"))
}
