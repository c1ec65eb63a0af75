package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/tokenrisk/internal/domain/token"
)

func (m *Memory) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func TestMemory_SetGetExpire(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "score:a", []byte("one"), time.Minute))
	val, ok, err := m.Get(ctx, "score:a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "one", string(val))

	clock = clock.Add(2 * time.Minute)
	_, ok, err = m.Get(ctx, "score:a")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, m.Flush())
	assert.Zero(t, m.size())
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	m := NewMemory(0)
	defer m.Close()
	ctx := context.Background()

	in := []byte("abc")
	require.NoError(t, m.Set(ctx, "k", in, 0))
	in[0] = 'x'

	out, ok, _ := m.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(out))
	out[1] = 'y'

	again, _, _ := m.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemory_JanitorEvicts(t *testing.T) {
	m := NewMemory(5 * time.Millisecond)
	defer m.Close()

	require.NoError(t, m.Set(context.Background(), "k", []byte("v"), time.Millisecond))
	assert.Eventually(t, func() bool { return m.size() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryStore_KeepsNewest(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	addr := token.Address("So11111111111111111111111111111111111111112")
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	got, err := s.Get(ctx, addr)
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, s.Put(ctx, token.CacheEntry{TokenAddress: addr, AnalyzedAt: t0, Payload: token.SuperTokenScore{SuperScore: 70}}))
	require.NoError(t, s.Put(ctx, token.CacheEntry{TokenAddress: addr, AnalyzedAt: t0.Add(-time.Hour), Payload: token.SuperTokenScore{SuperScore: 10}}))

	got, err = s.Get(ctx, addr)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 70, got.Payload.SuperScore)
	assert.Len(t, s.entries, 1)
}
