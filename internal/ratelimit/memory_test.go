package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_BurstThenDeny(t *testing.T) {
	m := NewMemoryLimiter(0.001, 2) // negligible refill
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := m.Allow(ctx, "journal-classify-1")
		require.NoError(t, err)
		assert.True(t, ok, "call %d within burst", i)
	}

	ok, err := m.Allow(ctx, "journal-classify-1")
	require.NoError(t, err)
	assert.False(t, ok, "burst exhausted")
}

func TestMemoryLimiter_KeysAreIndependent(t *testing.T) {
	m := NewMemoryLimiter(0.001, 1)
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "model-a")
	require.True(t, ok)
	ok, _ = m.Allow(ctx, "model-a")
	require.False(t, ok)

	ok, _ = m.Allow(ctx, "model-b")
	assert.True(t, ok, "a drained bucket must not affect other keys")
}

func TestMemoryLimiter_Refills(t *testing.T) {
	m := NewMemoryLimiter(50, 1) // one token every 20ms
	defer func() { _ = m.Close() }()
	ctx := context.Background()

	ok, _ := m.Allow(ctx, "m")
	require.True(t, ok)
	ok, _ = m.Allow(ctx, "m")
	require.False(t, ok)

	time.Sleep(40 * time.Millisecond)
	ok, _ = m.Allow(ctx, "m")
	assert.True(t, ok, "tokens must refill over time")
}

func TestNoopLimiter_AlwaysAllows(t *testing.T) {
	var l Limiter = NoopLimiter{}
	for i := 0; i < 100; i++ {
		ok, err := l.Allow(context.Background(), "any")
		require.NoError(t, err)
		require.True(t, ok)
	}
	assert.NoError(t, l.Close())
}
