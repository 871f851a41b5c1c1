package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiterDisabledAlwaysAllows(t *testing.T) {
	l := NewLimiter(nil, 1, 1, false)
	defer l.Stop()

	for i := 0; i < 10; i++ {
		allowed, err := l.Allow(context.Background(), "send:u1")
		require.NoError(t, err)
		assert.True(t, allowed)
	}
}

func TestLimiterLocalBucketDeniesBeyondBurst(t *testing.T) {
	l := NewLimiter(nil, 60, 3, true)
	defer l.Stop()

	for i := 0; i < 3; i++ {
		allowed, err := l.Allow(context.Background(), "send:u1")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d inside the burst", i)
	}

	allowed, err := l.Allow(context.Background(), "send:u1")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := NewLimiter(nil, 60, 1, true)
	defer l.Stop()

	allowed, _ := l.Allow(context.Background(), "send:u1")
	require.True(t, allowed)
	allowed, _ = l.Allow(context.Background(), "send:u1")
	require.False(t, allowed)

	allowed, _ = l.Allow(context.Background(), "send:u2")
	assert.True(t, allowed, "a second user has their own bucket")
}

func TestLimiterResetRestoresBudget(t *testing.T) {
	l := NewLimiter(nil, 60, 1, true)
	defer l.Stop()

	allowed, _ := l.Allow(context.Background(), "send:u1")
	require.True(t, allowed)
	allowed, _ = l.Allow(context.Background(), "send:u1")
	require.False(t, allowed)

	require.NoError(t, l.Reset(context.Background(), "send:u1"))

	allowed, _ = l.Allow(context.Background(), "send:u1")
	assert.True(t, allowed)
}
