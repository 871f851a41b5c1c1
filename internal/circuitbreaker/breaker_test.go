package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := New(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Call(func() error { return boom }), boom)
	}
	assert.Equal(t, StateOpen, cb.GetState())

	err := cb.Call(func() error {
		t.Fatal("call must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := New(3, time.Minute)
	boom := errors.New("boom")

	require.Error(t, cb.Call(func() error { return boom }))
	require.Error(t, cb.Call(func() error { return boom }))
	require.NoError(t, cb.Call(func() error { return nil }))

	require.Error(t, cb.Call(func() error { return boom }))
	require.Error(t, cb.Call(func() error { return boom }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenClosesOnSuccess(t *testing.T) {
	cb := New(1, 10*time.Millisecond)
	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.GetState())

	time.Sleep(20 * time.Millisecond)

	require.NoError(t, cb.Call(func() error { return nil }))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestBreakerHalfOpenReopensOnFailure(t *testing.T) {
	cb := New(1, 10*time.Millisecond)
	require.Error(t, cb.Call(func() error { return errors.New("boom") }))

	time.Sleep(20 * time.Millisecond)

	require.Error(t, cb.Call(func() error { return errors.New("still down") }))
	assert.Equal(t, StateOpen, cb.GetState())
}

func TestBreakerReset(t *testing.T) {
	cb := New(1, time.Minute)
	require.Error(t, cb.Call(func() error { return errors.New("boom") }))
	require.Equal(t, StateOpen, cb.GetState())

	cb.Reset()
	assert.Equal(t, StateClosed, cb.GetState())
	assert.NoError(t, cb.Call(func() error { return nil }))
}
