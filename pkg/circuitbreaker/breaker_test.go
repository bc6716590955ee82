package circuitbreaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medassist/backend/pkg/circuitbreaker"
)

func newBreaker(timeout time.Duration) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.NewCircuitBreaker("test", circuitbreaker.Config{
		MaxRequests:      5,
		Timeout:          timeout,
		FailureThreshold: 3,
		SuccessThreshold: 2,
	})
}

func fail(cb *circuitbreaker.CircuitBreaker) error {
	return cb.Execute(context.Background(), func() error {
		return errors.New("upstream error")
	})
}

func succeed(cb *circuitbreaker.CircuitBreaker) error {
	return cb.Execute(context.Background(), func() error {
		return nil
	})
}

func TestBreakerStaysClosedOnSuccess(t *testing.T) {
	cb := newBreaker(time.Minute)

	for i := 0; i < 10; i++ {
		require.NoError(t, succeed(cb))
	}

	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestBreakerOpensAfterFailureThreshold(t *testing.T) {
	cb := newBreaker(time.Minute)

	for i := 0; i < 3; i++ {
		require.Error(t, fail(cb))
	}
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())

	err := succeed(cb)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
}

func TestBreakerSuccessResetsFailureRun(t *testing.T) {
	cb := newBreaker(time.Minute)

	require.Error(t, fail(cb))
	require.Error(t, fail(cb))
	require.NoError(t, succeed(cb))
	require.Error(t, fail(cb))
	require.Error(t, fail(cb))

	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestBreakerRecoversThroughHalfOpen(t *testing.T) {
	cb := newBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.Error(t, fail(cb))
	}
	require.Equal(t, circuitbreaker.StateOpen, cb.State())

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, circuitbreaker.StateHalfOpen, cb.State())

	require.NoError(t, succeed(cb))
	require.NoError(t, succeed(cb))
	assert.Equal(t, circuitbreaker.StateClosed, cb.State())
}

func TestBreakerReopensOnHalfOpenFailure(t *testing.T) {
	cb := newBreaker(10 * time.Millisecond)

	for i := 0; i < 3; i++ {
		require.Error(t, fail(cb))
	}

	time.Sleep(20 * time.Millisecond)
	require.Equal(t, circuitbreaker.StateHalfOpen, cb.State())

	require.Error(t, fail(cb))
	assert.Equal(t, circuitbreaker.StateOpen, cb.State())
}
