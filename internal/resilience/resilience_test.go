package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}

func TestRetryValRecoversFromTransient(t *testing.T) {
	calls := 0
	var retried []int
	p := fast
	p.OnRetry = func(attempt int, _ error) { retried = append(retried, attempt) }

	v, err := RetryVal(context.Background(), p, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(errors.New("busy"), 503)
		}
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fast, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("timeout"), 504)
	})
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := Retry(ctx, fast, func(context.Context) error {
		calls++
		return NewTransientError(errors.New("reset"), 0)
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBackoffIsCapped(t *testing.T) {
	p := Policy{InitialBackoff: time.Second, MaxBackoff: 3 * time.Second, Multiplier: 2}.withDefaults()
	assert.Equal(t, time.Second, p.backoff(0))
	assert.Equal(t, 2*time.Second, p.backoff(1))
	assert.Equal(t, 3*time.Second, p.backoff(5))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(NewTransientError(errors.New("x"), 429)))
	assert.True(t, IsTransient(errors.New("read: connection reset by peer")))
	assert.False(t, IsTransient(errors.New("invalid band")))
	assert.True(t, IsTransientStatus(503))
	assert.False(t, IsTransientStatus(404))
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	b := NewBreaker("S1", BreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return clock }

	fail := func(context.Context) (int, error) { return 0, NewTransientError(errors.New("down"), 502) }
	ok := func(context.Context) (int, error) { return 1, nil }

	for i := 0; i < 2; i++ {
		_, err := Call(context.Background(), b, fail)
		require.Error(t, err)
	}
	assert.Equal(t, Open, b.State())

	_, err := Call(context.Background(), b, ok)
	assert.ErrorIs(t, err, ErrOpen)

	clock = clock.Add(time.Minute)
	assert.Equal(t, HalfOpen, b.State())
	v, err := Call(context.Background(), b, ok)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, Closed, b.State())
}

func TestBreakerIgnoresPermanentErrors(t *testing.T) {
	b := NewBreaker("S2", BreakerConfig{FailureThreshold: 1})
	_, err := Call(context.Background(), b, func(context.Context) (int, error) { return 0, errors.New("bad filter") })
	require.Error(t, err)
	assert.Equal(t, Closed, b.State())
}

func TestBreakersRegistry(t *testing.T) {
	r := NewBreakers(BreakerConfig{})
	assert.Same(t, r.Get("S1"), r.Get("S1"))
	assert.NotSame(t, r.Get("S1"), r.Get("S2"))
}
