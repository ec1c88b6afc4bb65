package resilience

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "composite/pkg/domain-errors"
	"composite/pkg/platform/circuit"
)

func fastConfig() Config {
	return Config{
		Timeout:           100 * time.Millisecond,
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
	}
}

func newBreaker(threshold int) *circuit.Breaker {
	return circuit.NewRegistry(circuit.Config{
		FailureThreshold: threshold,
		MinimumCalls:     1000,
		CoolDown:         time.Minute,
		HalfOpenCalls:    1,
	}).Register("product", "get")
}

type counter struct {
	calls atomic.Int32
}

func (c *counter) op(results ...error) Operation[int, string] {
	return func(ctx context.Context, id int) (string, error) {
		n := int(c.calls.Add(1))
		if n <= len(results) && results[n-1] != nil {
			return "", results[n-1]
		}
		return "ok", nil
	}
}

func TestPolicy_Success(t *testing.T) {
	c := &counter{}
	p := New(newBreaker(10), c.op(), fastConfig())

	got, err := p.Call(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 1, c.calls.Load())
}

func TestPolicy_RetriesUnavailableThenSucceeds(t *testing.T) {
	c := &counter{}
	down := dErrors.New(dErrors.CodeUnavailable, "down")
	p := New(newBreaker(10), c.op(down, down), fastConfig())

	got, err := p.Call(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.EqualValues(t, 3, c.calls.Load())
}

func TestPolicy_DoesNotRetryTerminalErrors(t *testing.T) {
	for _, code := range []dErrors.Code{dErrors.CodeNotFound, dErrors.CodeInvalidInput} {
		t.Run(string(code), func(t *testing.T) {
			c := &counter{}
			fallbackUsed := false
			p := New(newBreaker(10), c.op(dErrors.New(code, "terminal")), fastConfig()).
				WithFallback(func(ctx context.Context, id int, cause error) (string, error) {
					fallbackUsed = true
					return "fallback", nil
				})

			_, err := p.Call(context.Background(), 1)
			assert.True(t, dErrors.HasCode(err, code))
			assert.EqualValues(t, 1, c.calls.Load())
			assert.False(t, fallbackUsed, "terminal errors propagate unchanged")
		})
	}
}

func TestPolicy_ExhaustedRetriesUseFallback(t *testing.T) {
	c := &counter{}
	down := dErrors.New(dErrors.CodeUnavailable, "down")
	var fallbackCause error
	var reported string
	cfg := fastConfig()
	cfg.OnFallback = func(breaker string, cause error) { reported = breaker }

	p := New(newBreaker(10), c.op(down, down, down), cfg).
		WithFallback(func(ctx context.Context, id int, cause error) (string, error) {
			fallbackCause = cause
			return "fallback", nil
		})

	got, err := p.Call(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
	assert.EqualValues(t, 3, c.calls.Load())
	assert.True(t, dErrors.IsTransient(fallbackCause))
	assert.Equal(t, "product.get", reported)
}

func TestPolicy_ExhaustedRetriesWithoutFallback(t *testing.T) {
	c := &counter{}
	down := dErrors.New(dErrors.CodeUnavailable, "down")
	p := New(newBreaker(10), c.op(down, down, down), fastConfig())

	_, err := p.Call(context.Background(), 1)
	assert.True(t, dErrors.IsTransient(err))
}

func TestPolicy_FallbackMayFail(t *testing.T) {
	c := &counter{}
	down := dErrors.New(dErrors.CodeUnavailable, "down")
	p := New(newBreaker(10), c.op(down, down, down), fastConfig()).
		WithFallback(func(ctx context.Context, id int, cause error) (string, error) {
			return "", dErrors.New(dErrors.CodeNotFound, "no substitute")
		})

	_, err := p.Call(context.Background(), 13)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestPolicy_TimeoutIsUnavailable(t *testing.T) {
	cfg := fastConfig()
	cfg.Timeout = 20 * time.Millisecond
	cfg.MaxAttempts = 1

	block := make(chan struct{})
	defer close(block)
	slow := func(ctx context.Context, id int) (string, error) {
		<-block
		return "late", nil
	}
	p := New(newBreaker(10), slow, cfg)

	start := time.Now()
	_, err := p.Call(context.Background(), 1)
	assert.True(t, dErrors.IsTransient(err))
	assert.Less(t, time.Since(start), time.Second, "slow operation must be abandoned")
}

func TestPolicy_PlainErrorsAreUnavailable(t *testing.T) {
	c := &counter{}
	boom := errors.New("connection reset")
	cfg := fastConfig()
	cfg.MaxAttempts = 2
	p := New(newBreaker(10), c.op(boom, boom), cfg)

	_, err := p.Call(context.Background(), 1)
	assert.True(t, dErrors.IsTransient(err))
	assert.ErrorIs(t, err, boom)
	assert.EqualValues(t, 2, c.calls.Load())
}

func TestPolicy_OpenCircuitSkipsOperation(t *testing.T) {
	const k = 3
	breaker := newBreaker(k)
	cfg := fastConfig()
	cfg.MaxAttempts = 1

	c := &counter{}
	down := dErrors.New(dErrors.CodeUnavailable, "down")
	p := New(breaker, c.op(down, down, down), cfg).
		WithFallback(func(ctx context.Context, id int, cause error) (string, error) {
			return "fallback", nil
		})

	for range k {
		got, err := p.Call(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "fallback", got)
	}
	require.Equal(t, circuit.StateOpen, breaker.State())
	require.EqualValues(t, k, c.calls.Load())

	start := time.Now()
	got, err := p.Call(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
	assert.EqualValues(t, k, c.calls.Load(), "open circuit must not reach the operation")
	assert.Less(t, time.Since(start), cfg.Timeout)
}

func TestPolicy_BreakerOpeningStopsRetries(t *testing.T) {
	breaker := newBreaker(2)
	c := &counter{}
	down := dErrors.New(dErrors.CodeUnavailable, "down")
	cfg := fastConfig()
	cfg.MaxAttempts = 5
	p := New(breaker, c.op(down, down, down, down, down), cfg)

	_, err := p.Call(context.Background(), 1)
	assert.ErrorIs(t, err, circuit.ErrOpen)
	assert.EqualValues(t, 2, c.calls.Load())
}

func TestPolicy_CallerCancellationIsNotAFailure(t *testing.T) {
	for _, timeout := range []time.Duration{0, time.Second} {
		breaker := newBreaker(1)
		cfg := fastConfig()
		cfg.Timeout = timeout
		var calls atomic.Int32
		blocked := func(ctx context.Context, id int) (string, error) {
			calls.Add(1)
			<-ctx.Done()
			return "", ctx.Err()
		}
		var fellBack bool
		p := New(breaker, blocked, cfg).
			WithFallback(func(ctx context.Context, id int, cause error) (string, error) {
				fellBack = true
				return "fallback", nil
			})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := p.Call(ctx, 1)
		cancel()

		require.Error(t, err, "timeout %s", timeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, circuit.StateClosed, breaker.State(), "timeout %s", timeout)
		assert.EqualValues(t, 1, calls.Load(), "cancelled calls are not retried")
		assert.False(t, fellBack, "no fallback for a caller that has gone")
	}
}

func TestPolicy_AlreadyCancelledCallSkipsBreaker(t *testing.T) {
	breaker := newBreaker(1)
	c := &counter{}
	p := New(breaker, c.op(), fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Call(ctx, 1)

	assert.ErrorIs(t, err, context.Canceled)
	assert.EqualValues(t, 0, c.calls.Load())
	assert.Equal(t, circuit.StateClosed, breaker.State())
}

func TestPolicy_AttemptTimeoutStillCountsAgainstBreaker(t *testing.T) {
	breaker := newBreaker(1)
	cfg := fastConfig()
	cfg.Timeout = 10 * time.Millisecond
	cfg.MaxAttempts = 1
	block := make(chan struct{})
	defer close(block)
	p := New(breaker, func(ctx context.Context, id int) (string, error) {
		<-block
		return "late", nil
	}, cfg)

	_, err := p.Call(context.Background(), 1)
	assert.True(t, dErrors.IsTransient(err))
	assert.Equal(t, circuit.StateOpen, breaker.State())
}
