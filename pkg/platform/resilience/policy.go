// Package resilience composes timeout, retry, circuit breaking and fallback
// around an arbitrary operation. The policy is a plain value wrapping a
// closure, so it can be exercised without any transport.
//
// Call order, outermost first:
//
//	retry -> circuit breaker -> timeout -> operation
//
// Every attempt is individually timed out and individually counted by the
// breaker. Only unavailability is retried. When retries run out, or the
// breaker rejects the call, the fallback (if any) produces the result.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	dErrors "composite/pkg/domain-errors"
	"composite/pkg/platform/circuit"
)

// Operation is the guarded call.
type Operation[In, Out any] func(ctx context.Context, in In) (Out, error)

// Fallback produces a substitute for a failed call. It may return an error
// when no safe substitute exists.
type Fallback[In, Out any] func(ctx context.Context, in In, cause error) (Out, error)

// Config holds per-call timeout and retry settings.
type Config struct {
	Timeout           time.Duration
	MaxAttempts       int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64

	Logger *slog.Logger
	// OnFallback is invoked every time the fallback replaces a failure.
	OnFallback func(breaker string, cause error)
}

// DefaultConfig returns the shipped per-call policy.
func DefaultConfig() Config {
	return Config{
		Timeout:           2 * time.Second,
		MaxAttempts:       3,
		InitialBackoff:    time.Second,
		MaxBackoff:        4 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Policy guards one operation with one breaker.
type Policy[In, Out any] struct {
	op       Operation[In, Out]
	breaker  *circuit.Breaker
	fallback Fallback[In, Out]
	cfg      Config
}

// New wraps op. The breaker is owned by the caller's circuit.Registry.
func New[In, Out any](breaker *circuit.Breaker, op Operation[In, Out], cfg Config) *Policy[In, Out] {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.BackoffMultiplier < 1 {
		cfg.BackoffMultiplier = 1
	}
	return &Policy[In, Out]{op: op, breaker: breaker, cfg: cfg}
}

// WithFallback sets the fallback producer and returns the policy.
func (p *Policy[In, Out]) WithFallback(fb Fallback[In, Out]) *Policy[In, Out] {
	p.fallback = fb
	return p
}

// Call runs the guarded operation.
func (p *Policy[In, Out]) Call(ctx context.Context, in In) (Out, error) {
	var out Out

	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(p.abandoned(err))
		}
		err := p.breaker.Execute(func() error {
			v, err := p.attempt(ctx, in)
			if err != nil {
				return err
			}
			out = v
			return nil
		})
		if err == nil {
			return nil
		}
		if dErrors.IsTransient(err) && !errors.Is(err, circuit.ErrOpen) {
			return err
		}
		return backoff.Permanent(err)
	}

	err := backoff.RetryNotify(attempt, p.newBackOff(ctx), func(err error, wait time.Duration) {
		if p.cfg.Logger != nil {
			p.cfg.Logger.DebugContext(ctx, "retrying collaborator call",
				"breaker", p.breaker.Name(),
				"wait_ms", wait.Milliseconds(),
				"error", err,
			)
		}
	})
	if err == nil {
		return out, nil
	}

	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		// context cancellation surfaced by the backoff loop
		err = dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("%s call abandoned", p.breaker.Key().Collaborator))
	}

	var zero Out
	if p.fallback == nil || !dErrors.IsTransient(err) || ctx.Err() != nil {
		return zero, err
	}

	if p.cfg.OnFallback != nil {
		p.cfg.OnFallback(p.breaker.Name(), err)
	}
	if p.cfg.Logger != nil {
		p.cfg.Logger.WarnContext(ctx, "using fallback",
			"breaker", p.breaker.Name(),
			"circuit_open", errors.Is(err, circuit.ErrOpen),
			"error", err,
		)
	}
	return p.fallback(ctx, in, err)
}

// attempt runs one timed-out invocation. The operation is abandoned, not
// awaited, once the timeout fires.
func (p *Policy[In, Out]) attempt(ctx context.Context, in In) (Out, error) {
	if p.cfg.Timeout <= 0 {
		v, err := p.op(ctx, in)
		if err != nil && ctx.Err() != nil {
			return v, p.abandoned(ctx.Err())
		}
		return v, p.normalize(err)
	}

	actx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	type result struct {
		out Out
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := p.op(actx, in)
		done <- result{out: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil && ctx.Err() != nil {
			return r.out, p.abandoned(ctx.Err())
		}
		return r.out, p.normalize(r.err)
	case <-actx.Done():
		var zero Out
		if ctx.Err() != nil {
			return zero, p.abandoned(ctx.Err())
		}
		return zero, dErrors.Wrap(actx.Err(), dErrors.CodeUnavailable,
			fmt.Sprintf("%s did not answer within %s", p.breaker.Key().Collaborator, p.cfg.Timeout))
	}
}

// abandoned reports an attempt cut short by the caller's context. It is not
// transient, so the breaker does not count it as a collaborator failure.
func (p *Policy[In, Out]) abandoned(cause error) error {
	return dErrors.Wrap(cause, dErrors.CodeInternal, fmt.Sprintf("%s call abandoned by caller", p.breaker.Key().Collaborator))
}

// normalize treats any error without a domain code as unavailability.
func (p *Policy[In, Out]) normalize(err error) error {
	if err == nil || dErrors.CodeOf(err) != dErrors.CodeInternal {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, fmt.Sprintf("%s call failed", p.breaker.Key().Collaborator))
}

func (p *Policy[In, Out]) newBackOff(ctx context.Context) backoff.BackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = p.cfg.InitialBackoff
	exp.MaxInterval = p.cfg.MaxBackoff
	exp.Multiplier = p.cfg.BackoffMultiplier
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0
	if exp.MaxInterval < exp.InitialInterval {
		exp.MaxInterval = exp.InitialInterval
	}
	exp.Reset()

	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.cfg.MaxAttempts-1)), ctx)
}
