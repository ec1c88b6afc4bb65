// Package circuit keeps one circuit breaker per (collaborator, operation) pair.
// Breakers are created once at startup through a Registry and handed to the
// call sites that need them; nothing here is package-global.
package circuit

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	dErrors "composite/pkg/domain-errors"
)

// State is the externally visible breaker state.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// ErrOpen is returned (wrapped as unavailable) when a call is rejected without
// being attempted.
var ErrOpen = errors.New("circuit open")

// Key identifies a breaker.
type Key struct {
	Collaborator string
	Operation    string
}

func (k Key) String() string {
	return k.Collaborator + "." + k.Operation
}

// Config holds the trip and recovery policy.
type Config struct {
	// FailureThreshold opens the circuit after this many consecutive failures.
	FailureThreshold int
	// FailureRateThreshold opens the circuit when the failure ratio inside the
	// current window reaches it, once MinimumCalls were observed. Zero disables.
	FailureRateThreshold float64
	MinimumCalls         int
	// Window is the length of the counting window while closed.
	Window time.Duration
	// CoolDown is how long the circuit stays open before allowing trial calls.
	CoolDown time.Duration
	// HalfOpenCalls is the number of trial calls allowed while half-open. All
	// of them must succeed to close the circuit.
	HalfOpenCalls int
}

// DefaultConfig mirrors the policy the gateway ships with.
func DefaultConfig() Config {
	return Config{
		FailureThreshold:     5,
		FailureRateThreshold: 0.5,
		MinimumCalls:         5,
		Window:               10 * time.Second,
		CoolDown:             10 * time.Second,
		HalfOpenCalls:        3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = d.FailureThreshold
	}
	if c.MinimumCalls <= 0 {
		c.MinimumCalls = d.MinimumCalls
	}
	if c.CoolDown <= 0 {
		c.CoolDown = d.CoolDown
	}
	if c.HalfOpenCalls <= 0 {
		c.HalfOpenCalls = d.HalfOpenCalls
	}
	return c
}

// StateListener is notified on every transition.
type StateListener func(key Key, from, to State)

// Breaker guards a single (collaborator, operation) pair.
type Breaker struct {
	key Key
	cb  *gobreaker.CircuitBreaker
}

// Execute runs fn unless the circuit is open. Only unavailability counts
// against the failure budget; not-found and invalid-input answers are
// successful exchanges with the collaborator.
func (b *Breaker) Execute(fn func() error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return dErrors.Wrap(ErrOpen, dErrors.CodeUnavailable, fmt.Sprintf("%s is temporarily unavailable", b.key.Collaborator))
	}
	return err
}

// State returns the current state. An open breaker whose cool-down elapsed
// reports HALF_OPEN.
func (b *Breaker) State() State {
	return fromGobreaker(b.cb.State())
}

// Key returns the breaker identity.
func (b *Breaker) Key() Key {
	return b.key
}

// Name returns the breaker name as "collaborator.operation".
func (b *Breaker) Name() string {
	return b.key.String()
}

// Registry owns every breaker of the process.
type Registry struct {
	mu       sync.RWMutex
	breakers map[Key]*Breaker
	cfg      Config
	logger   *slog.Logger
	listener StateListener
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger logs state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithStateListener registers a callback for state transitions.
func WithStateListener(l StateListener) Option {
	return func(r *Registry) {
		r.listener = l
	}
}

// NewRegistry creates an empty registry with the default per-breaker policy.
func NewRegistry(cfg Config, opts ...Option) *Registry {
	r := &Registry{
		breakers: make(map[Key]*Breaker),
		cfg:      cfg.withDefaults(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register returns the breaker for the pair, creating it on first use.
func (r *Registry) Register(collaborator, operation string) *Breaker {
	key := Key{Collaborator: collaborator, Operation: operation}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[key]; ok {
		return b
	}
	b := &Breaker{key: key, cb: gobreaker.NewCircuitBreaker(r.settings(key))}
	r.breakers[key] = b
	return b
}

// Status is a point-in-time view of one breaker.
type Status struct {
	Name  string `json:"name"`
	State State  `json:"state"`
}

// Snapshot lists every breaker sorted by name.
func (r *Registry) Snapshot() []Status {
	r.mu.RLock()
	out := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, Status{Name: b.Name(), State: b.State()})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (r *Registry) settings(key Key) gobreaker.Settings {
	cfg := r.cfg
	return gobreaker.Settings{
		Name:        key.String(),
		MaxRequests: uint32(cfg.HalfOpenCalls),
		Interval:    cfg.Window,
		Timeout:     cfg.CoolDown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= uint32(cfg.FailureThreshold) {
				return true
			}
			if cfg.FailureRateThreshold <= 0 || counts.Requests < uint32(cfg.MinimumCalls) {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRateThreshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !dErrors.IsTransient(err)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			f, t := fromGobreaker(from), fromGobreaker(to)
			if r.logger != nil {
				r.logger.Warn("circuit breaker state changed",
					"breaker", key.String(),
					"from", f,
					"to", t,
				)
			}
			if r.listener != nil {
				r.listener(key, f, t)
			}
		},
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}
