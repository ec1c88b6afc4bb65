// Package health merges the liveness of every collaborator into one status.
package health

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"composite/internal/health/metrics"
	dErrors "composite/pkg/domain-errors"
)

const (
	StatusUp   = "UP"
	StatusDown = "DOWN"

	DefaultProbeTimeout = 2 * time.Second
)

// Probe is a collaborator liveness check. Any error means DOWN.
type Probe interface {
	Name() string
	Health(ctx context.Context) error
}

// Component is the result of one probe.
type Component struct {
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Report is the merged status: UP only when every component is UP.
type Report struct {
	Status     string               `json:"status"`
	Components map[string]Component `json:"components"`
}

// Up reports whether every component answered UP.
func (r Report) Up() bool {
	return r.Status == StatusUp
}

type Service struct {
	probes  []Probe
	timeout time.Duration
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

// WithProbeTimeout bounds each probe.
func WithProbeTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(probes []Probe, opts ...Option) *Service {
	s := &Service{
		probes:  probes,
		timeout: DefaultProbeTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check runs every probe concurrently. Probe failures, timeouts and panics
// become DOWN components; Check itself never fails.
func (s *Service) Check(ctx context.Context) Report {
	results := make([]Component, len(s.probes))

	var g errgroup.Group
	for i, p := range s.probes {
		g.Go(func() error {
			results[i] = s.probe(ctx, p)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusUp, Components: make(map[string]Component, len(s.probes))}
	for i, p := range s.probes {
		report.Components[p.Name()] = results[i]
		up := results[i].Status == StatusUp
		s.metrics.SetProbe(p.Name(), up)
		if !up {
			report.Status = StatusDown
		}
	}
	return report
}

func (s *Service) probe(ctx context.Context, p Probe) Component {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- dErrors.New(dErrors.CodeUnavailable, fmt.Sprintf("probe panicked: %v", rec))
			}
		}()
		done <- p.Health(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = dErrors.Wrap(ctx.Err(), dErrors.CodeUnavailable, "probe timed out")
	}
	if err == nil {
		return Component{Status: StatusUp}
	}

	s.logger.WarnContext(ctx, "collaborator unhealthy", "collaborator", p.Name(), "error", err)
	detail := err.Error()
	if dErrors.CodeOf(err) != dErrors.CodeInternal {
		detail = dErrors.MessageOf(err)
	}
	return Component{Status: StatusDown, Detail: detail}
}
