// Package collaborator holds the HTTP clients for the product, recommendation
// and review services. Every non-2xx answer is translated into the domain
// error taxonomy; transport and decoding failures count as unavailable.
package collaborator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	dErrors "composite/pkg/domain-errors"
	"composite/pkg/platform/httputil"
)

const maxResponseBytes = 4 << 20

// Health status values reported by collaborators.
const (
	StatusUp   = "UP"
	StatusDown = "DOWN"
)

var tracer = otel.Tracer("composite/collaborator")

type client struct {
	name    string
	baseURL string
	http    *http.Client
}

type Option func(*client)

// WithHTTPClient replaces the default client. The resilience layer owns
// per-call timeouts, so the default client has none.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) {
		cl.http = c
	}
}

func newClient(name, baseURL string, opts ...Option) (*client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid %s base URL %q", name, baseURL)
	}
	c := &client{
		name:    name,
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name identifies the collaborator in logs, metrics and breaker keys.
func (c *client) Name() string {
	return c.name
}

func (c *client) getJSON(ctx context.Context, operation, path string, query url.Values, out any) error {
	ctx, span := tracer.Start(ctx, c.name+"."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("collaborator", c.name)),
	)
	defer span.End()

	err := c.do(ctx, path, query, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
	}
	return err
}

func (c *client) do(ctx context.Context, path string, query url.Values, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to build request")
	}
	req.Header.Set("Accept", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, c.name+" unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "failed to read "+c.name+" response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return httputil.TranslateResponse(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "malformed "+c.name+" response")
	}
	return nil
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health asks the collaborator for its liveness status. Any answer other than
// UP, including a non-2xx status, is returned as an error.
func (c *client) Health(ctx context.Context) error {
	var h healthResponse
	if err := c.getJSON(ctx, "health", "/health", nil, &h); err != nil {
		return err
	}
	if h.Status != StatusUp {
		return dErrors.Wrap(errors.New(h.Status), dErrors.CodeUnavailable, c.name+" reports "+h.Status)
	}
	return nil
}
