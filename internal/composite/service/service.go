// Package service builds product aggregates from the product, recommendation
// and review collaborators and turns composite writes into change events.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"composite/internal/composite/metrics"
	"composite/internal/composite/models"
	"composite/internal/composite/store"
	"composite/internal/dispatch"
	dErrors "composite/pkg/domain-errors"
	"composite/pkg/platform/circuit"
	"composite/pkg/platform/resilience"
)

var tracer = otel.Tracer("composite/service")

// ProductReader reads the primary entity.
type ProductReader interface {
	Name() string
	GetProduct(ctx context.Context, productID, delay, faultPercent int) (models.Product, error)
}

type RecommendationReader interface {
	Name() string
	ListRecommendations(ctx context.Context, productID int) ([]models.Recommendation, error)
}

type ReviewReader interface {
	Name() string
	ListReviews(ctx context.Context, productID int) ([]models.Review, error)
}

// Dispatcher schedules a change event for publication. It returns once the
// event is queued, never after delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel string, ev dispatch.ChangeEvent) error
}

// Channels names the outbound channel of each collaborator.
type Channels struct {
	Products        string
	Recommendations string
	Reviews         string
}

func DefaultChannels() Channels {
	return Channels{Products: "products", Recommendations: "recommendations", Reviews: "reviews"}
}

// Breaker operation names.
const (
	OpGetProduct          = "getProduct"
	OpListRecommendations = "listRecommendations"
	OpListReviews         = "listReviews"
)

type productRequest struct {
	ProductID    int
	Delay        int
	FaultPercent int
}

// Service is the aggregation gateway core.
type Service struct {
	products        ProductReader
	recommendations RecommendationReader
	reviews         ReviewReader
	dispatcher      Dispatcher
	breakers        *circuit.Registry

	getProduct          *resilience.Policy[productRequest, models.Product]
	listRecommendations *resilience.Policy[int, []models.Recommendation]
	listReviews         *resilience.Policy[int, []models.Review]

	cache    store.ProductCache
	logger   *slog.Logger
	metrics  *metrics.Metrics
	address  string
	channels Channels
	policy   resilience.Config
}

type Option func(*Service)

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

// WithServiceAddress sets the address reported as serviceAddresses.cmp and
// on fallback products.
func WithServiceAddress(addr string) Option {
	return func(s *Service) {
		s.address = addr
	}
}

func WithChannels(c Channels) Option {
	return func(s *Service) {
		s.channels = c
	}
}

// WithResilience sets the per-call timeout and retry policy.
func WithResilience(cfg resilience.Config) Option {
	return func(s *Service) {
		s.policy = cfg
	}
}

// WithProductCache lets the product fallback serve the last product seen.
func WithProductCache(c store.ProductCache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// New wires the guarded collaborator calls. One breaker per collaborator
// operation is taken from breakers.
func New(
	products ProductReader,
	recommendations RecommendationReader,
	reviews ReviewReader,
	dispatcher Dispatcher,
	breakers *circuit.Registry,
	opts ...Option,
) (*Service, error) {
	if products == nil || recommendations == nil || reviews == nil {
		return nil, errors.New("all three collaborators are required")
	}
	if dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if breakers == nil {
		return nil, errors.New("circuit registry is required")
	}

	s := &Service{
		products:        products,
		recommendations: recommendations,
		reviews:         reviews,
		dispatcher:      dispatcher,
		breakers:        breakers,
		logger:          slog.Default(),
		channels:        DefaultChannels(),
		policy:          resilience.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cfg := s.policy
	cfg.Logger = s.logger
	cfg.OnFallback = func(breaker string, _ error) {
		s.metrics.IncrementFallback(breaker)
	}

	s.getProduct = resilience.New(
		breakers.Register(products.Name(), OpGetProduct),
		s.fetchProduct,
		cfg,
	).WithFallback(s.productFallback)

	s.listRecommendations = resilience.New(
		breakers.Register(recommendations.Name(), OpListRecommendations),
		func(ctx context.Context, productID int) ([]models.Recommendation, error) {
			return recommendations.ListRecommendations(ctx, productID)
		},
		cfg,
	)

	s.listReviews = resilience.New(
		breakers.Register(reviews.Name(), OpListReviews),
		func(ctx context.Context, productID int) ([]models.Review, error) {
			return reviews.ListReviews(ctx, productID)
		},
		cfg,
	)
	return s, nil
}

// GetAggregate reads the product and both summary lists concurrently. A
// product failure fails the call; a failed secondary read is served as an
// empty list.
func (s *Service) GetAggregate(ctx context.Context, productID, delay, faultPercent int) (models.Aggregate, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "composite.getAggregate")
	span.SetAttributes(attribute.Int("product_id", productID))
	defer span.End()

	if err := validateRead(productID, delay, faultPercent); err != nil {
		s.metrics.ObserveAggregateLatency("invalid", time.Since(start))
		return models.Aggregate{}, err
	}

	var (
		product         models.Product
		recommendations []models.Recommendation
		reviews         []models.Review
	)
	// A plain group: a failed product read must not cancel the secondaries,
	// or their breakers would count the cancellation.
	var g errgroup.Group
	g.Go(func() error {
		defer s.observe(s.products.Name(), time.Now())
		p, err := s.getProduct.Call(ctx, productRequest{ProductID: productID, Delay: delay, FaultPercent: faultPercent})
		if err != nil {
			return err
		}
		product = p
		return nil
	})
	g.Go(func() error {
		defer s.observe(s.recommendations.Name(), time.Now())
		recommendations = secondary(ctx, s, s.recommendations.Name(), productID, s.listRecommendations)
		return nil
	})
	g.Go(func() error {
		defer s.observe(s.reviews.Name(), time.Now())
		reviews = secondary(ctx, s, s.reviews.Name(), productID, s.listReviews)
		return nil
	})

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		s.metrics.ObserveAggregateLatency(string(dErrors.CodeOf(err)), time.Since(start))
		s.logger.InfoContext(ctx, "aggregate read failed",
			"product_id", productID,
			"code", dErrors.CodeOf(err),
			"error", err,
		)
		return models.Aggregate{}, err
	}

	agg := models.Compose(product, recommendations, reviews, s.address)
	s.metrics.ObserveAggregateLatency("ok", time.Since(start))
	s.logger.DebugContext(ctx, "aggregate read",
		"product_id", productID,
		"recommendations", len(agg.Recommendations),
		"reviews", len(agg.Reviews),
	)
	return agg, nil
}

func secondary[T any](ctx context.Context, s *Service, collaborator string, productID int, p *resilience.Policy[int, []T]) []T {
	out, err := p.Call(ctx, productID)
	if err != nil {
		s.metrics.IncrementDegraded(collaborator)
		s.logger.WarnContext(ctx, "secondary read failed, serving empty list",
			"collaborator", collaborator,
			"product_id", productID,
			"error", err,
		)
		return []T{}
	}
	if out == nil {
		return []T{}
	}
	return out
}

func (s *Service) observe(collaborator string, start time.Time) {
	s.metrics.ObserveCollaboratorLatency(collaborator, time.Since(start))
}

func (s *Service) fetchProduct(ctx context.Context, req productRequest) (models.Product, error) {
	p, err := s.products.GetProduct(ctx, req.ProductID, req.Delay, req.FaultPercent)
	if err != nil {
		return models.Product{}, err
	}
	if s.cache != nil {
		if err := s.cache.Put(ctx, p); err != nil {
			s.logger.WarnContext(ctx, "failed to cache product", "product_id", p.ProductID, "error", err)
		}
	}
	return p, nil
}

// CreateAggregate schedules one CREATE event for the product and one per
// recommendation and review in the request. Events of one channel are
// dispatched in request order; channels are dispatched concurrently.
func (s *Service) CreateAggregate(ctx context.Context, agg models.Aggregate) error {
	ctx, span := tracer.Start(ctx, "composite.createAggregate")
	defer span.End()

	productID := agg.ProductID()
	if err := validateProductID(productID); err != nil {
		return err
	}

	batches := map[string][]dispatch.ChangeEvent{
		s.channels.Products: {dispatch.NewCreated(productID, agg.Product())},
	}
	for _, r := range agg.RecommendationEntities() {
		batches[s.channels.Recommendations] = append(batches[s.channels.Recommendations], dispatch.NewCreated(productID, r))
	}
	for _, r := range agg.ReviewEntities() {
		batches[s.channels.Reviews] = append(batches[s.channels.Reviews], dispatch.NewCreated(productID, r))
	}

	if err := s.dispatchAll(ctx, batches); err != nil {
		span.RecordError(err)
		s.metrics.IncrementWrite("create", "rejected")
		return err
	}
	s.metrics.IncrementWrite("create", "accepted")
	s.logger.InfoContext(ctx, "composite create scheduled",
		"product_id", productID,
		"recommendations", len(agg.Recommendations),
		"reviews", len(agg.Reviews),
	)
	return nil
}

// DeleteAggregate schedules one DELETE event per channel keyed by the
// product id. Collaborators treat it as "remove everything for this
// product", so repeated deletes are harmless.
func (s *Service) DeleteAggregate(ctx context.Context, productID int) error {
	ctx, span := tracer.Start(ctx, "composite.deleteAggregate")
	defer span.End()

	if err := validateProductID(productID); err != nil {
		return err
	}

	batches := map[string][]dispatch.ChangeEvent{
		s.channels.Products:        {dispatch.NewDeleted(productID)},
		s.channels.Recommendations: {dispatch.NewDeleted(productID)},
		s.channels.Reviews:         {dispatch.NewDeleted(productID)},
	}
	if err := s.dispatchAll(ctx, batches); err != nil {
		span.RecordError(err)
		s.metrics.IncrementWrite("delete", "rejected")
		return err
	}
	s.metrics.IncrementWrite("delete", "accepted")
	s.logger.InfoContext(ctx, "composite delete scheduled", "product_id", productID)
	return nil
}

func (s *Service) dispatchAll(ctx context.Context, batches map[string][]dispatch.ChangeEvent) error {
	var g errgroup.Group
	for channel, events := range batches {
		g.Go(func() error {
			for _, ev := range events {
				if err := s.dispatcher.Dispatch(ctx, channel, ev); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if dErrors.CodeOf(err) == dErrors.CodeInternal {
			return dErrors.Wrap(err, dErrors.CodeDispatchRejected, "failed to schedule change events")
		}
		return err
	}
	return nil
}

// Circuits reports every breaker state.
func (s *Service) Circuits() []circuit.Status {
	return s.breakers.Snapshot()
}

func validateProductID(productID int) error {
	if productID < 1 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "Invalid productId: %d", productID)
	}
	return nil
}

func validateRead(productID, delay, faultPercent int) error {
	if err := validateProductID(productID); err != nil {
		return err
	}
	if delay < 0 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "Invalid delay: %d", delay)
	}
	if faultPercent < 0 || faultPercent > 100 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "Invalid faultPercent: %d, must be between 0 and 100", faultPercent)
	}
	return nil
}
