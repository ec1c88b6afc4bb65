package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"composite/internal/collaborator"
	"composite/internal/composite/handler"
	compositemetrics "composite/internal/composite/metrics"
	"composite/internal/composite/service"
	"composite/internal/composite/store"
	"composite/internal/dispatch"
	dispatchmetrics "composite/internal/dispatch/metrics"
	"composite/internal/health"
	healthmetrics "composite/internal/health/metrics"
	"composite/internal/platform/config"
	"composite/internal/platform/httpserver"
	"composite/internal/platform/logger"
	"composite/internal/platform/messaging"
	"composite/internal/platform/messaging/amqp"
	"composite/internal/platform/messaging/kafka"
	"composite/internal/platform/messaging/memory"
	"composite/internal/platform/metrics"
	"composite/internal/platform/redis"
	"composite/pkg/platform/circuit"
	"composite/pkg/platform/resilience"
	strs "composite/pkg/platform/strings"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "composite: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics := metrics.New(reg)
	aggregateMetrics := compositemetrics.New(reg)

	channels := service.Channels{
		Products:        cfg.Messaging.Channels.Products,
		Recommendations: cfg.Messaging.Channels.Recommendations,
		Reviews:         cfg.Messaging.Channels.Reviews,
	}

	publisher, err := newPublisher(ctx, cfg, channels, log)
	if err != nil {
		return err
	}
	dispatcher := dispatch.New(publisher,
		dispatch.WithWorkers(cfg.Dispatch.Workers),
		dispatch.WithQueueSize(cfg.Dispatch.QueueSize),
		dispatch.WithPublishTimeout(cfg.Dispatch.PublishTimeout),
		dispatch.WithLogger(log),
		dispatch.WithMetrics(dispatchmetrics.New(reg)),
	)

	products, err := collaborator.NewProductClient(cfg.Collaborators.ProductURL)
	if err != nil {
		return err
	}
	recommendations, err := collaborator.NewRecommendationClient(cfg.Collaborators.RecommendationURL)
	if err != nil {
		return err
	}
	reviews, err := collaborator.NewReviewClient(cfg.Collaborators.ReviewURL)
	if err != nil {
		return err
	}

	breakers := circuit.NewRegistry(circuit.Config{
		FailureThreshold:     cfg.Resilience.FailureThreshold,
		FailureRateThreshold: cfg.Resilience.FailureRateThreshold,
		MinimumCalls:         cfg.Resilience.MinimumCalls,
		Window:               cfg.Resilience.Window,
		CoolDown:             cfg.Resilience.CoolDown,
		HalfOpenCalls:        cfg.Resilience.HalfOpenCalls,
	},
		circuit.WithLogger(log),
		circuit.WithStateListener(func(key circuit.Key, _, to circuit.State) {
			aggregateMetrics.SetCircuitState(key.String(), string(to))
		}),
	)

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	var cache store.ProductCache = store.NewInMemoryProductCache(cfg.Redis.ProductTTL)
	if redisClient != nil {
		cache = store.NewRedisProductCache(redisClient.Client, cfg.Redis.ProductTTL)
		defer func() { _ = redisClient.Close() }()
	}

	address := cfg.Server.ResolvedServiceAddress()
	svc, err := service.New(products, recommendations, reviews, dispatcher, breakers,
		service.WithLogger(log),
		service.WithMetrics(aggregateMetrics),
		service.WithServiceAddress(address),
		service.WithChannels(channels),
		service.WithProductCache(cache),
		service.WithResilience(resilience.Config{
			Timeout:           cfg.Resilience.Timeout,
			MaxAttempts:       cfg.Resilience.MaxAttempts,
			InitialBackoff:    cfg.Resilience.InitialBackoff,
			MaxBackoff:        cfg.Resilience.MaxBackoff,
			BackoffMultiplier: cfg.Resilience.BackoffMultiplier,
		}),
	)
	if err != nil {
		return err
	}
	for _, st := range breakers.Snapshot() {
		aggregateMetrics.SetCircuitState(st.Name, string(st.State))
	}

	healthSvc := health.New(
		[]health.Probe{products, recommendations, reviews},
		health.WithProbeTimeout(cfg.Health.ProbeTimeout),
		health.WithLogger(log),
		health.WithMetrics(healthmetrics.New(reg)),
	)

	router := newRouter(
		handler.New(svc, log, httpMetrics, cfg.Server.RequestTimeout),
		health.NewHandler(healthSvc, breakers, log),
		reg,
	)

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.RequestTimeout)

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting composite gateway",
			"addr", cfg.Server.Addr,
			"service_address", address,
			"transport", cfg.Messaging.Transport,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	if err := dispatcher.Close(shutdownCtx); err != nil {
		log.Error("dispatcher drain failed", "error", err)
	}
	if err := publisher.Close(); err != nil {
		log.Error("publisher close failed", "error", err)
	}
	return nil
}

func newPublisher(ctx context.Context, cfg *config.Config, channels service.Channels, log *slog.Logger) (messaging.Publisher, error) {
	topics := strs.SplitAndDedupe([]string{channels.Products, channels.Recommendations, channels.Reviews})

	switch cfg.Messaging.Transport {
	case config.TransportKafka:
		pub, err := kafka.New(kafka.Config{
			Brokers:           cfg.Messaging.Brokers,
			ClientID:          cfg.Messaging.ClientID,
			Partitions:        int32(cfg.Messaging.Partitions),
			ReplicationFactor: int16(cfg.Messaging.ReplicationFactor),
		}, log)
		if err != nil {
			return nil, err
		}
		provisionCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := pub.Ping(provisionCtx); err != nil {
			_ = pub.Close()
			return nil, err
		}
		if err := pub.EnsureTopics(provisionCtx, topics...); err != nil {
			_ = pub.Close()
			return nil, err
		}
		return pub, nil
	case config.TransportRabbitMQ:
		return amqp.Dial(cfg.Messaging.AMQPURL, topics, log)
	default:
		log.Warn("using in-memory publisher; events are not delivered anywhere")
		return memory.NewPublisher(), nil
	}
}
