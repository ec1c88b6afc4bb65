package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"composite/internal/composite/models"
	"composite/internal/platform/metrics"
	"composite/internal/platform/middleware"
	dErrors "composite/pkg/domain-errors"
	"composite/pkg/platform/httputil"
)

// Service defines the aggregate operations exposed over HTTP.
type Service interface {
	GetAggregate(ctx context.Context, productID, delay, faultPercent int) (models.Aggregate, error)
	CreateAggregate(ctx context.Context, agg models.Aggregate) error
	DeleteAggregate(ctx context.Context, productID int) error
}

// Handler serves the /composite routes.
type Handler struct {
	logger         *slog.Logger
	service        Service
	metrics        *metrics.Metrics
	requestTimeout time.Duration
}

// New creates a composite Handler. requestTimeout bounds a whole request and
// should exceed the worst-case retry budget of one collaborator call.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, requestTimeout time.Duration) *Handler {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Handler{
		logger:         logger,
		service:        service,
		metrics:        metrics,
		requestTimeout: requestTimeout,
	}
}

// Register registers the composite routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Route("/composite", func(cr chi.Router) {
		cr.Use(middleware.Recovery(h.logger))
		cr.Use(middleware.RequestID)
		cr.Use(middleware.Logger(h.logger))
		cr.Use(middleware.Latency(h.metrics))
		cr.Use(timeout(h.requestTimeout))
		cr.Get("/{productId}", h.handleGetAggregate)
		cr.With(middleware.ContentTypeJSON).Post("/", h.handleCreateAggregate)
		cr.Delete("/{productId}", h.handleDeleteAggregate)
	})
}

func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (h *Handler) handleGetAggregate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	productID, err := pathInt(r, "productId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	delay, err := queryInt(r, "delay")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	faultPercent, err := queryInt(r, "faultPercent")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	agg, err := h.service.GetAggregate(ctx, productID, delay, faultPercent)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toResponse(agg))
}

func (h *Handler) handleCreateAggregate(w http.ResponseWriter, r *http.Request) {
	req, err := httputil.DecodeJSON[AggregateRequest](r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.CreateAggregate(r.Context(), req.toModel()); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleDeleteAggregate(w http.ResponseWriter, r *http.Request) {
	productID, err := pathInt(r, "productId")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.service.DeleteAggregate(r.Context(), productID); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	code := dErrors.CodeOf(err)
	attrs := []any{
		"request_id", middleware.GetRequestID(ctx),
		"path", r.URL.Path,
		"code", code,
		"error", err,
	}
	switch code {
	case dErrors.CodeInternal:
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	case dErrors.CodeUnavailable, dErrors.CodeDispatchRejected:
		h.logger.WarnContext(ctx, "request failed", attrs...)
	default:
		h.logger.DebugContext(ctx, "request rejected", attrs...)
	}
	httputil.WriteError(w, r, err)
}

func pathInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "Type mismatch: "+name+" must be an integer")
	}
	return v, nil
}

// queryInt reads an optional integer query parameter; absent means zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, dErrors.Wrap(err, dErrors.CodeBadRequest, "Type mismatch: "+name+" must be an integer")
	}
	return v, nil
}
