package health

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"composite/internal/platform/middleware"
	"composite/pkg/platform/circuit"
	"composite/pkg/platform/httputil"
)

// Checker produces the merged health report.
type Checker interface {
	Check(ctx context.Context) Report
}

// CircuitLister lists breaker states.
type CircuitLister interface {
	Snapshot() []circuit.Status
}

// Handler serves /health and /circuits.
type Handler struct {
	checker  Checker
	circuits CircuitLister
	logger   *slog.Logger
}

func NewHandler(checker Checker, circuits CircuitLister, logger *slog.Logger) *Handler {
	return &Handler{checker: checker, circuits: circuits, logger: logger}
}

func (h *Handler) Register(r chi.Router) {
	r.Group(func(gr chi.Router) {
		gr.Use(middleware.Recovery(h.logger))
		gr.Get("/health", h.handleHealth)
		gr.Get("/circuits", h.handleCircuits)
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := h.checker.Check(r.Context())
	status := http.StatusOK
	if !report.Up() {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, report)
}

func (h *Handler) handleCircuits(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"circuits": h.circuits.Snapshot()})
}
