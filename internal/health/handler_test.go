package health

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"composite/pkg/platform/circuit"
	"composite/pkg/testutil"
)

type staticChecker Report

func (c staticChecker) Check(context.Context) Report { return Report(c) }

func newRouter(report Report, registry *circuit.Registry) http.Handler {
	r := chi.NewRouter()
	NewHandler(staticChecker(report), registry, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func TestHealthHandler(t *testing.T) {
	registry := circuit.NewRegistry(circuit.DefaultConfig())

	t.Run("up is 200", func(t *testing.T) {
		rr := testutil.DoRequest(newRouter(Report{Status: StatusUp}, registry), testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatusOK(t, rr)
		testutil.AssertJSONContains(t, rr, "status", StatusUp)
	})

	t.Run("down is 503", func(t *testing.T) {
		report := Report{Status: StatusDown, Components: map[string]Component{
			"product": {Status: StatusDown, Detail: "probe timed out"},
		}}
		rr := testutil.DoRequest(newRouter(report, registry), testutil.NewRequest(t, http.MethodGet, "/health"))
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
		resp := testutil.UnmarshalResponse[Report](t, rr)
		assert.Equal(t, StatusDown, resp.Status)
		assert.Equal(t, "probe timed out", resp.Components["product"].Detail)
	})
}

func TestCircuitsHandler(t *testing.T) {
	registry := circuit.NewRegistry(circuit.DefaultConfig())
	registry.Register("review", "listReviews")
	registry.Register("product", "getProduct")

	rr := testutil.DoRequest(newRouter(Report{Status: StatusUp}, registry), testutil.NewRequest(t, http.MethodGet, "/circuits"))
	testutil.AssertStatusOK(t, rr)

	resp := testutil.UnmarshalResponse[struct {
		Circuits []circuit.Status `json:"circuits"`
	}](t, rr)
	assert.Equal(t, []circuit.Status{
		{Name: "product.getProduct", State: circuit.StateClosed},
		{Name: "review.listReviews", State: circuit.StateClosed},
	}, resp.Circuits)
}
