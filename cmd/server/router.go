package main

import (
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routeRegistrar interface {
	Register(r chi.Router)
}

// newRouter mounts the aggregate, health and metrics routes.
func newRouter(aggregates, health routeRegistrar, reg *prometheus.Registry) chi.Router {
	router := chi.NewRouter()
	aggregates.Register(router)
	health.Register(router)
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return router
}
