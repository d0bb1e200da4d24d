// Fleetindex - Ship Reference Data Synchronization and Query Service
// Copyright 2026 Hangarbay Systems
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hangarbay/fleetindex

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hangarbay/fleetindex/internal/config"
	"github.com/hangarbay/fleetindex/internal/metrics"
)

// NewRouter assembles the HTTP routing tree.
func NewRouter(handler *Handler, cfg *config.APIConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(cfg.RateLimitReqs, cfg.RateLimitWindow))
		r.Use(prometheusMetrics)

		r.Get("/health", handler.Health)

		r.Route("/ships", func(r chi.Router) {
			r.Get("/", handler.Ships)
			r.Post("/batch", handler.ShipsBatch)
			r.Get("/{idOrSlug}", handler.Ship)
		})

		r.Get("/manufacturers", handler.Manufacturers)

		r.Route("/sync", func(r chi.Router) {
			r.Get("/status", handler.SyncStatus)
			r.Post("/trigger", handler.SyncTrigger)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

// prometheusMetrics records request counts and latency per route
// pattern. Patterns, not raw paths, keep the label cardinality bounded.
func prometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		metrics.APIRequestsTotal.WithLabelValues(r.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		metrics.APIRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
	})
}
