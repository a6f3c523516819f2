package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/triagex/platform/pkg/common/config"
	"github.com/triagex/platform/pkg/gateway/middleware"
	"github.com/triagex/platform/pkg/observability/metrics"
)

type registrar interface {
	Register(r *mux.Router)
}

// routes collects the mounted handlers. Nil entries are skipped.
type routes struct {
	summary registrar
	intake  registrar
	triage  registrar
	feed    http.Handler
	ready   func(context.Context) error
	// cache is reported on /ready but never makes it fail.
	cache   func(context.Context) error
}

func newRouter(cfg *config.Config, h routes) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.Recovery)
	router.Use(middleware.CORS(cfg.CORSAllowedOrigin))
	router.Use(middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	router.Use(middleware.BodyLimit(cfg.MaxRequestBody))

	router.HandleFunc("/health", healthCheck).Methods("GET")
	router.HandleFunc("/ready", readyCheck(h.ready, h.cache)).Methods("GET")
	router.Handle("/metrics", metrics.Handler()).Methods("GET")
	if h.feed != nil {
		router.Handle("/ws/feed", h.feed).Methods("GET")
	}

	api := router.PathPrefix("/api").Subrouter()
	for _, reg := range []registrar{h.summary, h.intake, h.triage} {
		if reg != nil {
			reg.Register(api)
		}
	}
	return router
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "triagex"})
}

func readyCheck(ping, cache func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if ping != nil {
			if err := ping(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
				return
			}
		}
		body := map[string]string{"status": "ready", "cache": "ok"}
		if cache != nil {
			if err := cache(ctx); err != nil {
				body["cache"] = "degraded"
			}
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
