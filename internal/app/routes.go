package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpcontroller "github.com/vadim/linkpilot/internal/controller/http"
	"github.com/vadim/linkpilot/internal/httpx/response"
)

// newRouter builds the HTTP router with middleware and all routes
func (a *App) newRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health check
	r.Get("/healthz", a.healthHandler)
	r.Get("/readyz", a.readyHandler)
	r.Handle("/metrics", promhttp.Handler())

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		httpcontroller.NewPostHandler(a.posts).RegisterRoutes(r)
		httpcontroller.NewCampaignHandler(a.campaigns).RegisterRoutes(r)
		httpcontroller.NewRuleHandler(a.rules, a.engine).RegisterRoutes(r)
		httpcontroller.NewActivityHandler(a.limiter, a.ledger).RegisterRoutes(r)
		httpcontroller.NewSchedulerHandler(a.scheduler).RegisterRoutes(r)
	})

	return r
}

// healthHandler handles health check requests
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	response.OK(w, map[string]string{"status": "ok"})
}

// readyHandler reports whether the database answers and the scheduler runs
func (a *App) readyHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	body := map[string]any{
		"status":    "ready",
		"scheduler": a.scheduler.IsRunning(),
	}
	if a.integrations != nil && a.integrations.breaker != nil {
		body["linkedin_breaker"] = a.integrations.breaker.State()
	}

	if err := a.store.ping(ctx); err != nil {
		a.logger.Warn("readiness check failed", "error", err)
		body["status"] = "unavailable"
		body["error"] = "database unreachable"
		response.JSON(w, http.StatusServiceUnavailable, body)
		return
	}
	response.OK(w, body)
}
