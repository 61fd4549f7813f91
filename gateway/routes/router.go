package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"rewardvault/gateway/middleware"
)

type Config struct {
	Views          ViewSource
	Balances       BalanceSource
	RateLimiter    *middleware.RateLimiter
	Observability  *middleware.Observability
	MetricsHandler http.Handler
}

// New builds the read-only HTTP surface over the donation engine.
func New(cfg Config) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	views := &viewRoutes{views: cfg.Views, balances: cfg.Balances}
	r.Route("/v1", func(sr chi.Router) {
		if cfg.RateLimiter != nil {
			sr.Use(cfg.RateLimiter.Middleware)
		}
		if cfg.Observability != nil {
			sr.Use(cfg.Observability.Middleware("v1"))
		}
		views.mount(sr)
	})
	return r
}
