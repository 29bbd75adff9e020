// Package http assembles the REST surface: chi routes, middleware and the
// server lifecycle.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/handlers"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree. Nil handlers leave their routes unmounted.
type RouterConfig struct {
	ChatHandler       *handlers.ChatHandler
	AssetHandler      *handlers.AssetHandler
	SimilarityHandler *handlers.SimilarityHandler
	HealthHandler     *handlers.HealthHandler

	// AuthMiddleware guards /api/v1 when set.
	AuthMiddleware *middleware.AuthMiddleware
	RateLimiter    *middleware.KeyedLimiter
	HTTPMetrics    middleware.HTTPMetrics
	MetricsHandler http.Handler

	Logger logging.Logger
}

// NewRouter builds the route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogging(logger, middleware.DefaultLoggingConfig()))
	r.Use(chimw.Recoverer)
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(api chi.Router) {
		if cfg.AuthMiddleware != nil {
			api.Use(cfg.AuthMiddleware.Handler)
		}
		if cfg.RateLimiter != nil {
			api.Use(middleware.RateLimit(cfg.RateLimiter, middleware.DefaultRateLimitConfig()))
		}

		registerChatRoutes(api, cfg.ChatHandler)
		registerAssetRoutes(api, cfg.AssetHandler)
		if cfg.SimilarityHandler != nil {
			api.Post("/similarity", cfg.SimilarityHandler.Score)
		}
	})

	return r
}

func registerChatRoutes(r chi.Router, h *handlers.ChatHandler) {
	if h == nil {
		return
	}
	r.Post("/chat/messages", h.PostMessage)
}

func registerAssetRoutes(r chi.Router, h *handlers.AssetHandler) {
	if h == nil {
		return
	}
	r.Route("/users/{userID}", func(ur chi.Router) {
		ur.Get("/assets", h.ListUserAssets)
		ur.Get("/alerts", h.ListUserAlerts)
	})
	r.Route("/assets/{ipID}", func(item chi.Router) {
		item.Get("/", h.GetAsset)
		item.Delete("/violations", h.ClearViolations)
		item.Post("/scan", h.Scan)
		item.Post("/enforce", h.Enforce)
	})
}
