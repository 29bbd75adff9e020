package main

import (
	"net/http"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/bootstrap"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/auth/token"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/grpc"
	httpapi "github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/handlers"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/middleware"
)

// buildRouter mounts every handler on top of the wired services. Auth is
// enabled only when a JWT secret is configured.
func buildRouter(infra *bootstrap.Infrastructure, svc *bootstrap.Services, limiter *middleware.KeyedLimiter) (http.Handler, error) {
	cfg := infra.Config

	rc := httpapi.RouterConfig{
		ChatHandler:       handlers.NewChatHandler(svc.Dispatcher),
		AssetHandler:      handlers.NewAssetHandler(svc.Registry, svc.Aggregator, svc.Enforcement),
		SimilarityHandler: handlers.NewSimilarityHandler(svc.Scorer, svc.Aggregator),
		HealthHandler:     handlers.NewHealthHandler(version, httpCheckers(infra.HealthChecks())...),
		RateLimiter:       limiter,
		HTTPMetrics:       infra.Metrics,
		Logger:            infra.Logger,
	}
	if cfg.Metrics.Enabled {
		rc.MetricsHandler = infra.Collector.Handler()
	}
	if cfg.Auth.JWTSecret != "" {
		verifier, err := token.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
		if err != nil {
			return nil, err
		}
		rc.AuthMiddleware = middleware.NewAuthMiddleware(verifier, middleware.AuthConfig{}, infra.Logger)
	}
	return httpapi.NewRouter(rc), nil
}

func httpCheckers(checks []bootstrap.HealthCheck) []handlers.HealthChecker {
	out := make([]handlers.HealthChecker, len(checks))
	for i, c := range checks {
		out[i] = c
	}
	return out
}

func grpcCheckers(checks []bootstrap.HealthCheck) []grpc.Checker {
	out := make([]grpc.Checker, len(checks))
	for i, c := range checks {
		out[i] = c
	}
	return out
}
