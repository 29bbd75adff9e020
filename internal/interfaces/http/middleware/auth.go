package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/auth/token"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

type contextKey int

const claimsContextKey contextKey = iota

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(raw string) (*token.Claims, error)
}

// AuthConfig holds configuration for the auth middleware.
type AuthConfig struct {
	// SkipPaths bypass authentication. A path also matches its subtree.
	SkipPaths []string
}

// AuthMiddleware rejects requests without a valid bearer token.
type AuthMiddleware struct {
	verifier TokenVerifier
	config   AuthConfig
	logger   logging.Logger
}

// NewAuthMiddleware creates an AuthMiddleware.
func NewAuthMiddleware(verifier TokenVerifier, config AuthConfig, logger logging.Logger) *AuthMiddleware {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &AuthMiddleware{verifier: verifier, config: config, logger: logger.Named("auth")}
}

// Handler enforces authentication and stores the claims in the context.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.shouldSkip(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		raw := extractBearerToken(r)
		if raw == "" {
			writeUnauthorized(w, "authentication required")
			return
		}
		claims, err := m.verifier.Verify(raw)
		if err != nil {
			m.logger.Warn("token rejected", logging.String("path", r.URL.Path), logging.Err(err))
			msg := "invalid token"
			if errors.Is(err, token.ErrTokenExpired) {
				msg = "token expired"
			}
			writeUnauthorized(w, msg)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func (m *AuthMiddleware) shouldSkip(path string) bool {
	for _, skip := range m.config.SkipPaths {
		if path == skip || strings.HasPrefix(path, strings.TrimRight(skip, "/")+"/") {
			return true
		}
	}
	return false
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *token.Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ContextGetClaims returns the verified claims, or nil when the request was
// not authenticated.
func ContextGetClaims(ctx context.Context) *token.Claims {
	claims, _ := ctx.Value(claimsContextKey).(*token.Claims)
	return claims
}

// ContextGetUserID returns the authenticated user, or "" without auth.
func ContextGetUserID(ctx context.Context) string {
	if claims := ContextGetClaims(ctx); claims != nil {
		return claims.UserID
	}
	return ""
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ip-whisperer"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"code":    string(errors.ErrCodeUnauthorized),
		"message": message,
	})
}
