package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/auth/token"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-User", ContextGetUserID(r.Context()))
		w.WriteHeader(http.StatusOK)
	})
}

func newVerifier(t *testing.T) *token.Verifier {
	t.Helper()
	v, err := token.NewVerifier("s3cret", "whisperer")
	require.NoError(t, err)
	return v
}

func TestAuth_RejectsMissingAndInvalidTokens(t *testing.T) {
	v := newVerifier(t)
	h := NewAuthMiddleware(v, AuthConfig{}, nil).Handler(okHandler())

	cases := map[string]string{
		"missing":    "",
		"not bearer": "Basic dXNlcjpwYXNz",
		"garbage":    "Bearer nope",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/u1/assets", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Header().Get("WWW-Authenticate"), "Bearer")
		})
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	v := newVerifier(t)
	raw, err := v.Issue("u1", nil, -time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	w := httptest.NewRecorder()
	NewAuthMiddleware(v, AuthConfig{}, nil).Handler(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
}

func TestAuth_ValidTokenInjectsClaims(t *testing.T) {
	v := newVerifier(t)
	raw, err := v.Issue("u42", nil, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Authorization", "bearer "+raw)
	w := httptest.NewRecorder()
	NewAuthMiddleware(v, AuthConfig{}, nil).Handler(okHandler()).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u42", w.Header().Get("X-User"))
}

func TestAuth_SkipPaths(t *testing.T) {
	h := NewAuthMiddleware(newVerifier(t), AuthConfig{SkipPaths: []string{"/public/"}}, nil).Handler(okHandler())

	for _, path := range []string{"/public", "/public/docs"} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/publicity", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestLogging_LevelsByStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mw := RequestLogging(logging.NewLoggerFromCore(core), DefaultLoggingConfig())

	status := http.StatusOK
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))

	for _, s := range []int{http.StatusOK, http.StatusNotFound, http.StatusBadGateway} {
		status = s
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/similarity", nil))
	}
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.EqualValues(t, http.StatusBadGateway, entries[2].ContextMap()["status"])
	assert.Equal(t, "/api/v1/similarity", entries[0].ContextMap()["path"])
}

type recordedRequest struct {
	method, path string
	status       int
}

type fakeHTTPMetrics struct {
	mu   sync.Mutex
	seen []recordedRequest
}

func (f *fakeHTTPMetrics) RecordHTTPRequest(method, path string, status int, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recordedRequest{method, path, status})
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	m := &fakeHTTPMetrics{}
	r := chi.NewRouter()
	r.Use(Metrics(m))
	r.Get("/assets/{ipID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/assets/0xabc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, m.seen, 2)
	assert.Equal(t, recordedRequest{http.MethodGet, "/assets/{ipID}", http.StatusNoContent}, m.seen[0])
	assert.Equal(t, http.StatusNotFound, m.seen[1].status)
}

func TestKeyedLimiter_PerKeyBuckets(t *testing.T) {
	l := NewKeyedLimiter(1, 2, time.Minute)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }

	ok, _ := l.Reserve("a")
	assert.True(t, ok)
	ok, _ = l.Reserve("a")
	assert.True(t, ok)
	ok, wait := l.Reserve("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))

	ok, _ = l.Reserve("b")
	assert.True(t, ok, "keys do not share buckets")

	now = now.Add(2 * time.Second)
	ok, _ = l.Reserve("a")
	assert.True(t, ok, "tokens refill over time")
}

func TestKeyedLimiter_Sweep(t *testing.T) {
	l := NewKeyedLimiter(1, 1, time.Minute)
	now := time.Unix(1700000000, 0)
	l.now = func() time.Time { return now }
	l.Reserve("a")
	l.Reserve("b")

	now = now.Add(30 * time.Second)
	l.Reserve("b")
	now = now.Add(45 * time.Second)

	assert.Equal(t, 1, l.Sweep())
	assert.Equal(t, 1, l.Len())
}

func TestRateLimit_Returns429WithRetryAfter(t *testing.T) {
	l := NewKeyedLimiter(0.5, 1, time.Minute)
	h := RateLimit(l, DefaultRateLimitConfig())(okHandler())

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", nil))
	assert.Equal(t, http.StatusOK, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/v1/chat/messages", nil))
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
}

func TestUserOrIPKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	assert.Equal(t, "ip:10.0.0.1", UserOrIPKey(req))

	req = req.WithContext(WithClaims(req.Context(), &token.Claims{UserID: "u1"}))
	assert.Equal(t, "user:u1", UserOrIPKey(req))
}
