package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/bootstrap"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/config"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/http/middleware"
)

func newApp(t *testing.T, mutate func(*config.Config)) http.Handler {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	if mutate != nil {
		mutate(cfg)
	}

	infra, err := bootstrap.Open(cfg, nil, bootstrap.Options{})
	require.NoError(t, err)
	t.Cleanup(infra.Close)

	svc, err := infra.BuildServices()
	require.NoError(t, err)

	h, err := buildRouter(infra, svc, middleware.NewKeyedLimiter(100, 100, 0))
	require.NoError(t, err)
	return h
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestBuildRouter_Open(t *testing.T) {
	h := newApp(t, nil)

	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/readyz", "").Code)

	w := serve(h, http.MethodPost, "/api/v1/similarity", `{"reference":"neon fox","candidate":"neon fox"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"match":true`)

	w = serve(h, http.MethodPost, "/api/v1/chat/messages", `{"user_id":"u1","text":"/help"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBuildRouter_MetricsToggle(t *testing.T) {
	off := newApp(t, func(c *config.Config) { c.Metrics.Enabled = false })
	assert.Equal(t, http.StatusNotFound, serve(off, http.MethodGet, "/metrics", "").Code)

	on := newApp(t, func(c *config.Config) { c.Metrics.Enabled = true })
	serve(on, http.MethodPost, "/api/v1/similarity", `{"reference":"a","candidate":"b"}`)
	w := serve(on, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "whisperer_http_requests_total")
}

func TestBuildRouter_AuthWhenSecretSet(t *testing.T) {
	h := newApp(t, func(c *config.Config) {
		c.Auth.JWTSecret = "s3cret"
		c.Auth.Issuer = "whisperer"
	})

	assert.Equal(t, http.StatusUnauthorized,
		serve(h, http.MethodPost, "/api/v1/similarity", `{"reference":"a","candidate":"b"}`).Code)
	assert.Equal(t, http.StatusOK, serve(h, http.MethodGet, "/healthz", "").Code, "probes stay open")
}

func TestLoadConfig_FallsBackToEnv(t *testing.T) {
	cfg, fromFile, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.False(t, fromFile)
	assert.Equal(t, config.DefaultGRPCPort, cfg.Server.GRPCPort)
}
