package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validConfigYAML = `
server:
  port: 8081
  mode: debug
log:
  level: debug
  format: console
monitoring:
  interval: 2m
  similarity_threshold: 0.75
  max_results: 5
  cache_backend: redis
sources:
  google:
    api_key: "g-key"
    engine_id: "cx-1"
  twitter:
    bearer_token: "bearer"
ledger:
  endpoint: "http://ledger.local"
redis:
  addr: "localhost:6380"
alerts:
  kafka_enabled: true
kafka:
  brokers: ["kafka-1:9092", "kafka-2:9092"]
`

func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_FromFile_ValidConfig(t *testing.T) {
	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2*time.Minute, cfg.Monitoring.Interval)
	assert.InDelta(t, 0.75, cfg.Monitoring.SimilarityThreshold, 1e-9)
	assert.Equal(t, 5, cfg.Monitoring.MaxResults)
	assert.True(t, cfg.Monitoring.Enabled)
	assert.Equal(t, "g-key", cfg.Sources.Google.APIKey)
	assert.Equal(t, "cx-1", cfg.Sources.Google.EngineID)
	assert.False(t, cfg.Ledger.MockMode)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)

	// defaults fill what the file leaves out
	assert.Equal(t, DefaultWebCacheTTL, cfg.Monitoring.WebCacheTTL)
	assert.Equal(t, DefaultSocialCacheTTL, cfg.Monitoring.SocialCacheTTL)
	assert.Equal(t, DefaultAlertsKafkaTopic, cfg.Alerts.KafkaTopic)
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "invalid_yaml: ["))
	assert.Error(t, err)
}

func TestLoad_ValidationFailure(t *testing.T) {
	_, err := Load(createTempConfigFile(t, "monitoring:\n  similarity_threshold: 1.5\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("WHISPERER_MONITORING_MAX_RESULTS", "7")
	t.Setenv("WHISPERER_SOURCES_TWITTER_BEARER_TOKEN", "from-env")

	cfg, err := Load(createTempConfigFile(t, validConfigYAML))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Monitoring.MaxResults)
	assert.Equal(t, "from-env", cfg.Sources.Twitter.BearerToken)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WHISPERER_SERVER_PORT", "9000")
	t.Setenv("WHISPERER_SOURCES_GOOGLE_API_KEY", "env-key")
	t.Setenv("WHISPERER_MONITORING_INTERVAL", "30s")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "env-key", cfg.Sources.Google.APIKey)
	assert.Equal(t, 30*time.Second, cfg.Monitoring.Interval)
	assert.True(t, cfg.Ledger.MockMode, "no ledger endpoint means mock mode")
	assert.True(t, cfg.Enforcement.DisputeFallback)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestMustLoad_Panics(t *testing.T) {
	assert.Panics(t, func() { MustLoad(filepath.Join(t.TempDir(), "missing.yaml")) })
}

func TestWatch_InvokesCallbackOnChange(t *testing.T) {
	path := createTempConfigFile(t, validConfigYAML)

	changed := make(chan *Config, 16)
	require.NoError(t, Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	}, nil))

	updated := validConfigYAML + "\nmetrics:\n  namespace: reloaded\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changed:
			// a truncating write may surface an intermediate revision first
			if cfg.Metrics.Namespace == "reloaded" {
				return
			}
		case <-deadline:
			t.Fatal("config change was not observed")
		}
	}
}

func TestWatch_MissingFile(t *testing.T) {
	err := Watch(filepath.Join(t.TempDir(), "missing.yaml"), func(*Config) {}, nil)
	assert.Error(t, err)
}
