// Package config defines the configuration structures of the IP Whisperer
// service. No I/O lives in this file, only plain data types and validation.
package config

import (
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Sub-configuration structs
// ─────────────────────────────────────────────────────────────────────────────

// ServerConfig holds HTTP server tunables.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	GRPCPort        int           `mapstructure:"grpc_port"`
	Mode            string        `mapstructure:"mode"` // "debug" | "release" | "test"
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxBodySize     int64         `mapstructure:"max_body_size"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig holds structured-logging parameters.
type LogConfig struct {
	Level  string `mapstructure:"level"`  // "debug" | "info" | "warn" | "error"
	Format string `mapstructure:"format"` // "json" | "console"
	Output string `mapstructure:"output"`
}

// MonitoringConfig drives the aggregator and the scan scheduler.
type MonitoringConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	Interval            time.Duration `mapstructure:"interval"`
	SimilarityThreshold float64       `mapstructure:"similarity_threshold"`
	MaxResults          int           `mapstructure:"max_results"`
	Concurrency         int           `mapstructure:"concurrency"`
	CacheBackend        string        `mapstructure:"cache_backend"` // "memory" | "redis"
	WebCacheTTL         time.Duration `mapstructure:"web_cache_ttl"`
	SocialCacheTTL      time.Duration `mapstructure:"social_cache_ttl"`
	ArchiveCacheTTL     time.Duration `mapstructure:"archive_cache_ttl"`
	DistributedLock     bool          `mapstructure:"distributed_lock"`
}

// SessionConfig controls the chat intake sessions.
type SessionConfig struct {
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// GoogleSearchConfig holds Custom Search credentials.
type GoogleSearchConfig struct {
	APIKey   string `mapstructure:"api_key"`
	EngineID string `mapstructure:"engine_id"`
	Endpoint string `mapstructure:"endpoint"`
}

// TwitterConfig holds the recent-search credentials.
type TwitterConfig struct {
	BearerToken       string  `mapstructure:"bearer_token"`
	Endpoint          string  `mapstructure:"endpoint"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// ArchiveConfig selects the OpenSearch index of crawled pages.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

// SourcesConfig groups every content source.
type SourcesConfig struct {
	Timeout time.Duration      `mapstructure:"timeout"`
	Google  GoogleSearchConfig `mapstructure:"google"`
	Twitter TwitterConfig      `mapstructure:"twitter"`
	Archive ArchiveConfig      `mapstructure:"archive"`
}

// LedgerConfig points at the registration and dispute gateway.
type LedgerConfig struct {
	MockMode bool          `mapstructure:"mock_mode"`
	Endpoint string        `mapstructure:"endpoint"`
	APIKey   string        `mapstructure:"api_key"`
	Network  string        `mapstructure:"network"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	Endpoint    string        `mapstructure:"endpoint"`
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// EnforcementConfig tunes the enforcement workflow. With DisputeFallback a
// failed dispute call yields a locally synthesised, degraded dispute id.
type EnforcementConfig struct {
	DefaultTone     string `mapstructure:"default_tone"`
	DisputeFallback bool   `mapstructure:"dispute_fallback"`
}

// AlertsConfig selects the notification sinks.
type AlertsConfig struct {
	WebhookURL   string        `mapstructure:"webhook_url"`
	KafkaEnabled bool          `mapstructure:"kafka_enabled"`
	KafkaTopic   string        `mapstructure:"kafka_topic"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// StorageConfig selects the registry backend.
type StorageConfig struct {
	Backend string `mapstructure:"backend"` // "memory" | "postgres"
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"db_name"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConns        int           `mapstructure:"max_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Mode         string        `mapstructure:"mode"` // "standalone" | "sentinel" | "cluster"
	Addr         string        `mapstructure:"addr"`
	Addrs        []string      `mapstructure:"addrs"`
	MasterName   string        `mapstructure:"master_name"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// KafkaConfig holds Kafka producer and consumer parameters. The consumer
// fields are used by the worker that relays alerts to the webhook.
type KafkaConfig struct {
	Brokers         []string      `mapstructure:"brokers"`
	ClientID        string        `mapstructure:"client_id"`
	RequiredAcks    string        `mapstructure:"required_acks"` // "none" | "leader" | "all"
	BatchTimeout    time.Duration `mapstructure:"batch_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	GroupID         string        `mapstructure:"group_id"`
	DeadLetterTopic string        `mapstructure:"dead_letter_topic"`
}

// OpenSearchConfig holds OpenSearch cluster connection parameters.
type OpenSearchConfig struct {
	Addresses          []string      `mapstructure:"addresses"`
	User               string        `mapstructure:"user"`
	Password           string        `mapstructure:"password"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
	RequestTimeout     time.Duration `mapstructure:"request_timeout"`
}

// MinIOConfig holds object-storage parameters for metadata documents.
type MinIOConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Region    string `mapstructure:"region"`
	// PublicBaseURL is prepended to object keys to form metadata URIs.
	PublicBaseURL string `mapstructure:"public_base_url"`
}

// AuthConfig enables bearer-token auth on the HTTP API.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// MetricsConfig controls the Prometheus collector.
type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// ─────────────────────────────────────────────────────────────────────────────
// Root Config
// ─────────────────────────────────────────────────────────────────────────────

// Config is the root configuration structure.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Session     SessionConfig     `mapstructure:"session"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Ledger      LedgerConfig      `mapstructure:"ledger"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Enforcement EnforcementConfig `mapstructure:"enforcement"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	OpenSearch  OpenSearchConfig  `mapstructure:"opensearch"`
	MinIO       MinIOConfig       `mapstructure:"minio"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// UsesRedis reports whether any enabled component needs a Redis client.
func (c *Config) UsesRedis() bool {
	return c.Monitoring.CacheBackend == "redis" || c.Monitoring.DistributedLock
}

// UsesPostgres reports whether the registry is backed by PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Backend == "postgres"
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// Validate performs semantic validation of a defaulted Config. It returns the
// first error encountered. Credentials for content sources, the LLM and the
// ledger are optional: a missing key degrades that collaborator instead of
// refusing to start.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port %d is out of range [1, 65535]", c.Server.Port)
	}
	switch c.Server.Mode {
	case "debug", "release", "test":
	default:
		return fmt.Errorf("config: server.mode %q is invalid; expected debug|release|test", c.Server.Mode)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: log.level %q is invalid; expected debug|info|warn|error", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: log.format %q is invalid; expected json|console", c.Log.Format)
	}

	if c.Monitoring.Interval <= 0 {
		return fmt.Errorf("config: monitoring.interval must be positive, got %s", c.Monitoring.Interval)
	}
	if c.Monitoring.SimilarityThreshold < 0 || c.Monitoring.SimilarityThreshold > 1 {
		return fmt.Errorf("config: monitoring.similarity_threshold %.2f is out of range [0, 1]", c.Monitoring.SimilarityThreshold)
	}
	if c.Monitoring.MaxResults < 1 {
		return fmt.Errorf("config: monitoring.max_results must be ≥ 1, got %d", c.Monitoring.MaxResults)
	}
	if c.Monitoring.Concurrency < 1 {
		return fmt.Errorf("config: monitoring.concurrency must be ≥ 1, got %d", c.Monitoring.Concurrency)
	}
	switch c.Monitoring.CacheBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: monitoring.cache_backend %q is invalid; expected memory|redis", c.Monitoring.CacheBackend)
	}

	switch c.Storage.Backend {
	case "memory":
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("config: database.host is required for the postgres backend")
		}
		if c.Database.User == "" {
			return fmt.Errorf("config: database.user is required for the postgres backend")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("config: database.db_name is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: storage.backend %q is invalid; expected memory|postgres", c.Storage.Backend)
	}

	if c.UsesRedis() && c.Redis.Addr == "" && len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("config: redis.addr is required when redis cache or distributed lock is enabled")
	}

	if c.Alerts.KafkaEnabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("config: kafka.brokers must contain at least one broker when alerts.kafka_enabled is set")
	}

	if c.Sources.Archive.Enabled && len(c.OpenSearch.Addresses) == 0 {
		return fmt.Errorf("config: opensearch.addresses is required when sources.archive.enabled is set")
	}

	if c.MinIO.Enabled && c.MinIO.Endpoint == "" {
		return fmt.Errorf("config: minio.endpoint is required when minio.enabled is set")
	}

	switch c.Enforcement.DefaultTone {
	case "friendly", "formal", "vibe":
	default:
		return fmt.Errorf("config: enforcement.default_tone %q is invalid; expected friendly|formal|vibe", c.Enforcement.DefaultTone)
	}

	if !c.Ledger.MockMode && c.Ledger.Endpoint == "" {
		return fmt.Errorf("config: ledger.endpoint is required unless ledger.mock_mode is set")
	}

	return nil
}
