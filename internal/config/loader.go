// Package config provides configuration loading, defaults, and validation for
// the IP Whisperer service.
package config

import (
	"fmt"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// envPrefix is the environment variable prefix of every setting.
const envPrefix = "WHISPERER"

// newViper builds a Viper instance with YAML files, WHISPERER_ env binding
// and a "." → "_" key replacer, so "sources.google.api_key" resolves to
// WHISPERER_SOURCES_GOOGLE_API_KEY.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	registerKeys(v)
	return v
}

// registerKeys declares every key so that Unmarshal sees environment
// overrides even when the key is absent from the file. Booleans that default
// to true are set here because ApplyDefaults cannot tell false from unset.
func registerKeys(v *viper.Viper) {
	v.SetDefault("monitoring.enabled", true)
	v.SetDefault("enforcement.dispute_fallback", true)

	for _, key := range []string{
		"server.port", "server.grpc_port", "server.mode", "server.read_timeout", "server.write_timeout",
		"server.max_body_size", "server.shutdown_timeout",
		"log.level", "log.format", "log.output",
		"monitoring.interval", "monitoring.similarity_threshold", "monitoring.max_results",
		"monitoring.concurrency", "monitoring.cache_backend", "monitoring.web_cache_ttl",
		"monitoring.social_cache_ttl", "monitoring.archive_cache_ttl", "monitoring.distributed_lock",
		"session.idle_timeout", "session.sweep_interval",
		"sources.timeout", "sources.google.api_key", "sources.google.engine_id", "sources.google.endpoint",
		"sources.twitter.bearer_token", "sources.twitter.endpoint", "sources.twitter.requests_per_second",
		"sources.twitter.burst", "sources.archive.enabled", "sources.archive.index",
		"ledger.mock_mode", "ledger.endpoint", "ledger.api_key", "ledger.network", "ledger.timeout",
		"llm.endpoint", "llm.api_key", "llm.model", "llm.temperature", "llm.max_tokens", "llm.timeout",
		"enforcement.default_tone",
		"alerts.webhook_url", "alerts.kafka_enabled", "alerts.kafka_topic", "alerts.timeout",
		"storage.backend",
		"database.host", "database.port", "database.user", "database.password", "database.db_name",
		"database.ssl_mode", "database.max_conns", "database.max_idle_conns", "database.conn_max_lifetime",
		"database.conn_max_idle_time", "database.auto_migrate",
		"redis.mode", "redis.addr", "redis.master_name", "redis.password", "redis.db", "redis.pool_size",
		"redis.min_idle_conns", "redis.dial_timeout", "redis.read_timeout", "redis.write_timeout", "redis.key_prefix",
		"kafka.client_id", "kafka.required_acks", "kafka.batch_timeout", "kafka.write_timeout", "kafka.max_retries",
		"kafka.group_id", "kafka.dead_letter_topic",
		"opensearch.user", "opensearch.password", "opensearch.insecure_skip_verify", "opensearch.request_timeout",
		"minio.enabled", "minio.endpoint", "minio.access_key", "minio.secret_key", "minio.bucket",
		"minio.use_ssl", "minio.region", "minio.public_base_url",
		"auth.jwt_secret", "auth.issuer",
		"metrics.enabled", "metrics.namespace",
		// Lists arrive from the environment comma separated.
		"kafka.brokers", "opensearch.addresses", "redis.addrs",
	} {
		_ = v.BindEnv(key)
	}
}

// Load reads the YAML file at configPath, merges WHISPERER_* overrides,
// applies defaults and validates the result.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	return unmarshalAndFinalize(v)
}

// LoadFromEnv builds a Config from WHISPERER_* environment variables alone.
//
//	WHISPERER_<SECTION>_<FIELD>   e.g.  WHISPERER_SOURCES_GOOGLE_API_KEY
func LoadFromEnv() (*Config, error) {
	return unmarshalAndFinalize(newViper())
}

func unmarshalAndFinalize(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return cfg, nil
}

// Watch re-reads configPath whenever it changes on disk and hands the new
// Config to onChange. Invalid revisions are reported through onError and
// skipped. Callers apply only the settings that are safe to change at runtime
// (log level, similarity threshold).
func Watch(configPath string, onChange func(*Config), onError func(error)) error {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: failed to read config file %q: %w", configPath, err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshalAndFinalize(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// MustLoad is Load that panics on error. For use in main().
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("config: MustLoad failed: %v", err))
	}
	return cfg
}
