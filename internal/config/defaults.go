package config

import "time"

// ─────────────────────────────────────────────────────────────────────────────
// Default value constants
// ─────────────────────────────────────────────────────────────────────────────

const (
	DefaultServerPort     = 8080
	DefaultGRPCPort       = 9090
	DefaultServerMode     = "release"
	DefaultReadTimeout    = 15 * time.Second
	DefaultWriteTimeout   = 30 * time.Second
	DefaultShutdownPeriod = 15 * time.Second
	DefaultMaxBodySize    = 1 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	DefaultScanInterval        = 5 * time.Minute
	DefaultSimilarityThreshold = 0.80
	DefaultMaxResults          = 10
	DefaultScanConcurrency     = 4
	DefaultCacheBackend        = "memory"
	DefaultWebCacheTTL         = 10 * time.Minute
	DefaultSocialCacheTTL      = 5 * time.Minute
	DefaultArchiveCacheTTL     = 10 * time.Minute

	DefaultSessionIdleTimeout   = 30 * time.Minute
	DefaultSessionSweepInterval = time.Minute

	DefaultSourceTimeout    = 10 * time.Second
	DefaultGoogleEndpoint   = "https://customsearch.googleapis.com/"
	DefaultTwitterEndpoint  = "https://api.twitter.com/2/tweets/search/recent"
	DefaultTwitterRPS       = 1.0
	DefaultTwitterBurst     = 1
	DefaultArchiveIndex     = "crawled-pages"
	DefaultLedgerNetwork    = "testnet"
	DefaultExternalTimeout  = 15 * time.Second
	DefaultLLMModel         = "gpt-4o-mini"
	DefaultLLMTemperature   = 0.8
	DefaultLLMMaxTokens     = 300
	DefaultAlertsKafkaTopic = "ip.alerts"
	DefaultEnforcementTone  = "friendly"

	DefaultStorageBackend = "memory"

	DefaultDBHost     = "localhost"
	DefaultDBPort     = 5432
	DefaultDBName     = "whisperer"
	DefaultDBSSLMode  = "disable"
	DefaultDBMaxConns = 10

	DefaultRedisMode      = "standalone"
	DefaultRedisAddr      = "localhost:6379"
	DefaultRedisKeyPrefix = "whisperer:"

	DefaultKafkaBroker   = "localhost:9092"
	DefaultKafkaClientID = "ip-whisperer"
	DefaultKafkaGroupID  = "ip-whisperer-alerts"
	DefaultKafkaDLQ      = "ip.alerts.dlq"

	DefaultMinIOBucket = "ip-metadata"

	DefaultMetricsNamespace = "whisperer"
)

// ApplyDefaults fills every zero-value field in cfg with its default. Values
// already set by the caller are left unchanged. A ledger without an endpoint
// is switched to mock mode.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}

	// ── Server ────────────────────────────────────────────────────────────────
	if cfg.Server.Port == 0 {
		cfg.Server.Port = DefaultServerPort
	}
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = DefaultGRPCPort
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = DefaultServerMode
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = DefaultShutdownPeriod
	}
	if cfg.Server.MaxBodySize == 0 {
		cfg.Server.MaxBodySize = DefaultMaxBodySize
	}

	// ── Log ───────────────────────────────────────────────────────────────────
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = DefaultLogFormat
	}

	// ── Monitoring ────────────────────────────────────────────────────────────
	m := &cfg.Monitoring
	if m.Interval == 0 {
		m.Interval = DefaultScanInterval
	}
	if m.SimilarityThreshold == 0 {
		m.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if m.MaxResults == 0 {
		m.MaxResults = DefaultMaxResults
	}
	if m.Concurrency == 0 {
		m.Concurrency = DefaultScanConcurrency
	}
	if m.CacheBackend == "" {
		m.CacheBackend = DefaultCacheBackend
	}
	if m.WebCacheTTL == 0 {
		m.WebCacheTTL = DefaultWebCacheTTL
	}
	if m.SocialCacheTTL == 0 {
		m.SocialCacheTTL = DefaultSocialCacheTTL
	}
	if m.ArchiveCacheTTL == 0 {
		m.ArchiveCacheTTL = DefaultArchiveCacheTTL
	}

	// ── Session ───────────────────────────────────────────────────────────────
	if cfg.Session.IdleTimeout == 0 {
		cfg.Session.IdleTimeout = DefaultSessionIdleTimeout
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = DefaultSessionSweepInterval
	}

	// ── Sources ───────────────────────────────────────────────────────────────
	if cfg.Sources.Timeout == 0 {
		cfg.Sources.Timeout = DefaultSourceTimeout
	}
	if cfg.Sources.Google.Endpoint == "" {
		cfg.Sources.Google.Endpoint = DefaultGoogleEndpoint
	}
	if cfg.Sources.Twitter.Endpoint == "" {
		cfg.Sources.Twitter.Endpoint = DefaultTwitterEndpoint
	}
	if cfg.Sources.Twitter.RequestsPerSecond == 0 {
		cfg.Sources.Twitter.RequestsPerSecond = DefaultTwitterRPS
	}
	if cfg.Sources.Twitter.Burst == 0 {
		cfg.Sources.Twitter.Burst = DefaultTwitterBurst
	}
	if cfg.Sources.Archive.Index == "" {
		cfg.Sources.Archive.Index = DefaultArchiveIndex
	}

	// ── Ledger / LLM / Alerts ─────────────────────────────────────────────────
	if cfg.Ledger.Endpoint == "" {
		cfg.Ledger.MockMode = true
	}
	if cfg.Ledger.Network == "" {
		cfg.Ledger.Network = DefaultLedgerNetwork
	}
	if cfg.Ledger.Timeout == 0 {
		cfg.Ledger.Timeout = DefaultExternalTimeout
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if cfg.LLM.Temperature == 0 {
		cfg.LLM.Temperature = DefaultLLMTemperature
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = DefaultLLMMaxTokens
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = DefaultExternalTimeout
	}
	if cfg.Enforcement.DefaultTone == "" {
		cfg.Enforcement.DefaultTone = DefaultEnforcementTone
	}
	if cfg.Alerts.KafkaTopic == "" {
		cfg.Alerts.KafkaTopic = DefaultAlertsKafkaTopic
	}
	if cfg.Alerts.Timeout == 0 {
		cfg.Alerts.Timeout = DefaultSourceTimeout
	}

	// ── Storage ───────────────────────────────────────────────────────────────
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = DefaultStorageBackend
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = DefaultDBHost
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = DefaultDBPort
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = DefaultDBName
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = DefaultDBSSLMode
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = DefaultDBMaxConns
	}

	// ── Redis ─────────────────────────────────────────────────────────────────
	if cfg.Redis.Mode == "" {
		cfg.Redis.Mode = DefaultRedisMode
	}
	if cfg.Redis.Addr == "" && len(cfg.Redis.Addrs) == 0 {
		cfg.Redis.Addr = DefaultRedisAddr
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}

	// ── Kafka ─────────────────────────────────────────────────────────────────
	if len(cfg.Kafka.Brokers) == 0 {
		cfg.Kafka.Brokers = []string{DefaultKafkaBroker}
	}
	if cfg.Kafka.ClientID == "" {
		cfg.Kafka.ClientID = DefaultKafkaClientID
	}
	if cfg.Kafka.GroupID == "" {
		cfg.Kafka.GroupID = DefaultKafkaGroupID
	}
	if cfg.Kafka.DeadLetterTopic == "" {
		cfg.Kafka.DeadLetterTopic = DefaultKafkaDLQ
	}

	// ── MinIO / Metrics ───────────────────────────────────────────────────────
	if cfg.MinIO.Bucket == "" {
		cfg.MinIO.Bucket = DefaultMinIOBucket
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNamespace
	}
}
