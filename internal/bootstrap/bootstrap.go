// Package bootstrap turns a loaded Config into connected infrastructure and
// the application services built on it. The apiserver, the worker and the
// CLI share it so every binary wires the same components the same way.
package bootstrap

import (
	"context"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/config"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/postgres"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/redis"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/messaging/kafka"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/prometheus"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/search/opensearch"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/storage/minio"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig) (logging.Logger, error) {
	var outputs []string
	if cfg.Output != "" {
		outputs = []string{cfg.Output}
	}
	return logging.NewLogger(logging.LogConfig{
		Level:       cfg.Level,
		Format:      cfg.Format,
		OutputPaths: outputs,
	})
}

// HealthCheck is a named dependency probe.
type HealthCheck struct {
	Component string
	Fn        func(ctx context.Context) error
}

// Name returns the component name.
func (h HealthCheck) Name() string { return h.Component }

// Check runs the probe.
func (h HealthCheck) Check(ctx context.Context) error { return h.Fn(ctx) }

// Infrastructure holds the external connections a binary needs. Clients for
// disabled components stay nil.
type Infrastructure struct {
	Config    *config.Config
	Logger    logging.Logger
	Collector prometheus.MetricsCollector
	Metrics   *prometheus.AppMetrics

	Postgres   *postgres.Connection
	Redis      *redis.Client
	OpenSearch *opensearch.Client
	MinIO      *minio.MinIOClient
	Producer   *kafka.Producer
}

// Options select optional connections.
type Options struct {
	// Producer opens a Kafka producer when alerts go to Kafka.
	Producer bool
	// SkipMigrations leaves the schema alone even with auto_migrate set.
	SkipMigrations bool
}

// Open connects every component the configuration enables. On failure the
// connections opened so far are closed.
func Open(cfg *config.Config, logger logging.Logger, opts Options) (_ *Infrastructure, err error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	infra := &Infrastructure{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			infra.Close()
		}
	}()

	infra.Collector, err = prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfiguration, "create metrics collector")
	}
	infra.Metrics = prometheus.NewAppMetrics(infra.Collector)

	if cfg.UsesPostgres() {
		if err = infra.openPostgres(opts); err != nil {
			return nil, err
		}
	}
	if cfg.UsesRedis() {
		infra.Redis, err = redis.NewClient(&redis.RedisConfig{
			Mode:         cfg.Redis.Mode,
			Addr:         cfg.Redis.Addr,
			Addrs:        cfg.Redis.Addrs,
			MasterName:   cfg.Redis.MasterName,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
			KeyPrefix:    cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
	}
	if cfg.Sources.Archive.Enabled {
		infra.OpenSearch, err = opensearch.NewClient(opensearch.ClientConfig{
			Addresses:          cfg.OpenSearch.Addresses,
			Username:           cfg.OpenSearch.User,
			Password:           cfg.OpenSearch.Password,
			InsecureSkipVerify: cfg.OpenSearch.InsecureSkipVerify,
			RequestTimeout:     cfg.OpenSearch.RequestTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
		if err = infra.ensureArchiveIndex(); err != nil {
			return nil, err
		}
	}
	if cfg.MinIO.Enabled {
		infra.MinIO, err = minio.NewMinIOClient(&minio.MinIOConfig{
			Endpoint:        cfg.MinIO.Endpoint,
			AccessKeyID:     cfg.MinIO.AccessKey,
			SecretAccessKey: cfg.MinIO.SecretKey,
			UseSSL:          cfg.MinIO.UseSSL,
			Region:          cfg.MinIO.Region,
			Bucket:          cfg.MinIO.Bucket,
			PublicBaseURL:   cfg.MinIO.PublicBaseURL,
			PublicRead:      true,
		}, logger)
		if err != nil {
			return nil, err
		}
	}
	if opts.Producer && cfg.Alerts.KafkaEnabled {
		infra.Producer, err = kafka.NewProducer(kafka.ProducerConfig{
			Brokers:      cfg.Kafka.Brokers,
			ClientID:     cfg.Kafka.ClientID,
			Acks:         cfg.Kafka.RequiredAcks,
			MaxRetries:   cfg.Kafka.MaxRetries,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, logger)
		if err != nil {
			return nil, err
		}
	}
	return infra, nil
}

func (i *Infrastructure) openPostgres(opts Options) error {
	db := i.Config.Database
	conn, err := postgres.NewConnection(postgres.PostgresConfig{
		Host:            db.Host,
		Port:            db.Port,
		Database:        db.DBName,
		Username:        db.User,
		Password:        db.Password,
		SSLMode:         db.SSLMode,
		MaxOpenConns:    db.MaxConns,
		MaxIdleConns:    db.MaxIdleConns,
		ConnMaxLifetime: db.ConnMaxLifetime,
		ConnMaxIdleTime: db.ConnMaxIdleTime,
	}, i.Logger)
	if err != nil {
		return err
	}
	i.Postgres = conn
	if db.AutoMigrate && !opts.SkipMigrations {
		if err := postgres.RunMigrations(conn.DB(), i.Logger); err != nil {
			return err
		}
	}
	return nil
}

// indexSetupTimeout bounds archive index creation at startup.
const indexSetupTimeout = 15 * time.Second

func (i *Infrastructure) ensureArchiveIndex() error {
	ctx, cancel := context.WithTimeout(context.Background(), indexSetupTimeout)
	defer cancel()
	return i.archiveIndexer().EnsureIndex(ctx)
}

func (i *Infrastructure) archiveIndexer() *opensearch.Indexer {
	return opensearch.NewIndexer(i.OpenSearch, i.Config.Sources.Archive.Index, i.Logger)
}

// HealthChecks returns a probe per open connection.
func (i *Infrastructure) HealthChecks() []HealthCheck {
	var checks []HealthCheck
	if i.Postgres != nil {
		checks = append(checks, HealthCheck{Component: "postgres", Fn: i.Postgres.HealthCheck})
	}
	if i.Redis != nil {
		checks = append(checks, HealthCheck{Component: "redis", Fn: i.Redis.Ping})
	}
	if i.OpenSearch != nil {
		checks = append(checks, HealthCheck{Component: "opensearch", Fn: i.OpenSearch.Ping})
	}
	if i.MinIO != nil {
		checks = append(checks, HealthCheck{Component: "minio", Fn: func(ctx context.Context) error {
			_, err := i.MinIO.HealthCheck(ctx)
			return err
		}})
	}
	return checks
}

type closer struct {
	name string
	fn   func() error
}

// Close releases every open connection. The producer goes first so pending
// alerts are flushed while the rest is still up.
func (i *Infrastructure) Close() {
	var closers []closer
	if i.Producer != nil {
		closers = append(closers, closer{"kafka producer", i.Producer.Close})
	}
	if i.MinIO != nil {
		closers = append(closers, closer{"minio", i.MinIO.Close})
	}
	if i.OpenSearch != nil {
		closers = append(closers, closer{"opensearch", i.OpenSearch.Close})
	}
	if i.Redis != nil {
		closers = append(closers, closer{"redis", i.Redis.Close})
	}
	if i.Postgres != nil {
		closers = append(closers, closer{"postgres", i.Postgres.Close})
	}
	for _, c := range closers {
		if err := c.fn(); err != nil {
			i.Logger.Warn("close failed", logging.String("component", c.name), logging.Err(err))
		}
	}
}

// ReportSessions publishes the session count every interval until ctx ends.
func (i *Infrastructure) ReportSessions(ctx context.Context, interval time.Duration, count func() int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			i.Metrics.SetActiveSessions(count())
		}
	}
}
