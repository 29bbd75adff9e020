package bootstrap

import (
	"context"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/monitoring"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/protection"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/session"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/similarity"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/memory"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/postgres/repositories"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/redis"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/ledger"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/llm"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/notification"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/search/opensearch"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/sources"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/storage/minio"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/interfaces/chat"
)

// tickLockName keys the Redis lock that serialises scheduler ticks.
const tickLockName = "scheduler:tick"

// Monitoring is the scanning pipeline.
type Monitoring struct {
	Scorer     *similarity.Scorer
	Registry   *monitoring.Registry
	Aggregator *monitoring.Aggregator
	Scheduler  *monitoring.Scheduler
	Cache      monitoring.ScanCache
}

// RunCachePurger drops expired in-process cache entries every interval until
// ctx is done. Redis expires its own keys, so it returns at once there.
func (m *Monitoring) RunCachePurger(ctx context.Context, interval time.Duration, logger logging.Logger) {
	mc, ok := m.Cache.(*monitoring.MemoryCache)
	if !ok {
		return
	}
	mc.RunPurger(ctx, interval, logger)
}

// Repository returns the registry backend: PostgreSQL when connected,
// otherwise process memory.
func (i *Infrastructure) Repository() asset.Repository {
	if i.Postgres != nil {
		return repositories.NewPostgresAssetRepo(i.Postgres, i.Logger)
	}
	return memory.NewAssetRepository()
}

// ContentSources builds web, social and, when enabled, archive sources in
// that order. Sources without credentials are still registered and report
// not configured on every search.
func (i *Infrastructure) ContentSources() []monitoring.ContentSource {
	cfg := i.Config.Sources
	out := []monitoring.ContentSource{
		sources.NewGoogleSource(sources.GoogleConfig{
			APIKey:   cfg.Google.APIKey,
			EngineID: cfg.Google.EngineID,
			Endpoint: cfg.Google.Endpoint,
		}, i.Logger),
		sources.NewTwitterSource(sources.TwitterConfig{
			BearerToken:       cfg.Twitter.BearerToken,
			Endpoint:          cfg.Twitter.Endpoint,
			RequestsPerSecond: cfg.Twitter.RequestsPerSecond,
			Burst:             cfg.Twitter.Burst,
			Timeout:           cfg.Timeout,
		}, i.Logger),
	}
	if i.OpenSearch != nil {
		out = append(out, opensearch.NewArchiveSource(i.OpenSearch, cfg.Archive.Index, i.Logger))
	}
	return out
}

// ScanCache returns the Redis cache when configured, else an in-process one.
func (i *Infrastructure) ScanCache() monitoring.ScanCache {
	if i.Redis != nil && i.Config.Monitoring.CacheBackend == "redis" {
		return redis.NewScanCache(i.Redis, i.Logger)
	}
	return monitoring.NewMemoryCache()
}

// Archive returns the indexer that feeds the archive source, or nil when the
// archive is disabled.
func (i *Infrastructure) Archive() monitoring.CandidateArchive {
	if i.OpenSearch == nil {
		return nil
	}
	return i.archiveIndexer()
}

// TickGuard returns the distributed tick lock, or nil for a single replica.
func (i *Infrastructure) TickGuard() monitoring.TickGuard {
	if i.Redis == nil || !i.Config.Monitoring.DistributedLock {
		return nil
	}
	ttl := i.Config.Monitoring.Interval
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return redis.NewTickGuard(i.Redis, tickLockName, ttl, i.Logger)
}

// BuildMonitoring wires registry, aggregator and scheduler.
func (i *Infrastructure) BuildMonitoring() *Monitoring {
	mc := i.Config.Monitoring
	scorer := similarity.NewScorer(nil)
	registry := monitoring.NewRegistry(i.Repository(), i.Metrics, i.Logger)
	cache := i.ScanCache()
	agg := monitoring.NewAggregator(i.ContentSources(), scorer, cache, monitoring.AggregatorOptions{
		Threshold:  mc.SimilarityThreshold,
		MaxResults: mc.MaxResults,
		CacheTTL: map[asset.Source]time.Duration{
			asset.SourceWeb:     mc.WebCacheTTL,
			asset.SourceSocial:  mc.SocialCacheTTL,
			asset.SourceArchive: mc.ArchiveCacheTTL,
		},
		Archive: i.Archive(),
	}, i.Metrics, i.Logger)
	sched := monitoring.NewScheduler(registry, agg, monitoring.SchedulerOptions{
		Interval:    mc.Interval,
		Concurrency: mc.Concurrency,
		Guard:       i.TickGuard(),
	}, i.Metrics, i.Logger)
	return &Monitoring{Scorer: scorer, Registry: registry, Aggregator: agg, Scheduler: sched, Cache: cache}
}

// Ledger returns the registration service client. Without an endpoint it
// runs in mock mode.
func (i *Infrastructure) Ledger() (*ledger.Client, error) {
	lc := i.Config.Ledger
	return ledger.NewClient(ledger.Config{
		Endpoint: lc.Endpoint,
		APIKey:   lc.APIKey,
		Network:  lc.Network,
		Timeout:  lc.Timeout,
		MockMode: lc.MockMode || lc.Endpoint == "",
	}, i.Metrics, i.Logger)
}

// Generator returns the LLM client, or nil when it has no credentials so
// enforcement falls back to templates.
func (i *Infrastructure) Generator() enforcement.MessageGenerator {
	lc := i.Config.LLM
	c := llm.NewClient(llm.Config{
		Endpoint:    lc.Endpoint,
		APIKey:      lc.APIKey,
		Model:       lc.Model,
		Temperature: lc.Temperature,
		MaxTokens:   lc.MaxTokens,
		Timeout:     lc.Timeout,
	}, i.Metrics, i.Logger)
	if !c.Configured() {
		i.Logger.Info("llm not configured, enforcement messages use templates")
		return nil
	}
	return c
}

// MetadataStore returns the MinIO metadata repository, or nil when object
// storage is disabled.
func (i *Infrastructure) MetadataStore() asset.MetadataStore {
	if i.MinIO == nil {
		return nil
	}
	return minio.NewMetadataRepository(i.MinIO, i.Logger)
}

// Notifiers returns the alert sinks. With Kafka enabled alerts are published
// and the worker relays them to the webhook; otherwise the webhook is called
// directly.
func (i *Infrastructure) Notifiers() []enforcement.Notifier {
	ac := i.Config.Alerts
	var out []enforcement.Notifier
	switch {
	case i.Producer != nil:
		out = append(out, notification.NewKafkaNotifier(i.Producer, ac.KafkaTopic))
	case ac.WebhookURL != "":
		out = append(out, notification.NewWebhookNotifier(ac.WebhookURL, ac.Timeout))
	}
	for n := range out {
		out[n] = notification.Instrument(out[n], i.Metrics)
	}
	return out
}

// WebhookNotifier returns the instrumented webhook sink, or nil without a URL.
func (i *Infrastructure) WebhookNotifier() enforcement.Notifier {
	ac := i.Config.Alerts
	if ac.WebhookURL == "" {
		return nil
	}
	return notification.Instrument(notification.NewWebhookNotifier(ac.WebhookURL, ac.Timeout), i.Metrics)
}

// Services is everything the chat and HTTP surfaces call into.
type Services struct {
	*Monitoring
	Sessions    *session.MemoryStore
	Protection  protection.Service
	Enforcement enforcement.Service
	Dispatcher  *chat.Dispatcher
}

// BuildServices wires the full application on top of the infrastructure.
func (i *Infrastructure) BuildServices() (*Services, error) {
	mon := i.BuildMonitoring()

	led, err := i.Ledger()
	if err != nil {
		return nil, err
	}

	tone, ok := enforcement.ParseTone(i.Config.Enforcement.DefaultTone)
	if !ok {
		i.Logger.Warn("unknown default tone, using friendly",
			logging.String("tone", i.Config.Enforcement.DefaultTone))
		tone = enforcement.ToneFriendly
	}

	enforce := enforcement.NewService(mon.Registry, led, i.Generator(), i.Notifiers(), enforcement.Options{
		DefaultTone:     tone,
		DisputeFallback: i.Config.Enforcement.DisputeFallback,
	}, i.Metrics, i.Logger)
	protect := protection.NewService(led, i.MetadataStore(), mon.Registry, mon.Aggregator, i.Logger)

	store := session.NewMemoryStore(i.Config.Session.IdleTimeout, i.Logger)
	machine := session.NewMachine(store, i.Logger)

	return &Services{
		Monitoring:  mon,
		Sessions:    store,
		Protection:  protect,
		Enforcement: enforce,
		Dispatcher:  chat.NewDispatcher(machine, protect, enforce, i.Logger),
	}, nil
}
