package monitoring

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/similarity"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// ContentSource is an external place to look for look-alike content.
// Search returns an ErrCodeDataSourceRateLimited error when throttled and an
// ErrCodeDataSourceNotConfigured error when credentials are missing.
type ContentSource interface {
	Name() asset.Source
	Search(ctx context.Context, query string, maxResults int) ([]asset.Candidate, error)
}

// Scorer scores a candidate text against a reference text.
type Scorer interface {
	Score(reference, candidate string) float64
}

// CandidateArchive keeps fetched hits so the archive source can find them on
// later scans.
type CandidateArchive interface {
	Archive(ctx context.Context, source asset.Source, candidates []asset.Candidate) error
}

// AggregatorOptions tune the aggregator. Zero values select defaults.
type AggregatorOptions struct {
	Threshold  float64
	MaxResults int
	CacheTTL   map[asset.Source]time.Duration
	// Archive receives fresh web and social hits. Nil disables archiving.
	Archive CandidateArchive
}

const (
	defaultThreshold  = 0.80
	defaultMaxResults = 10
	defaultCacheTTL   = 10 * time.Minute
)

// Aggregator fans a scan out over every content source, scores candidates
// against the asset and keeps those at or above the threshold.
type Aggregator struct {
	sources    []ContentSource
	scorer     Scorer
	cache      ScanCache
	archive    CandidateArchive
	maxResults int
	ttl        map[asset.Source]time.Duration
	threshold  atomic.Uint64
	flight     singleflight.Group
	metrics    Metrics
	logger     logging.Logger
	now        func() time.Time
}

// NewAggregator builds an Aggregator. Sources are scanned and reported in the
// order given. cache and metrics may be nil.
func NewAggregator(sources []ContentSource, scorer Scorer, cache ScanCache, opts AggregatorOptions, metrics Metrics, logger logging.Logger) *Aggregator {
	if scorer == nil {
		scorer = similarity.NewScorer(nil)
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if opts.MaxResults <= 0 {
		opts.MaxResults = defaultMaxResults
	}
	if opts.Threshold <= 0 {
		opts.Threshold = defaultThreshold
	}
	ttl := map[asset.Source]time.Duration{
		asset.SourceWeb:     10 * time.Minute,
		asset.SourceSocial:  5 * time.Minute,
		asset.SourceArchive: defaultCacheTTL,
	}
	for s, d := range opts.CacheTTL {
		ttl[s] = d
	}

	a := &Aggregator{
		sources:    sources,
		scorer:     scorer,
		cache:      cache,
		archive:    opts.Archive,
		maxResults: opts.MaxResults,
		ttl:        ttl,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
	a.SetThreshold(opts.Threshold)
	return a
}

// Threshold returns the current similarity threshold.
func (a *Aggregator) Threshold() float64 {
	return math.Float64frombits(a.threshold.Load())
}

// SetThreshold changes the threshold for subsequent scans. Values outside
// (0, 1] are ignored.
func (a *Aggregator) SetThreshold(t float64) {
	if t <= 0 || t > 1 {
		return
	}
	a.threshold.Store(math.Float64bits(t))
}

// Sources returns the configured source names in scan order.
func (a *Aggregator) Sources() []asset.Source {
	out := make([]asset.Source, 0, len(a.sources))
	for _, s := range a.sources {
		out = append(out, s.Name())
	}
	return out
}

// ScanAll queries every source concurrently and concatenates their results
// in source order. A failing source contributes nothing.
func (a *Aggregator) ScanAll(ctx context.Context, ip *asset.IPAsset) []asset.ViolationRecord {
	perSource := make([][]asset.ViolationRecord, len(a.sources))

	var g errgroup.Group
	for i, src := range a.sources {
		i, src := i, src
		g.Go(func() error {
			records, err := a.scan(ctx, ip, src)
			if err != nil {
				a.logger.Warn("source scan failed",
					logging.String("source", string(src.Name())),
					logging.String("ip_id", ip.ID),
					logging.Err(err))
				return nil
			}
			perSource[i] = records
			return nil
		})
	}
	_ = g.Wait()

	var out []asset.ViolationRecord
	for _, records := range perSource {
		out = append(out, records...)
	}
	return out
}

// ScanSource scans a single named source. Rate limiting and missing
// credentials yield an empty result; other failures are returned.
func (a *Aggregator) ScanSource(ctx context.Context, ip *asset.IPAsset, name asset.Source) ([]asset.ViolationRecord, error) {
	for _, src := range a.sources {
		if src.Name() == name {
			return a.scan(ctx, ip, src)
		}
	}
	return nil, errors.Newf(errors.ErrCodeDataSourceNotConfigured, "content source %q is not configured", name)
}

func (a *Aggregator) scan(ctx context.Context, ip *asset.IPAsset, src ContentSource) (records []asset.ViolationRecord, err error) {
	name := src.Name()
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = errors.Newf(errors.ErrCodeInternal, "content source %s panicked: %v", name, r)
		}
	}()

	query := asset.QueryFor(name, ip)
	key := CacheKey(name, query)

	candidates, ok := a.cacheGet(ctx, name, key)
	if !ok {
		v, err, _ := a.flight.Do(key, func() (interface{}, error) {
			return a.fetch(ctx, src, key, query)
		})
		if err != nil {
			switch {
			case errors.IsRateLimited(err):
				a.logger.Warn("content source rate limited, returning no results",
					logging.String("source", string(name)))
				return nil, nil
			case errors.IsNotConfigured(err):
				a.logger.Warn("content source credentials missing, returning no results",
					logging.String("source", string(name)))
				return nil, nil
			}
			return nil, errors.Wrap(err, errors.CodeUnknown, fmt.Sprintf("%s search failed", name))
		}
		candidates = v.([]asset.Candidate)
	}

	found := a.score(ip, name, candidates, a.Threshold())
	a.metrics.AddMatches(string(name), len(found))
	return found, nil
}

// fetch runs one search, caches the raw hits and hands fresh web and social
// hits to the archive. The returned slice is shared by every caller waiting
// on the same key and must not be modified.
func (a *Aggregator) fetch(ctx context.Context, src ContentSource, key, query string) ([]asset.Candidate, error) {
	name := src.Name()
	start := time.Now()
	candidates, err := src.Search(ctx, query, a.maxResults)
	a.metrics.ObserveSourceScan(string(name), time.Since(start), err)
	if err != nil {
		return nil, err
	}
	a.cacheSet(ctx, name, key, candidates)
	if a.archive != nil && name != asset.SourceArchive && len(candidates) > 0 {
		if err := a.archive.Archive(ctx, name, candidates); err != nil {
			a.logger.Warn("archiving search results failed",
				logging.String("source", string(name)), logging.Err(err))
		}
	}
	return candidates, nil
}

func (a *Aggregator) score(ip *asset.IPAsset, name asset.Source, candidates []asset.Candidate, threshold float64) []asset.ViolationRecord {
	reference := ip.ReferenceText()
	now := a.now().UTC()
	found := make([]asset.ViolationRecord, 0, len(candidates))
	for _, c := range candidates {
		sim := a.scorer.Score(reference, c.Content)
		if sim < threshold {
			continue
		}
		found = append(found, asset.ViolationRecord{
			Source:       name,
			Platform:     name.Platform(),
			Content:      c.Content,
			URL:          c.URL,
			Similarity:   sim,
			Engagement:   c.Engagement,
			ImageURL:     c.ImageURL,
			Author:       c.Author,
			PublishedAt:  c.PublishedAt,
			DiscoveredAt: now,
		})
	}
	sortBySimilarity(found)
	return found
}

func (a *Aggregator) cacheGet(ctx context.Context, name asset.Source, key string) ([]asset.Candidate, bool) {
	if a.cache == nil {
		return nil, false
	}
	candidates, ok, err := a.cache.Get(ctx, key)
	if err != nil {
		a.logger.Warn("scan cache read failed", logging.String("key", key), logging.Err(err))
		return nil, false
	}
	a.metrics.IncCacheLookup(string(name), ok)
	return candidates, ok
}

func (a *Aggregator) cacheSet(ctx context.Context, name asset.Source, key string, candidates []asset.Candidate) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Set(ctx, key, candidates, a.ttl[name]); err != nil {
		a.logger.Warn("scan cache write failed", logging.String("key", key), logging.Err(err))
	}
}

func sortBySimilarity(records []asset.ViolationRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Similarity > records[j].Similarity
	})
}
