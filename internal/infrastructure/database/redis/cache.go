package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// DefaultScanPrefix namespaces scan cache keys.
const DefaultScanPrefix = "ipw:scan:"

// ScanCache stores raw source results as JSON with a per-key TTL.
type ScanCache struct {
	client *Client
	logger logging.Logger
	prefix string
}

// CacheOption configures a ScanCache.
type CacheOption func(*ScanCache)

// WithPrefix overrides DefaultScanPrefix.
func WithPrefix(prefix string) CacheOption {
	return func(c *ScanCache) { c.prefix = prefix }
}

// NewScanCache builds a cache over client.
func NewScanCache(client *Client, log logging.Logger, opts ...CacheOption) *ScanCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &ScanCache{client: client, logger: log, prefix: DefaultScanPrefix}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *ScanCache) fullKey(key string) string {
	return c.prefix + key
}

// Get returns the cached candidates. A missing key is a miss, not an error.
func (c *ScanCache) Get(ctx context.Context, key string) ([]asset.Candidate, bool, error) {
	data, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read scan cache")
	}
	var candidates []asset.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		c.logger.Warn("dropping corrupt scan cache entry", logging.String("key", key), logging.Err(err))
		_ = c.client.Del(ctx, c.fullKey(key)).Err()
		return nil, false, nil
	}
	return candidates, true, nil
}

// Set stores candidates for ttl. A non-positive ttl stores nothing.
func (c *ScanCache) Set(ctx context.Context, key string, candidates []asset.Candidate, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	if candidates == nil {
		candidates = []asset.Candidate{}
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode scan results")
	}
	if err := c.client.Set(ctx, c.fullKey(key), data, ttl).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write scan cache")
	}
	return nil
}

// Invalidate drops the entries under keys.
func (c *ScanCache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.fullKey(k)
	}
	return c.client.Del(ctx, full...).Err()
}
