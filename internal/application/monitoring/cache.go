package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

// ScanCache stores raw source results per (source, query). Entries are never
// scored, so assets sharing a query each score the hits against their own
// reference text. A failing cache only costs a refetch.
type ScanCache interface {
	Get(ctx context.Context, key string) ([]asset.Candidate, bool, error)
	Set(ctx context.Context, key string, candidates []asset.Candidate, ttl time.Duration) error
}

// CacheKey is the key under which a source's results for query are stored.
func CacheKey(source asset.Source, query string) string {
	return string(source) + ":" + query
}

// DefaultPurgeInterval is how often RunPurger drops expired entries when no
// interval is given.
const DefaultPurgeInterval = time.Minute

type memoryEntry struct {
	candidates []asset.Candidate
	expiresAt  time.Time
}

// MemoryCache is an in-process ScanCache with per-entry expiry. Expired
// entries are dropped lazily on read and by Purge.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryCache returns an empty MemoryCache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), now: time.Now}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]asset.Candidate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]asset.Candidate(nil), e.candidates...), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, candidates []asset.Candidate, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{
		candidates: append([]asset.Candidate(nil), candidates...),
		expiresAt:  c.now().Add(ttl),
	}
	return nil
}

// Purge removes expired entries and returns how many were dropped.
func (c *MemoryCache) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// RunPurger purges every interval until ctx is done.
func (c *MemoryCache) RunPurger(ctx context.Context, interval time.Duration, logger logging.Logger) {
	if interval <= 0 {
		interval = DefaultPurgeInterval
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Purge(); n > 0 {
				logger.Debug("dropped expired scan cache entries", logging.Int("count", n))
			}
		}
	}
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
