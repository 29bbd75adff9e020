package monitoring

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/memory"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
)

// fakeSource returns canned candidates or an error and counts calls.
type fakeSource struct {
	name     asset.Source
	results  []asset.Candidate
	err      error
	panicMsg string
	// failQuery makes Search fail only for queries containing the key.
	failQuery map[string]error
	calls     atomic.Int32
	mu        sync.Mutex
	queries   []string
	delay     time.Duration
}

func (f *fakeSource) Name() asset.Source { return f.name }

func (f *fakeSource) Search(ctx context.Context, query string, maxResults int) ([]asset.Candidate, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.err != nil {
		return nil, f.err
	}
	for substr, err := range f.failQuery {
		if strings.Contains(query, substr) {
			return nil, err
		}
	}
	if len(f.results) > maxResults {
		return f.results[:maxResults], nil
	}
	return f.results, nil
}

func (f *fakeSource) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

type archivedBatch struct {
	source     asset.Source
	candidates []asset.Candidate
}

// recordingArchive keeps every batch it is handed.
type recordingArchive struct {
	mu      sync.Mutex
	batches []archivedBatch
	err     error
}

func (r *recordingArchive) Archive(_ context.Context, source asset.Source, candidates []asset.Candidate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, archivedBatch{source: source, candidates: candidates})
	return r.err
}

func (r *recordingArchive) snapshot() []archivedBatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]archivedBatch(nil), r.batches...)
}

// recordingMetrics counts calls for assertions.
type recordingMetrics struct {
	mu         sync.Mutex
	cacheHits  int
	cacheMiss  int
	matches    int
	ticks      int
	lastSize   int
	scanErrors int
}

func (m *recordingMetrics) ObserveSourceScan(_ string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.scanErrors++
	}
}

func (m *recordingMetrics) IncCacheLookup(_ string, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.cacheHits++
	} else {
		m.cacheMiss++
	}
}

func (m *recordingMetrics) AddMatches(_ string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matches += n
}

func (m *recordingMetrics) ObserveTick(time.Duration, int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
}

func (m *recordingMetrics) SetRegistrySize(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastSize = n
}

func newTestRegistry() *Registry {
	return NewRegistry(memory.NewAssetRepository(), nil, logging.NewNopLogger())
}

func sigmaAsset(id, owner string) *asset.IPAsset {
	return &asset.IPAsset{
		ID:           id,
		OwnerID:      owner,
		Name:         "Sigma Music Remix",
		Description:  "Epic electronic music remix with heavy bass drops",
		RegisteredAt: time.Now(),
	}
}

var (
	repostCandidate = asset.Candidate{
		Content: "Epic electronic music remix with heavy bass drops - check it out!",
		URL:     "https://twitter.com/i/web/status/1",
	}
	unrelatedCandidate = asset.Candidate{
		Content: "Cooking pasta tutorial for beginners",
		URL:     "https://example.com/pasta",
	}
	exactCandidate = asset.Candidate{
		Content: "Sigma Music Remix Epic electronic music remix with heavy bass drops",
		URL:     "https://example.com/exact",
	}
)
