package opensearch

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := newClient(ClientConfig{Addresses: []string{srv.URL}, RequestTimeout: time.Second}, nil)
	require.NoError(t, err)
	return c
}

func TestValidateConfig(t *testing.T) {
	assert.Equal(t, ErrInvalidConfig, ValidateConfig(ClientConfig{}))
	assert.Error(t, ValidateConfig(ClientConfig{Addresses: []string{"http://x"}, MaxRetries: -1}))
	assert.Error(t, ValidateConfig(ClientConfig{Addresses: []string{"http://x"}, RequestTimeout: -time.Second}))
	assert.NoError(t, ValidateConfig(ClientConfig{Addresses: []string{"http://x"}}))
}

func TestPing_TracksHealth(t *testing.T) {
	var status atomic.Int32
	status.Store(http.StatusOK)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	})

	require.NoError(t, c.Ping(context.Background()))
	assert.True(t, c.IsHealthy())

	status.Store(http.StatusServiceUnavailable)
	assert.Error(t, c.Ping(context.Background()))
	assert.False(t, c.IsHealthy())
	assert.NoError(t, c.Close())
}

func TestNewClient_PingFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewClient(ClientConfig{Addresses: []string{srv.URL}, RequestTimeout: time.Second}, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDataSourceUnavailable))
}

func TestArchiveSource_Search(t *testing.T) {
	var gotBody map[string]interface{}
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"hits": {"hits": [
				{"_id": "a", "_source": {"url": "https://blog.example/p1", "title": "Neon Fox", "content": "a glowing fox", "engagement": 12, "author": "alice"}},
				{"_id": "b", "_source": {"url": "https://blog.example/p2", "content": "only body"}}
			]}
		}`))
	})

	src := NewArchiveSource(c, "crawled-pages", nil)
	assert.Equal(t, asset.SourceArchive, src.Name())

	got, err := src.Search(context.Background(), "neon fox", 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Neon Fox a glowing fox", got[0].Content)
	assert.Equal(t, int64(12), got[0].Engagement)
	assert.Equal(t, "alice", got[0].Author)
	assert.Equal(t, "only body", got[1].Content)

	assert.Equal(t, "/crawled-pages/_search", gotPath)
	assert.EqualValues(t, 5, gotBody["size"])
	mm := gotBody["query"].(map[string]interface{})["multi_match"].(map[string]interface{})
	assert.Equal(t, "neon fox", mm["query"])
}

func TestArchiveSource_ErrorMapping(t *testing.T) {
	cases := []struct {
		status int
		code   errors.ErrorCode
	}{
		{http.StatusTooManyRequests, errors.ErrCodeDataSourceRateLimited},
		{http.StatusForbidden, errors.ErrCodeDataSourceAuthFailed},
		{http.StatusNotFound, errors.ErrCodeDataSourceNotConfigured},
		{http.StatusInternalServerError, errors.ErrCodeDataSourceUnavailable},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(http.StatusText(tc.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"type":"x_exception","reason":"because"}}`))
			})
			_, err := NewArchiveSource(c, "idx", nil).Search(context.Background(), "q", 1)
			require.Error(t, err)
			assert.True(t, errors.IsCode(err, tc.code), err.Error())
			assert.Contains(t, err.Error(), "x_exception: because")
		})
	}
}

func TestArchiveSource_BadJSONAndEdgeCases(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"hits":`))
	})
	_, err := NewArchiveSource(c, "idx", nil).Search(context.Background(), "q", 1)
	assert.True(t, errors.IsCode(err, errors.ErrCodeDataSourceParseError))

	got, err := NewArchiveSource(c, "idx", nil).Search(context.Background(), "", 1)
	assert.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewArchiveSource(nil, "idx", nil).Search(context.Background(), "q", 1)
	assert.True(t, errors.IsNotConfigured(err))
}

func TestIndexer_EnsureIndexCreatesWhenMissing(t *testing.T) {
	var mu sync.Mutex
	var calls []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls = append(calls, r.Method+" "+r.URL.Path)
		mu.Unlock()
		switch r.Method {
		case http.MethodHead:
			w.WriteHeader(http.StatusNotFound)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			assert.Contains(t, string(body), `"crawled_at"`)
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		}
	})

	require.NoError(t, NewIndexer(c, "pages", nil).EnsureIndex(context.Background()))
	assert.Equal(t, []string{"HEAD /pages", "PUT /pages"}, calls)
}

func TestIndexer_EnsureIndexExisting(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusOK)
	})
	require.NoError(t, NewIndexer(c, "pages", nil).EnsureIndex(context.Background()))
}

func decodeBulk(t *testing.T, r *http.Request) []map[string]interface{} {
	t.Helper()
	var lines []map[string]interface{}
	dec := json.NewDecoder(r.Body)
	for dec.More() {
		var m map[string]interface{}
		require.NoError(t, dec.Decode(&m))
		lines = append(lines, m)
	}
	return lines
}

func TestIndexer_ArchiveWritesBulk(t *testing.T) {
	var gotPath string
	var lines []map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		lines = decodeBulk(t, r)
		_, _ = w.Write([]byte(`{"errors":false,"items":[{"index":{"status":201}}]}`))
	})

	idx := NewIndexer(c, "pages", nil)
	idx.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	err := idx.Archive(context.Background(), asset.SourceSocial, []asset.Candidate{
		{Content: "neon fox repost", URL: "https://twitter.com/i/web/status/9", Author: "bob", Engagement: 7},
		{Content: "no url, skipped"},
	})
	require.NoError(t, err)
	assert.Equal(t, "/pages/_bulk", gotPath)
	require.Len(t, lines, 2)

	action := lines[0]["index"].(map[string]interface{})
	assert.Equal(t, DocumentID("https://twitter.com/i/web/status/9"), action["_id"])
	doc := lines[1]
	assert.Equal(t, "social", doc["source"])
	assert.Equal(t, "neon fox repost", doc["content"])
	assert.Equal(t, "bob", doc["author"])
	assert.EqualValues(t, 7, doc["engagement"])
	assert.Equal(t, "2026-01-02T03:04:05Z", doc["crawled_at"])
}

func TestIndexer_ArchivedPagesAreSearchable(t *testing.T) {
	var mu sync.Mutex
	var stored []Page
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if strings.HasSuffix(r.URL.Path, "/_bulk") {
			lines := decodeBulk(t, r)
			for i := 1; i < len(lines); i += 2 {
				raw, _ := json.Marshal(lines[i])
				var p Page
				require.NoError(t, json.Unmarshal(raw, &p))
				stored = append(stored, p)
			}
			_, _ = w.Write([]byte(`{"errors":false,"items":[]}`))
			return
		}
		hits := make([]map[string]interface{}, 0, len(stored))
		for _, p := range stored {
			hits = append(hits, map[string]interface{}{"_id": DocumentID(p.URL), "_source": p})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})
	})

	hit := asset.Candidate{Content: "Sigma Music Remix full track", URL: "https://example.com/copy"}
	require.NoError(t, NewIndexer(c, "pages", nil).Archive(context.Background(), asset.SourceWeb, []asset.Candidate{hit}))

	got, err := NewArchiveSource(c, "pages", nil).Search(context.Background(), "Sigma Music Remix", 5)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, hit.URL, got[0].URL)
	assert.Equal(t, hit.Content, got[0].Content)
}

func TestIndexer_IndexPagesItemFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":true,"items":[
			{"index":{"status":201}},
			{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad date"}}}
		]}`))
	})

	n, err := NewIndexer(c, "pages", nil).IndexPages(context.Background(), []Page{
		{URL: "https://a.example"}, {URL: "https://b.example"},
	})
	require.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Contains(t, err.Error(), "mapper_parsing_exception: bad date")
}

func TestIndexer_IndexPagesValidation(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	idx := NewIndexer(c, "pages", nil)

	n, err := idx.IndexPages(context.Background(), nil)
	assert.NoError(t, err)
	assert.Zero(t, n)

	_, err = idx.IndexPages(context.Background(), []Page{{Title: "no url"}})
	assert.True(t, errors.IsValidation(err))

	assert.NoError(t, idx.Archive(context.Background(), asset.SourceWeb, []asset.Candidate{{Content: "x"}}))
	assert.Zero(t, calls.Load())
	assert.Len(t, DocumentID("https://a.example"), 64)
}
