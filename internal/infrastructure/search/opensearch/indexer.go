package opensearch

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// archiveMapping is the index mapping of Page.
const archiveMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 0},
  "mappings": {
    "properties": {
      "url":          {"type": "keyword"},
      "source":       {"type": "keyword"},
      "title":        {"type": "text"},
      "content":      {"type": "text"},
      "author":       {"type": "keyword"},
      "image_url":    {"type": "keyword", "index": false},
      "engagement":   {"type": "long"},
      "published_at": {"type": "date"},
      "crawled_at":   {"type": "date"}
    }
  }
}`

// Indexer writes pages into the archive index. The scanner hands it every
// fresh web and social hit, which is how the archive source gets its content.
type Indexer struct {
	client *Client
	index  string
	logger logging.Logger
	now    func() time.Time
}

// NewIndexer writes to index through client.
func NewIndexer(client *Client, index string, logger logging.Logger) *Indexer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Indexer{client: client, index: index, logger: logger, now: time.Now}
}

// EnsureIndex creates the index with its mapping when it does not exist.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	exists := opensearchapi.IndicesExistsRequest{Index: []string{i.index}}
	resp, err := exists.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "index exists check failed")
	}
	drain(resp)
	if resp.StatusCode == http.StatusOK {
		return nil
	}

	create := opensearchapi.IndicesCreateRequest{Index: i.index, Body: strings.NewReader(archiveMapping)}
	resp, err = create.Do(ctx, i.client.GetClient())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "create index failed")
	}
	defer drain(resp)
	if resp.IsError() && resp.StatusCode != http.StatusBadRequest {
		return errorForStatus(resp)
	}
	// 400 here is resource_already_exists from a concurrent creator.
	i.logger.Info("archive index ready", logging.String("index", i.index))
	return nil
}

// Archive stores search hits from source as pages.
func (i *Indexer) Archive(ctx context.Context, source asset.Source, candidates []asset.Candidate) error {
	pages := make([]Page, 0, len(candidates))
	for _, c := range candidates {
		if c.URL == "" {
			continue
		}
		pages = append(pages, Page{
			URL:         c.URL,
			Source:      string(source),
			Content:     c.Content,
			Author:      c.Author,
			ImageURL:    c.ImageURL,
			Engagement:  c.Engagement,
			PublishedAt: c.PublishedAt,
		})
	}
	_, err := i.IndexPages(ctx, pages)
	return err
}

// IndexPages upserts pages in one bulk request and returns how many were
// written. Document ids derive from the URL so recrawls replace the earlier
// copy. Pages without a URL are rejected.
func (i *Indexer) IndexPages(ctx context.Context, pages []Page) (int, error) {
	if len(pages) == 0 {
		return 0, nil
	}
	crawled := i.now().UTC()

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range pages {
		if p.URL == "" {
			return 0, errors.New(errors.ErrCodeValidation, "page url required")
		}
		if p.CrawledAt.IsZero() {
			p.CrawledAt = crawled
		}
		action := map[string]map[string]string{"index": {"_id": DocumentID(p.URL)}}
		if err := enc.Encode(action); err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode bulk action")
		}
		if err := enc.Encode(p); err != nil {
			return 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode page")
		}
	}

	req := opensearchapi.BulkRequest{Index: i.index, Body: &buf}
	resp, err := req.Do(ctx, i.client.GetClient())
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "bulk index request failed")
	}
	defer drain(resp)
	if resp.IsError() {
		return 0, errorForStatus(resp)
	}

	var result struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDataSourceParseError, "failed to decode bulk response")
	}

	written, failed := 0, ""
	for _, item := range result.Items {
		for _, op := range item {
			if op.Status >= http.StatusMultipleChoices {
				if failed == "" {
					failed = op.Error.Type + ": " + op.Error.Reason
				}
				continue
			}
			written++
		}
	}
	if result.Errors || failed != "" {
		return written, errors.Newf(errors.ErrCodeDataSourceUnavailable, "%d of %d pages not archived", len(pages)-written, len(pages)).WithDetail(failed)
	}
	i.logger.Debug("archived pages", logging.String("index", i.index), logging.Int("count", written))
	return written, nil
}

// DocumentID is the hex SHA-256 of url.
func DocumentID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}
