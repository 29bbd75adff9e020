package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// Page is one crawled document in the archive index.
type Page struct {
	URL         string    `json:"url"`
	Source      string    `json:"source,omitempty"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	Author      string    `json:"author,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Engagement  int64     `json:"engagement"`
	PublishedAt time.Time `json:"published_at,omitempty"`
	CrawledAt   time.Time `json:"crawled_at"`
}

// text is what the scanner scores: title and body together.
func (p Page) text() string {
	if p.Title == "" {
		return p.Content
	}
	if p.Content == "" {
		return p.Title
	}
	return p.Title + " " + p.Content
}

// ArchiveSource searches the archive index. It satisfies the scanner's
// ContentSource contract.
type ArchiveSource struct {
	client *Client
	index  string
	logger logging.Logger
}

// NewArchiveSource searches index through client.
func NewArchiveSource(client *Client, index string, logger logging.Logger) *ArchiveSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &ArchiveSource{client: client, index: index, logger: logger}
}

func (s *ArchiveSource) Name() asset.Source { return asset.SourceArchive }

// Search runs a multi_match over title and content.
func (s *ArchiveSource) Search(ctx context.Context, query string, maxResults int) ([]asset.Candidate, error) {
	if s.client == nil {
		return nil, errors.NotConfigured("archive index not configured")
	}
	if query == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 10
	}

	body, err := json.Marshal(map[string]interface{}{
		"size": maxResults,
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  query,
				"fields": []string{"title^2", "content"},
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode archive query")
	}

	req := opensearchapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}
	resp, err := req.Do(ctx, s.client.GetClient())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "archive search failed")
	}
	defer drain(resp)

	if resp.IsError() {
		return nil, errorForStatus(resp)
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string `json:"_id"`
				Source Page   `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceParseError, "failed to decode archive response")
	}

	out := make([]asset.Candidate, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		p := h.Source
		out = append(out, asset.Candidate{
			Content:     p.text(),
			URL:         p.URL,
			Engagement:  p.Engagement,
			ImageURL:    p.ImageURL,
			Author:      p.Author,
			PublishedAt: p.PublishedAt,
		})
	}
	s.logger.Debug("archive search", logging.String("index", s.index), logging.Int("hits", len(out)))
	return out, nil
}

func errorForStatus(resp *opensearchapi.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	var errResp struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}
	detail := string(raw)
	if json.Unmarshal(raw, &errResp) == nil && errResp.Error.Reason != "" {
		detail = errResp.Error.Type + ": " + errResp.Error.Reason
	}

	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		return errors.New(errors.ErrCodeDataSourceRateLimited, "archive rate limited").WithDetail(detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.New(errors.ErrCodeDataSourceAuthFailed, "archive rejected credentials").WithDetail(detail)
	case http.StatusNotFound:
		return errors.New(errors.ErrCodeDataSourceNotConfigured, "archive index missing").WithDetail(detail)
	default:
		return errors.Newf(errors.ErrCodeDataSourceUnavailable, "archive returned status %d", resp.StatusCode).WithDetail(detail)
	}
}
