package sources

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"google.golang.org/api/customsearch/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// googleMaxResults is the most results Custom Search returns per call.
const googleMaxResults = 10

// GoogleConfig holds Custom Search credentials.
type GoogleConfig struct {
	APIKey   string
	EngineID string
	// Endpoint overrides the API base path.
	Endpoint string
}

// GoogleSource searches the web through Google Custom Search.
type GoogleSource struct {
	cfg    GoogleConfig
	logger logging.Logger

	once    sync.Once
	svc     *customsearch.Service
	initErr error
}

// NewGoogleSource builds the source. The service is created lazily so a
// missing key only fails Search.
func NewGoogleSource(cfg GoogleConfig, logger logging.Logger) *GoogleSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &GoogleSource{cfg: cfg, logger: logger}
}

func (g *GoogleSource) Name() asset.Source { return asset.SourceWeb }

func (g *GoogleSource) service(ctx context.Context) (*customsearch.Service, error) {
	g.once.Do(func() {
		opts := []option.ClientOption{option.WithAPIKey(g.cfg.APIKey)}
		if g.cfg.Endpoint != "" {
			opts = append(opts, option.WithEndpoint(g.cfg.Endpoint))
		}
		g.svc, g.initErr = customsearch.NewService(ctx, opts...)
	})
	return g.svc, g.initErr
}

// Search returns up to maxResults (capped at 10) web pages for query.
func (g *GoogleSource) Search(ctx context.Context, query string, maxResults int) ([]asset.Candidate, error) {
	if g.cfg.APIKey == "" || g.cfg.EngineID == "" {
		return nil, errors.NotConfigured("google custom search key or engine id not set")
	}
	if maxResults <= 0 || maxResults > googleMaxResults {
		maxResults = googleMaxResults
	}
	svc, err := g.service(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceNotConfigured, "failed to create custom search service")
	}

	res, err := svc.Cse.List().Cx(g.cfg.EngineID).Q(query).Num(int64(maxResults)).Context(ctx).Do()
	if err != nil {
		return nil, googleError(err)
	}

	out := make([]asset.Candidate, 0, len(res.Items))
	for _, item := range res.Items {
		if item == nil {
			continue
		}
		snippet := StripHTML(item.HtmlSnippet)
		if snippet == "" {
			snippet = item.Snippet
		}
		out = append(out, asset.Candidate{
			Content:  strings.TrimSpace(item.Title + " " + snippet),
			URL:      item.Link,
			ImageURL: pagemapImage(item.Pagemap),
		})
	}
	g.logger.Debug("google search", logging.String("query", query), logging.Int("results", len(out)))
	return out, nil
}

func googleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusTooManyRequests:
			return errors.Wrap(err, errors.ErrCodeDataSourceRateLimited, "google custom search rate limited")
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(err, errors.ErrCodeDataSourceAuthFailed, "google custom search rejected the key")
		}
	}
	return errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "google custom search failed")
}

// pagemapImage returns pagemap.cse_image[0].src.
func pagemapImage(raw googleapi.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var pm struct {
		CSEImage []struct {
			Src string `json:"src"`
		} `json:"cse_image"`
	}
	if err := json.Unmarshal(raw, &pm); err != nil || len(pm.CSEImage) == 0 {
		return ""
	}
	return pm.CSEImage[0].Src
}

// StripHTML returns the text content of an HTML fragment with runs of
// whitespace collapsed.
func StripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
