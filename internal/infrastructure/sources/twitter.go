package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// The recent search endpoint accepts max_results in [10, 100].
const (
	twitterMinResults = 10
	twitterMaxResults = 100
)

// TwitterConfig holds recent-search credentials and limits.
type TwitterConfig struct {
	BearerToken       string
	Endpoint          string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
}

// TwitterSource searches recent posts on X.
type TwitterSource struct {
	endpoint string
	client   *http.Client
	limiter  *RateLimiter
	logger   logging.Logger
}

// NewTwitterSource builds the source. An empty token leaves the client nil
// and every Search reports not configured.
func NewTwitterSource(cfg TwitterConfig, logger logging.Logger) *TwitterSource {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = "https://api.twitter.com/2/tweets/search/recent"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	s := &TwitterSource{
		endpoint: cfg.Endpoint,
		limiter:  NewRateLimiter(cfg.RequestsPerSecond, cfg.Burst),
		logger:   logger,
	}
	if cfg.BearerToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken, TokenType: "Bearer"})
		s.client = oauth2.NewClient(context.Background(), ts)
		s.client.Timeout = cfg.Timeout
	}
	return s
}

func (s *TwitterSource) Name() asset.Source { return asset.SourceSocial }

type tweetsResponse struct {
	Data []struct {
		ID            string    `json:"id"`
		Text          string    `json:"text"`
		AuthorID      string    `json:"author_id"`
		CreatedAt     time.Time `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int64 `json:"like_count"`
			RetweetCount int64 `json:"retweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
	Includes struct {
		Users []struct {
			ID       string `json:"id"`
			Username string `json:"username"`
		} `json:"users"`
	} `json:"includes"`
}

// Search returns recent posts matching query. A 429 opens a backoff window
// until the reset time the API reports; searches inside the window fail
// fast with a rate-limited error instead of waiting.
func (s *TwitterSource) Search(ctx context.Context, query string, maxResults int) ([]asset.Candidate, error) {
	if s.client == nil {
		return nil, errors.NotConfigured("twitter bearer token not set")
	}
	if until, backing := s.limiter.BackingOff(); backing {
		return nil, errors.New(errors.ErrCodeDataSourceRateLimited, "twitter rate limited").
			WithDetail("retry after " + until.UTC().Format(time.RFC3339))
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "rate limiter wait aborted")
	}

	want := maxResults
	if want <= 0 {
		want = twitterMinResults
	}
	asked := want
	if asked < twitterMinResults {
		asked = twitterMinResults
	}
	if asked > twitterMaxResults {
		asked = twitterMaxResults
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("max_results", strconv.Itoa(asked))
	params.Set("tweet.fields", "created_at,public_metrics,author_id")
	params.Set("expansions", "author_id")
	params.Set("user.fields", "username")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "failed to build twitter request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceUnavailable, "twitter request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		s.limiter.RecordRateLimit(resetTime(resp.Header.Get("x-rate-limit-reset")))
		return nil, errors.New(errors.ErrCodeDataSourceRateLimited, "twitter returned 429")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, errors.Newf(errors.ErrCodeDataSourceAuthFailed, "twitter rejected the bearer token (%d)", resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf(errors.ErrCodeDataSourceUnavailable, "twitter returned %s", resp.Status).
			WithDetail(strings.TrimSpace(string(msg)))
	}

	var body tweetsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDataSourceParseError, "failed to decode twitter response")
	}

	users := make(map[string]string, len(body.Includes.Users))
	for _, u := range body.Includes.Users {
		users[u.ID] = u.Username
	}

	out := make([]asset.Candidate, 0, len(body.Data))
	for _, t := range body.Data {
		if len(out) == want {
			break
		}
		out = append(out, asset.Candidate{
			Content:     t.Text,
			URL:         tweetURL(users[t.AuthorID], t.ID),
			Engagement:  t.PublicMetrics.LikeCount + t.PublicMetrics.RetweetCount,
			Author:      users[t.AuthorID],
			PublishedAt: t.CreatedAt,
		})
	}
	return out, nil
}

func tweetURL(username, id string) string {
	if username == "" {
		return "https://twitter.com/i/web/status/" + id
	}
	return "https://twitter.com/" + username + "/status/" + id
}
