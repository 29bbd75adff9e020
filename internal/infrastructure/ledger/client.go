// Package ledger talks to the on-chain registration gateway. It records
// protected works and raises disputes against infringing content.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

const (
	defaultTimeout = 30 * time.Second
	defaultNetwork = "aeneid"

	// DisputeTargetTag is the only dispute category the bot raises.
	DisputeTargetTag = "IMPROPER_REGISTRATION"
	// DisputeLiveness is the challenge window in seconds (30 days).
	DisputeLiveness = 2592000
	// DisputeBondWei is the minimum bond, 0.1 in wei.
	DisputeBondWei = "100000000000000000"

	opRegister = "register"
	opDispute  = "dispute"
)

// Metrics is the subset of AppMetrics the client reports to.
type Metrics interface {
	ObserveLedgerCall(operation string, err error)
}

// Config configures the gateway client.
type Config struct {
	Endpoint string
	APIKey   string
	Network  string
	Timeout  time.Duration
	// MockMode answers every call locally with 0xMOCK_ ids.
	MockMode bool
}

// Client implements asset.Ledger over the gateway's JSON API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	metrics    Metrics
	logger     logging.Logger

	mu     sync.Mutex
	lastTS int64
	now    func() time.Time
}

var _ asset.Ledger = (*Client)(nil)

// NewClient builds a client. Without an endpoint the client only works in
// mock mode.
func NewClient(cfg Config, metrics Metrics, logger logging.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Network == "" {
		cfg.Network = defaultNetwork
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if !cfg.MockMode && cfg.Endpoint == "" {
		return nil, errors.New(errors.ErrCodeConfiguration, "ledger endpoint is required unless mock_mode is set")
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		metrics:    metrics,
		logger:     logger.Named("ledger"),
		now:        time.Now,
	}, nil
}

// MockMode reports whether the client synthesises ids locally.
func (c *Client) MockMode() bool { return c.cfg.MockMode }

type registerBody struct {
	asset.RegistrationRequest
	Network string `json:"network"`
}

type registerResponse struct {
	IPID   string `json:"ip_id"`
	TxHash string `json:"tx_hash"`
}

// Register records a work and returns its IP id.
func (c *Client) Register(ctx context.Context, req asset.RegistrationRequest) (reg *asset.Registration, err error) {
	defer func() { c.observe(opRegister, err) }()

	if strings.TrimSpace(req.Name) == "" {
		return nil, errors.InvalidParam("registration name must not be empty")
	}

	if c.cfg.MockMode {
		ts := c.stamp()
		reg = &asset.Registration{
			IPID:  fmt.Sprintf("0xMOCK_IP_%d", ts),
			TxRef: fmt.Sprintf("0xMOCK_TX_%d", ts),
			Mock:  true,
		}
		c.logger.Info("ip asset registered (mock)", logging.String("ip_id", reg.IPID), logging.String("name", req.Name))
		return reg, nil
	}

	var out registerResponse
	if err := c.post(ctx, "/v1/ip-assets", registerBody{RegistrationRequest: req, Network: c.cfg.Network}, &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeRegistrationFailed, "register ip asset")
	}
	if out.IPID == "" {
		return nil, errors.New(errors.ErrCodeRegistrationFailed, "register ip asset").WithDetail("gateway returned no ip_id")
	}
	c.logger.Info("ip asset registered", logging.String("ip_id", out.IPID), logging.String("tx_hash", out.TxHash))
	return &asset.Registration{IPID: out.IPID, TxRef: out.TxHash}, nil
}

type disputeBody struct {
	TargetIPID string  `json:"target_ip_id"`
	TargetTag  string  `json:"target_tag"`
	BondWei    string  `json:"bond"`
	Liveness   int     `json:"liveness"`
	Network    string  `json:"network"`
	Platform   string  `json:"platform"`
	URL        string  `json:"url"`
	Similarity float64 `json:"similarity"`
	Content    string  `json:"content,omitempty"`
	Evidence   string  `json:"evidence,omitempty"`
}

type disputeResponse struct {
	DisputeID string `json:"dispute_id"`
	TxHash    string `json:"tx_hash"`
}

// CreateDispute raises an IMPROPER_REGISTRATION dispute for the asset.
func (c *Client) CreateDispute(ctx context.Context, req asset.DisputeRequest) (d *asset.Dispute, err error) {
	defer func() { c.observe(opDispute, err) }()

	if req.IPID == "" {
		return nil, errors.InvalidParam("dispute requires an ip id")
	}

	if c.cfg.MockMode {
		ts := c.stamp()
		d = &asset.Dispute{
			DisputeID: fmt.Sprintf("0xMOCK_DISPUTE_%d", ts),
			TxRef:     fmt.Sprintf("0xMOCK_TX_%d", ts),
			Mock:      true,
		}
		c.logger.Info("dispute created (mock)", logging.String("ip_id", req.IPID), logging.String("dispute_id", d.DisputeID))
		return d, nil
	}

	body := disputeBody{
		TargetIPID: req.IPID,
		TargetTag:  DisputeTargetTag,
		BondWei:    DisputeBondWei,
		Liveness:   DisputeLiveness,
		Network:    c.cfg.Network,
		Platform:   req.Platform,
		URL:        req.URL,
		Similarity: req.Similarity,
		Content:    req.Content,
		Evidence:   req.Evidence,
	}
	var out disputeResponse
	if err := c.post(ctx, "/v1/disputes", body, &out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDisputeFailed, "create dispute")
	}
	if out.DisputeID == "" {
		return nil, errors.New(errors.ErrCodeDisputeFailed, "create dispute").WithDetail("gateway returned no dispute_id")
	}
	c.logger.Info("dispute created", logging.String("ip_id", req.IPID), logging.String("dispute_id", out.DisputeID))
	return &asset.Dispute{DisputeID: out.DisputeID, TxRef: out.TxHash}, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "build request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeServiceUnavailable, "ledger gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		code := errors.ErrCodeExternalService
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			code = errors.ErrCodeUnauthorized
		case http.StatusTooManyRequests:
			code = errors.ErrCodeTooManyRequests
		}
		return errors.New(code, fmt.Sprintf("ledger gateway returned %s", resp.Status)).
			WithDetail(strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "decode ledger response")
	}
	return nil
}

// stamp returns a strictly increasing millisecond timestamp so two mock ids
// issued in the same millisecond still differ.
func (c *Client) stamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := c.now().UnixMilli()
	if ts <= c.lastTS {
		ts = c.lastTS + 1
	}
	c.lastTS = ts
	return ts
}

func (c *Client) observe(op string, err error) {
	if c.metrics != nil {
		c.metrics.ObserveLedgerCall(op, err)
	}
	if err != nil {
		c.logger.Error("ledger call failed", logging.String("operation", op), logging.Err(err))
	}
}
