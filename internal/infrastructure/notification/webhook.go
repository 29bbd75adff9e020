// Package notification delivers enforcement alerts to humans: a Slack-style
// webhook, a Kafka topic, and a relay that moves Kafka alerts to a webhook.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/enforcement"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

var _ enforcement.Notifier = (*WebhookNotifier)(nil)

// WebhookNotifier posts Slack-compatible JSON (text plus blocks).
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier targets url. timeout <= 0 selects 5s.
func NewWebhookNotifier(url string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: timeout}}
}

func (n *WebhookNotifier) Name() string { return "webhook" }

type textObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type block struct {
	Type string     `json:"type"`
	Text textObject `json:"text"`
}

type webhookPayload struct {
	Text   string  `json:"text"`
	Blocks []block `json:"blocks"`
}

func buildPayload(a enforcement.Alert) webhookPayload {
	pct := fmt.Sprintf("%.1f%%", a.Violation.Similarity*100)
	dispute := a.DisputeID
	if dispute == "" {
		dispute = "N/A"
	}
	platform := a.Violation.Platform
	if platform == "" {
		platform = a.Violation.Source.Platform()
	}

	text := fmt.Sprintf("🚨 *IP Infringement Detected*\n\nIP: %s\nPlatform: %s\nURL: %s\nSimilarity: %s\nDispute ID: %s",
		a.AssetName, platform, a.Violation.URL, pct, dispute)
	summary := fmt.Sprintf("*🚨 IP Infringement Alert*\n\n*Asset:* %s\n*Platform:* %s\n*Match:* %s",
		a.AssetName, platform, pct)

	return webhookPayload{
		Text: text,
		Blocks: []block{
			{Type: "section", Text: textObject{Type: "mrkdwn", Text: summary}},
			{Type: "section", Text: textObject{Type: "mrkdwn", Text: "*Generated Message:*\n" + a.Message}},
		},
	}
}

// Notify posts the alert. Any non-2xx answer is an error.
func (n *WebhookNotifier) Notify(ctx context.Context, alert enforcement.Alert) error {
	if n.url == "" {
		return errors.NotConfigured("alert webhook url not set")
	}
	body, err := json.Marshal(buildPayload(alert))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAlertDeliveryFailed, "failed to build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeAlertDeliveryFailed, "webhook request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf(errors.ErrCodeAlertDeliveryFailed, "webhook returned %s", resp.Status).
			WithDetail(strings.TrimSpace(string(msg)))
	}
	return nil
}
