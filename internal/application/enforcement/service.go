// Package enforcement turns a pending violation into an outreach message,
// a dispute and an alert.
package enforcement

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/monitoring"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// MessageGenerator writes a message from a system and a user prompt.
type MessageGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Alert is what notification sinks receive after an enforcement.
type Alert struct {
	IPID       string                `json:"ip_id"`
	AssetName  string                `json:"asset_name"`
	OwnerID    string                `json:"owner_id"`
	Violation  asset.ViolationRecord `json:"violation"`
	Message    string                `json:"message"`
	DisputeID  string                `json:"dispute_id,omitempty"`
	Degraded   bool                  `json:"degraded,omitempty"`
	OccurredAt time.Time             `json:"occurred_at"`
}

// Notifier delivers alerts somewhere a human will see them.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, alert Alert) error
}

// Metrics records enforcement outcomes.
type Metrics interface {
	ObserveEnforcement(tone string, outcome string)
}

// Outcome labels passed to Metrics.
const (
	OutcomeSuccess  = "success"
	OutcomeDegraded = "degraded"
	OutcomeFailed   = "failed"
)

type nopMetrics struct{}

func (nopMetrics) ObserveEnforcement(string, string) {}

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Request selects what to enforce. An empty IPID picks the owner's first
// asset with pending violations; an empty Tone uses the configured default.
type Request struct {
	OwnerID string `json:"owner_id"`
	IPID    string `json:"ip_id,omitempty"`
	Tone    Tone   `json:"tone,omitempty"`
}

// Result is a completed enforcement.
type Result struct {
	IPID      string                `json:"ip_id"`
	AssetName string                `json:"asset_name"`
	Tone      Tone                  `json:"tone"`
	Violation asset.ViolationRecord `json:"violation"`
	Message   string                `json:"message"`
	// Generated is false when Message came from the fallback template.
	Generated bool           `json:"generated"`
	Dispute   *asset.Dispute `json:"dispute"`
	Notified  []string       `json:"notified,omitempty"`
	Cleared   int            `json:"cleared"`
}

// Options tune the service. Zero values select defaults.
type Options struct {
	DefaultTone Tone
	// DisputeFallback synthesises a degraded dispute id when the dispute
	// service fails instead of failing the enforcement.
	DisputeFallback bool
	ExplorerURL     string
}

// DefaultExplorerURL prefixes asset ids in messages.
const DefaultExplorerURL = "https://aeneid.explorer.story.foundation/ipa"

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

// Service enforces pending violations.
type Service interface {
	// Enforce acts on the first pending violation of the selected asset. On
	// success the asset's pending list is cleared; on failure it is left
	// untouched so the user can retry.
	Enforce(ctx context.Context, req Request) (*Result, error)

	// Compose returns the message for a violation without side effects. The
	// bool reports whether the generator produced it.
	Compose(ctx context.Context, a *asset.IPAsset, v asset.ViolationRecord, tone Tone) (string, bool, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type serviceImpl struct {
	registry  *monitoring.Registry
	ledger    asset.Ledger
	generator MessageGenerator
	notifiers []Notifier
	opts      Options
	metrics   Metrics
	logger    logging.Logger
	now       func() time.Time
}

// NewService builds the enforcement workflow. generator may be nil, in
// which case every message comes from the templates.
func NewService(registry *monitoring.Registry, ledger asset.Ledger, generator MessageGenerator, notifiers []Notifier, opts Options, metrics Metrics, logger logging.Logger) Service {
	if opts.DefaultTone == "" {
		opts.DefaultTone = ToneFriendly
	}
	if opts.ExplorerURL == "" {
		opts.ExplorerURL = DefaultExplorerURL
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		registry:  registry,
		ledger:    ledger,
		generator: generator,
		notifiers: notifiers,
		opts:      opts,
		metrics:   metrics,
		logger:    logger.Named("enforcement"),
		now:       time.Now,
	}
}

func (s *serviceImpl) Enforce(ctx context.Context, req Request) (*Result, error) {
	tone := req.Tone
	if tone == "" {
		tone = s.opts.DefaultTone
	}
	if _, ok := ParseTone(string(tone)); !ok {
		return nil, errors.Newf(errors.ErrCodeValidation, "unknown tone %q", tone)
	}

	a, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	v := a.PendingViolations[0]
	log := s.logger.With(logging.String("ip_id", a.ID), logging.String("url", v.URL), logging.String("tone", string(tone)))
	log.Info("initiating enforcement action")

	msg, generated, err := s.Compose(ctx, a, v, tone)
	if err != nil {
		s.metrics.ObserveEnforcement(string(tone), OutcomeFailed)
		return nil, err
	}

	dispute, err := s.dispute(ctx, a, v)
	if err != nil {
		log.Error("dispute creation failed", logging.Err(err))
		s.metrics.ObserveEnforcement(string(tone), OutcomeFailed)
		return nil, errors.Wrap(err, errors.ErrCodeDisputeFailed, "create dispute")
	}

	notified := s.notify(ctx, Alert{
		IPID:       a.ID,
		AssetName:  a.Name,
		OwnerID:    a.OwnerID,
		Violation:  v,
		Message:    msg,
		DisputeID:  dispute.DisputeID,
		Degraded:   dispute.Degraded,
		OccurredAt: s.now().UTC(),
	})

	cleared := len(a.PendingViolations)
	if err := s.registry.ClearViolations(ctx, a.ID); err != nil {
		log.Warn("enforcement succeeded but pending violations were not cleared", logging.Err(err))
		cleared = 0
	}

	outcome := OutcomeSuccess
	if dispute.Degraded {
		outcome = OutcomeDegraded
	}
	s.metrics.ObserveEnforcement(string(tone), outcome)
	log.Info("enforcement action completed",
		logging.String("dispute_id", dispute.DisputeID),
		logging.Bool("degraded", dispute.Degraded),
		logging.Bool("generated", generated))

	return &Result{
		IPID:      a.ID,
		AssetName: a.Name,
		Tone:      tone,
		Violation: v,
		Message:   msg,
		Generated: generated,
		Dispute:   dispute,
		Notified:  notified,
		Cleared:   cleared,
	}, nil
}

func (s *serviceImpl) resolve(ctx context.Context, req Request) (*asset.IPAsset, error) {
	if req.IPID == "" {
		if req.OwnerID == "" {
			return nil, errors.InvalidParam("owner id or ip id is required")
		}
		groups, err := s.registry.Pending(ctx, req.OwnerID)
		if err != nil {
			return nil, err
		}
		if len(groups) == 0 {
			return nil, errors.New(errors.ErrCodeNoPendingViolations, "no violations to enforce")
		}
		req.IPID = groups[0].IPID
	}

	a, err := s.registry.Get(ctx, req.IPID)
	if err != nil {
		return nil, err
	}
	if req.OwnerID != "" && a.OwnerID != req.OwnerID {
		return nil, errors.Newf(errors.ErrCodeAssetNotFound, "asset %s not found", req.IPID)
	}
	if len(a.PendingViolations) == 0 {
		return nil, errors.Newf(errors.ErrCodeNoPendingViolations, "asset %s has no pending violations", a.ID)
	}
	return a, nil
}

func (s *serviceImpl) Compose(ctx context.Context, a *asset.IPAsset, v asset.ViolationRecord, tone Tone) (string, bool, error) {
	if s.generator != nil {
		prompt, err := Prompt(a, v, tone, s.opts.ExplorerURL)
		if err == nil {
			msg, genErr := s.generator.Generate(ctx, systemPrompt, prompt)
			if genErr == nil && strings.TrimSpace(msg) != "" {
				return strings.TrimSpace(msg), true, nil
			}
			err = genErr
		}
		s.logger.Warn("message generation failed, using template",
			logging.String("ip_id", a.ID), logging.Err(err))
	}
	msg, err := TemplateMessage(a, v, tone, s.opts.ExplorerURL)
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrCodeMessageGenerationFailed, "render message template")
	}
	return msg, false, nil
}

func (s *serviceImpl) dispute(ctx context.Context, a *asset.IPAsset, v asset.ViolationRecord) (*asset.Dispute, error) {
	evidence := v.ImageURL
	if evidence == "" {
		evidence = fmt.Sprintf("https://placehold.co/800x600/png?text=%s+Evidence", v.Platform)
	}
	d, err := s.ledger.CreateDispute(ctx, asset.DisputeRequest{
		IPID:       a.ID,
		Platform:   v.Platform,
		URL:        v.URL,
		Similarity: v.Similarity,
		Content:    v.Content,
		Evidence:   evidence,
	})
	if err == nil {
		return d, nil
	}
	if !s.opts.DisputeFallback {
		return nil, err
	}
	s.logger.Warn("dispute service failed, recording degraded dispute",
		logging.String("ip_id", a.ID), logging.Err(err))
	ts := s.now().UnixMilli()
	return &asset.Dispute{
		DisputeID: fmt.Sprintf("0xDISPUTE_%d", ts),
		TxRef:     fmt.Sprintf("0xTX_%d", ts),
		Degraded:  true,
	}, nil
}

// notify fans the alert out to every sink. Sink failures are logged and
// never fail the enforcement.
func (s *serviceImpl) notify(ctx context.Context, alert Alert) []string {
	var delivered []string
	for _, n := range s.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			s.logger.Error("failed to deliver alert",
				logging.String("sink", n.Name()),
				logging.String("ip_id", alert.IPID),
				logging.Err(err))
			continue
		}
		delivered = append(delivered, n.Name())
	}
	return delivered
}
