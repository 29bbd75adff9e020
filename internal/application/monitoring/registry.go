// Package monitoring implements the monitoring registry, the multi-source
// result aggregator and the periodic scan scheduler.
package monitoring

import (
	"context"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// AssetStatus summarises one asset for the status view.
type AssetStatus struct {
	IPID              string    `json:"ip_id"`
	Name              string    `json:"name"`
	RegisteredAt      time.Time `json:"registered_at"`
	PendingViolations int       `json:"pending_violations"`
}

// StatusReport lists a user's assets.
type StatusReport struct {
	Total  int           `json:"total"`
	Assets []AssetStatus `json:"assets"`
}

// PendingGroup is an asset with its pending violations.
type PendingGroup struct {
	IPID       string                  `json:"ip_id"`
	Name       string                  `json:"name"`
	Violations []asset.ViolationRecord `json:"violations"`
}

// Registry is the set of assets under monitoring. Every method is safe for
// concurrent use; consistency comes from the backing repository.
type Registry struct {
	repo    asset.Repository
	logger  logging.Logger
	metrics Metrics
}

// NewRegistry wraps repo. A nil metrics sink is replaced by a no-op.
func NewRegistry(repo asset.Repository, metrics Metrics, logger logging.Logger) *Registry {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Registry{repo: repo, logger: logger, metrics: metrics}
}

// Register adds an asset or replaces the one with the same ID.
func (r *Registry) Register(ctx context.Context, a *asset.IPAsset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	if err := r.repo.Save(ctx, a); err != nil {
		return errors.Wrap(err, errors.CodeUnknown, "failed to register asset")
	}
	if n, err := r.repo.Count(ctx); err == nil {
		r.metrics.SetRegistrySize(int(n))
	}
	r.logger.Info("asset registered for monitoring",
		logging.String("ip_id", a.ID),
		logging.String("owner_id", a.OwnerID),
		logging.String("name", a.Name))
	return nil
}

// Get returns the asset or an ErrCodeAssetNotFound error.
func (r *Registry) Get(ctx context.Context, ipID string) (*asset.IPAsset, error) {
	return r.repo.FindByID(ctx, ipID)
}

// ListForUser returns the user's assets in registration order.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]*asset.IPAsset, error) {
	return r.repo.FindByOwner(ctx, userID)
}

// List returns every monitored asset.
func (r *Registry) List(ctx context.Context) ([]*asset.IPAsset, error) {
	return r.repo.List(ctx)
}

// AppendViolations adds records to the asset's pending list. An empty slice
// is a no-op that still reports unknown IDs.
func (r *Registry) AppendViolations(ctx context.Context, ipID string, records []asset.ViolationRecord) error {
	if len(records) == 0 {
		_, err := r.repo.FindByID(ctx, ipID)
		return err
	}
	if err := r.repo.AppendViolations(ctx, ipID, records); err != nil {
		return err
	}
	r.logger.Info("violations recorded", logging.String("ip_id", ipID), logging.Int("count", len(records)))
	return nil
}

// ClearViolations empties the asset's pending list.
func (r *Registry) ClearViolations(ctx context.Context, ipID string) error {
	return r.repo.ClearViolations(ctx, ipID)
}

// Status builds the user's status view.
func (r *Registry) Status(ctx context.Context, userID string) (*StatusReport, error) {
	assets, err := r.repo.FindByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	report := &StatusReport{Total: len(assets), Assets: make([]AssetStatus, 0, len(assets))}
	for _, a := range assets {
		report.Assets = append(report.Assets, AssetStatus{
			IPID:              a.ID,
			Name:              a.Name,
			RegisteredAt:      a.RegisteredAt,
			PendingViolations: len(a.PendingViolations),
		})
	}
	return report, nil
}

// Pending returns the user's assets that have pending violations, in
// registration order.
func (r *Registry) Pending(ctx context.Context, userID string) ([]PendingGroup, error) {
	assets, err := r.repo.FindByOwner(ctx, userID)
	if err != nil {
		return nil, err
	}
	var groups []PendingGroup
	for _, a := range assets {
		if len(a.PendingViolations) == 0 {
			continue
		}
		groups = append(groups, PendingGroup{IPID: a.ID, Name: a.Name, Violations: a.PendingViolations})
	}
	return groups, nil
}
