// Package memory holds process-local repository implementations used when no
// database is configured.
package memory

import (
	"context"
	"sync"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// AssetRepository keeps assets in registration order behind a mutex. Stored
// values are cloned on the way in and out.
type AssetRepository struct {
	mu    sync.RWMutex
	byID  map[string]*asset.IPAsset
	order []string
}

// NewAssetRepository returns an empty repository.
func NewAssetRepository() *AssetRepository {
	return &AssetRepository{byID: make(map[string]*asset.IPAsset)}
}

// Save inserts a or replaces the asset with the same ID, keeping its original
// position in the registration order.
func (r *AssetRepository) Save(_ context.Context, a *asset.IPAsset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.ID]; !exists {
		r.order = append(r.order, a.ID)
	}
	r.byID[a.ID] = a.Clone()
	return nil
}

func (r *AssetRepository) FindByID(_ context.Context, id string) (*asset.IPAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, errors.Newf(errors.ErrCodeAssetNotFound, "ip asset %s not found", id)
	}
	return a.Clone(), nil
}

func (r *AssetRepository) FindByOwner(_ context.Context, ownerID string) ([]*asset.IPAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*asset.IPAsset, 0)
	for _, id := range r.order {
		if a := r.byID[id]; a.OwnerID == ownerID {
			out = append(out, a.Clone())
		}
	}
	return out, nil
}

func (r *AssetRepository) List(_ context.Context) ([]*asset.IPAsset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*asset.IPAsset, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].Clone())
	}
	return out, nil
}

func (r *AssetRepository) AppendViolations(_ context.Context, id string, records []asset.ViolationRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return errors.Newf(errors.ErrCodeAssetNotFound, "ip asset %s not found", id)
	}
	a.PendingViolations = append(a.PendingViolations, records...)
	return nil
}

func (r *AssetRepository) ClearViolations(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return errors.Newf(errors.ErrCodeAssetNotFound, "ip asset %s not found", id)
	}
	a.PendingViolations = nil
	return nil
}

func (r *AssetRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.order)), nil
}
