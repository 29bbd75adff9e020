package asset

import "context"

// Repository persists monitored assets and their pending violations.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Save inserts or replaces the asset with the same ID.
	Save(ctx context.Context, a *IPAsset) error
	// FindByID returns ErrCodeAssetNotFound when the ID is unknown.
	FindByID(ctx context.Context, id string) (*IPAsset, error)
	// FindByOwner returns the owner's assets in registration order.
	FindByOwner(ctx context.Context, ownerID string) ([]*IPAsset, error)
	// List returns every asset in registration order.
	List(ctx context.Context) ([]*IPAsset, error)
	// AppendViolations adds records to the end of the asset's pending list.
	AppendViolations(ctx context.Context, id string, records []ViolationRecord) error
	// ClearViolations empties the asset's pending list.
	ClearViolations(ctx context.Context, id string) error
	Count(ctx context.Context) (int64, error)
}
