// Package protection registers a work and puts it under monitoring.
package protection

import (
	"context"
	"fmt"
	"time"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/application/monitoring"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

// topMatches is how many initial matches a Result carries.
const topMatches = 3

// ---------------------------------------------------------------------------
// DTOs
// ---------------------------------------------------------------------------

// Result is a successful protection.
type Result struct {
	Asset *asset.IPAsset `json:"asset"`
	// InitialMatches counts every match of the scan run right after
	// registration; Top holds the best few.
	InitialMatches int                     `json:"initial_matches"`
	Top            []asset.ViolationRecord `json:"top"`
	IPMetadataURI  string                  `json:"ip_metadata_uri,omitempty"`
	NFTMetadataURI string                  `json:"nft_metadata_uri,omitempty"`
}

// ---------------------------------------------------------------------------
// Service interface
// ---------------------------------------------------------------------------

// Service is the protection workflow.
type Service interface {
	// Protect publishes metadata, registers the work, adds it to the registry
	// and scans it once. Failures before the registry step are returned as
	// ErrCodeMetadataUploadFailed or ErrCodeRegistrationFailed errors and
	// leave no state behind.
	Protect(ctx context.Context, ownerID string, d asset.Draft) (*Result, error)

	// Status summarises the owner's protected assets.
	Status(ctx context.Context, ownerID string) (*monitoring.StatusReport, error)

	// Alerts lists the owner's assets with pending violations.
	Alerts(ctx context.Context, ownerID string) ([]monitoring.PendingGroup, error)
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type serviceImpl struct {
	ledger   asset.Ledger
	metadata asset.MetadataStore
	registry *monitoring.Registry
	scanner  monitoring.Scanner
	logger   logging.Logger
	now      func() time.Time
}

// NewService builds the protection workflow. metadata may be nil, in which
// case documents are hashed but not published.
func NewService(ledger asset.Ledger, metadata asset.MetadataStore, registry *monitoring.Registry, scanner monitoring.Scanner, logger logging.Logger) Service {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &serviceImpl{
		ledger:   ledger,
		metadata: metadata,
		registry: registry,
		scanner:  scanner,
		logger:   logger.Named("protection"),
		now:      time.Now,
	}
}

func (s *serviceImpl) Protect(ctx context.Context, ownerID string, d asset.Draft) (*Result, error) {
	if ownerID == "" {
		return nil, errors.InvalidParam("owner id is required")
	}
	if d.Name == "" {
		return nil, errors.New(errors.ErrCodeAssetInvalid, "name is required")
	}
	log := s.logger.With(logging.String("owner_id", ownerID), logging.String("name", d.Name))
	log.Info("processing protection request")

	bundle, err := asset.BuildMetadata(d)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "build metadata")
	}

	req := asset.RegistrationRequest{
		Name:            d.Name,
		Description:     d.Description,
		MediaURL:        d.MediaURL,
		ContentHash:     bundle.IPHash,
		Attributes:      bundle.NFT.Attributes,
		IPMetadataHash:  bundle.IPHash,
		NFTMetadataHash: bundle.NFTHash,
	}
	if s.metadata != nil {
		stamp := s.now().UTC().UnixNano()
		req.IPMetadataURI, err = s.metadata.PutMetadata(ctx, fmt.Sprintf("%s/%d-ip.json", ownerID, stamp), bundle.IPJSON)
		if err != nil {
			log.Error("ip metadata upload failed", logging.Err(err))
			return nil, errors.Wrap(err, errors.ErrCodeMetadataUploadFailed, "upload ip metadata")
		}
		req.NFTMetadataURI, err = s.metadata.PutMetadata(ctx, fmt.Sprintf("%s/%d-nft.json", ownerID, stamp), bundle.NFTJSON)
		if err != nil {
			log.Error("nft metadata upload failed", logging.Err(err))
			return nil, errors.Wrap(err, errors.ErrCodeMetadataUploadFailed, "upload nft metadata")
		}
	}

	reg, err := s.ledger.Register(ctx, req)
	if err != nil {
		log.Error("registration failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeRegistrationFailed, "register ip asset")
	}

	a := &asset.IPAsset{
		ID:           reg.IPID,
		OwnerID:      ownerID,
		Name:         d.Name,
		Description:  d.Description,
		Category:     d.Category,
		Creator:      d.Creator,
		MediaURL:     d.MediaURL,
		ContentHash:  bundle.IPHash,
		Keywords:     d.Tags,
		License:      d.License,
		TxRef:        reg.TxRef,
		MetadataURI:  req.IPMetadataURI,
		RegisteredAt: s.now().UTC(),
	}
	if err := s.registry.Register(ctx, a); err != nil {
		return nil, err
	}

	matches := s.scanner.ScanAll(ctx, a)
	if len(matches) > 0 {
		if err := s.registry.AppendViolations(ctx, a.ID, matches); err != nil {
			log.Warn("could not record initial matches", logging.Err(err))
		} else {
			a.PendingViolations = append(a.PendingViolations, matches...)
		}
	}

	log.Info("ip protection activated",
		logging.String("ip_id", a.ID),
		logging.Int("matches", len(matches)),
		logging.Bool("mock", reg.Mock))

	top := matches
	if len(top) > topMatches {
		top = top[:topMatches]
	}
	return &Result{
		Asset:          a,
		InitialMatches: len(matches),
		Top:            top,
		IPMetadataURI:  req.IPMetadataURI,
		NFTMetadataURI: req.NFTMetadataURI,
	}, nil
}

func (s *serviceImpl) Status(ctx context.Context, ownerID string) (*monitoring.StatusReport, error) {
	return s.registry.Status(ctx, ownerID)
}

func (s *serviceImpl) Alerts(ctx context.Context, ownerID string) ([]monitoring.PendingGroup, error) {
	return s.registry.Pending(ctx, ownerID)
}
