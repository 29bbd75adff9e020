// Package repositories holds the PostgreSQL implementations of the domain
// repositories.
package repositories

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/database/postgres"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

const (
	assetTable     = "ip_assets"
	violationTable = "pending_violations"
)

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	assetColumns = []string{
		"ip_id", "owner_id", "name", "description", "category", "creator", "media_url",
		"content_hash", "keywords", "license", "tx_ref", "metadata_uri", "registered_at",
	}
	violationColumns = []string{
		"ip_id", "source", "platform", "content", "url", "similarity", "engagement",
		"image_url", "author", "published_at", "discovered_at",
	}
)

type postgresAssetRepo struct {
	conn *postgres.Connection
	log  logging.Logger
}

// NewPostgresAssetRepo returns an asset.Repository over conn. Pending
// violations live in their own table, ordered by insertion.
func NewPostgresAssetRepo(conn *postgres.Connection, log logging.Logger) asset.Repository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &postgresAssetRepo{conn: conn, log: log}
}

func (r *postgresAssetRepo) Save(ctx context.Context, a *asset.IPAsset) error {
	if err := a.Validate(); err != nil {
		return err
	}
	registeredAt := a.RegisteredAt
	if registeredAt.IsZero() {
		registeredAt = time.Now().UTC()
	}

	upsert, args, err := psql.Insert(assetTable).
		Columns(assetColumns...).
		Values(a.ID, a.OwnerID, a.Name, a.Description, a.Category, a.Creator, a.MediaURL,
			a.ContentHash, pq.Array(a.Keywords), string(a.License), a.TxRef, a.MetadataURI, registeredAt).
		Suffix(`ON CONFLICT (ip_id) DO UPDATE SET
			owner_id = EXCLUDED.owner_id, name = EXCLUDED.name, description = EXCLUDED.description,
			category = EXCLUDED.category, creator = EXCLUDED.creator, media_url = EXCLUDED.media_url,
			content_hash = EXCLUDED.content_hash, keywords = EXCLUDED.keywords, license = EXCLUDED.license,
			tx_ref = EXCLUDED.tx_ref, metadata_uri = EXCLUDED.metadata_uri, registered_at = EXCLUDED.registered_at`).
		ToSql()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build asset upsert")
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsert, args...); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to save asset")
		}
		del, dargs, err := psql.Delete(violationTable).Where(sq.Eq{"ip_id": a.ID}).ToSql()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build violation delete")
		}
		if _, err := tx.ExecContext(ctx, del, dargs...); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to reset pending violations")
		}
		return insertViolations(ctx, tx, a.ID, a.PendingViolations)
	})
}

func (r *postgresAssetRepo) FindByID(ctx context.Context, id string) (*asset.IPAsset, error) {
	assets, err := r.queryAssets(ctx, sq.Eq{"ip_id": id})
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, errors.Newf(errors.ErrCodeAssetNotFound, "ip asset %s not found", id)
	}
	return assets[0], nil
}

func (r *postgresAssetRepo) FindByOwner(ctx context.Context, ownerID string) ([]*asset.IPAsset, error) {
	return r.queryAssets(ctx, sq.Eq{"owner_id": ownerID})
}

func (r *postgresAssetRepo) List(ctx context.Context) ([]*asset.IPAsset, error) {
	return r.queryAssets(ctx, nil)
}

func (r *postgresAssetRepo) AppendViolations(ctx context.Context, id string, records []asset.ViolationRecord) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockAsset(ctx, tx, id); err != nil {
			return err
		}
		return insertViolations(ctx, tx, id, records)
	})
}

func (r *postgresAssetRepo) ClearViolations(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockAsset(ctx, tx, id); err != nil {
			return err
		}
		query, args, err := psql.Delete(violationTable).Where(sq.Eq{"ip_id": id}).ToSql()
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build violation delete")
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to clear pending violations")
		}
		return nil
	})
}

func (r *postgresAssetRepo) Count(ctx context.Context) (int64, error) {
	query, args, err := psql.Select("COUNT(*)").From(assetTable).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build count")
	}
	var n int64
	if err := r.conn.DB().QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to count assets")
	}
	return n, nil
}

// queryAssets loads the matching assets in registration order, then their
// pending violations in one round trip.
func (r *postgresAssetRepo) queryAssets(ctx context.Context, where sq.Sqlizer) ([]*asset.IPAsset, error) {
	builder := psql.Select(assetColumns...).From(assetTable).OrderBy("seq")
	if where != nil {
		builder = builder.Where(where)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build asset query")
	}

	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query assets")
	}
	defer rows.Close()

	out := make([]*asset.IPAsset, 0)
	byID := make(map[string]*asset.IPAsset)
	ids := make([]string, 0)
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
		byID[a.ID] = a
		ids = append(ids, a.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate assets")
	}
	if len(ids) == 0 {
		return out, nil
	}

	if err := r.attachViolations(ctx, ids, byID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *postgresAssetRepo) attachViolations(ctx context.Context, ids []string, byID map[string]*asset.IPAsset) error {
	query, args, err := psql.Select(violationColumns...).
		From(violationTable).
		Where("ip_id = ANY(?)", pq.Array(ids)).
		OrderBy("id").
		ToSql()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build violation query")
	}
	rows, err := r.conn.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to query pending violations")
	}
	defer rows.Close()

	for rows.Next() {
		var (
			ipID      string
			v         asset.ViolationRecord
			source    string
			published sql.NullTime
		)
		if err := rows.Scan(&ipID, &source, &v.Platform, &v.Content, &v.URL, &v.Similarity, &v.Engagement,
			&v.ImageURL, &v.Author, &published, &v.DiscoveredAt); err != nil {
			return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan pending violation")
		}
		v.Source = asset.Source(source)
		if published.Valid {
			v.PublishedAt = published.Time
		}
		if a, ok := byID[ipID]; ok {
			a.PendingViolations = append(a.PendingViolations, v)
		}
	}
	if err := rows.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to iterate pending violations")
	}
	return nil
}

func (r *postgresAssetRepo) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to begin transaction")
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Warn("rollback failed", logging.Err(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to commit transaction")
	}
	return nil
}

// lockAsset takes a row lock so concurrent appends for one asset serialize.
func lockAsset(ctx context.Context, tx *sql.Tx, id string) error {
	query, args, err := psql.Select("ip_id").From(assetTable).Where(sq.Eq{"ip_id": id}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build asset lock")
	}
	var found string
	err = tx.QueryRowContext(ctx, query, args...).Scan(&found)
	if err == sql.ErrNoRows {
		return errors.Newf(errors.ErrCodeAssetNotFound, "ip asset %s not found", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to lock asset")
	}
	return nil
}

func insertViolations(ctx context.Context, tx *sql.Tx, id string, records []asset.ViolationRecord) error {
	if len(records) == 0 {
		return nil
	}
	builder := psql.Insert(violationTable).Columns(violationColumns...)
	for _, v := range records {
		var published interface{}
		if !v.PublishedAt.IsZero() {
			published = v.PublishedAt
		}
		discovered := v.DiscoveredAt
		if discovered.IsZero() {
			discovered = time.Now().UTC()
		}
		builder = builder.Values(id, string(v.Source), v.Platform, v.Content, v.URL, v.Similarity, v.Engagement,
			v.ImageURL, v.Author, published, discovered)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to build violation insert")
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to insert pending violations")
	}
	return nil
}

func scanAsset(s scanner) (*asset.IPAsset, error) {
	var (
		a       asset.IPAsset
		license string
	)
	if err := s.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.Category, &a.Creator, &a.MediaURL,
		&a.ContentHash, pq.Array(&a.Keywords), &license, &a.TxRef, &a.MetadataURI, &a.RegisteredAt); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to scan asset")
	}
	a.License = asset.License(license)
	return &a, nil
}
