package minio

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/internal/infrastructure/monitoring/logging"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

const metadataContentType = "application/json"

var ErrInvalidKey = errors.New(errors.ErrCodeValidation, "object key must not be empty")

// MetadataRepository implements asset.MetadataStore on a bucket.
type MetadataRepository struct {
	client *MinIOClient
	logger logging.Logger
}

var _ asset.MetadataStore = (*MetadataRepository)(nil)

// NewMetadataRepository stores documents in client's bucket.
func NewMetadataRepository(client *MinIOClient, log logging.Logger) *MetadataRepository {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &MetadataRepository{client: client, logger: log}
}

// PutMetadata uploads doc under key with its SHA-256 digest as user
// metadata and returns the public URI.
func (r *MetadataRepository) PutMetadata(ctx context.Context, key string, doc []byte) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" {
		return "", ErrInvalidKey
	}
	api := r.client.GetClient()
	if api == nil {
		return "", ErrMinIOClientClosed
	}

	opts := minio.PutObjectOptions{
		ContentType:  metadataContentType,
		UserMetadata: map[string]string{"sha256": asset.Digest(doc)},
	}
	info, err := api.PutObject(ctx, r.client.Bucket(), key, bytes.NewReader(doc), int64(len(doc)), opts)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorageError, "upload failed")
	}
	r.logger.Debug("metadata uploaded",
		logging.String("key", key),
		logging.Int64("size", info.Size))
	return r.URI(key), nil
}

// Exists reports whether key is present.
func (r *MetadataRepository) Exists(ctx context.Context, key string) (bool, error) {
	api := r.client.GetClient()
	if api == nil {
		return false, ErrMinIOClientClosed
	}
	_, err := api.StatObject(ctx, r.client.Bucket(), key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, errors.Wrap(err, errors.ErrCodeStorageError, "stat failed")
}

// Delete removes key.
func (r *MetadataRepository) Delete(ctx context.Context, key string) error {
	api := r.client.GetClient()
	if api == nil {
		return ErrMinIOClientClosed
	}
	if err := api.RemoveObject(ctx, r.client.Bucket(), key, minio.RemoveObjectOptions{}); err != nil {
		return errors.Wrap(err, errors.ErrCodeStorageError, "delete failed")
	}
	return nil
}

// URI is the public address of key.
func (r *MetadataRepository) URI(key string) string {
	cfg := r.client.config
	base := strings.TrimRight(cfg.PublicBaseURL, "/")
	if base == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}
	escaped := make([]string, 0, 4)
	for _, seg := range strings.Split(path.Clean(key), "/") {
		escaped = append(escaped, url.PathEscape(seg))
	}
	return base + "/" + strings.Join(escaped, "/")
}
