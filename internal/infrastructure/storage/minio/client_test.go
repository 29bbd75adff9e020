package minio

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

func TestApplyDefaults(t *testing.T) {
	cfg := &MinIOConfig{}
	applyDefaults(cfg)
	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Equal(t, "ip-metadata", cfg.Bucket)
}

func TestEnsureBucket_CreatesMissingAndSetsPolicy(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("BucketExists", mock.Anything, "meta").Return(false, nil).Once()
	api.On("MakeBucket", mock.Anything, "meta", minio.MakeBucketOptions{Region: "eu-west-1"}).Return(nil).Once()
	api.On("SetBucketPolicy", mock.Anything, "meta", mock.MatchedBy(func(p string) bool {
		return assert.ObjectsAreEqual(publicReadPolicy("meta"), p)
	})).Return(stderrors.New("not allowed")).Once()

	c, err := NewMinIOClientWithAPI(context.Background(), api,
		&MinIOConfig{Bucket: "meta", Region: "eu-west-1", PublicRead: true}, nil)
	require.NoError(t, err, "policy failure is logged, not fatal")
	assert.Equal(t, "meta", c.Bucket())
	api.AssertExpectations(t)
}

func TestEnsureBucket_ExistsCheckFails(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("BucketExists", mock.Anything, "ip-metadata").Return(false, stderrors.New("denied")).Once()

	_, err := NewMinIOClientWithAPI(context.Background(), api, &MinIOConfig{}, nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeStorageError))
}

func TestHealthCheck(t *testing.T) {
	api := new(MockMinIOAPI)
	api.On("BucketExists", mock.Anything, "ip-metadata").Return(true, nil)
	api.On("ListBuckets", mock.Anything).Return(nil, stderrors.New("refused")).Once()
	api.On("ListBuckets", mock.Anything).Return([]minio.BucketInfo{{Name: "ip-metadata"}}, nil).Once()

	c, err := NewMinIOClientWithAPI(context.Background(), api, &MinIOConfig{}, nil)
	require.NoError(t, err)

	st, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Healthy)
	assert.Equal(t, "refused", st.Error)

	st, err = c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, st.Healthy)
}
