package minio

import (
	"context"
	stderrors "errors"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
	"github.com/ZINKUNO/MyIPWhispererBot/pkg/errors"
)

type MockMinIOAPI struct {
	mock.Mock
}

func (m *MockMinIOAPI) ListBuckets(ctx context.Context) ([]minio.BucketInfo, error) {
	args := m.Called(ctx)
	if v := args.Get(0); v != nil {
		return v.([]minio.BucketInfo), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockMinIOAPI) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	args := m.Called(ctx, bucketName)
	return args.Bool(0), args.Error(1)
}

func (m *MockMinIOAPI) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return m.Called(ctx, bucketName, opts).Error(0)
}

func (m *MockMinIOAPI) SetBucketPolicy(ctx context.Context, bucketName, policy string) error {
	return m.Called(ctx, bucketName, policy).Error(0)
}

func (m *MockMinIOAPI) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	data, _ := io.ReadAll(reader)
	args := m.Called(ctx, bucketName, objectName, data, objectSize, opts)
	return args.Get(0).(minio.UploadInfo), args.Error(1)
}

func (m *MockMinIOAPI) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	args := m.Called(ctx, bucketName, objectName, opts)
	return args.Get(0).(minio.ObjectInfo), args.Error(1)
}

func (m *MockMinIOAPI) RemoveObject(ctx context.Context, bucketName, objectName string, opts minio.RemoveObjectOptions) error {
	return m.Called(ctx, bucketName, objectName, opts).Error(0)
}

type MetadataRepositoryTestSuite struct {
	suite.Suite
	api    *MockMinIOAPI
	client *MinIOClient
	repo   *MetadataRepository
	ctx    context.Context
}

func (s *MetadataRepositoryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.api = new(MockMinIOAPI)
	s.api.On("BucketExists", mock.Anything, "ip-metadata").Return(true, nil).Once()

	var err error
	s.client, err = NewMinIOClientWithAPI(s.ctx, s.api, &MinIOConfig{Endpoint: "minio:9000"}, nil)
	s.Require().NoError(err)
	s.repo = NewMetadataRepository(s.client, nil)
}

func (s *MetadataRepositoryTestSuite) TestPutMetadata_UploadsWithDigest() {
	doc := []byte(`{"title":"Neon Fox"}`)
	s.api.On("PutObject", mock.Anything, "ip-metadata", "u1/1-ip.json", doc, int64(len(doc)),
		mock.MatchedBy(func(o minio.PutObjectOptions) bool {
			return o.ContentType == "application/json" && o.UserMetadata["sha256"] == asset.Digest(doc)
		})).
		Return(minio.UploadInfo{Bucket: "ip-metadata", Key: "u1/1-ip.json", Size: int64(len(doc))}, nil).Once()

	uri, err := s.repo.PutMetadata(s.ctx, "/u1/1-ip.json", doc)
	s.Require().NoError(err)
	s.Equal("http://minio:9000/ip-metadata/u1/1-ip.json", uri)
	s.api.AssertExpectations(s.T())
}

func (s *MetadataRepositoryTestSuite) TestPutMetadata_Failure() {
	s.api.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, stderrors.New("disk full")).Once()

	_, err := s.repo.PutMetadata(s.ctx, "k.json", []byte("{}"))
	s.True(errors.IsCode(err, errors.ErrCodeStorageError))
}

func (s *MetadataRepositoryTestSuite) TestPutMetadata_EmptyKey() {
	_, err := s.repo.PutMetadata(s.ctx, "/", []byte("{}"))
	s.Equal(ErrInvalidKey, err)
}

func (s *MetadataRepositoryTestSuite) TestURI_PublicBaseAndEscaping() {
	s.client.config.PublicBaseURL = "https://cdn.example.com/meta/"
	s.Equal("https://cdn.example.com/meta/u%201/a.json", s.repo.URI("u 1/a.json"))

	s.client.config.PublicBaseURL = ""
	s.client.config.UseSSL = true
	s.Equal("https://minio:9000/ip-metadata/a.json", s.repo.URI("a.json"))
}

func (s *MetadataRepositoryTestSuite) TestExists() {
	s.api.On("StatObject", mock.Anything, "ip-metadata", "there.json", mock.Anything).
		Return(minio.ObjectInfo{Key: "there.json"}, nil).Once()
	s.api.On("StatObject", mock.Anything, "ip-metadata", "gone.json", mock.Anything).
		Return(minio.ObjectInfo{}, minio.ErrorResponse{Code: "NoSuchKey"}).Once()
	s.api.On("StatObject", mock.Anything, "ip-metadata", "broken.json", mock.Anything).
		Return(minio.ObjectInfo{}, stderrors.New("timeout")).Once()

	ok, err := s.repo.Exists(s.ctx, "there.json")
	s.NoError(err)
	s.True(ok)

	ok, err = s.repo.Exists(s.ctx, "gone.json")
	s.NoError(err)
	s.False(ok)

	_, err = s.repo.Exists(s.ctx, "broken.json")
	s.Error(err)
}

func (s *MetadataRepositoryTestSuite) TestDelete() {
	s.api.On("RemoveObject", mock.Anything, "ip-metadata", "a.json", mock.Anything).Return(nil).Once()
	s.NoError(s.repo.Delete(s.ctx, "a.json"))
}

func (s *MetadataRepositoryTestSuite) TestClosedClient() {
	s.Require().NoError(s.client.Close())
	_, err := s.repo.PutMetadata(s.ctx, "a.json", []byte("{}"))
	s.Equal(ErrMinIOClientClosed, err)
	_, err = s.client.HealthCheck(s.ctx)
	s.Equal(ErrMinIOClientClosed, err)
}

func TestMetadataRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(MetadataRepositoryTestSuite))
}
