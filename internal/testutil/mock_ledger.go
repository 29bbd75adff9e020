package testutil

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/ZINKUNO/MyIPWhispererBot/internal/domain/asset"
)

// MockLedger is a testify mock of asset.Ledger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) Register(ctx context.Context, req asset.RegistrationRequest) (*asset.Registration, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Registration), args.Error(1)
}

func (m *MockLedger) CreateDispute(ctx context.Context, req asset.DisputeRequest) (*asset.Dispute, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asset.Dispute), args.Error(1)
}

// MockMetadataStore is a testify mock of asset.MetadataStore.
type MockMetadataStore struct {
	mock.Mock
}

func (m *MockMetadataStore) PutMetadata(ctx context.Context, key string, doc []byte) (string, error) {
	args := m.Called(ctx, key, doc)
	return args.String(0), args.Error(1)
}
