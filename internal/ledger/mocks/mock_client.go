package mocks

import (
	"context"

	"thesiscert/internal/ledger"
	"thesiscert/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) Submit(ctx context.Context, req ledger.AnchorRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockClient) WaitConfirmed(ctx context.Context, txHash string) (ledger.Receipt, error) {
	args := m.Called(ctx, txHash)
	return args.Get(0).(ledger.Receipt), args.Error(1)
}

func (m *MockClient) GetCertificate(ctx context.Context, thesisID string) (*model.LedgerCertificate, error) {
	args := m.Called(ctx, thesisID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.LedgerCertificate), args.Error(1)
}

func (m *MockClient) IsCertified(ctx context.Context, thesisID string) (bool, error) {
	args := m.Called(ctx, thesisID)
	return args.Bool(0), args.Error(1)
}

func (m *MockClient) ChainID() int64 {
	args := m.Called()
	return args.Get(0).(int64)
}

func (m *MockClient) Provider() string {
	return "mock"
}
