package mocks

import (
	"context"
	"io"

	"thesiscert/internal/storage"

	"github.com/stretchr/testify/mock"
)

type MockContentStore struct {
	mock.Mock
}

func (m *MockContentStore) Upload(ctx context.Context, data []byte, filename, contentType string) (storage.Pin, error) {
	args := m.Called(ctx, data, filename, contentType)
	return args.Get(0).(storage.Pin), args.Error(1)
}

func (m *MockContentStore) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockContentStore) Unpin(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockContentStore) GatewayURL(contentID string) string {
	return "https://gateway.test/ipfs/" + contentID
}

func (m *MockContentStore) Provider() string {
	return "mock"
}
