package mocks

import (
	"context"
	"time"

	"thesiscert/internal/model"
	"thesiscert/internal/repository"

	"github.com/stretchr/testify/mock"
)

type MockThesisRepository struct {
	mock.Mock
}

func (m *MockThesisRepository) Create(ctx context.Context, t *model.Thesis) (*model.Thesis, error) {
	args := m.Called(ctx, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thesis), args.Error(1)
}

func (m *MockThesisRepository) FindByID(ctx context.Context, id string) (*model.Thesis, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thesis), args.Error(1)
}

func (m *MockThesisRepository) FindByDigest(ctx context.Context, digest string) (*model.Thesis, error) {
	args := m.Called(ctx, digest)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thesis), args.Error(1)
}

func (m *MockThesisRepository) FindByTxHash(ctx context.Context, txHash string) (*model.Thesis, error) {
	args := m.Called(ctx, txHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thesis), args.Error(1)
}

func (m *MockThesisRepository) List(ctx context.Context, f repository.ThesisFilter) (*repository.PageResult[model.Thesis], error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.PageResult[model.Thesis]), args.Error(1)
}

func (m *MockThesisRepository) Update(ctx context.Context, t *model.Thesis, ev *model.ThesisEvent) (*model.Thesis, error) {
	args := m.Called(ctx, t, ev)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thesis), args.Error(1)
}

func (m *MockThesisRepository) Events(ctx context.Context, thesisID string) ([]model.ThesisEvent, error) {
	args := m.Called(ctx, thesisID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ThesisEvent), args.Error(1)
}

func (m *MockThesisRepository) SoftDelete(ctx context.Context, id string, version int64, at time.Time) error {
	args := m.Called(ctx, id, version, at)
	return args.Error(0)
}
