package mocks

import (
	"context"

	"thesiscert/internal/ledger"
	"thesiscert/internal/model"
	"thesiscert/internal/service"

	"github.com/stretchr/testify/mock"
)

type MockCertificationService struct {
	mock.Mock
}

func (m *MockCertificationService) thesis(args mock.Arguments) (*model.Thesis, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Thesis), args.Error(1)
}

func (m *MockCertificationService) certificate(args mock.Arguments) (*model.Certificate, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Certificate), args.Error(1)
}

func (m *MockCertificationService) SubmitThesis(ctx context.Context, actor model.Actor, meta model.ThesisMetadata, file []byte, filename, contentType string) (*model.Thesis, error) {
	return m.thesis(m.Called(ctx, actor, meta, file, filename, contentType))
}

func (m *MockCertificationService) RequestInstitutionVerification(ctx context.Context, actor model.Actor, thesisID, institutionID string) (*model.Thesis, error) {
	return m.thesis(m.Called(ctx, actor, thesisID, institutionID))
}

func (m *MockCertificationService) Certify(ctx context.Context, actor model.Actor, thesisID string) (*model.Thesis, error) {
	return m.thesis(m.Called(ctx, actor, thesisID))
}

func (m *MockCertificationService) ApplyCertification(ctx context.Context, actor model.Actor, thesisID string, rcpt ledger.Receipt) (*model.Thesis, error) {
	return m.thesis(m.Called(ctx, actor, thesisID, rcpt))
}

func (m *MockCertificationService) Reject(ctx context.Context, actor model.Actor, thesisID, reason string) (*model.Thesis, error) {
	return m.thesis(m.Called(ctx, actor, thesisID, reason))
}

func (m *MockCertificationService) Revoke(ctx context.Context, actor model.Actor, thesisID, reason string) (*model.Thesis, error) {
	return m.thesis(m.Called(ctx, actor, thesisID, reason))
}

func (m *MockCertificationService) GetCertificate(ctx context.Context, ref string) (*model.Certificate, error) {
	return m.certificate(m.Called(ctx, ref))
}

func (m *MockCertificationService) IsCertifiedOnChain(ctx context.Context, thesisID string) (bool, error) {
	args := m.Called(ctx, thesisID)
	return args.Bool(0), args.Error(1)
}

func (m *MockCertificationService) VerifyFile(ctx context.Context, file []byte, algorithm string) (*model.Certificate, error) {
	return m.certificate(m.Called(ctx, file, algorithm))
}

func (m *MockCertificationService) Get(ctx context.Context, id string) (*model.Thesis, error) {
	return m.thesis(m.Called(ctx, id))
}

func (m *MockCertificationService) List(ctx context.Context, f service.ListFilter) (*service.ThesisListResult, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ThesisListResult), args.Error(1)
}

func (m *MockCertificationService) Events(ctx context.Context, id string) ([]model.ThesisEvent, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ThesisEvent), args.Error(1)
}

func (m *MockCertificationService) Delete(ctx context.Context, actor model.Actor, id string) error {
	args := m.Called(ctx, actor, id)
	return args.Error(0)
}
