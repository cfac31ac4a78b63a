package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"thesiscert/internal/errs"
	"thesiscert/internal/model"
)

// SandboxClient is the NON-PRODUCTION ledger used when no chain credentials are
// configured. It confirms every submission immediately in a fresh block and
// behaves like the registry contract: a second anchor for the same thesis reverts.
type SandboxClient struct {
	chainID int64

	mu          sync.Mutex
	block       uint64
	certs       map[string]model.LedgerCertificate
	txs         map[string]uint64
	submissions map[string]int
}

// NewSandbox returns an empty sandbox ledger whose next block is startBlock.
func NewSandbox(chainID int64, startBlock uint64) *SandboxClient {
	return &SandboxClient{
		chainID:     chainID,
		block:       startBlock,
		certs:       make(map[string]model.LedgerCertificate),
		txs:         make(map[string]uint64),
		submissions: make(map[string]int),
	}
}

func (s *SandboxClient) Provider() string { return "sandbox" }

func (s *SandboxClient) ChainID() int64 { return s.chainID }

func (s *SandboxClient) Submit(ctx context.Context, req AnchorRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRPCUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.submissions[req.ThesisID]++
	if _, ok := s.certs[req.ThesisID]; ok {
		return "", fmt.Errorf("%w: thesis %s already anchored", ErrReverted, req.ThesisID)
	}

	sum := sha256.Sum256([]byte(fmt.Sprintf("%s/%d/%d", req.ThesisID, s.chainID, s.block)))
	txHash := "0x" + hex.EncodeToString(sum[:])

	s.certs[req.ThesisID] = model.LedgerCertificate{
		ThesisID:        req.ThesisID,
		UploaderID:      req.UploaderID,
		InstitutionID:   req.InstitutionID,
		ContentID:       req.ContentID,
		Digest:          req.Digest,
		DigestAlgorithm: req.DigestAlgorithm,
		IssuedAt:        time.Now().UTC().Truncate(time.Second),
	}
	s.txs[txHash] = s.block
	s.block++
	return txHash, nil
}

func (s *SandboxClient) WaitConfirmed(ctx context.Context, txHash string) (Receipt, error) {
	if ctx.Err() != nil {
		return Receipt{}, &TimeoutError{TxHash: txHash}
	}
	s.mu.Lock()
	block, ok := s.txs[txHash]
	s.mu.Unlock()
	if !ok {
		return Receipt{}, errs.Wrap(errs.KindTransient, "anchor transaction "+txHash+" was dropped", ErrDropped)
	}
	return Receipt{TxHash: txHash, ChainID: s.chainID, BlockNumber: block}, nil
}

func (s *SandboxClient) GetCertificate(ctx context.Context, thesisID string) (*model.LedgerCertificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.certs[thesisID]
	if !ok {
		return nil, errs.ErrNotCertified
	}
	return &c, nil
}

func (s *SandboxClient) IsCertified(ctx context.Context, thesisID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.certs[thesisID]
	return ok, nil
}

// Submissions returns how many anchor transactions were sent for thesisID, including reverted ones.
func (s *SandboxClient) Submissions(thesisID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submissions[thesisID]
}

// Overwrite replaces the stored record for a thesis. It lets tests and demos
// simulate a ledger that disagrees with the local record.
func (s *SandboxClient) Overwrite(cert model.LedgerCertificate) {
	s.mu.Lock()
	s.certs[cert.ThesisID] = cert
	s.mu.Unlock()
}
