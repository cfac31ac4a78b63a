package verifier

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"thesiscert/internal/errs"
	"thesiscert/internal/fingerprint"
	"thesiscert/internal/ledger"
	ledgerMocks "thesiscert/internal/ledger/mocks"
	"thesiscert/internal/model"
	"thesiscert/internal/repository/memory"
)

const thesisID = "6f1c2b7a-9d3e-4c5b-8a7f-0e1d2c3b4a59"

var fileBytes = []byte("%PDF-1.7 a thesis about anchoring")

func certifiedFixture(t *testing.T) (*memory.ThesisStore, *ledger.SandboxClient, *model.Thesis) {
	t.Helper()
	ctx := context.Background()
	digest, err := fingerprint.Digest(fileBytes, fingerprint.SHA256)
	require.NoError(t, err)

	lc := ledger.NewSandbox(80002, 123)
	rcpt, err := ledger.Anchor(ctx, lc, ledger.AnchorRequest{
		ThesisID:        thesisID,
		UploaderID:      "user-1",
		InstitutionID:   "inst-1",
		ContentID:       "bafkreicontent",
		Digest:          digest,
		DigestAlgorithm: fingerprint.SHA256,
	})
	require.NoError(t, err)

	store := memory.NewThesisStore()
	th, err := store.Create(ctx, &model.Thesis{
		ID:              thesisID,
		Digest:          digest,
		DigestAlgorithm: fingerprint.SHA256,
		ContentID:       "bafkreicontent",
		UploadedBy:      "user-1",
		InstitutionID:   "inst-1",
		Status:          model.StatusPending,
	})
	require.NoError(t, err)

	th.Status = model.StatusCertified
	th.TxHash = rcpt.TxHash
	th.ChainID = rcpt.ChainID
	th.BlockNumber = rcpt.BlockNumber
	th, err = store.Update(ctx, th, nil)
	require.NoError(t, err)
	return store, lc, th
}

func TestParseRef(t *testing.T) {
	digest := strings.Repeat("ab", 32)
	tests := []struct {
		ref     string
		kind    RefKind
		wantErr bool
	}{
		{thesisID, RefThesisID, false},
		{digest, RefDigest, false},
		{strings.ToUpper(digest), RefDigest, false},
		{"0x" + digest, RefTxHash, false},
		{"0x123", "", true},
		{"not-a-ref", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			kind, val, err := ParseRef(tt.ref)
			if tt.wantErr {
				assert.Equal(t, errs.KindValidation, errs.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, strings.ToLower(tt.ref), val)
		})
	}
}

func TestCertificate_ConsistentByEveryReference(t *testing.T) {
	store, lc, th := certifiedFixture(t)
	v := New(store, lc, nil, zap.NewNop())
	ctx := context.Background()

	for _, ref := range []string{th.ID, th.Digest, th.TxHash} {
		cert, err := v.Certificate(ctx, ref)
		require.NoError(t, err, ref)
		assert.True(t, cert.Consistent, ref)
		assert.True(t, cert.OnLedger)
		assert.Empty(t, cert.Mismatches)
		assert.Equal(t, th.TxHash, cert.TxHash)
		assert.Equal(t, int64(80002), cert.ChainID)
		assert.Equal(t, uint64(123), cert.BlockNumber)
		assert.NotNil(t, cert.IssuedAt)
		assert.False(t, cert.Revoked)
	}
}

func TestCertificate_TamperedLocalDigest(t *testing.T) {
	store, lc, th := certifiedFixture(t)
	v := New(store, lc, nil, zap.NewNop())
	ctx := context.Background()

	corrupted := th.Clone()
	corrupted.Digest = strings.Repeat("00", 32)
	_, err := store.Update(ctx, corrupted, nil)
	require.NoError(t, err)

	cert, err := v.Certificate(ctx, th.ID)
	require.NoError(t, err)
	assert.False(t, cert.Consistent)
	assert.Contains(t, cert.Mismatches, FieldDigest)
	assert.Equal(t, th.Digest, cert.Ledger.Digest, "ledger value is reported alongside")
}

func TestCertificate_LedgerDisagreesOnContentID(t *testing.T) {
	store, lc, th := certifiedFixture(t)
	v := New(store, lc, nil, zap.NewNop())

	onchain, err := lc.GetCertificate(context.Background(), th.ID)
	require.NoError(t, err)
	onchain.ContentID = "bafkreiother"
	lc.Overwrite(*onchain)

	cert, err := v.Certificate(context.Background(), th.ID)
	require.NoError(t, err)
	assert.False(t, cert.Consistent)
	assert.Equal(t, []string{FieldContentID}, cert.Mismatches)
}

func TestCertificate_Revoked(t *testing.T) {
	store, lc, th := certifiedFixture(t)
	ctx := context.Background()

	now := time.Now().UTC()
	th.Status = model.StatusInstitutionVerified
	th.RevokedAt = &now
	th.RevokedBy = "admin-1"
	_, err := store.Update(ctx, th, nil)
	require.NoError(t, err)

	cert, err := New(store, lc, nil, zap.NewNop()).Certificate(ctx, th.ID)
	require.NoError(t, err)
	assert.True(t, cert.Revoked)
	assert.Equal(t, "admin-1", cert.RevokedBy)
	assert.Equal(t, th.TxHash, cert.TxHash, "ledger trail survives revocation")
}

func TestCertificate_NotCertifiedYet(t *testing.T) {
	ctx := context.Background()
	store := memory.NewThesisStore()
	_, err := store.Create(ctx, &model.Thesis{ID: thesisID, Digest: strings.Repeat("cd", 32), Status: model.StatusPending})
	require.NoError(t, err)

	_, err = New(store, ledger.NewSandbox(80002, 1), nil, zap.NewNop()).Certificate(ctx, thesisID)
	assert.ErrorIs(t, err, errs.ErrNotCertified)
	assert.Equal(t, errs.KindNotFound, errs.KindOf(err))
}

func TestCertificate_AnchoredButMissingOnLedger(t *testing.T) {
	store, _, th := certifiedFixture(t)

	cert, err := New(store, ledger.NewSandbox(80002, 1), nil, zap.NewNop()).Certificate(context.Background(), th.ID)
	require.NoError(t, err)
	assert.False(t, cert.OnLedger)
	assert.False(t, cert.Consistent)
	assert.Equal(t, []string{FieldLedgerRecord}, cert.Mismatches)
}

func TestCertificate_UnknownReference(t *testing.T) {
	v := New(memory.NewThesisStore(), ledger.NewSandbox(80002, 1), nil, zap.NewNop())
	_, err := v.Certificate(context.Background(), strings.Repeat("ef", 32))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestVerifyFile(t *testing.T) {
	store, lc, th := certifiedFixture(t)
	v := New(store, lc, nil, zap.NewNop())
	ctx := context.Background()

	cert, err := v.VerifyFile(ctx, fileBytes, fingerprint.SHA256)
	require.NoError(t, err)
	assert.Equal(t, th.ID, cert.ThesisID)
	assert.True(t, cert.Consistent)

	tampered := append([]byte(nil), fileBytes...)
	tampered[0] ^= 0xff
	_, err = v.VerifyFile(ctx, tampered, fingerprint.SHA256)
	assert.ErrorIs(t, err, errs.ErrNotFound)

	_, err = v.VerifyFile(ctx, fileBytes, fingerprint.Keccak256)
	assert.ErrorIs(t, err, fingerprint.ErrUnsupportedAlgorithm)
}

func TestIsCertified_CollapsesConcurrentReads(t *testing.T) {
	lc := new(ledgerMocks.MockClient)
	var calls int32
	release := make(chan struct{})
	lc.On("IsCertified", mock.Anything, thesisID).
		Run(func(mock.Arguments) {
			atomic.AddInt32(&calls, 1)
			<-release
		}).
		Return(true, nil)

	v := New(memory.NewThesisStore(), lc, nil, zap.NewNop())

	const n = 8
	var wg sync.WaitGroup
	var started sync.WaitGroup
	started.Add(n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			ok, err := v.IsCertified(context.Background(), thesisID)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt32(&calls), int32(n))
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
}

func TestIsCertified_CallerDeadlineIsNotShared(t *testing.T) {
	lc := new(ledgerMocks.MockClient)
	inFlight := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	lc.On("IsCertified", mock.Anything, thesisID).
		Run(func(args mock.Arguments) {
			once.Do(func() { close(inFlight) })
			ctx := args.Get(0).(context.Context)
			select {
			case <-release:
			case <-ctx.Done():
			}
		}).
		Return(true, nil)

	v := New(memory.NewThesisStore(), lc, nil, zap.NewNop())

	hasty, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	hastyErr := make(chan error, 1)
	go func() {
		_, err := v.IsCertified(hasty, thesisID)
		hastyErr <- err
	}()
	<-inFlight

	type result struct {
		ok  bool
		err error
	}
	patient := make(chan result, 1)
	go func() {
		ok, err := v.IsCertified(context.Background(), thesisID)
		patient <- result{ok, err}
	}()

	err := <-hastyErr
	assert.ErrorIs(t, err, errs.ErrTimeout)
	assert.Equal(t, errs.KindTransient, errs.KindOf(err))

	close(release)
	got := <-patient
	require.NoError(t, got.err)
	assert.True(t, got.ok)
}

func TestIsCertified_SharedReadIsBounded(t *testing.T) {
	lc := new(ledgerMocks.MockClient)
	lc.On("IsCertified", mock.Anything, thesisID).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(false, context.DeadlineExceeded)

	v := New(memory.NewThesisStore(), lc, nil, zap.NewNop())
	v.readTimeout = 10 * time.Millisecond

	_, err := v.IsCertified(context.Background(), thesisID)
	assert.ErrorIs(t, err, errs.ErrTimeout)
}

func TestCertificate_CancelledLookupIsTransient(t *testing.T) {
	store, lc, _ := certifiedFixture(t)
	v := New(cancelAwareStore{store}, lc, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := v.Certificate(ctx, thesisID)
	assert.Equal(t, errs.KindTransient, errs.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
}

// cancelAwareStore fails lookups once ctx is done, like a database driver.
type cancelAwareStore struct {
	*memory.ThesisStore
}

func (s cancelAwareStore) FindByID(ctx context.Context, id string) (*model.Thesis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.ThesisStore.FindByID(ctx, id)
}
