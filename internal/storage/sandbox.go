package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base32"
	"io"
	"strings"
	"sync"
	"time"

	"thesiscert/internal/errs"
)

// cidV1RawSHA256 is the binary prefix of a CIDv1 with the raw codec and a sha2-256 multihash.
var cidV1RawSHA256 = []byte{0x01, 0x55, 0x12, 0x20}

// SandboxStore is the NON-PRODUCTION store used when no provider credentials are
// configured. It keeps bytes in memory and synthesizes a CID-shaped identifier
// deterministically from the content hash. The factory refuses to build it when
// production credentials or APP_ENV=production are present.
type SandboxStore struct {
	gateway string

	mu      sync.RWMutex
	objects map[string][]byte
}

// NewSandbox returns an empty in-memory store.
func NewSandbox(gateway string) *SandboxStore {
	return &SandboxStore{gateway: gateway, objects: make(map[string][]byte)}
}

func (s *SandboxStore) Provider() string { return "sandbox" }

func (s *SandboxStore) GatewayURL(contentID string) string { return gatewayURL(s.gateway, contentID) }

// Upload stores data under its synthesized CID.
func (s *SandboxStore) Upload(ctx context.Context, data []byte, filename, contentType string) (Pin, error) {
	if err := ctx.Err(); err != nil {
		return Pin{}, errs.Transient("sandbox upload cancelled", err)
	}
	cid := SynthesizeCID(data)

	s.mu.Lock()
	s.objects[cid] = append([]byte(nil), data...)
	s.mu.Unlock()

	return Pin{
		ContentID: cid,
		Key:       cid,
		Size:      int64(len(data)),
		Provider:  s.Provider(),
		PinnedAt:  time.Now().UTC(),
	}, nil
}

func (s *SandboxStore) Fetch(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.RLock()
	data, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *SandboxStore) Unpin(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// SynthesizeCID builds a base32 CIDv1 string ("bafkrei...") from the sha2-256 of data.
func SynthesizeCID(data []byte) string {
	sum := sha256.Sum256(data)
	raw := append(append([]byte(nil), cidV1RawSHA256...), sum[:]...)
	enc := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
	return "b" + strings.ToLower(enc)
}
