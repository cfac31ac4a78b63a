package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"strings"
	"time"

	"thesiscert/internal/errs"
)

// Package storage contains the content-addressed store clients that pin thesis bytes
// to IPFS-style providers. The provider assigns the content identifier (CID); callers
// treat it as authoritative and never derive it themselves.

// Pin describes bytes accepted by a provider.
// Key is the provider handle used to fetch or unpin; for IPFS-native providers it equals ContentID.
type Pin struct {
	ContentID string
	Key       string
	Size      int64
	Provider  string
	PinnedAt  time.Time
}

// ContentStore is a content-addressed storage client. Implementations hold no
// per-request state and are safe for concurrent use.
type ContentStore interface {
	// Upload pins data and returns the provider-assigned content identifier.
	Upload(ctx context.Context, data []byte, filename, contentType string) (Pin, error)
	// Fetch streams back the bytes stored under key.
	Fetch(ctx context.Context, key string) (io.ReadCloser, error)
	// Unpin releases the bytes stored under key.
	Unpin(ctx context.Context, key string) error
	// GatewayURL returns a public retrieval URL for a content identifier.
	GatewayURL(contentID string) string
	// Provider names the backing provider.
	Provider() string
}

// Limits are checked before any network round trip.
type Limits struct {
	MaxBytes     int64
	AllowedTypes []string
}

// Validate rejects oversized files and content types outside the allow-list.
func (l Limits) Validate(size int64, contentType string) error {
	if size <= 0 {
		return errs.Validation("file is empty")
	}
	if l.MaxBytes > 0 && size > l.MaxBytes {
		return errs.Validation("file exceeds %d bytes", l.MaxBytes)
	}
	if len(l.AllowedTypes) == 0 {
		return nil
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return errs.Validation("invalid content type %q", contentType)
	}
	for _, allowed := range l.AllowedTypes {
		if strings.EqualFold(mt, allowed) {
			return nil
		}
	}
	return errs.Validation("content type %q is not accepted", mt)
}

func gatewayURL(base, contentID string) string {
	return fmt.Sprintf("%s/ipfs/%s", strings.TrimRight(base, "/"), contentID)
}
