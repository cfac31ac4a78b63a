// Package fingerprint computes algorithm-tagged content digests of document bytes.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/sha3"

	"thesiscert/internal/errs"
)

// Algorithm names a digest algorithm as persisted and anchored on the ledger.
type Algorithm string

const (
	SHA256    Algorithm = "sha256"
	SHA3_256  Algorithm = "sha3-256"
	Keccak256 Algorithm = "keccak256"

	// Default is used when the caller does not ask for a specific algorithm.
	Default = SHA256
)

// ErrUnsupportedAlgorithm is returned for declared algorithms that cannot be computed
// (keccak256) and for unknown names. It never falls back to another algorithm.
var ErrUnsupportedAlgorithm = errs.New(errs.KindValidation, "algorithm not supported")

// ParseAlgorithm maps a user supplied name to a declared Algorithm.
// An empty name yields Default. keccak256 parses but is not computable.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return Default, nil
	case SHA256:
		return SHA256, nil
	case SHA3_256:
		return SHA3_256, nil
	case Keccak256:
		return Keccak256, nil
	}
	return "", errs.Wrap(errs.KindValidation, "unknown digest algorithm "+name, ErrUnsupportedAlgorithm)
}

// Supported reports whether a digest can be computed with a.
func (a Algorithm) Supported() bool {
	_, err := newHash(a)
	return err == nil
}

// HexLen is the length of a hex digest produced by a, or 0 if unknown.
func (a Algorithm) HexLen() int {
	switch a {
	case SHA256, SHA3_256, Keccak256:
		return 64
	}
	return 0
}

func newHash(a Algorithm) (hash.Hash, error) {
	switch a {
	case SHA256:
		return sha256.New(), nil
	case SHA3_256:
		return sha3.New256(), nil
	}
	return nil, ErrUnsupportedAlgorithm
}

// Digest returns the lowercase hex digest of data under a.
func Digest(data []byte, a Algorithm) (string, error) {
	h, err := newHash(a)
	if err != nil {
		return "", err
	}
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// DigestReader streams r through a and returns the lowercase hex digest and byte count.
func DigestReader(r io.Reader, a Algorithm) (string, int64, error) {
	h, err := newHash(a)
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ValidHex reports whether s looks like a digest produced by a:
// lowercase hex of the algorithm's fixed length.
func ValidHex(s string, a Algorithm) bool {
	if len(s) != a.HexLen() {
		return false
	}
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
