package model

import (
	"time"

	"thesiscert/internal/fingerprint"
)

// LedgerCertificate is the certificate as reported by the ledger for a thesis id.
type LedgerCertificate struct {
	ThesisID        string                `json:"thesis_id"`
	UploaderID      string                `json:"uploader_id"`
	InstitutionID   string                `json:"institution_id"`
	ContentID       string                `json:"ipfs_cid"`
	Digest          string                `json:"file_hash"`
	DigestAlgorithm fingerprint.Algorithm `json:"hash_algorithm"`
	IssuedAt        time.Time             `json:"issued_at"`
}

// Certificate is the verifiable answer for a thesis: the local record joined with a live
// ledger read. It is always derived on demand.
type Certificate struct {
	ThesisID        string                `json:"thesis_id"`
	InstitutionID   string                `json:"institution_id"`
	UploaderID      string                `json:"uploader_id"`
	ContentID       string                `json:"content_id"`
	Digest          string                `json:"digest"`
	DigestAlgorithm fingerprint.Algorithm `json:"digest_algorithm"`
	IssuedAt        *time.Time            `json:"issued_at,omitempty"`

	Status      Status `json:"status"`
	TxHash      string `json:"tx_hash"`
	ChainID     int64  `json:"chain_id"`
	BlockNumber uint64 `json:"block_number"`

	Revoked   bool       `json:"revoked"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
	RevokedBy string     `json:"revoked_by,omitempty"`

	OnLedger   bool               `json:"on_ledger"`
	Consistent bool               `json:"consistent"`
	Mismatches []string           `json:"mismatches,omitempty"`
	Ledger     *LedgerCertificate `json:"ledger,omitempty"`
	CheckedAt  time.Time          `json:"checked_at"`
}
