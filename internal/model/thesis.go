package model

import (
	"time"

	"thesiscert/internal/fingerprint"
)

// Status is the lifecycle state of a thesis record.
type Status string

const (
	StatusPending             Status = "pending"
	StatusInstitutionVerified Status = "institution_verified"
	StatusCertified           Status = "certified"
	StatusRejected            Status = "rejected"
)

// Valid reports whether s is one of the lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInstitutionVerified, StatusCertified, StatusRejected:
		return true
	}
	return false
}

// Author is a thesis author; Email is optional.
type Author struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
}

// Thesis is the certifiable unit. Digest and ContentID never change once set;
// the ledger payload (TxHash, ChainID, BlockNumber) is present only after anchoring
// and survives revocation.
type Thesis struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Summary    string   `json:"summary"`
	Keywords   []string `json:"keywords"`
	Authors    []Author `json:"authors"`
	Language   string   `json:"language"`
	DegreeType string   `json:"degree_type"`
	Department string   `json:"department,omitempty"`
	Field      string   `json:"field,omitempty"`
	DOI        string   `json:"doi,omitempty"`

	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	StorageKey  string `json:"-"`

	Digest          string                `json:"digest"`
	DigestAlgorithm fingerprint.Algorithm `json:"digest_algorithm"`
	ContentID       string                `json:"content_id"`

	UploadedBy    string `json:"uploaded_by"`
	InstitutionID string `json:"institution_id"`

	Status Status `json:"status"`

	TxHash        string `json:"tx_hash,omitempty"`
	ChainID       int64  `json:"chain_id,omitempty"`
	BlockNumber   uint64 `json:"block_number,omitempty"`
	PendingTxHash string `json:"-"`

	VerifiedBy   string     `json:"verified_by,omitempty"`
	VerifiedAt   *time.Time `json:"verified_at,omitempty"`
	CertifiedAt  *time.Time `json:"certified_at,omitempty"`
	RejectedBy   string     `json:"rejected_by,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
	RejectReason string     `json:"reject_reason,omitempty"`
	RevokedBy    string     `json:"revoked_by,omitempty"`
	RevokedAt    *time.Time `json:"revoked_at,omitempty"`
	RevokeReason string     `json:"revoke_reason,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Anchored reports whether a ledger transaction has been confirmed for the thesis.
func (t *Thesis) Anchored() bool {
	return t.TxHash != ""
}

// Revoked reports whether a previously certified thesis currently carries a revocation.
func (t *Thesis) Revoked() bool {
	return t.RevokedAt != nil && t.Status != StatusCertified
}

// Clone returns a deep copy so callers can mutate a candidate without touching the stored record.
func (t *Thesis) Clone() *Thesis {
	c := *t
	c.Keywords = append([]string(nil), t.Keywords...)
	c.Authors = append([]Author(nil), t.Authors...)
	return &c
}

// ThesisMetadata is the descriptive part supplied by the uploader.
type ThesisMetadata struct {
	Title           string   `json:"title"`
	Summary         string   `json:"summary"`
	Keywords        []string `json:"keywords"`
	Authors         []Author `json:"authors"`
	Language        string   `json:"language"`
	DegreeType      string   `json:"degree_type"`
	Department      string   `json:"department,omitempty"`
	Field           string   `json:"field,omitempty"`
	DOI             string   `json:"doi,omitempty"`
	InstitutionID   string   `json:"institution_id"`
	DigestAlgorithm string   `json:"digest_algorithm,omitempty"`
}

// ThesisEvent is an append-only audit row written for every lifecycle transition.
type ThesisEvent struct {
	ID       string    `json:"id"`
	ThesisID string    `json:"thesis_id"`
	From     Status    `json:"from,omitempty"`
	To       Status    `json:"to"`
	ActorID  string    `json:"actor_id"`
	Reason   string    `json:"reason,omitempty"`
	TxHash   string    `json:"tx_hash,omitempty"`
	At       time.Time `json:"at"`
}
