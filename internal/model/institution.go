package model

import "time"

// Institution is a certifying authority. IsMember and CanVerify are independent flags;
// neither implies the other.
type Institution struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country,omitempty"`
	Domain    string    `json:"domain,omitempty"`
	IsMember  bool      `json:"is_member"`
	CanVerify bool      `json:"can_verify"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
