package model

// Role is the actor role supplied by the authentication layer.
type Role string

const (
	RoleUser             Role = "user"
	RoleInstitutionAdmin Role = "institution_admin"
	RoleAdmin            Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleInstitutionAdmin, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of a pipeline operation.
type Actor struct {
	ID             string   `json:"id"`
	Role           Role     `json:"role"`
	InstitutionIDs []string `json:"institution_ids"`
}

// AffiliatedWith reports whether the actor belongs to the institution.
func (a Actor) AffiliatedWith(institutionID string) bool {
	for _, id := range a.InstitutionIDs {
		if id == institutionID {
			return true
		}
	}
	return false
}
