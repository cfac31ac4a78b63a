// Package policy centralizes who may act on a thesis. Every certifying code path
// asks CanAct; no other package inspects roles or institution flags.
package policy

import (
	"strings"

	"thesiscert/internal/errs"
	"thesiscert/internal/model"
)

// Action is a guarded pipeline operation.
type Action string

const (
	ActionSubmit              Action = "submit"
	ActionRequestVerification Action = "request_verification"
	ActionCertify             Action = "certify"
	ActionReject              Action = "reject"
	ActionRevoke              Action = "revoke"
	ActionDelete              Action = "delete"
)

// Denial reasons surfaced to callers verbatim.
const (
	ReasonUnauthenticated  = "unauthenticated"
	ReasonNotMember        = "not a member"
	ReasonCannotVerify     = "cannot verify"
	ReasonWrongInstitution = "wrong institution"
	ReasonInsufficientRole = "insufficient role"
	ReasonUnknownAction    = "unknown action"
)

// Decision is the outcome of an eligibility check.
type Decision struct {
	Allowed bool
	Reason  string
}

// Err returns nil when allowed, otherwise a forbidden error carrying the reason.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return errs.Forbidden(d.Reason)
}

func allow() Decision { return Decision{Allowed: true} }

func deny(reason string) Decision { return Decision{Reason: reason} }

// Policy holds the deployment-level choice of which roles may certify.
type Policy struct {
	certifyRoles map[model.Role]bool
}

// New builds a Policy. certifyRoles defaults to admin and institution_admin.
func New(certifyRoles ...model.Role) *Policy {
	if len(certifyRoles) == 0 {
		certifyRoles = []model.Role{model.RoleAdmin, model.RoleInstitutionAdmin}
	}
	p := &Policy{certifyRoles: make(map[model.Role]bool, len(certifyRoles))}
	for _, r := range certifyRoles {
		p.certifyRoles[r] = true
	}
	return p
}

// ParseRoles parses a comma separated role list, ignoring unknown entries.
func ParseRoles(s string) []model.Role {
	var out []model.Role
	for _, part := range strings.Split(s, ",") {
		r := model.Role(strings.TrimSpace(part))
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

// CanAct decides whether actor may perform action on a thesis owned by inst.
// Membership and verification rights are checked independently on every call.
func (p *Policy) CanAct(actor model.Actor, inst *model.Institution, action Action) Decision {
	if actor.ID == "" || !actor.Role.Valid() {
		return deny(ReasonUnauthenticated)
	}
	if inst == nil || !actor.AffiliatedWith(inst.ID) {
		return deny(ReasonWrongInstitution)
	}

	switch action {
	case ActionSubmit:
		if !inst.IsMember {
			return deny(ReasonNotMember)
		}
		return allow()

	case ActionRequestVerification, ActionReject:
		if !isInstitutionStaff(actor.Role) {
			return deny(ReasonInsufficientRole)
		}
		if !inst.IsMember {
			return deny(ReasonNotMember)
		}
		return allow()

	case ActionCertify:
		if !p.certifyRoles[actor.Role] {
			return deny(ReasonInsufficientRole)
		}
		if !inst.IsMember {
			return deny(ReasonNotMember)
		}
		if !inst.CanVerify {
			return deny(ReasonCannotVerify)
		}
		return allow()

	case ActionRevoke, ActionDelete:
		if actor.Role != model.RoleAdmin {
			return deny(ReasonInsufficientRole)
		}
		return allow()
	}
	return deny(ReasonUnknownAction)
}

func isInstitutionStaff(r model.Role) bool {
	return r == model.RoleInstitutionAdmin || r == model.RoleAdmin
}
