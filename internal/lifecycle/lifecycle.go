// Package lifecycle is the transition table of a thesis record.
//
// It answers only "is this move legal and where does it lead"; guards on who may
// move a thesis live in the policy package and persistence in the service.
package lifecycle

import (
	"fmt"

	"thesiscert/internal/errs"
	"thesiscert/internal/model"
)

// Event is a requested lifecycle transition.
type Event string

const (
	EventUpload              Event = "upload"
	EventRequestVerification Event = "request_verification"
	EventCertify             Event = "certify"
	EventReject              Event = "reject"
	EventRevoke              Event = "revoke"
)

// none is the pseudo state before a record exists.
const none model.Status = ""

type edge struct {
	from  model.Status
	event Event
}

var table = map[edge]model.Status{
	{none, EventUpload}: model.StatusPending,

	{model.StatusPending, EventRequestVerification}: model.StatusInstitutionVerified,

	{model.StatusPending, EventCertify}:             model.StatusCertified,
	{model.StatusInstitutionVerified, EventCertify}: model.StatusCertified,

	{model.StatusPending, EventReject}:             model.StatusRejected,
	{model.StatusInstitutionVerified, EventReject}: model.StatusRejected,

	{model.StatusCertified, EventRevoke}: model.StatusInstitutionVerified,
}

// Next returns the state reached from `from` on ev, or errs.ErrIllegalTransition.
func Next(from model.Status, ev Event) (model.Status, error) {
	to, ok := table[edge{from, ev}]
	if !ok {
		return from, errs.Wrap(errs.KindConflict,
			fmt.Sprintf("cannot %s a thesis in state %q", ev, from),
			errs.ErrIllegalTransition)
	}
	return to, nil
}

// Allowed reports whether ev may be applied in state from.
func Allowed(from model.Status, ev Event) bool {
	_, ok := table[edge{from, ev}]
	return ok
}

// ParseStatus accepts only the lifecycle vocabulary. Values from the older
// draft/published scheme are rejected rather than mapped.
func ParseStatus(s string) (model.Status, error) {
	st := model.Status(s)
	if !st.Valid() {
		return "", errs.Validation("unknown thesis status %q", s)
	}
	return st, nil
}
