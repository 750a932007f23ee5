// Package lifecycle holds the visit request state machine.
//
// A request carries one State. The legacy status and visit_status columns exposed by the API
// are projections of it, so impossible combinations cannot be stored.
package lifecycle

import (
	"fmt"
	"time"

	"visit-tracker/internal/errs"

	"github.com/shopspring/decimal"
)

type State string

const (
	StatePending        State = "pending"
	StateApproved       State = "approved"
	StateScheduled      State = "scheduled"
	StateVisitCompleted State = "visit_completed"
	StateConfirmed      State = "confirmed"
	StateRejected       State = "rejected"
)

// Approval axis values.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// Execution axis values.
const (
	VisitPending   = "pending"
	VisitScheduled = "scheduled"
	VisitCompleted = "visit-completed"
	VisitConfirmed = "confirmed"
)

type Action string

const (
	ActionApprove          Action = "approve"
	ActionApproveScheduled Action = "approve_scheduled"
	ActionSchedule         Action = "schedule"
	ActionReject           Action = "reject"
	ActionRecordVisit      Action = "record_visit"
	ActionRejectVisit      Action = "reject_visit"
	ActionConfirm          Action = "confirm"
)

var transitions = map[State]map[Action]State{
	StatePending: {
		ActionApprove:          StateApproved,
		ActionApproveScheduled: StateScheduled,
		ActionReject:           StateRejected,
	},
	StateApproved: {
		ActionSchedule: StateScheduled,
	},
	StateScheduled: {
		ActionRecordVisit: StateVisitCompleted,
		ActionRejectVisit: StateRejected,
	},
	StateVisitCompleted: {
		ActionConfirm: StateConfirmed,
	},
}

// Next returns the state reached by applying a to from.
func Next(from State, a Action) (State, error) {
	if to, ok := transitions[from][a]; ok {
		return to, nil
	}
	return "", &errs.Error{
		Kind:    errs.KindInvalidTransition,
		Message: fmt.Sprintf("cannot %s a request in state %s", a.verb(), from),
	}
}

// Allowed lists the actions legal from s.
func Allowed(s State) []Action {
	out := make([]Action, 0, len(transitions[s]))
	for _, a := range []Action{ActionApprove, ActionApproveScheduled, ActionSchedule, ActionReject, ActionRecordVisit, ActionRejectVisit, ActionConfirm} {
		if _, ok := transitions[s][a]; ok {
			out = append(out, a)
		}
	}
	return out
}

// States lists every state in lifecycle order.
func States() []State {
	return []State{StatePending, StateApproved, StateScheduled, StateVisitCompleted, StateConfirmed, StateRejected}
}

func (s State) Valid() bool {
	for _, st := range States() {
		if s == st {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateRejected
}

// Status projects s onto the approval axis.
func (s State) Status() string {
	switch s {
	case StatePending:
		return StatusPending
	case StateRejected:
		return StatusRejected
	default:
		return StatusApproved
	}
}

// VisitStatus projects s onto the execution axis.
func (s State) VisitStatus() string {
	switch s {
	case StateScheduled:
		return VisitScheduled
	case StateVisitCompleted:
		return VisitCompleted
	case StateConfirmed:
		return VisitConfirmed
	default:
		return VisitPending
	}
}

// FromLegacy maps a (status, visit_status) pair back to a State.
func FromLegacy(status, visitStatus string) (State, bool) {
	for _, s := range []State{StatePending, StateApproved, StateScheduled, StateVisitCompleted, StateConfirmed, StateRejected} {
		if s.Status() == status && s.VisitStatus() == visitStatus {
			return s, true
		}
	}
	return "", false
}

func (a Action) verb() string {
	switch a {
	case ActionApprove, ActionApproveScheduled:
		return "approve"
	case ActionSchedule:
		return "schedule"
	case ActionReject:
		return "reject"
	case ActionRecordVisit:
		return "record a visit for"
	case ActionRejectVisit:
		return "reject the visit of"
	case ActionConfirm:
		return "confirm"
	}
	return string(a)
}

var nanosPerHour = decimal.NewFromInt(int64(time.Hour))

// BillableHours rounds the elapsed time between start and end up to whole hours.
func BillableHours(start, end time.Time) (int, error) {
	if !end.After(start) {
		return 0, fmt.Errorf("end %s is not after start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	elapsed := decimal.NewFromInt(int64(end.Sub(start)))
	return int(elapsed.Div(nanosPerHour).Ceil().IntPart()), nil
}
