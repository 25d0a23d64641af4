package models

// Outcome is the tag of a policy Decision.
type Outcome int

const (
	OutcomeRejected Outcome = iota
	OutcomeAllowed
	OutcomeNoOp
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllowed:
		return "allowed"
	case OutcomeNoOp:
		return "no_op"
	default:
		return "rejected"
	}
}

// RejectionReason names the rule a rejected transition violates.
// The string value is a stable code; Message returns the human text.
type RejectionReason string

const (
	ReasonInvalidTarget           RejectionReason = "invalid_target_status"
	ReasonUnknownCurrent          RejectionReason = "unknown_current_status"
	ReasonTerminal                RejectionReason = "terminal_status"
	ReasonPendingPublishOnly      RejectionReason = "pending_publish_only"
	ReasonPublishedDeactivateOnly RejectionReason = "published_deactivate_only"
	ReasonInactiveRepublishOnly   RejectionReason = "inactive_republish_only"
)

var reasonMessages = map[RejectionReason]string{
	ReasonInvalidTarget:           "invalid target status",
	ReasonUnknownCurrent:          "current status is not recognized",
	ReasonTerminal:                "completed listings cannot change status",
	ReasonPendingPublishOnly:      "pending listings may only be published",
	ReasonPublishedDeactivateOnly: "published listings may only be deactivated",
	ReasonInactiveRepublishOnly:   "inactive listings may only be republished",
}

// Message returns the human-readable rule text for the reason.
func (r RejectionReason) Message() string {
	if msg, ok := reasonMessages[r]; ok {
		return msg
	}
	return string(r)
}

// Decision is the result of consulting the status policy.
// Reason is set only when Outcome is OutcomeRejected.
type Decision struct {
	Outcome Outcome
	Reason  RejectionReason
}

func (d Decision) Allowed() bool  { return d.Outcome == OutcomeAllowed }
func (d Decision) NoOp() bool     { return d.Outcome == OutcomeNoOp }
func (d Decision) Rejected() bool { return d.Outcome == OutcomeRejected }

func allow() Decision                        { return Decision{Outcome: OutcomeAllowed} }
func noOp() Decision                         { return Decision{Outcome: OutcomeNoOp} }
func forbid(reason RejectionReason) Decision { return Decision{Outcome: OutcomeRejected, Reason: reason} }

// transitions is the single source of truth for allowed moves.
// A status missing from the inner set is rejected with the rule of its source
// state in sourceRules.
var transitions = map[Status]map[Status]struct{}{
	StatusPending:   {StatusPublished: {}},
	StatusPublished: {StatusInactive: {}},
	StatusInactive:  {StatusPublished: {}},
	StatusCompleted: {},
}

var sourceRules = map[Status]RejectionReason{
	StatusPending:   ReasonPendingPublishOnly,
	StatusPublished: ReasonPublishedDeactivateOnly,
	StatusInactive:  ReasonInactiveRepublishOnly,
	StatusCompleted: ReasonTerminal,
}

// Decide reports whether a listing in from may move to to.
//
// The target is validated first, then from == to yields a no-op, then the
// transition table is consulted. Decide has no side effects.
func Decide(from, to Status) Decision {
	if !to.IsValid() {
		return forbid(ReasonInvalidTarget)
	}
	if from == to {
		return noOp()
	}
	allowedNext, ok := transitions[from]
	if !ok {
		return forbid(ReasonUnknownCurrent)
	}
	if from.IsTerminal() {
		return forbid(ReasonTerminal)
	}
	if _, ok := allowedNext[to]; ok {
		return allow()
	}
	return forbid(sourceRules[from])
}

// AllowedTargets returns the states reachable from from in one transition.
func AllowedTargets(from Status) []Status {
	next := transitions[from]
	out := make([]Status, 0, len(next))
	for _, st := range AllStatuses {
		if _, ok := next[st]; ok {
			out = append(out, st)
		}
	}
	return out
}

// TransitionError carries a policy rejection through error returns.
type TransitionError struct {
	From   Status
	To     Status
	Reason RejectionReason
}

func (e *TransitionError) Error() string {
	return e.Reason.Message()
}

// ReasonCode exposes the rejection reason to transport layers.
func (e *TransitionError) ReasonCode() string {
	return string(e.Reason)
}
