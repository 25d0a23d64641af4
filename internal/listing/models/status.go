package models

import (
	"strings"

	dErrors "vendemos/pkg/domain-errors"
)

// Status is a listing lifecycle state.
// Invariant: a persisted status is always one of the four canonical values.
//
// Usage: construct via ParseStatus at trust boundaries. Stores read through
// NormalizeStoredStatus so retired values never reach the policy.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPublished Status = "published"
	StatusInactive  Status = "inactive"
	StatusCompleted Status = "completed"
)

// AllStatuses lists the canonical states in lifecycle order.
var AllStatuses = []Status{StatusPending, StatusPublished, StatusInactive, StatusCompleted}

var validStatuses = map[Status]bool{
	StatusPending:   true,
	StatusPublished: true,
	StatusInactive:  true,
	StatusCompleted: true,
}

// legacyStatuses maps retired values found in historical rows to their
// canonical replacement. Only stores consult this table.
var legacyStatuses = map[string]Status{
	"active": StatusPublished,
	"draft":  StatusPending,
	"paused": StatusInactive,
	"hidden": StatusInactive,
	"sold":   StatusCompleted,
}

var legacyNames = []string{"active", "draft", "hidden", "paused", "sold"}

// ParseStatus constructs a Status from caller input. Only canonical values
// are accepted; retired synonyms are rejected here.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status is required")
	}
	st := Status(s)
	if !st.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid status: must be one of pending, published, inactive, completed")
	}
	return st, nil
}

// NormalizeStoredStatus maps a persisted value to its canonical status.
// Canonical values pass through, retired synonyms are rewritten, matching is
// case-insensitive. The second result is false for values that are neither.
func NormalizeStoredStatus(raw string) (Status, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if st := Status(v); st.IsValid() {
		return st, true
	}
	if st, ok := legacyStatuses[v]; ok {
		return st, true
	}
	return "", false
}

// IsValid reports whether the status is one of the canonical values.
func (s Status) IsValid() bool {
	return validStatuses[s]
}

// IsTerminal reports whether the transition table has no exit from s.
func (s Status) IsTerminal() bool {
	next, ok := transitions[s]
	return ok && len(next) == 0
}

// StoredForms returns every persisted spelling that normalizes to s: the
// canonical value followed by its retired synonyms in sorted order.
func (s Status) StoredForms() []string {
	forms := []string{string(s)}
	for _, legacy := range legacyNames {
		if legacyStatuses[legacy] == s {
			forms = append(forms, legacy)
		}
	}
	return forms
}

func (s Status) String() string {
	return string(s)
}

// Ptr returns a pointer to a copy of s, for nullable record fields.
func (s Status) Ptr() *Status {
	return &s
}
