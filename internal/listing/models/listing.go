package models

import (
	"time"

	id "vendemos/pkg/domain"
	dErrors "vendemos/pkg/domain-errors"
)

// Listing is a property record whose publication lifecycle this module governs.
//
// Invariants:
//   - Status is always canonical when written
//   - OwnerID is immutable after construction
//   - New listings start in pending
//   - completed is terminal: no operation moves a listing out of it
type Listing struct {
	ID        id.ListingID `json:"id"`
	OwnerID   id.UserID    `json:"owner_id"`
	Status    Status       `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// NewListing constructs a pending listing for owner.
func NewListing(listingID id.ListingID, ownerID id.UserID, now time.Time) (*Listing, error) {
	if listingID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "listing ID cannot be nil")
	}
	if ownerID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "owner ID cannot be nil")
	}
	return &Listing{
		ID:        listingID,
		OwnerID:   ownerID,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// TransitionRecord is one entry of a listing's audit trail.
// PreviousStatus is nil for the creation event. Records are never mutated
// once appended; CreatedAt is stamped by the store at insert time.
type TransitionRecord struct {
	ID             id.RecordID  `json:"id"`
	ListingID      id.ListingID `json:"listing_id"`
	PreviousStatus *Status      `json:"previous_status"`
	NewStatus      Status       `json:"new_status"`
	ActorID        *id.UserID   `json:"actor_id,omitempty"`
	Reason         string       `json:"reason,omitempty"`
	Notes          string       `json:"notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
}

// IsCreation reports whether the record describes the creation event.
func (r *TransitionRecord) IsCreation() bool {
	return r.PreviousStatus == nil
}

// TransitionResult is returned by successful status operations.
// Changed is false for a no-op request. AuditRecordID is nil when the
// transition was a no-op or the audit append failed.
type TransitionResult struct {
	ListingID      id.ListingID `json:"listing_id"`
	PreviousStatus *Status      `json:"previous_status"`
	NewStatus      Status       `json:"new_status"`
	Changed        bool         `json:"changed"`
	AuditRecordID  *id.RecordID `json:"audit_record_id"`
}
