// Package domain holds typed identifiers shared across modules.
//
// Each identifier wraps a uuid.UUID so that a ListingID can never be passed
// where a UserID is expected. Construct values from external input with the
// Parse* functions; they reject empty, malformed and nil UUIDs.
package domain

import (
	"github.com/google/uuid"

	dErrors "vendemos/pkg/domain-errors"
)

// UserID identifies an account: a listing owner or the actor of a transition.
type UserID uuid.UUID

// ListingID identifies a listing.
type ListingID uuid.UUID

// RecordID identifies a status transition record.
type RecordID uuid.UUID

func (id UserID) String() string    { return uuid.UUID(id).String() }
func (id ListingID) String() string { return uuid.UUID(id).String() }
func (id RecordID) String() string  { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ListingID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id RecordID) IsNil() bool  { return uuid.UUID(id) == uuid.Nil }

func (id UserID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id ListingID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id RecordID) MarshalText() ([]byte, error)  { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ListingID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *RecordID) UnmarshalText(b []byte) error  { return (*uuid.UUID)(id).UnmarshalText(b) }

// NewListingID returns a fresh random listing identifier.
func NewListingID() ListingID { return ListingID(uuid.New()) }

// NewRecordID returns a fresh random record identifier.
func NewRecordID() RecordID { return RecordID(uuid.New()) }

// ParseUserID parses an account identifier from external input.
func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID(s, "user ID")
	return UserID(u), err
}

// ParseListingID parses a listing identifier from external input.
func ParseListingID(s string) (ListingID, error) {
	u, err := parseUUID(s, "listing ID")
	return ListingID(u), err
}

// ParseRecordID parses a transition record identifier from external input.
func ParseRecordID(s string) (RecordID, error) {
	u, err := parseUUID(s, "record ID")
	return RecordID(u), err
}

func parseUUID(s, label string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+label)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, label+" cannot be nil")
	}
	return u, nil
}
