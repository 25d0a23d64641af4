package models

import (
	"strings"

	id "vendemos/pkg/domain"
	dErrors "vendemos/pkg/domain-errors"
)

const (
	maxReasonLength = 500
	maxNotesLength  = 2000
)

// ChangeStatusCommand requests a status transition for one listing.
// RequestedStatus is raw caller input; the service parses it.
type ChangeStatusCommand struct {
	ListingID       id.ListingID
	RequestedStatus string
	ActorID         *id.UserID
	Reason          string
	Notes           string
}

// RegisterCreationCommand records the creation event of a listing created
// elsewhere.
type RegisterCreationCommand struct {
	ListingID     id.ListingID
	InitialStatus string
	ActorID       *id.UserID
	Reason        string
	Notes         string
}

// CreateListingCommand creates a new pending listing and records its
// creation event.
type CreateListingCommand struct {
	OwnerID id.UserID
	ActorID *id.UserID
	Reason  string
	Notes   string
}

// Normalize trims free-text fields.
func (c *ChangeStatusCommand) Normalize() {
	c.RequestedStatus = strings.TrimSpace(c.RequestedStatus)
	c.Reason = strings.TrimSpace(c.Reason)
	c.Notes = strings.TrimSpace(c.Notes)
}

// Validate checks presence and size rules. Status validity is checked by
// ParseStatus so the error message names the allowed values.
func (c *ChangeStatusCommand) Validate() error {
	if c.ListingID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "listing ID is required")
	}
	return validateAnnotations(c.Reason, c.Notes)
}

func (c *RegisterCreationCommand) Normalize() {
	c.InitialStatus = strings.TrimSpace(c.InitialStatus)
	c.Reason = strings.TrimSpace(c.Reason)
	c.Notes = strings.TrimSpace(c.Notes)
}

func (c *RegisterCreationCommand) Validate() error {
	if c.ListingID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "listing ID is required")
	}
	return validateAnnotations(c.Reason, c.Notes)
}

func (c *CreateListingCommand) Normalize() {
	c.Reason = strings.TrimSpace(c.Reason)
	c.Notes = strings.TrimSpace(c.Notes)
}

func (c *CreateListingCommand) Validate() error {
	if c.OwnerID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "owner ID is required")
	}
	return validateAnnotations(c.Reason, c.Notes)
}

func validateAnnotations(reason, notes string) error {
	if len(reason) > maxReasonLength {
		return dErrors.New(dErrors.CodeInvalidInput, "reason must be 500 characters or less")
	}
	if len(notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeInvalidInput, "notes must be 2000 characters or less")
	}
	return nil
}
