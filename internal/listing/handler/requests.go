package handler

import (
	"strings"

	dErrors "vendemos/pkg/domain-errors"
)

// CreateListingRequest is the body of POST /listings. The owner is the
// authenticated caller.
type CreateListingRequest struct {
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

func (r *CreateListingRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

// ChangeStatusRequest is the body of POST /listings/{id}/status.
type ChangeStatusRequest struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Notes  string `json:"notes"`
}

// Validate checks presence only. Status values are parsed by the service so
// the error names the allowed values.
func (r *ChangeStatusRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.Status = strings.TrimSpace(r.Status)
	if r.Status == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "status is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

// RegisterCreationRequest is the body of POST /listings/{id}/creation-events.
type RegisterCreationRequest struct {
	InitialStatus string `json:"initial_status"`
	Reason        string `json:"reason"`
	Notes         string `json:"notes"`
}

func (r *RegisterCreationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	r.InitialStatus = strings.TrimSpace(r.InitialStatus)
	if r.InitialStatus == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "initial_status is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}
