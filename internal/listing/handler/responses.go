package handler

import (
	"time"

	"vendemos/internal/listing/models"
)

type ListingResponse struct {
	ID             string   `json:"id"`
	OwnerID        string   `json:"owner_id"`
	Status         string   `json:"status"`
	AllowedTargets []string `json:"allowed_targets"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

type TransitionResponse struct {
	ListingID      string  `json:"listing_id"`
	PreviousStatus *string `json:"previous_status"`
	NewStatus      string  `json:"new_status"`
	Changed        bool    `json:"changed"`
	AuditRecordID  *string `json:"audit_record_id"`
}

type CreateListingResponse struct {
	Listing    ListingResponse    `json:"listing"`
	Transition TransitionResponse `json:"transition"`
}

type RecordResponse struct {
	ID             string  `json:"id"`
	PreviousStatus *string `json:"previous_status"`
	NewStatus      string  `json:"new_status"`
	ActorID        *string `json:"actor_id"`
	Reason         string  `json:"reason,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	CreatedAt      string  `json:"created_at"`
}

type HistoryResponse struct {
	ListingID string           `json:"listing_id"`
	Records   []RecordResponse `json:"records"`
}

func FromListing(l *models.Listing) ListingResponse {
	targets := models.AllowedTargets(l.Status)
	allowed := make([]string, len(targets))
	for i, st := range targets {
		allowed[i] = string(st)
	}
	return ListingResponse{
		ID:             l.ID.String(),
		OwnerID:        l.OwnerID.String(),
		Status:         string(l.Status),
		AllowedTargets: allowed,
		CreatedAt:      formatTime(l.CreatedAt),
		UpdatedAt:      formatTime(l.UpdatedAt),
	}
}

func FromTransition(r *models.TransitionResult) TransitionResponse {
	resp := TransitionResponse{
		ListingID:      r.ListingID.String(),
		PreviousStatus: statusString(r.PreviousStatus),
		NewStatus:      string(r.NewStatus),
		Changed:        r.Changed,
	}
	if r.AuditRecordID != nil {
		s := r.AuditRecordID.String()
		resp.AuditRecordID = &s
	}
	return resp
}

func FromHistory(listingID string, records []*models.TransitionRecord) HistoryResponse {
	out := make([]RecordResponse, 0, len(records))
	for _, rec := range records {
		item := RecordResponse{
			ID:             rec.ID.String(),
			PreviousStatus: statusString(rec.PreviousStatus),
			NewStatus:      string(rec.NewStatus),
			Reason:         rec.Reason,
			Notes:          rec.Notes,
			CreatedAt:      formatTime(rec.CreatedAt),
		}
		if rec.ActorID != nil {
			s := rec.ActorID.String()
			item.ActorID = &s
		}
		out = append(out, item)
	}
	return HistoryResponse{ListingID: listingID, Records: out}
}

func statusString(st *models.Status) *string {
	if st == nil {
		return nil
	}
	s := string(*st)
	return &s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
