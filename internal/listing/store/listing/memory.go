package listing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vendemos/internal/listing/models"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
)

// row mirrors the persisted shape: status is kept as the raw stored string so
// historical values go through the same normalization as the SQL stores.
type row struct {
	ownerID   id.UserID
	status    string
	createdAt time.Time
	updatedAt time.Time
}

// InMemory is a listing store guarded by a RWMutex, for dev and tests.
type InMemory struct {
	mu       sync.RWMutex
	listings map[id.ListingID]*row
}

func NewInMemory() *InMemory {
	return &InMemory{listings: make(map[id.ListingID]*row)}
}

func (s *InMemory) Create(_ context.Context, listing *models.Listing) error {
	if listing == nil {
		return fmt.Errorf("listing is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.listings[listing.ID]; exists {
		return fmt.Errorf("create listing %s: %w", listing.ID, sentinel.ErrAlreadyUsed)
	}
	s.listings[listing.ID] = &row{
		ownerID:   listing.OwnerID,
		status:    string(listing.Status),
		createdAt: listing.CreatedAt,
		updatedAt: listing.UpdatedAt,
	}
	return nil
}

func (s *InMemory) FindByID(_ context.Context, listingID id.ListingID) (*models.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.listings[listingID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return toListing(listingID, r)
}

// UpdateStatus overwrites the status unconditionally (last writer wins).
func (s *InMemory) UpdateStatus(_ context.Context, listingID id.ListingID, status models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.listings[listingID]
	if !ok {
		return sentinel.ErrNotFound
	}
	r.status = string(status)
	r.updatedAt = now
	return nil
}

// CompareAndSetStatus writes to only while the stored status still
// normalizes to from.
func (s *InMemory) CompareAndSetStatus(_ context.Context, listingID id.ListingID, from, to models.Status, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.listings[listingID]
	if !ok {
		return sentinel.ErrNotFound
	}
	current, ok := models.NormalizeStoredStatus(r.status)
	if !ok || current != from {
		return sentinel.ErrConflict
	}
	r.status = string(to)
	r.updatedAt = now
	return nil
}

func toListing(listingID id.ListingID, r *row) (*models.Listing, error) {
	status, ok := models.NormalizeStoredStatus(r.status)
	if !ok {
		return nil, fmt.Errorf("listing %s has unrecognized status %q: %w", listingID, r.status, sentinel.ErrInvalidState)
	}
	return &models.Listing{
		ID:        listingID,
		OwnerID:   r.ownerID,
		Status:    status,
		CreatedAt: r.createdAt,
		UpdatedAt: r.updatedAt,
	}, nil
}
