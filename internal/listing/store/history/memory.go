package history

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"vendemos/internal/listing/models"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
)

// entry keeps statuses as raw stored strings so reads normalize the same way
// the SQL store does.
type entry struct {
	seq            int64
	id             id.RecordID
	previousStatus *string
	newStatus      string
	actorID        *id.UserID
	reason         string
	notes          string
	createdAt      time.Time
}

// InMemory is an append-only audit trail for dev and tests.
type InMemory struct {
	mu      sync.RWMutex
	seq     int64
	entries map[id.ListingID][]entry
	ids     map[id.RecordID]struct{}
	clock   func() time.Time
}

type Option func(*InMemory)

// WithClock sets the time source used to stamp appended records.
func WithClock(clock func() time.Time) Option {
	return func(s *InMemory) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemory(opts ...Option) *InMemory {
	s := &InMemory{
		entries: make(map[id.ListingID][]entry),
		ids:     make(map[id.RecordID]struct{}),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Append stores record and stamps its CreatedAt.
func (s *InMemory) Append(_ context.Context, record *models.TransitionRecord) error {
	if record == nil {
		return fmt.Errorf("transition record is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	// Record IDs are unique across every listing, matching the primary key.
	if _, exists := s.ids[record.ID]; exists {
		return fmt.Errorf("append transition %s: %w", record.ID, sentinel.ErrAlreadyUsed)
	}

	record.CreatedAt = s.clock()
	s.seq++
	e := entry{
		seq:       s.seq,
		id:        record.ID,
		newStatus: string(record.NewStatus),
		reason:    record.Reason,
		notes:     record.Notes,
		createdAt: record.CreatedAt,
	}
	if record.PreviousStatus != nil {
		prev := string(*record.PreviousStatus)
		e.previousStatus = &prev
	}
	if record.ActorID != nil {
		actor := *record.ActorID
		e.actorID = &actor
	}
	s.entries[record.ListingID] = append(s.entries[record.ListingID], e)
	s.ids[record.ID] = struct{}{}
	return nil
}

// ListByListing returns the listing's records newest first. Records sharing a
// timestamp are ordered by insertion, latest first.
func (s *InMemory) ListByListing(_ context.Context, listingID id.ListingID) ([]*models.TransitionRecord, error) {
	s.mu.RLock()
	stored := make([]entry, len(s.entries[listingID]))
	copy(stored, s.entries[listingID])
	s.mu.RUnlock()

	sort.Slice(stored, func(i, j int) bool {
		if !stored[i].createdAt.Equal(stored[j].createdAt) {
			return stored[i].createdAt.After(stored[j].createdAt)
		}
		return stored[i].seq > stored[j].seq
	})

	records := make([]*models.TransitionRecord, 0, len(stored))
	for _, e := range stored {
		record, err := toRecord(listingID, e)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func toRecord(listingID id.ListingID, e entry) (*models.TransitionRecord, error) {
	newStatus, ok := models.NormalizeStoredStatus(e.newStatus)
	if !ok {
		return nil, fmt.Errorf("transition %s has unrecognized status %q: %w", e.id, e.newStatus, sentinel.ErrInvalidState)
	}
	record := &models.TransitionRecord{
		ID:        e.id,
		ListingID: listingID,
		NewStatus: newStatus,
		ActorID:   e.actorID,
		Reason:    e.reason,
		Notes:     e.notes,
		CreatedAt: e.createdAt,
	}
	if e.previousStatus != nil {
		prev, ok := models.NormalizeStoredStatus(*e.previousStatus)
		if !ok {
			return nil, fmt.Errorf("transition %s has unrecognized previous status %q: %w", e.id, *e.previousStatus, sentinel.ErrInvalidState)
		}
		record.PreviousStatus = &prev
	}
	return record, nil
}
