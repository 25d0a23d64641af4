package history

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vendemos/internal/listing/models"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
)

type HistoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
	now   time.Time
}

func (s *HistoryStoreSuite) SetupTest() {
	s.now = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
	s.store = NewInMemory(WithClock(func() time.Time { return s.now }))
	s.ctx = context.Background()
}

func TestHistoryStoreSuite(t *testing.T) {
	suite.Run(t, new(HistoryStoreSuite))
}

func (s *HistoryStoreSuite) record(listingID id.ListingID, from *models.Status, to models.Status) *models.TransitionRecord {
	return &models.TransitionRecord{
		ID:             id.NewRecordID(),
		ListingID:      listingID,
		PreviousStatus: from,
		NewStatus:      to,
	}
}

func (s *HistoryStoreSuite) TestAppend() {
	s.Run("stamps CreatedAt from the store clock", func() {
		rec := s.record(id.NewListingID(), nil, models.StatusPending)
		s.Require().NoError(s.store.Append(s.ctx, rec))
		s.Equal(s.now, rec.CreatedAt)
	})

	s.Run("rejects duplicate record ID", func() {
		rec := s.record(id.NewListingID(), nil, models.StatusPending)
		s.Require().NoError(s.store.Append(s.ctx, rec))
		s.ErrorIs(s.store.Append(s.ctx, rec), sentinel.ErrAlreadyUsed)
	})

	s.Run("rejects a record ID already used by another listing", func() {
		first := s.record(id.NewListingID(), nil, models.StatusPending)
		s.Require().NoError(s.store.Append(s.ctx, first))

		reused := s.record(id.NewListingID(), nil, models.StatusPending)
		reused.ID = first.ID
		s.ErrorIs(s.store.Append(s.ctx, reused), sentinel.ErrAlreadyUsed)

		records, err := s.store.ListByListing(s.ctx, reused.ListingID)
		s.Require().NoError(err)
		s.Empty(records)
	})

	s.Run("keeps actor and free text", func() {
		listingID := id.NewListingID()
		actor := id.UserID(uuid.New())
		rec := s.record(listingID, models.StatusPending.Ptr(), models.StatusPublished)
		rec.ActorID = &actor
		rec.Reason = "owner request"
		rec.Notes = "photos approved"
		s.Require().NoError(s.store.Append(s.ctx, rec))

		records, err := s.store.ListByListing(s.ctx, listingID)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(actor, *records[0].ActorID)
		s.Equal("owner request", records[0].Reason)
		s.Equal("photos approved", records[0].Notes)
		s.Equal(models.StatusPending, *records[0].PreviousStatus)
	})
}

func (s *HistoryStoreSuite) TestListByListing() {
	s.Run("returns empty slice for a listing without records", func() {
		records, err := s.store.ListByListing(s.ctx, id.NewListingID())
		s.Require().NoError(err)
		s.NotNil(records)
		s.Empty(records)
	})

	s.Run("orders newest first", func() {
		listingID := id.NewListingID()
		s.Require().NoError(s.store.Append(s.ctx, s.record(listingID, nil, models.StatusPending)))
		s.now = s.now.Add(time.Minute)
		s.Require().NoError(s.store.Append(s.ctx, s.record(listingID, models.StatusPending.Ptr(), models.StatusPublished)))
		s.now = s.now.Add(time.Minute)
		s.Require().NoError(s.store.Append(s.ctx, s.record(listingID, models.StatusPublished.Ptr(), models.StatusInactive)))

		records, err := s.store.ListByListing(s.ctx, listingID)
		s.Require().NoError(err)
		s.Require().Len(records, 3)
		s.Equal(models.StatusInactive, records[0].NewStatus)
		s.Equal(models.StatusPublished, records[1].NewStatus)
		s.True(records[2].IsCreation())
	})

	s.Run("breaks timestamp ties by insertion order", func() {
		listingID := id.NewListingID()
		s.Require().NoError(s.store.Append(s.ctx, s.record(listingID, nil, models.StatusPending)))
		s.Require().NoError(s.store.Append(s.ctx, s.record(listingID, models.StatusPending.Ptr(), models.StatusPublished)))

		records, err := s.store.ListByListing(s.ctx, listingID)
		s.Require().NoError(err)
		s.Require().Len(records, 2)
		s.Equal(models.StatusPublished, records[0].NewStatus)
		s.Equal(models.StatusPending, records[1].NewStatus)
	})

	s.Run("scopes records to the listing", func() {
		a, b := id.NewListingID(), id.NewListingID()
		s.Require().NoError(s.store.Append(s.ctx, s.record(a, nil, models.StatusPending)))
		s.Require().NoError(s.store.Append(s.ctx, s.record(b, nil, models.StatusPending)))

		records, err := s.store.ListByListing(s.ctx, a)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(a, records[0].ListingID)
	})
}

func (s *HistoryStoreSuite) TestLegacyStatuses() {
	listingID := id.NewListingID()
	legacy := "Active"
	s.store.entries[listingID] = []entry{{
		seq:            1,
		id:             id.NewRecordID(),
		previousStatus: strPtr("draft"),
		newStatus:      legacy,
		createdAt:      s.now,
	}}

	s.Run("normalizes retired synonyms on read", func() {
		records, err := s.store.ListByListing(s.ctx, listingID)
		s.Require().NoError(err)
		s.Require().Len(records, 1)
		s.Equal(models.StatusPublished, records[0].NewStatus)
		s.Equal(models.StatusPending, *records[0].PreviousStatus)
	})

	s.Run("reports unrecognized stored values as invalid state", func() {
		other := id.NewListingID()
		s.store.entries[other] = []entry{{seq: 2, id: id.NewRecordID(), newStatus: "archived", createdAt: s.now}}

		_, err := s.store.ListByListing(s.ctx, other)
		s.ErrorIs(err, sentinel.ErrInvalidState)
	})
}

func strPtr(v string) *string {
	return &v
}
