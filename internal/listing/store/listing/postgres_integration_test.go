//go:build integration

package listing_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vendemos/internal/listing/models"
	"vendemos/internal/listing/store/listing"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
	"vendemos/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *listing.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = listing.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "listings"))
}

func newTestListing(status models.Status) *models.Listing {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Listing{
		ID:        id.NewListingID(),
		OwnerID:   id.UserID(uuid.New()),
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// insertRaw writes a row with an arbitrary stored status, bypassing the store.
func (s *PostgresStoreSuite) insertRaw(status string) id.ListingID {
	listingID := id.NewListingID()
	_, err := s.postgres.DB.ExecContext(context.Background(), `
		INSERT INTO listings (id, owner_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, now(), now())
	`, uuid.UUID(listingID), uuid.New(), status)
	s.Require().NoError(err)
	return listingID
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	l := newTestListing(models.StatusPending)
	s.Require().NoError(s.store.Create(ctx, l))

	found, err := s.store.FindByID(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(l.OwnerID, found.OwnerID)
	s.Equal(models.StatusPending, found.Status)
	s.True(l.CreatedAt.Equal(found.CreatedAt))

	s.ErrorIs(s.store.Create(ctx, l), sentinel.ErrAlreadyUsed)

	_, err = s.store.FindByID(ctx, id.NewListingID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestLegacyStatusesAreNormalizedOnRead() {
	ctx := context.Background()
	cases := map[string]models.Status{
		"Active": models.StatusPublished,
		"draft":  models.StatusPending,
		"SOLD":   models.StatusCompleted,
	}
	for raw, want := range cases {
		found, err := s.store.FindByID(ctx, s.insertRaw(raw))
		s.Require().NoError(err, raw)
		s.Equal(want, found.Status, raw)
	}

	_, err := s.store.FindByID(ctx, s.insertRaw("archived"))
	s.ErrorIs(err, sentinel.ErrInvalidState)
}

func (s *PostgresStoreSuite) TestUpdateStatus() {
	ctx := context.Background()
	l := newTestListing(models.StatusPending)
	s.Require().NoError(s.store.Create(ctx, l))

	s.Require().NoError(s.store.UpdateStatus(ctx, l.ID, models.StatusPublished, time.Now()))
	found, err := s.store.FindByID(ctx, l.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPublished, found.Status)

	s.ErrorIs(s.store.UpdateStatus(ctx, id.NewListingID(), models.StatusPublished, time.Now()), sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCompareAndSetStatus() {
	ctx := context.Background()

	s.Run("matches a legacy stored form", func() {
		listingID := s.insertRaw("active")
		s.Require().NoError(s.store.CompareAndSetStatus(ctx, listingID, models.StatusPublished, models.StatusInactive, time.Now()))
		found, err := s.store.FindByID(ctx, listingID)
		s.Require().NoError(err)
		s.Equal(models.StatusInactive, found.Status)
	})

	s.Run("stale expectation is a conflict", func() {
		l := newTestListing(models.StatusInactive)
		s.Require().NoError(s.store.Create(ctx, l))
		err := s.store.CompareAndSetStatus(ctx, l.ID, models.StatusPublished, models.StatusInactive, time.Now())
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("missing listing is not found", func() {
		err := s.store.CompareAndSetStatus(ctx, id.NewListingID(), models.StatusPending, models.StatusPublished, time.Now())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestConcurrentCompareAndSetHasOneWinner() {
	ctx := context.Background()
	l := newTestListing(models.StatusPending)
	s.Require().NoError(s.store.Create(ctx, l))

	const goroutines = 20
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CompareAndSetStatus(ctx, l.ID, models.StatusPending, models.StatusPublished, time.Now())
			switch err {
			case nil:
				wins.Add(1)
			case sentinel.ErrConflict:
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}
