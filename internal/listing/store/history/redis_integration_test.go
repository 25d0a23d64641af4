//go:build integration

package history_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"vendemos/internal/listing/models"
	"vendemos/internal/listing/store/history"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
	"vendemos/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *history.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = history.NewRedis(s.redis.Client.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisStoreSuite) TestAppendAndListNewestFirst() {
	ctx := context.Background()
	listingID := id.NewListingID()
	statuses := []models.Status{models.StatusPending, models.StatusPublished, models.StatusInactive}

	var previous *models.Status
	for _, st := range statuses {
		s.Require().NoError(s.store.Append(ctx, record(listingID, previous, st)))
		previous = st.Ptr()
	}

	records, err := s.store.ListByListing(ctx, listingID)
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(models.StatusInactive, records[0].NewStatus)
	s.Equal(models.StatusPublished, records[1].NewStatus)
	s.True(records[2].IsCreation())
}

func (s *RedisStoreSuite) TestDuplicateRecordIsRejected() {
	ctx := context.Background()
	rec := record(id.NewListingID(), nil, models.StatusPending)
	s.Require().NoError(s.store.Append(ctx, rec))
	s.ErrorIs(s.store.Append(ctx, rec), sentinel.ErrAlreadyUsed)

	records, err := s.store.ListByListing(ctx, rec.ListingID)
	s.Require().NoError(err)
	s.Len(records, 1)
}

func (s *RedisStoreSuite) TestUnknownListingHasEmptyHistory() {
	records, err := s.store.ListByListing(context.Background(), id.NewListingID())
	s.Require().NoError(err)
	s.Empty(records)
}
