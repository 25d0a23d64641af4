//go:build integration

package history_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"vendemos/internal/listing/models"
	"vendemos/internal/listing/store/history"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
	txcontext "vendemos/pkg/platform/tx"
	"vendemos/pkg/requestcontext"
	"vendemos/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *history.PostgresStore
	outboxed *history.PostgresStore
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
	s.store = history.NewPostgres(s.postgres.DB)
	s.outboxed = history.NewPostgres(s.postgres.DB, history.WithOutbox())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "listing_status_transitions", "outbox"))
}

func record(listingID id.ListingID, previous *models.Status, next models.Status) *models.TransitionRecord {
	return &models.TransitionRecord{
		ID:             id.NewRecordID(),
		ListingID:      listingID,
		PreviousStatus: previous,
		NewStatus:      next,
	}
}

func (s *PostgresStoreSuite) outboxCount() int {
	var n int
	s.Require().NoError(s.postgres.DB.QueryRowContext(context.Background(), `SELECT count(*) FROM outbox`).Scan(&n))
	return n
}

func (s *PostgresStoreSuite) TestAppendAndListNewestFirst() {
	ctx := context.Background()
	listingID := id.NewListingID()
	actor := id.UserID(uuid.New())

	creation := record(listingID, nil, models.StatusPending)
	published := record(listingID, models.StatusPending.Ptr(), models.StatusPublished)
	published.ActorID = &actor
	published.Reason = "approved"
	published.Notes = "checked photos"

	s.Require().NoError(s.store.Append(ctx, creation))
	s.Require().NoError(s.store.Append(ctx, published))
	s.False(creation.CreatedAt.IsZero())
	s.False(published.CreatedAt.Before(creation.CreatedAt))

	records, err := s.store.ListByListing(ctx, listingID)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal(published.ID, records[0].ID)
	s.Equal(actor, *records[0].ActorID)
	s.Equal("approved", records[0].Reason)
	s.Equal("checked photos", records[0].Notes)
	s.True(records[1].IsCreation())
	s.Nil(records[1].ActorID)

	s.Zero(s.outboxCount(), "plain store does not enqueue events")
}

func (s *PostgresStoreSuite) TestDuplicateRecordIsRejected() {
	ctx := context.Background()
	rec := record(id.NewListingID(), nil, models.StatusPending)
	s.Require().NoError(s.store.Append(ctx, rec))
	s.ErrorIs(s.store.Append(ctx, rec), sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestLegacyRowsAreNormalized() {
	ctx := context.Background()
	listingID := id.NewListingID()
	_, err := s.postgres.DB.ExecContext(ctx, `
		INSERT INTO listing_status_transitions (id, listing_id, previous_status, new_status)
		VALUES ($1, $2, 'Draft', 'active')
	`, uuid.New(), uuid.UUID(listingID))
	s.Require().NoError(err)

	records, err := s.store.ListByListing(ctx, listingID)
	s.Require().NoError(err)
	s.Require().Len(records, 1)
	s.Equal(models.StatusPending, *records[0].PreviousStatus)
	s.Equal(models.StatusPublished, records[0].NewStatus)
}

func (s *PostgresStoreSuite) TestOutboxEventIsEnqueuedWithRecord() {
	ctx := requestcontext.WithRequestID(context.Background(), "req-42")
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Firefox 128.0 (Linux)")
	rec := record(id.NewListingID(), models.StatusInactive.Ptr(), models.StatusPublished)
	s.Require().NoError(s.outboxed.Append(ctx, rec))

	var (
		aggregateID string
		eventType   string
		payload     []byte
	)
	err := s.postgres.DB.QueryRowContext(ctx,
		`SELECT aggregate_id, event_type, payload FROM outbox WHERE id = $1`, uuid.UUID(rec.ID),
	).Scan(&aggregateID, &eventType, &payload)
	s.Require().NoError(err)
	s.Equal(rec.ListingID.String(), aggregateID)
	s.Equal(history.EventStatusChanged, eventType)

	var body map[string]any
	s.Require().NoError(json.Unmarshal(payload, &body))
	s.Equal("inactive", body["previous_status"])
	s.Equal("published", body["new_status"])
	s.Equal("req-42", body["request_id"])
	s.Equal("203.0.113.7", body["client_ip"])
}

func (s *PostgresStoreSuite) TestOutboxEventRollsBackWithCallerTransaction() {
	ctx := context.Background()
	tx, err := s.postgres.DB.BeginTx(ctx, nil)
	s.Require().NoError(err)

	rec := record(id.NewListingID(), nil, models.StatusPending)
	s.Require().NoError(s.outboxed.Append(txcontext.WithTx(ctx, tx), rec))
	s.Require().NoError(tx.Rollback())

	records, err := s.store.ListByListing(ctx, rec.ListingID)
	s.Require().NoError(err)
	s.Empty(records)
	s.Zero(s.outboxCount())
}
