//go:build integration

package outbox_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kgo"

	"vendemos/internal/outbox"
	"vendemos/internal/platform/kafka"
	"vendemos/pkg/testutil/containers"
)

type RelaySuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	redpanda *containers.RedpandaContainer
	store    *outbox.PostgresStore
}

func TestRelaySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RelaySuite))
}

func (s *RelaySuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.redpanda = mgr.GetRedpanda(s.T())
	s.store = outbox.NewPostgres(s.postgres.DB)
}

func (s *RelaySuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "outbox"))
}

func (s *RelaySuite) TestRelayPublishesAndMarksEntries() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	topic := "listing-transitions-" + uuid.NewString()[:8]

	producer, err := kafka.NewProducer(s.redpanda.Brokers, topic)
	s.Require().NoError(err)
	defer producer.Close()
	s.Require().NoError(producer.EnsureTopic(ctx, 1, 1))
	s.Require().NoError(producer.EnsureTopic(ctx, 1, 1), "existing topic is not an error")

	listingID := uuid.NewString()
	want := map[string]bool{}
	for i := range 3 {
		entryID := uuid.New()
		want[entryID.String()] = true
		s.Require().NoError(outbox.Insert(ctx, s.postgres.DB, outbox.Entry{
			ID:            entryID,
			AggregateType: "listing",
			AggregateID:   listingID,
			EventType:     "listing.status_changed",
			Payload:       []byte(fmt.Sprintf(`{"seq":%d}`, i)),
		}))
	}
	pending, err := s.store.Pending(ctx)
	s.Require().NoError(err)
	s.Equal(3, pending)

	worker := outbox.NewWorker(s.store, producer, outbox.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	n, err := worker.ProcessOnce(ctx)
	s.Require().NoError(err)
	s.Equal(3, n)

	pending, err = s.store.Pending(ctx)
	s.Require().NoError(err)
	s.Zero(pending)

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	got := map[string]bool{}
	for len(got) < len(want) {
		fetches := consumer.PollFetches(ctx)
		s.Require().NoError(ctx.Err(), "timed out waiting for records")
		fetches.EachRecord(func(r *kgo.Record) {
			s.Equal(listingID, string(r.Key))
			for _, h := range r.Headers {
				if h.Key == kafka.HeaderEntryID {
					got[string(h.Value)] = true
				}
			}
		})
	}
	s.Equal(want, got)
}
