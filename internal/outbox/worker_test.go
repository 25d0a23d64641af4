package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendemos/pkg/platform/circuit"
)

// memoryClaimer is an in-process outbox table used to drive the worker.
type memoryClaimer struct {
	mu        sync.Mutex
	entries   []Entry
	published map[uuid.UUID]bool
}

func newMemoryClaimer(n int) *memoryClaimer {
	c := &memoryClaimer{published: map[uuid.UUID]bool{}}
	for range n {
		c.entries = append(c.entries, Entry{ID: uuid.New(), EventType: "listing.status_changed"})
	}
	return c
}

func (c *memoryClaimer) Claim(ctx context.Context, limit int, publish func(context.Context, []Entry) ([]uuid.UUID, error)) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var batch []Entry
	for _, e := range c.entries {
		if !c.published[e.ID] && len(batch) < limit {
			batch = append(batch, e)
		}
	}
	if len(batch) == 0 {
		return 0, nil
	}
	ids, err := publish(ctx, batch)
	for _, id := range ids {
		c.published[id] = true
	}
	return len(ids), err
}

func (c *memoryClaimer) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries) - len(c.published)
}

type stubPublisher struct {
	err   error
	calls int
}

func (p *stubPublisher) Publish(_ context.Context, entries []Entry) ([]uuid.UUID, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	ids := make([]uuid.UUID, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	return ids, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_ProcessOncePublishesBatch(t *testing.T) {
	claimer := newMemoryClaimer(5)
	publisher := &stubPublisher{}
	metrics := NewMetricsWith(prometheus.NewRegistry())
	w := NewWorker(claimer, publisher, WithBatchSize(3), WithLogger(discardLogger()), WithMetrics(metrics))

	n, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 2, claimer.pending())

	n, err = w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 0, claimer.pending())
	assert.InDelta(t, 5, promtestutil.ToFloat64(metrics.Published), 0)
}

func TestWorker_BreakerStopsPollingAfterFailures(t *testing.T) {
	claimer := newMemoryClaimer(1)
	publisher := &stubPublisher{err: errors.New("broker unavailable")}
	metrics := NewMetricsWith(prometheus.NewRegistry())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := circuit.New("outbox",
		circuit.WithFailureThreshold(2),
		circuit.WithSuccessThreshold(1),
		circuit.WithCooldown(time.Minute),
		circuit.WithClock(func() time.Time { return now }),
	)
	w := NewWorker(claimer, publisher, WithBreaker(breaker), WithLogger(discardLogger()), WithMetrics(metrics))

	for range 2 {
		_, err := w.ProcessOnce(context.Background())
		require.Error(t, err)
	}
	assert.True(t, breaker.IsOpen())
	assert.InDelta(t, 1, promtestutil.ToFloat64(metrics.BreakerOpen), 0)

	_, err := w.ProcessOnce(context.Background())
	require.NoError(t, err, "open breaker skips the claim")
	assert.Equal(t, 2, publisher.calls)

	now = now.Add(time.Minute)
	publisher.err = nil
	n, err := w.ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, breaker.IsOpen())
	assert.InDelta(t, 0, promtestutil.ToFloat64(metrics.BreakerOpen), 0)
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	claimer := newMemoryClaimer(3)
	w := NewWorker(claimer, &stubPublisher{}, WithPollInterval(10*time.Millisecond), WithLogger(discardLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return claimer.pending() == 0 }, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
