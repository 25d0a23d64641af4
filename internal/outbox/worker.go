package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"vendemos/pkg/platform/circuit"
)

// Claimer hands batches of unpublished entries to a publish callback.
type Claimer interface {
	Claim(ctx context.Context, limit int, publish func(context.Context, []Entry) ([]uuid.UUID, error)) (int, error)
}

// Publisher delivers entries downstream and returns the IDs it delivered.
// A partial result with a non-nil error acknowledges only the returned IDs.
type Publisher interface {
	Publish(ctx context.Context, entries []Entry) ([]uuid.UUID, error)
}

const (
	defaultPollInterval = time.Second
	defaultBatchSize    = 100
)

// Worker polls the outbox and publishes entries. A circuit breaker stops
// polling while the publisher keeps failing.
type Worker struct {
	store     Claimer
	publisher Publisher
	breaker   *circuit.Breaker
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
	metrics   *Metrics
}

type WorkerOption func(*Worker)

func WithPollInterval(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.batchSize = n
		}
	}
}

func WithBreaker(b *circuit.Breaker) WorkerOption {
	return func(w *Worker) {
		if b != nil {
			w.breaker = b
		}
	}
}

func WithLogger(logger *slog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithMetrics(m *Metrics) WorkerOption {
	return func(w *Worker) {
		w.metrics = m
	}
}

func NewWorker(store Claimer, publisher Publisher, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:     store,
		publisher: publisher,
		breaker:   circuit.New("outbox"),
		interval:  defaultPollInterval,
		batchSize: defaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run polls until ctx is cancelled and returns ctx.Err().
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				n, err := w.ProcessOnce(ctx)
				if err != nil || n < w.batchSize {
					break
				}
			}
		}
	}
}

// ProcessOnce claims and publishes a single batch. It returns the number of
// entries acknowledged. When the breaker is open it does nothing.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	if !w.breaker.Allow() {
		return 0, nil
	}

	published, err := w.store.Claim(ctx, w.batchSize, w.publisher.Publish)
	if published > 0 && w.metrics != nil {
		w.metrics.AddPublished(published)
	}
	if err != nil {
		_, change := w.breaker.RecordFailure()
		if w.metrics != nil {
			w.metrics.IncPublishFailures()
		}
		if change.Opened {
			w.logger.ErrorContext(ctx, "outbox publisher circuit opened",
				"breaker", w.breaker.Name(),
				"error", err,
			)
		} else {
			w.logger.WarnContext(ctx, "outbox publish failed",
				"published", published,
				"error", err,
			)
		}
		w.observeBreaker()
		return published, err
	}

	if _, change := w.breaker.RecordSuccess(); change.Closed {
		w.logger.InfoContext(ctx, "outbox publisher circuit closed", "breaker", w.breaker.Name())
	}
	w.observeBreaker()
	return published, nil
}

func (w *Worker) observeBreaker() {
	if w.metrics != nil {
		w.metrics.SetBreakerOpen(w.breaker.IsOpen())
	}
}
