package outbox

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresStore claims and acknowledges outbox entries.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Claim locks up to limit unpublished entries (oldest first), passes them to
// publish and marks the IDs publish returns as published, all in one
// transaction. Rows locked by another worker are skipped. Entries publish
// does not acknowledge stay unpublished for the next claim.
func (s *PostgresStore) Claim(ctx context.Context, limit int, publish func(context.Context, []Entry) ([]uuid.UUID, error)) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin outbox claim: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return 0, fmt.Errorf("select outbox entries: %w", err)
	}
	var entries []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &e.Payload, &e.CreatedAt); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan outbox entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, fmt.Errorf("iterate outbox entries: %w", err)
	}
	rows.Close()

	if len(entries) == 0 {
		return 0, nil
	}

	published, publishErr := publish(ctx, entries)
	if len(published) > 0 {
		ids := make([]string, len(published))
		for i, id := range published {
			ids[i] = id.String()
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE outbox SET published_at = $2 WHERE id = ANY($1::uuid[])`,
			pq.Array(ids), time.Now(),
		)
		if err != nil {
			return 0, fmt.Errorf("mark outbox entries published: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit outbox claim: %w", err)
	}
	return len(published), publishErr
}

// Pending counts unpublished entries.
func (s *PostgresStore) Pending(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM outbox WHERE published_at IS NULL`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending outbox entries: %w", err)
	}
	return n, nil
}
