package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"vendemos/internal/listing/models"
	"vendemos/internal/outbox"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
	txcontext "vendemos/pkg/platform/tx"
	"vendemos/pkg/requestcontext"
)

const (
	uniqueViolation = "23505"

	aggregateType         = "listing"
	EventStatusChanged    = "listing.status_changed"
	EventCreationRecorded = "listing.created"
)

// PostgresStore appends transition records to listing_status_transitions.
// With an outbox attached, every append also enqueues an event in the same
// transaction.
type PostgresStore struct {
	db         *sql.DB
	withOutbox bool
}

type PostgresOption func(*PostgresStore)

// WithOutbox enqueues a transition event for each appended record.
func WithOutbox() PostgresOption {
	return func(s *PostgresStore) {
		s.withOutbox = true
	}
}

func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// eventPayload is the outbox body published for each transition.
type eventPayload struct {
	RecordID       string  `json:"record_id"`
	ListingID      string  `json:"listing_id"`
	PreviousStatus *string `json:"previous_status"`
	NewStatus      string  `json:"new_status"`
	ActorID        *string `json:"actor_id,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	RequestID      string  `json:"request_id,omitempty"`
	ClientIP       string  `json:"client_ip,omitempty"`
	UserAgent      string  `json:"user_agent,omitempty"`
	OccurredAt     string  `json:"occurred_at"`
}

// Append inserts record and stamps CreatedAt from the database clock.
func (s *PostgresStore) Append(ctx context.Context, record *models.TransitionRecord) error {
	if record == nil {
		return fmt.Errorf("transition record is required")
	}
	if !s.withOutbox {
		return s.insert(ctx, s.queryer(ctx), record)
	}

	return txcontext.Run(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.insertWithEvent(ctx, tx, record)
	})
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) queryer(ctx context.Context) queryer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) insertWithEvent(ctx context.Context, tx *sql.Tx, record *models.TransitionRecord) error {
	if err := s.insert(ctx, tx, record); err != nil {
		return err
	}
	payload, err := json.Marshal(newEventPayload(ctx, record))
	if err != nil {
		return fmt.Errorf("marshal transition event: %w", err)
	}
	eventType := EventStatusChanged
	if record.IsCreation() {
		eventType = EventCreationRecorded
	}
	return outbox.Insert(ctx, tx, outbox.Entry{
		ID:            uuid.UUID(record.ID),
		AggregateType: aggregateType,
		AggregateID:   record.ListingID.String(),
		EventType:     eventType,
		Payload:       payload,
		CreatedAt:     record.CreatedAt,
	})
}

func (s *PostgresStore) insert(ctx context.Context, q queryer, record *models.TransitionRecord) error {
	var previous *string
	if record.PreviousStatus != nil {
		p := string(*record.PreviousStatus)
		previous = &p
	}
	var actor *uuid.UUID
	if record.ActorID != nil {
		a := uuid.UUID(*record.ActorID)
		actor = &a
	}

	err := q.QueryRowContext(ctx, `
		INSERT INTO listing_status_transitions
			(id, listing_id, previous_status, new_status, actor_id, reason, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, clock_timestamp())
		RETURNING created_at
	`,
		uuid.UUID(record.ID),
		uuid.UUID(record.ListingID),
		previous,
		string(record.NewStatus),
		actor,
		record.Reason,
		record.Notes,
	).Scan(&record.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("append transition %s: %w", record.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// ListByListing returns the listing's records newest first, using the
// insertion sequence to order records with equal timestamps.
func (s *PostgresStore) ListByListing(ctx context.Context, listingID id.ListingID) ([]*models.TransitionRecord, error) {
	rows, err := s.queryer(ctx).QueryContext(ctx, `
		SELECT id, previous_status, new_status, actor_id, reason, notes, created_at
		FROM listing_status_transitions
		WHERE listing_id = $1
		ORDER BY created_at DESC, seq DESC
	`, uuid.UUID(listingID))
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var records []*models.TransitionRecord
	for rows.Next() {
		var (
			recordID  uuid.UUID
			previous  sql.NullString
			newStatus string
			actor     uuid.NullUUID
			e         entry
		)
		if err := rows.Scan(&recordID, &previous, &newStatus, &actor, &e.reason, &e.notes, &e.createdAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.id = id.RecordID(recordID)
		e.newStatus = newStatus
		if previous.Valid {
			e.previousStatus = &previous.String
		}
		if actor.Valid {
			a := id.UserID(actor.UUID)
			e.actorID = &a
		}
		record, err := toRecord(listingID, e)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	if records == nil {
		records = []*models.TransitionRecord{}
	}
	return records, nil
}

func newEventPayload(ctx context.Context, record *models.TransitionRecord) eventPayload {
	p := eventPayload{
		RecordID:   record.ID.String(),
		ListingID:  record.ListingID.String(),
		NewStatus:  string(record.NewStatus),
		Reason:     record.Reason,
		RequestID:  requestcontext.RequestID(ctx),
		ClientIP:   requestcontext.ClientIP(ctx),
		UserAgent:  requestcontext.UserAgent(ctx),
		OccurredAt: record.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if record.PreviousStatus != nil {
		prev := string(*record.PreviousStatus)
		p.PreviousStatus = &prev
	}
	if record.ActorID != nil {
		actor := record.ActorID.String()
		p.ActorID = &actor
	}
	return p
}
