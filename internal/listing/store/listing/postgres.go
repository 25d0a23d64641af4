package listing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"vendemos/internal/listing/models"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
	txcontext "vendemos/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists listings in PostgreSQL.
// This store is pure I/O; transition rules live in the policy and service.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, listing *models.Listing) error {
	if listing == nil {
		return fmt.Errorf("listing is required")
	}
	query := `
		INSERT INTO listings (id, owner_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(listing.ID),
		uuid.UUID(listing.OwnerID),
		string(listing.Status),
		listing.CreatedAt,
		listing.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("create listing %s: %w", listing.ID, sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create listing: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	query := `
		SELECT owner_id, status, created_at, updated_at
		FROM listings
		WHERE id = $1
	`
	var (
		ownerID   uuid.UUID
		rawStatus string
		createdAt time.Time
		updatedAt time.Time
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(listingID)).
		Scan(&ownerID, &rawStatus, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find listing: %w", err)
	}
	return toListing(listingID, &row{
		ownerID:   id.UserID(ownerID),
		status:    rawStatus,
		createdAt: createdAt,
		updatedAt: updatedAt,
	})
}

// UpdateStatus is a single-row update keyed by id (last writer wins).
func (s *PostgresStore) UpdateStatus(ctx context.Context, listingID id.ListingID, status models.Status, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE listings SET status = $2, updated_at = $3 WHERE id = $1`,
		uuid.UUID(listingID), string(status), now,
	)
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	return requireAffected(res)
}

// CompareAndSetStatus updates the row only while it still holds from.
// Retired synonyms of from count as a match so historical rows can move.
func (s *PostgresStore) CompareAndSetStatus(ctx context.Context, listingID id.ListingID, from, to models.Status, now time.Time) error {
	res, err := s.execer(ctx).ExecContext(ctx, `
		UPDATE listings SET status = $3, updated_at = $4
		WHERE id = $1 AND lower(status) = ANY($2)
	`, uuid.UUID(listingID), pq.Array(from.StoredForms()), string(to), now)
	if err != nil {
		return fmt.Errorf("compare and set listing status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("compare and set listing status: %w", err)
	}
	if affected == 1 {
		return nil
	}

	// Zero rows: either the listing is gone or another writer moved it.
	var exists bool
	err = s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM listings WHERE id = $1)`, uuid.UUID(listingID),
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("compare and set listing status: %w", err)
	}
	if !exists {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrConflict
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
