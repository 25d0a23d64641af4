package listing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"vendemos/internal/listing/models"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
)

const listingKeyPrefix = "listing:"

// Each listing is a hash: owner_id, status, created_at, updated_at.
var (
	createScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 then
	return 0
end
redis.call("HSET", KEYS[1], "owner_id", ARGV[1], "status", ARGV[2], "created_at", ARGV[3], "updated_at", ARGV[4])
return 1
`)

	updateScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], "status", ARGV[1], "updated_at", ARGV[2])
return 1
`)

	// ARGV[1] new status, ARGV[2] updated_at, ARGV[3..] accepted stored forms.
	casScript = redis.NewScript(`
local current = redis.call("HGET", KEYS[1], "status")
if not current then
	return -1
end
current = string.lower(current)
for i = 3, #ARGV do
	if current == ARGV[i] then
		redis.call("HSET", KEYS[1], "status", ARGV[1], "updated_at", ARGV[2])
		return 1
	end
end
return 0
`)
)

// RedisStore keeps listing state in Redis hashes. Conditional writes run as
// Lua scripts so check and set are atomic on the server.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func listingKey(listingID id.ListingID) string {
	return listingKeyPrefix + listingID.String()
}

func (s *RedisStore) Create(ctx context.Context, listing *models.Listing) error {
	if listing == nil {
		return fmt.Errorf("listing is required")
	}
	created, err := createScript.Run(ctx, s.client, []string{listingKey(listing.ID)},
		listing.OwnerID.String(),
		string(listing.Status),
		listing.CreatedAt.UTC().Format(time.RFC3339Nano),
		listing.UpdatedAt.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("create listing: %w", err)
	}
	if created == 0 {
		return fmt.Errorf("create listing %s: %w", listing.ID, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, listingID id.ListingID) (*models.Listing, error) {
	fields, err := s.client.HGetAll(ctx, listingKey(listingID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find listing: %w", err)
	}
	if len(fields) == 0 {
		return nil, sentinel.ErrNotFound
	}

	ownerID, err := uuid.Parse(fields["owner_id"])
	if err != nil {
		return nil, fmt.Errorf("listing %s owner_id: %w", listingID, sentinel.ErrInvalidState)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return nil, fmt.Errorf("listing %s created_at: %w", listingID, sentinel.ErrInvalidState)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, fields["updated_at"])
	if err != nil {
		return nil, fmt.Errorf("listing %s updated_at: %w", listingID, sentinel.ErrInvalidState)
	}
	return toListing(listingID, &row{
		ownerID:   id.UserID(ownerID),
		status:    fields["status"],
		createdAt: createdAt,
		updatedAt: updatedAt,
	})
}

func (s *RedisStore) UpdateStatus(ctx context.Context, listingID id.ListingID, status models.Status, now time.Time) error {
	updated, err := updateScript.Run(ctx, s.client, []string{listingKey(listingID)},
		string(status),
		now.UTC().Format(time.RFC3339Nano),
	).Int()
	if err != nil {
		return fmt.Errorf("update listing status: %w", err)
	}
	if updated == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *RedisStore) CompareAndSetStatus(ctx context.Context, listingID id.ListingID, from, to models.Status, now time.Time) error {
	args := []any{string(to), now.UTC().Format(time.RFC3339Nano)}
	for _, form := range from.StoredForms() {
		args = append(args, form)
	}
	result, err := casScript.Run(ctx, s.client, []string{listingKey(listingID)}, args...).Int()
	if err != nil {
		return fmt.Errorf("compare and set listing status: %w", err)
	}
	switch result {
	case 1:
		return nil
	case -1:
		return sentinel.ErrNotFound
	default:
		return sentinel.ErrConflict
	}
}
