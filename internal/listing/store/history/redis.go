package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"vendemos/internal/listing/models"
	id "vendemos/pkg/domain"
	"vendemos/pkg/platform/sentinel"
)

const (
	historyKeyPrefix = "listing_history:"
	recordKeyPrefix  = "listing_history_record:"
)

// RedisStore keeps each listing's trail as a list with the newest record at
// the head. Records are stamped with the Redis server clock inside the append
// script, so the stamp and the push are one atomic step. A marker key per
// record ID rejects duplicate appends.
type RedisStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

type storedRecord struct {
	ID             string  `json:"id"`
	PreviousStatus *string `json:"previous_status"`
	NewStatus      string  `json:"new_status"`
	ActorID        *string `json:"actor_id,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	Notes          string  `json:"notes,omitempty"`
}

// appendScript returns the server time in unix microseconds, or 0 when the
// record ID is already taken. List items are "<micros>|<json>".
var appendScript = redis.NewScript(`
if redis.call("SET", KEYS[2], "1", "NX") == false then
	return 0
end
local now = redis.call("TIME")
local stamp = now[1] .. string.format("%06d", tonumber(now[2]))
redis.call("LPUSH", KEYS[1], stamp .. "|" .. ARGV[1])
return stamp
`)

// Append stores record and sets CreatedAt from the Redis server clock.
func (s *RedisStore) Append(ctx context.Context, record *models.TransitionRecord) error {
	if record == nil {
		return fmt.Errorf("transition record is required")
	}
	stored := storedRecord{
		ID:        record.ID.String(),
		NewStatus: string(record.NewStatus),
		Reason:    record.Reason,
		Notes:     record.Notes,
	}
	if record.PreviousStatus != nil {
		prev := string(*record.PreviousStatus)
		stored.PreviousStatus = &prev
	}
	if record.ActorID != nil {
		actor := record.ActorID.String()
		stored.ActorID = &actor
	}
	body, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal transition: %w", err)
	}

	keys := []string{historyKeyPrefix + record.ListingID.String(), recordKeyPrefix + record.ID.String()}
	res, err := appendScript.Run(ctx, s.client, keys, body).Result()
	if err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	stamp, ok := res.(string)
	if !ok {
		return fmt.Errorf("append transition %s: %w", record.ID, sentinel.ErrAlreadyUsed)
	}
	createdAt, err := parseStamp(stamp)
	if err != nil {
		return err
	}
	record.CreatedAt = createdAt
	return nil
}

// ListByListing returns the listing's records newest first. The list is
// already in push order; the stable sort only matters if the server clock
// stepped backwards between appends.
func (s *RedisStore) ListByListing(ctx context.Context, listingID id.ListingID) ([]*models.TransitionRecord, error) {
	raw, err := s.client.LRange(ctx, historyKeyPrefix+listingID.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	entries := make([]entry, 0, len(raw))
	for _, item := range raw {
		stamp, body, found := strings.Cut(item, "|")
		if !found {
			return nil, fmt.Errorf("decode transition: malformed item")
		}
		var stored storedRecord
		if err := json.Unmarshal([]byte(body), &stored); err != nil {
			return nil, fmt.Errorf("decode transition: %w", err)
		}
		e, err := stored.toEntry()
		if err != nil {
			return nil, err
		}
		if e.createdAt, err = parseStamp(stamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].createdAt.After(entries[j].createdAt)
	})

	records := make([]*models.TransitionRecord, 0, len(entries))
	for _, e := range entries {
		record, err := toRecord(listingID, e)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

func parseStamp(stamp string) (time.Time, error) {
	micros, err := strconv.ParseInt(stamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("decode transition time %q: %w", stamp, err)
	}
	return time.UnixMicro(micros).UTC(), nil
}

func (r storedRecord) toEntry() (entry, error) {
	recordID, err := id.ParseRecordID(r.ID)
	if err != nil {
		return entry{}, fmt.Errorf("decode transition id: %w", err)
	}
	e := entry{
		id:             recordID,
		previousStatus: r.PreviousStatus,
		newStatus:      r.NewStatus,
		reason:         r.Reason,
		notes:          r.Notes,
	}
	if r.ActorID != nil {
		actor, err := id.ParseUserID(*r.ActorID)
		if err != nil {
			return entry{}, fmt.Errorf("decode transition actor: %w", err)
		}
		e.actorID = &actor
	}
	return e, nil
}
