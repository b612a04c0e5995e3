package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/couchcryptid/river-alert-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Key layout. The chat id comes before the station name in the row key so
// the numeric prefix keeps keys unambiguous for arbitrary station names.
func subscriptionKey(chatID int64, station string) string {
	return "alert:" + strconv.FormatInt(chatID, 10) + ":" + station
}

func stationIndexKey(station string) string {
	return "alerts:station:" + station
}

func chatIndexKey(chatID int64) string {
	return "alerts:chat:" + strconv.FormatInt(chatID, 10)
}

// Subscriptions reads and writes alert subscription rows plus the two
// secondary-index sets (by station and by chat) used for equality queries.
type Subscriptions struct {
	rdb *redis.Client
}

// NewSubscriptions creates the subscription store.
func NewSubscriptions(rdb *redis.Client) *Subscriptions {
	return &Subscriptions{rdb: rdb}
}

// upsertScript writes the row and both index entries atomically. The row
// always lands in the active state with triggered fields cleared, so
// re-subscribing resets a triggered subscription.
//
// KEYS[1] row, KEYS[2] station index, KEYS[3] chat index
// ARGV[1] chat id, ARGV[2] station, ARGV[3] threshold, ARGV[4] created_at,
// ARGV[5] thread id ('' clears it)
var upsertScript = redis.NewScript(`
redis.call('HSET', KEYS[1], 'station', ARGV[2], 'chat_id', ARGV[1], 'threshold', ARGV[3], 'created_at', ARGV[4], 'state', 'active')
redis.call('HDEL', KEYS[1], 'triggered_at', 'triggered_value')
if ARGV[5] ~= '' then
  redis.call('HSET', KEYS[1], 'thread_id', ARGV[5])
else
  redis.call('HDEL', KEYS[1], 'thread_id')
end
redis.call('SADD', KEYS[2], ARGV[1])
redis.call('SADD', KEYS[3], ARGV[2])
return 1
`)

// deleteScript removes the row and both index entries atomically, returning
// whether a row existed.
var deleteScript = redis.NewScript(`
local existed = redis.call('DEL', KEYS[1])
redis.call('SREM', KEYS[2], ARGV[1])
redis.call('SREM', KEYS[3], ARGV[2])
return existed
`)

// markTriggeredScript transitions an existing row to triggered with the
// delivery timestamp and value.
var markTriggeredScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return 0
end
redis.call('HSET', KEYS[1], 'state', 'triggered', 'triggered_at', ARGV[1], 'triggered_value', ARGV[2])
return 1
`)

// reactivateScript returns one row to active iff it is triggered and its
// cooldown has elapsed. The check is time-only: the current reading is not
// consulted, so a subscription can reactivate while the level is still high.
var reactivateScript = redis.NewScript(`
if redis.call('HGET', KEYS[1], 'state') ~= 'triggered' then
  return 0
end
local at = redis.call('HGET', KEYS[1], 'triggered_at')
if not at or tonumber(ARGV[1]) - tonumber(at) < tonumber(ARGV[2]) then
  return 0
end
redis.call('HSET', KEYS[1], 'state', 'active')
redis.call('HDEL', KEYS[1], 'triggered_at', 'triggered_value')
return 1
`)

// Upsert creates or replaces the subscription for (station, chat). The state
// always resets to active; any ongoing cooldown is discarded.
func (s *Subscriptions) Upsert(ctx context.Context, sub domain.Subscription) error {
	threadID := ""
	if sub.ThreadID != nil {
		threadID = strconv.FormatInt(*sub.ThreadID, 10)
	}
	err := upsertScript.Run(ctx, s.rdb,
		[]string{subscriptionKey(sub.ChatID, sub.Station), stationIndexKey(sub.Station), chatIndexKey(sub.ChatID)},
		sub.ChatID,
		sub.Station,
		formatFloat(sub.Threshold),
		sub.CreatedAt,
		threadID,
	).Err()
	if err != nil {
		return fmt.Errorf("upsert subscription %s/%d: %w", sub.Station, sub.ChatID, err)
	}
	return nil
}

// Delete removes the subscription if present and reports whether it existed.
// A second delete returns false, not an error.
func (s *Subscriptions) Delete(ctx context.Context, station string, chatID int64) (bool, error) {
	existed, err := deleteScript.Run(ctx, s.rdb,
		[]string{subscriptionKey(chatID, station), stationIndexKey(station), chatIndexKey(chatID)},
		chatID,
		station,
	).Int()
	if err != nil {
		return false, fmt.Errorf("delete subscription %s/%d: %w", station, chatID, err)
	}
	return existed == 1, nil
}

// Exists reports whether any subscription row exists for (station, chat),
// in either state.
func (s *Subscriptions) Exists(ctx context.Context, station string, chatID int64) (bool, error) {
	n, err := s.rdb.Exists(ctx, subscriptionKey(chatID, station)).Result()
	if err != nil {
		return false, fmt.Errorf("check subscription %s/%d: %w", station, chatID, err)
	}
	return n == 1, nil
}

// ListForChat returns every subscription of a chat regardless of state,
// ordered by creation time then station name so positions are stable within
// one response.
func (s *Subscriptions) ListForChat(ctx context.Context, chatID int64) ([]domain.Subscription, error) {
	stations, err := s.rdb.SMembers(ctx, chatIndexKey(chatID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list subscriptions for chat %d: %w", chatID, err)
	}

	subs := make([]domain.Subscription, 0, len(stations))
	for _, station := range stations {
		sub, ok, err := s.getRow(ctx, station, chatID)
		if err != nil {
			return nil, err
		}
		if ok {
			subs = append(subs, sub)
		}
	}

	sort.Slice(subs, func(i, j int) bool {
		if subs[i].CreatedAt != subs[j].CreatedAt {
			return subs[i].CreatedAt < subs[j].CreatedAt
		}
		return subs[i].Station < subs[j].Station
	})
	return subs, nil
}

// ListPendingForStation returns the active subscriptions on a station with
// the fields needed to attempt delivery.
func (s *Subscriptions) ListPendingForStation(ctx context.Context, station string) ([]domain.Subscription, error) {
	chatIDs, err := s.stationChatIDs(ctx, station)
	if err != nil {
		return nil, err
	}

	pending := make([]domain.Subscription, 0, len(chatIDs))
	for _, chatID := range chatIDs {
		sub, ok, err := s.getRow(ctx, station, chatID)
		if err != nil {
			return nil, err
		}
		if ok && sub.State == domain.StateActive {
			pending = append(pending, sub)
		}
	}
	return pending, nil
}

// CountForChat returns min(number of subscription rows, cap) using a bounded
// scan of the chat index, so the per-chat cap check stays cheap no matter how
// large the index grows.
func (s *Subscriptions) CountForChat(ctx context.Context, chatID int64, limit int) (int, error) {
	var (
		count  int
		cursor uint64
	)
	for {
		members, next, err := s.rdb.SScan(ctx, chatIndexKey(chatID), cursor, "", 16).Result()
		if err != nil {
			return 0, fmt.Errorf("count subscriptions for chat %d: %w", chatID, err)
		}
		count += len(members)
		if count >= limit {
			return limit, nil
		}
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// MarkTriggered transitions the subscription to the triggered state,
// recording when and at what value it fired. Called only after a confirmed
// successful delivery.
func (s *Subscriptions) MarkTriggered(ctx context.Context, station string, chatID int64, triggeredAt int64, value float64) error {
	err := markTriggeredScript.Run(ctx, s.rdb,
		[]string{subscriptionKey(chatID, station)},
		triggeredAt,
		formatFloat(value),
	).Err()
	if err != nil {
		return fmt.Errorf("mark triggered %s/%d: %w", station, chatID, err)
	}
	return nil
}

// ReactivateExpired returns every triggered subscription on the station whose
// cooldown has elapsed to the active state, clearing the triggered fields,
// and returns how many were reactivated.
func (s *Subscriptions) ReactivateExpired(ctx context.Context, station string, now time.Time, cooldown time.Duration) (int, error) {
	chatIDs, err := s.stationChatIDs(ctx, station)
	if err != nil {
		return 0, err
	}

	reactivated := 0
	for _, chatID := range chatIDs {
		n, err := reactivateScript.Run(ctx, s.rdb,
			[]string{subscriptionKey(chatID, station)},
			now.UnixMilli(),
			cooldown.Milliseconds(),
		).Int()
		if err != nil {
			return reactivated, fmt.Errorf("reactivate %s/%d: %w", station, chatID, err)
		}
		reactivated += n
	}
	return reactivated, nil
}

func (s *Subscriptions) stationChatIDs(ctx context.Context, station string) ([]int64, error) {
	members, err := s.rdb.SMembers(ctx, stationIndexKey(station)).Result()
	if err != nil {
		return nil, fmt.Errorf("list chats for station %s: %w", station, err)
	}
	chatIDs := make([]int64, 0, len(members))
	for _, member := range members {
		chatID, err := strconv.ParseInt(member, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("station %s index member %q: %w", station, member, err)
		}
		chatIDs = append(chatIDs, chatID)
	}
	return chatIDs, nil
}

func (s *Subscriptions) getRow(ctx context.Context, station string, chatID int64) (domain.Subscription, bool, error) {
	fields, err := s.rdb.HGetAll(ctx, subscriptionKey(chatID, station)).Result()
	if err != nil {
		return domain.Subscription{}, false, fmt.Errorf("get subscription %s/%d: %w", station, chatID, err)
	}
	if len(fields) == 0 {
		// Row expired or deleted between the index read and here.
		return domain.Subscription{}, false, nil
	}
	sub, err := parseSubscription(station, chatID, fields)
	if err != nil {
		return domain.Subscription{}, false, fmt.Errorf("subscription %s/%d: %w", station, chatID, err)
	}
	return sub, true, nil
}

func parseSubscription(station string, chatID int64, fields map[string]string) (domain.Subscription, error) {
	threshold, err := parseFloatField(fields, "threshold")
	if err != nil {
		return domain.Subscription{}, err
	}
	createdAt, err := parseInt64Field(fields, "created_at")
	if err != nil {
		return domain.Subscription{}, err
	}

	sub := domain.Subscription{
		Station:   station,
		ChatID:    chatID,
		Threshold: threshold,
		CreatedAt: createdAt,
		State:     domain.SubscriptionState(fields["state"]),
	}

	if raw, ok := fields["thread_id"]; ok {
		threadID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return domain.Subscription{}, fmt.Errorf("field %q: %w", "thread_id", err)
		}
		sub.ThreadID = &threadID
	}

	if sub.State == domain.StateTriggered {
		sub.TriggeredAt, err = parseInt64Field(fields, "triggered_at")
		if err != nil {
			return domain.Subscription{}, err
		}
		sub.TriggeredValue, err = parseFloatField(fields, "triggered_value")
		if err != nil {
			return domain.Subscription{}, err
		}
	}

	return sub, nil
}
