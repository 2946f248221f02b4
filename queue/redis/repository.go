package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskhub/webhook-gateway/queue"
)

/* Redis implementation of queue.Repository
 * One hash per delivery record, a due-time ZSET for the pending queue and
 * a completion-time ZSET for terminal records awaiting cleanup. Every
 * write is a single MULTI/EXEC pipeline so record state and queue
 * membership never diverge.
 */

const (
	hashPrefix  = "delivery"            // delivery:{event_id}:{subscription_id}
	pendingKey  = "deliveries:pending"  // ZSET scored by due time
	terminalKey = "deliveries:terminal" // ZSET scored by completion time
)

type Repository struct {
	client *redis.Client
	now    func() time.Time
}

// NewRepository wraps an existing Redis client
func NewRepository(client *redis.Client) *Repository {
	return &Repository{client: client, now: time.Now}
}

// WithNow overrides the clock, for tests
func (r *Repository) WithNow(now func() time.Time) *Repository {
	r.now = now
	return r
}

// Store persists the record and files it under the matching queue ZSET
func (r *Repository) Store(ctx context.Context, d queue.Delivery) error {
	key := hashKey(d.EventID, d.SubscriptionID)
	member := queue.DeliveryKey(d.EventID, d.SubscriptionID)

	dueAt := d.CreatedAt
	if !d.NextRetryAt.IsZero() {
		dueAt = d.NextRetryAt
	}

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, map[string]interface{}{
			"event_id":        d.EventID,
			"subscription_id": d.SubscriptionID,
			"workspace_id":    d.WorkspaceID,
			"url":             d.URL,
			"event":           d.Event,
			"payload":         string(d.Payload),
			"attempts":        d.Attempts,
			"status":          d.Status.String(),
			"last_attempt_at": d.LastAttemptAt.Unix(),
			"next_retry_at":   d.NextRetryAt.Unix(),
			"last_error":      d.LastError,
			"created_at":      d.CreatedAt.Unix(),
		})
		if d.Status.IsTerminal() {
			pipe.ZRem(ctx, pendingKey, member)
			pipe.ZAdd(ctx, terminalKey, redis.Z{Score: float64(r.now().Unix()), Member: member})
		} else {
			pipe.ZAdd(ctx, pendingKey, redis.Z{Score: float64(dueAt.Unix()), Member: member})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing delivery record: %w", err)
	}
	return nil
}

// Get retrieves one record by its composite key
func (r *Repository) Get(ctx context.Context, eventID, subscriptionID string) (queue.Delivery, bool, error) {
	data, err := r.client.HGetAll(ctx, hashKey(eventID, subscriptionID)).Result()
	if err != nil {
		return queue.Delivery{}, false, fmt.Errorf("getting delivery record: %w", err)
	}
	if len(data) == 0 {
		return queue.Delivery{}, false, nil
	}
	return parseDelivery(data), true, nil
}

// GetPending returns due pending records, oldest due time first
func (r *Repository) GetPending(ctx context.Context, limit int) ([]queue.Delivery, error) {
	members, err := r.client.ZRangeByScore(ctx, pendingKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(r.now().Unix(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("reading pending queue: %w", err)
	}

	deliveries := make([]queue.Delivery, 0, len(members))
	for _, member := range members {
		data, err := r.client.HGetAll(ctx, hashPrefix+":"+member).Result()
		if err != nil {
			return nil, fmt.Errorf("getting delivery record %s: %w", member, err)
		}
		if len(data) == 0 {
			// Queue entry without a record: drop the dangling member
			r.client.ZRem(ctx, pendingKey, member)
			continue
		}
		deliveries = append(deliveries, parseDelivery(data))
	}
	return deliveries, nil
}

// Remove deletes a record and its queue entries outright
func (r *Repository) Remove(ctx context.Context, eventID, subscriptionID string) error {
	member := queue.DeliveryKey(eventID, subscriptionID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, hashKey(eventID, subscriptionID))
		pipe.ZRem(ctx, pendingKey, member)
		pipe.ZRem(ctx, terminalKey, member)
		return nil
	})
	if err != nil {
		return fmt.Errorf("removing delivery record: %w", err)
	}
	return nil
}

// Cleanup removes terminal records older than the retention horizon
func (r *Repository) Cleanup(ctx context.Context, retentionDays int) (int, error) {
	horizon := r.now().AddDate(0, 0, -retentionDays).Unix()

	members, err := r.client.ZRangeByScore(ctx, terminalKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(horizon, 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("reading terminal queue: %w", err)
	}
	if len(members) == 0 {
		return 0, nil
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, member := range members {
			pipe.Del(ctx, hashPrefix+":"+member)
		}
		pipe.ZRemRangeByScore(ctx, terminalKey, "-inf", strconv.FormatInt(horizon, 10))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("removing expired records: %w", err)
	}
	return len(members), nil
}

// Close closes the underlying Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

func hashKey(eventID, subscriptionID string) string {
	return fmt.Sprintf("%s:%s", hashPrefix, queue.DeliveryKey(eventID, subscriptionID))
}

func parseDelivery(data map[string]string) queue.Delivery {
	return queue.Delivery{
		EventID:        data["event_id"],
		SubscriptionID: data["subscription_id"],
		WorkspaceID:    data["workspace_id"],
		URL:            data["url"],
		Event:          data["event"],
		Payload:        []byte(data["payload"]),
		Attempts:       int(parseInt64(data["attempts"])),
		Status:         queue.NewStatus(data["status"]),
		LastAttemptAt:  time.Unix(parseInt64(data["last_attempt_at"]), 0),
		NextRetryAt:    parseOptionalTime(data["next_retry_at"]),
		LastError:      data["last_error"],
		CreatedAt:      time.Unix(parseInt64(data["created_at"]), 0),
	}
}

func parseOptionalTime(s string) time.Time {
	unix := parseInt64(s)
	// A zero time.Time marshals as a large negative unix value; treat
	// anything non-positive as unset
	if unix <= 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}

func parseInt64(s string) int64 {
	value, _ := strconv.ParseInt(s, 10, 64)
	return value
}
