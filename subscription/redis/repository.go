package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/taskhub/webhook-gateway/subscription"
)

/* Redis implementation of subscription.Repository
 * One hash per subscription plus a per-workspace set index.
 * Each write is a single MULTI/EXEC pipeline, so a crash mid-write
 * never leaves a half-updated record visible.
 */

const (
	hashPrefix      = "subscription"            // subscription:{id}
	workspacePrefix = "subscriptions:workspace" // subscriptions:workspace:{workspace_id}
)

type Repository struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRepository wraps an existing Redis client
func NewRepository(client *redis.Client, logger *slog.Logger) *Repository {
	return &Repository{client: client, logger: logger}
}

// Store persists the whole subscription record atomically
func (r *Repository) Store(ctx context.Context, sub subscription.Subscription) error {
	eventsJSON, err := json.Marshal(sub.Events)
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}
	filtersJSON, err := json.Marshal(sub.Filters)
	if err != nil {
		return fmt.Errorf("marshaling filters: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hashKey(sub.ID), map[string]interface{}{
			"id":               sub.ID,
			"workspace_id":     sub.WorkspaceID,
			"url":              sub.URL,
			"events":           string(eventsJSON),
			"secret":           sub.Secret,
			"active":           strconv.FormatBool(sub.Active),
			"description":      sub.Description,
			"filters":          string(filtersJSON),
			"total_sent":       sub.Stats.TotalSent,
			"total_succeeded":  sub.Stats.TotalSucceeded,
			"total_failed":     sub.Stats.TotalFailed,
			"last_delivery_at": sub.LastDeliveryAt.Unix(),
			"created_at":       sub.CreatedAt.Unix(),
			"updated_at":       sub.UpdatedAt.Unix(),
		})
		pipe.SAdd(ctx, workspaceKey(sub.WorkspaceID), sub.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("storing subscription: %w", err)
	}
	return nil
}

// Get retrieves a subscription by id
func (r *Repository) Get(ctx context.Context, id string) (subscription.Subscription, bool, error) {
	data, err := r.client.HGetAll(ctx, hashKey(id)).Result()
	if err != nil {
		return subscription.Subscription{}, false, fmt.Errorf("getting subscription: %w", err)
	}
	if len(data) == 0 {
		return subscription.Subscription{}, false, nil
	}

	sub, err := parseSubscription(data)
	if err != nil {
		return subscription.Subscription{}, false, fmt.Errorf("parsing subscription %s: %w", id, err)
	}
	return sub, true, nil
}

// ListByWorkspace returns every subscription in a workspace.
// Corrupted records are skipped with a warning rather than failing the
// whole listing; a bad row must never take the delivery path down.
func (r *Repository) ListByWorkspace(ctx context.Context, workspaceID string) ([]subscription.Subscription, error) {
	ids, err := r.client.SMembers(ctx, workspaceKey(workspaceID)).Result()
	if err != nil {
		return nil, fmt.Errorf("listing workspace subscriptions: %w", err)
	}

	subs := make([]subscription.Subscription, 0, len(ids))
	for _, id := range ids {
		data, err := r.client.HGetAll(ctx, hashKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("getting subscription %s: %w", id, err)
		}
		if len(data) == 0 {
			// Index entry without a record: drop the dangling id
			r.client.SRem(ctx, workspaceKey(workspaceID), id)
			continue
		}
		sub, err := parseSubscription(data)
		if err != nil {
			r.logger.Warn("skipping corrupted subscription record",
				"subscriptionId", id, "error", err)
			continue
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// IncrStats bumps the delivery counters in place. Field-level increments
// never read the record back, so a concurrent Store cannot be reverted
// and no counter update is lost.
func (r *Repository) IncrStats(ctx context.Context, id string, success bool, at time.Time) error {
	exists, err := r.client.Exists(ctx, hashKey(id)).Result()
	if err != nil {
		return fmt.Errorf("checking subscription: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("subscription %s not found", id)
	}

	outcomeField := "total_failed"
	if success {
		outcomeField = "total_succeeded"
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, hashKey(id), "total_sent", 1)
		pipe.HIncrBy(ctx, hashKey(id), outcomeField, 1)
		pipe.HSet(ctx, hashKey(id), "last_delivery_at", at.Unix())
		return nil
	})
	if err != nil {
		return fmt.Errorf("incrementing subscription stats: %w", err)
	}
	return nil
}

// Delete removes a subscription and its index entry
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	data, err := r.client.HGetAll(ctx, hashKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("getting subscription: %w", err)
	}
	if len(data) == 0 {
		return false, nil
	}

	workspaceID := data["workspace_id"]
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, hashKey(id))
		pipe.SRem(ctx, workspaceKey(workspaceID), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting subscription: %w", err)
	}
	return true, nil
}

// Close closes the underlying Redis connection
func (r *Repository) Close(ctx context.Context) error {
	return r.client.Close()
}

func hashKey(id string) string {
	return fmt.Sprintf("%s:%s", hashPrefix, id)
}

func workspaceKey(workspaceID string) string {
	return fmt.Sprintf("%s:%s", workspacePrefix, workspaceID)
}

func parseSubscription(data map[string]string) (subscription.Subscription, error) {
	if data["id"] == "" || data["workspace_id"] == "" {
		return subscription.Subscription{}, fmt.Errorf("record missing id or workspace_id")
	}

	var events []string
	if raw := data["events"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &events); err != nil {
			return subscription.Subscription{}, fmt.Errorf("unmarshaling events: %w", err)
		}
	}

	var filters subscription.Filters
	if raw := data["filters"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &filters); err != nil {
			return subscription.Subscription{}, fmt.Errorf("unmarshaling filters: %w", err)
		}
	}

	active, err := strconv.ParseBool(data["active"])
	if err != nil {
		return subscription.Subscription{}, fmt.Errorf("parsing active flag: %w", err)
	}

	return subscription.Subscription{
		ID:          data["id"],
		WorkspaceID: data["workspace_id"],
		URL:         data["url"],
		Events:      events,
		Secret:      data["secret"],
		Active:      active,
		Description: data["description"],
		Filters:     filters,
		Stats: subscription.DeliveryStats{
			TotalSent:      parseInt64(data["total_sent"]),
			TotalSucceeded: parseInt64(data["total_succeeded"]),
			TotalFailed:    parseInt64(data["total_failed"]),
		},
		LastDeliveryAt: time.Unix(parseInt64(data["last_delivery_at"]), 0),
		CreatedAt:      time.Unix(parseInt64(data["created_at"]), 0),
		UpdatedAt:      time.Unix(parseInt64(data["updated_at"]), 0),
	}, nil
}

func parseInt64(s string) int64 {
	value, _ := strconv.ParseInt(s, 10, 64)
	return value
}
