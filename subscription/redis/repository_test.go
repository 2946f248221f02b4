package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/webhook-gateway/subscription"
)

func testRepo(t *testing.T) (*Repository, *redis.Client) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { client.Close() })
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRepository(client, logger), client
}

func sampleSubscription(id, workspaceID string) subscription.Subscription {
	return subscription.Subscription{
		ID:          id,
		WorkspaceID: workspaceID,
		URL:         "https://example.com/hook",
		Events:      []string{"task.created", "task.completed"},
		Secret:      "whsec_c2VjcmV0LXNlY3JldC1zZWNyZXQ",
		Active:      true,
		Description: "all task activity",
		Filters: subscription.Filters{
			Tags:       []string{"work"},
			Priorities: []string{"high"},
		},
		Stats: subscription.DeliveryStats{
			TotalSent: 4, TotalSucceeded: 3, TotalFailed: 1,
		},
		LastDeliveryAt: time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC),
		CreatedAt:      time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
		UpdatedAt:      time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
}

func TestRepository_StoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("round trips the whole record", func(t *testing.T) {
		repo, _ := testRepo(t)
		want := sampleSubscription("sub-1", "ws-1")
		require.NoError(t, repo.Store(ctx, want))

		got, found, err := repo.Get(ctx, "sub-1")

		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.WorkspaceID, got.WorkspaceID)
		assert.Equal(t, want.URL, got.URL)
		assert.Equal(t, want.Events, got.Events)
		assert.Equal(t, want.Secret, got.Secret)
		assert.Equal(t, want.Active, got.Active)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Filters, got.Filters)
		assert.Equal(t, want.Stats, got.Stats)
		assert.True(t, got.LastDeliveryAt.Equal(want.LastDeliveryAt))
		assert.True(t, got.CreatedAt.Equal(want.CreatedAt))
		assert.True(t, got.UpdatedAt.Equal(want.UpdatedAt))
	})

	t.Run("missing record reports not found", func(t *testing.T) {
		repo, _ := testRepo(t)

		_, found, err := repo.Get(ctx, "nope")

		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRepository_ListByWorkspace(t *testing.T) {
	ctx := context.Background()

	t.Run("returns every subscription in the workspace", func(t *testing.T) {
		repo, _ := testRepo(t)
		require.NoError(t, repo.Store(ctx, sampleSubscription("sub-1", "ws-1")))
		require.NoError(t, repo.Store(ctx, sampleSubscription("sub-2", "ws-1")))
		require.NoError(t, repo.Store(ctx, sampleSubscription("sub-3", "ws-2")))

		subs, err := repo.ListByWorkspace(ctx, "ws-1")

		require.NoError(t, err)
		require.Len(t, subs, 2)
	})

	t.Run("skips a corrupted record instead of failing the listing", func(t *testing.T) {
		repo, client := testRepo(t)
		require.NoError(t, repo.Store(ctx, sampleSubscription("sub-1", "ws-1")))
		require.NoError(t, repo.Store(ctx, sampleSubscription("sub-2", "ws-1")))
		// mangle one row the way a partial manual edit would
		require.NoError(t, client.HSet(ctx, hashKey("sub-2"), "active", "banana").Err())

		subs, err := repo.ListByWorkspace(ctx, "ws-1")

		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, "sub-1", subs[0].ID)
	})

	t.Run("drops a dangling index entry", func(t *testing.T) {
		repo, client := testRepo(t)
		require.NoError(t, repo.Store(ctx, sampleSubscription("sub-1", "ws-1")))
		require.NoError(t, client.SAdd(ctx, workspaceKey("ws-1"), "ghost").Err())

		subs, err := repo.ListByWorkspace(ctx, "ws-1")

		require.NoError(t, err)
		require.Len(t, subs, 1)
		member, err := client.SIsMember(ctx, workspaceKey("ws-1"), "ghost").Result()
		require.NoError(t, err)
		assert.False(t, member)
	})
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo, client := testRepo(t)
	require.NoError(t, repo.Store(ctx, sampleSubscription("sub-1", "ws-1")))

	found, err := repo.Delete(ctx, "sub-1")

	require.NoError(t, err)
	assert.True(t, found)

	exists, err := client.Exists(ctx, hashKey("sub-1")).Result()
	require.NoError(t, err)
	assert.Zero(t, exists)
	member, err := client.SIsMember(ctx, workspaceKey("ws-1"), "sub-1").Result()
	require.NoError(t, err)
	assert.False(t, member)

	found, err = repo.Delete(ctx, "sub-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRepository_IncrStats(t *testing.T) {
	ctx := context.Background()
	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	t.Run("success bumps sent and succeeded", func(t *testing.T) {
		repo, _ := testRepo(t)
		require.NoError(t, repo.Store(ctx, sampleSubscription("sub-1", "ws-1")))

		require.NoError(t, repo.IncrStats(ctx, "sub-1", true, at))

		got, _, err := repo.Get(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.Stats.TotalSent)
		assert.Equal(t, int64(4), got.Stats.TotalSucceeded)
		assert.Equal(t, int64(1), got.Stats.TotalFailed)
		assert.True(t, got.LastDeliveryAt.Equal(at))
	})

	t.Run("failure bumps sent and failed", func(t *testing.T) {
		repo, _ := testRepo(t)
		require.NoError(t, repo.Store(ctx, sampleSubscription("sub-1", "ws-1")))

		require.NoError(t, repo.IncrStats(ctx, "sub-1", false, at))

		got, _, err := repo.Get(ctx, "sub-1")
		require.NoError(t, err)
		assert.Equal(t, int64(5), got.Stats.TotalSent)
		assert.Equal(t, int64(3), got.Stats.TotalSucceeded)
		assert.Equal(t, int64(2), got.Stats.TotalFailed)
	})

	t.Run("missing subscription is an error, not a stray hash", func(t *testing.T) {
		repo, client := testRepo(t)

		err := repo.IncrStats(ctx, "ghost", true, at)

		require.Error(t, err)
		exists, err := client.Exists(ctx, hashKey("ghost")).Result()
		require.NoError(t, err)
		assert.Zero(t, exists)
	})

	t.Run("does not revert an interleaved admin write", func(t *testing.T) {
		repo, _ := testRepo(t)
		sub := sampleSubscription("sub-1", "ws-1")
		require.NoError(t, repo.Store(ctx, sub))

		// admin deactivates between the delivery attempt and the stats
		// update
		sub.Active = false
		require.NoError(t, repo.Store(ctx, sub))

		require.NoError(t, repo.IncrStats(ctx, "sub-1", true, at))

		got, _, err := repo.Get(ctx, "sub-1")
		require.NoError(t, err)
		assert.False(t, got.Active)
		assert.Equal(t, int64(5), got.Stats.TotalSent)
	})
}
