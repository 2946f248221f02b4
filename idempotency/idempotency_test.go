package idempotency_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskhub/webhook-gateway/idempotency"
)

func TestCache(t *testing.T) {
	t.Run("store and replay", func(t *testing.T) {
		c := idempotency.NewCache(time.Hour)

		c.Store("key-a", "idem-1", 200, []byte(`{"success":true}`))

		entry, ok := c.Get("key-a", "idem-1")
		require.True(t, ok)
		assert.Equal(t, 200, entry.StatusCode)
		assert.Equal(t, []byte(`{"success":true}`), entry.Body)
	})

	t.Run("miss for unknown key", func(t *testing.T) {
		c := idempotency.NewCache(time.Hour)

		_, ok := c.Get("key-a", "idem-1")
		assert.False(t, ok)
	})

	t.Run("scoped to api key", func(t *testing.T) {
		c := idempotency.NewCache(time.Hour)

		c.Store("key-a", "idem-1", 200, []byte(`{}`))

		_, ok := c.Get("key-b", "idem-1")
		assert.False(t, ok)
	})

	t.Run("expired entry not replayed", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		c := idempotency.NewCache(time.Minute).WithNow(func() time.Time { return now })

		c.Store("key-a", "idem-1", 200, []byte(`{}`))
		now = now.Add(2 * time.Minute)

		_, ok := c.Get("key-a", "idem-1")
		assert.False(t, ok)
	})

	t.Run("entry within ttl replayed", func(t *testing.T) {
		now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
		c := idempotency.NewCache(time.Hour).WithNow(func() time.Time { return now })

		c.Store("key-a", "idem-1", 409, []byte(`{"success":false}`))
		now = now.Add(30 * time.Minute)

		entry, ok := c.Get("key-a", "idem-1")
		require.True(t, ok)
		assert.Equal(t, 409, entry.StatusCode)
	})
}

func TestSweep(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	c := idempotency.NewCache(time.Minute).WithNow(func() time.Time { return now })

	c.Store("key-a", "old", 200, []byte(`{}`))
	now = now.Add(2 * time.Minute)
	c.Store("key-a", "new", 200, []byte(`{}`))

	removed := c.Sweep()

	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, c.Len())
}
