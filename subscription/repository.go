package subscription

import (
	"context"
	"time"
)

/* Small, focused interfaces: Reader and Writer can be consumed
 * independently, Repository composes them for the storage adapters.
 */

// Reader provides read operations for subscriptions
type Reader interface {
	// Get retrieves a subscription by id, reporting found=false when absent
	Get(ctx context.Context, id string) (Subscription, bool, error)

	// ListByWorkspace returns every subscription in a workspace
	ListByWorkspace(ctx context.Context, workspaceID string) ([]Subscription, error)
}

// Writer provides write operations for subscriptions
type Writer interface {
	// Store persists a subscription, whole-record
	Store(ctx context.Context, sub Subscription) error

	// Delete removes a subscription, reporting found=false when absent
	Delete(ctx context.Context, id string) (bool, error)

	// IncrStats bumps the delivery counters for one attempt outcome
	// without touching the rest of the record, so it cannot clobber a
	// concurrent Store.
	IncrStats(ctx context.Context, id string, success bool, at time.Time) error
}

// Repository composes the read and write halves
type Repository interface {
	Reader
	Writer
	Close(ctx context.Context) error
}
