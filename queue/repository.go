package queue

import "context"

// Reader provides read operations for delivery records
type Reader interface {
	// Get retrieves one record, reporting found=false when absent
	Get(ctx context.Context, eventID, subscriptionID string) (Delivery, bool, error)

	// GetPending returns records with status pending and nextRetryAt unset
	// or in the past, ordered oldest-first, bounded by limit
	GetPending(ctx context.Context, limit int) ([]Delivery, error)
}

// Writer provides write operations for delivery records
type Writer interface {
	// Store persists a record, whole-record, keyed by (eventID, subscriptionID)
	Store(ctx context.Context, delivery Delivery) error

	// Remove deletes a record outright, used for orphans
	Remove(ctx context.Context, eventID, subscriptionID string) error

	// Cleanup removes terminal records older than retentionDays and
	// returns the removed count
	Cleanup(ctx context.Context, retentionDays int) (int, error)
}

// Repository composes the read and write halves
type Repository interface {
	Reader
	Writer
	Close(ctx context.Context) error
}
