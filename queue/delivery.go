package queue

import (
	"encoding/json"
	"fmt"
	"time"
)

/* Delivery is the durable unit of work tracking one subscriber's
 * attempt(s) to receive one event. Exactly one record exists per
 * (event id, subscription id) pair; created by the emission path and
 * mutated only by the delivery worker afterwards.
 */
type Delivery struct {
	EventID        string
	SubscriptionID string
	WorkspaceID    string
	URL            string
	Event          string
	Payload        json.RawMessage
	Attempts       int
	Status         Status
	LastAttemptAt  time.Time
	NextRetryAt    time.Time
	LastError      string
	CreatedAt      time.Time
}

// Key returns the unique identity of the record
func (d Delivery) Key() string {
	return DeliveryKey(d.EventID, d.SubscriptionID)
}

// DeliveryKey builds the composite record key
func DeliveryKey(eventID, subscriptionID string) string {
	return fmt.Sprintf("%s:%s", eventID, subscriptionID)
}

// Due reports whether the record is ready for a delivery attempt at now:
// pending, with no scheduled retry or a schedule already in the past.
func (d Delivery) Due(now time.Time) bool {
	if d.Status != Pending {
		return false
	}
	return d.NextRetryAt.IsZero() || !d.NextRetryAt.After(now)
}
