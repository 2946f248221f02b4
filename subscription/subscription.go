package subscription

import "time"

/* Subscription represents a registered webhook destination
 * Uses value semantics as it represents data, not behavior
 */
type Subscription struct {
	ID             string
	WorkspaceID    string
	URL            string
	Events         []string
	Secret         string
	Active         bool
	Description    string
	Filters        Filters
	Stats          DeliveryStats
	LastDeliveryAt time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Filters narrows which events a subscription receives.
// Empty lists are no-ops: they match everything.
type Filters struct {
	Tags       []string
	Priorities []string
}

// DeliveryStats counts delivery outcomes for a subscription
type DeliveryStats struct {
	TotalSent      int64
	TotalSucceeded int64
	TotalFailed    int64
}

// EventAttrs are the attributes of an event instance that filters match on
type EventAttrs struct {
	Tags     []string
	Priority string
}

// WantsEvent reports whether the subscription's event whitelist covers the
// event type, either exactly or through the wildcard entry.
func (s Subscription) WantsEvent(eventType string) bool {
	for _, e := range s.Events {
		if e == eventType || e == "*" {
			return true
		}
	}
	return false
}

// MatchesFilters reports whether the event attributes pass the optional
// tag and priority filters. An empty filter list matches everything.
func (s Subscription) MatchesFilters(attrs EventAttrs) bool {
	if len(s.Filters.Tags) > 0 && !intersects(s.Filters.Tags, attrs.Tags) {
		return false
	}
	if len(s.Filters.Priorities) > 0 && !contains(s.Filters.Priorities, attrs.Priority) {
		return false
	}
	return true
}

// Redacted returns a copy with the secret cleared, for list/read responses
func (s Subscription) Redacted() Subscription {
	s.Secret = ""
	return s
}

func intersects(filter, values []string) bool {
	for _, v := range values {
		if contains(filter, v) {
			return true
		}
	}
	return false
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
