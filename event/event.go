package event

import (
	"encoding/json"
	"time"
)

// Event type constants. The catalog is closed: subscriptions may only ask
// for these types (or the wildcard), which keeps event names from drifting
// out of sync between emitters and subscribers.
const (
	TypeTaskCreated   = "task.created"
	TypeTaskUpdated   = "task.updated"
	TypeTaskCompleted = "task.completed"
	TypeTaskDeleted   = "task.deleted"
	TypeTaskOverdue   = "task.overdue"
	TypeTaskEscalated = "task.escalated"

	// TypeWildcard is the subscription filter matching every event type
	TypeWildcard = "*"
)

// Catalog returns every concrete event type, excluding the wildcard
func Catalog() []string {
	return []string{
		TypeTaskCreated,
		TypeTaskUpdated,
		TypeTaskCompleted,
		TypeTaskDeleted,
		TypeTaskOverdue,
		TypeTaskEscalated,
	}
}

// Event is one domain occurrence to be delivered to subscribers
type Event struct {
	EventID     string          `json:"eventId"`
	WorkspaceID string          `json:"workspaceId"`
	Event       string          `json:"event"`
	Payload     json.RawMessage `json:"payload"`
	Timestamp   time.Time       `json:"timestamp"`

	// Attributes the subscription filters match on; not serialized into
	// the delivered body
	Tags     []string `json:"-"`
	Priority string   `json:"-"`
}
