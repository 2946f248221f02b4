package task

import (
	"context"
	"encoding/json"
	"time"
)

/* Collaborator interfaces consumed by the command handlers. The gateway
 * treats all of these as opaque, fallible remote calls; it never
 * inspects domain internals.
 */

// Task is the gateway's view of a domain task
type Task struct {
	ID          string          `json:"id"`
	WorkspaceID string          `json:"workspaceId"`
	Title       string          `json:"title"`
	Status      string          `json:"status"`
	Priority    string          `json:"priority"`
	Tags        []string        `json:"tags,omitempty"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
	Recurrence  json.RawMessage `json:"recurrence,omitempty"`
}

// Manager exposes task lookup and mutation
type Manager interface {
	GetTask(ctx context.Context, workspaceID, taskID string) (Task, error)
	CreateTask(ctx context.Context, workspaceID string, fields json.RawMessage) (Task, error)
	UpdateTask(ctx context.Context, workspaceID, taskID string, fields json.RawMessage) (Task, error)
	PauseTask(ctx context.Context, workspaceID, taskID string) (Task, error)
	ResumeTask(ctx context.Context, workspaceID, taskID string) (Task, error)
}

// Storage exposes list/search/stats queries over the task store
type Storage interface {
	List(ctx context.Context, workspaceID string, filter json.RawMessage) ([]Task, error)
	Search(ctx context.Context, workspaceID, query string) ([]Task, error)
	Stats(ctx context.Context, workspaceID string) (map[string]any, error)
}

// Recurrence exposes recurrence math, consumed only by recurrence handlers
type Recurrence interface {
	CalculateNextDueDate(ctx context.Context, pattern string, from time.Time) (time.Time, error)
	ValidatePattern(ctx context.Context, pattern string) error
}
