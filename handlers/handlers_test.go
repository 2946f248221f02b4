package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhub/webhook-gateway/command"
	"github.com/taskhub/webhook-gateway/errs"
	"github.com/taskhub/webhook-gateway/event"
	"github.com/taskhub/webhook-gateway/subscription"
	submocks "github.com/taskhub/webhook-gateway/subscription/mocks"
	"github.com/taskhub/webhook-gateway/task"
	taskmocks "github.com/taskhub/webhook-gateway/task/mocks"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func reqCtx() *command.RequestContext {
	return &command.RequestContext{
		RequestID:   "req-1",
		Source:      "web-app",
		APIKeyName:  "web-app-key",
		WorkspaceID: "ws-1",
	}
}

func TestTaskHandlers(t *testing.T) {
	ctx := context.Background()

	t.Run("get returns the task", func(t *testing.T) {
		manager := taskmocks.NewManager(t)
		want := task.Task{ID: "task-1", WorkspaceID: "ws-1", Title: "pay rent", Status: "pending", Priority: "high"}
		manager.On("GetTask", ctx, "ws-1", "task-1").Return(want, nil)

		r := command.NewRouter()
		Register(r, Deps{Tasks: manager})

		result, err := r.Route(ctx, "v1/tasks/get", json.RawMessage(`{"taskId":"task-1"}`), reqCtx())
		require.NoError(t, err)
		assert.Equal(t, want, result.Data)
	})

	t.Run("get requires taskId", func(t *testing.T) {
		r := command.NewRouter()
		Register(r, Deps{Tasks: taskmocks.NewManager(t)})

		_, err := r.Route(ctx, "v1/tasks/get", json.RawMessage(`{}`), reqCtx())
		assert.True(t, errs.IsCode(err, errs.CodeValidation))
	})

	t.Run("get propagates a typed collaborator error", func(t *testing.T) {
		manager := taskmocks.NewManager(t)
		manager.On("GetTask", ctx, "ws-1", "missing").
			Return(task.Task{}, errs.New(errs.CodeNotFound, "task not found"))

		r := command.NewRouter()
		Register(r, Deps{Tasks: manager})

		_, err := r.Route(ctx, "v1/tasks/get", json.RawMessage(`{"taskId":"missing"}`), reqCtx())
		assert.True(t, errs.IsCode(err, errs.CodeNotFound))
	})

	t.Run("get hides an untyped collaborator error", func(t *testing.T) {
		manager := taskmocks.NewManager(t)
		manager.On("GetTask", ctx, "ws-1", "task-1").
			Return(task.Task{}, assert.AnError)

		r := command.NewRouter()
		Register(r, Deps{Tasks: manager})

		_, err := r.Route(ctx, "v1/tasks/get", json.RawMessage(`{"taskId":"task-1"}`), reqCtx())
		require.True(t, errs.IsCode(err, errs.CodeInternal))
		assert.Equal(t, "internal error", errs.AsError(err).Message)
	})

	t.Run("create forwards the raw fields", func(t *testing.T) {
		manager := taskmocks.NewManager(t)
		fields := json.RawMessage(`{"title":"pay rent"}`)
		want := task.Task{ID: "task-2", WorkspaceID: "ws-1", Title: "pay rent"}
		manager.On("CreateTask", ctx, "ws-1", fields).Return(want, nil)

		r := command.NewRouter()
		Register(r, Deps{Tasks: manager})

		result, err := r.Route(ctx, "v1/tasks/create", fields, reqCtx())
		require.NoError(t, err)
		assert.Equal(t, want, result.Data)
	})

	t.Run("pause and resume transition the task", func(t *testing.T) {
		manager := taskmocks.NewManager(t)
		paused := task.Task{ID: "task-1", WorkspaceID: "ws-1", Status: "paused"}
		resumed := task.Task{ID: "task-1", WorkspaceID: "ws-1", Status: "pending"}
		manager.On("PauseTask", ctx, "ws-1", "task-1").Return(paused, nil)
		manager.On("ResumeTask", ctx, "ws-1", "task-1").Return(resumed, nil)

		r := command.NewRouter()
		Register(r, Deps{Tasks: manager})

		result, err := r.Route(ctx, "v1/tasks/pause", json.RawMessage(`{"taskId":"task-1"}`), reqCtx())
		require.NoError(t, err)
		assert.Equal(t, paused, result.Data)

		result, err = r.Route(ctx, "v1/tasks/resume", json.RawMessage(`{"taskId":"task-1"}`), reqCtx())
		require.NoError(t, err)
		assert.Equal(t, resumed, result.Data)
	})
}

func TestRecurrenceHandlers(t *testing.T) {
	ctx := context.Background()

	t.Run("calculate-next returns the next due date", func(t *testing.T) {
		rec := taskmocks.NewRecurrence(t)
		from := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
		next := from.AddDate(0, 0, 7)
		rec.On("CalculateNextDueDate", ctx, "weekly", from).Return(next, nil)

		r := command.NewRouter()
		Register(r, Deps{Recurrence: rec})

		result, err := r.Route(ctx, "v1/recurrence/calculate-next",
			json.RawMessage(`{"pattern":"weekly","from":"2024-03-01T09:00:00Z"}`), reqCtx())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"nextDueDate": "2024-03-08T09:00:00Z"}, result.Data)
	})

	t.Run("validate-pattern accepts a valid pattern", func(t *testing.T) {
		rec := taskmocks.NewRecurrence(t)
		rec.On("ValidatePattern", ctx, "every 2 weeks").Return(nil)

		r := command.NewRouter()
		Register(r, Deps{Recurrence: rec})

		result, err := r.Route(ctx, "v1/recurrence/validate-pattern",
			json.RawMessage(`{"pattern":"every 2 weeks"}`), reqCtx())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"valid": true}, result.Data)
	})

	t.Run("validate-pattern rejects an invalid pattern", func(t *testing.T) {
		rec := taskmocks.NewRecurrence(t)
		rec.On("ValidatePattern", ctx, "whenever").
			Return(errs.New(errs.CodeValidation, "unrecognized recurrence pattern"))

		r := command.NewRouter()
		Register(r, Deps{Recurrence: rec})

		_, err := r.Route(ctx, "v1/recurrence/validate-pattern",
			json.RawMessage(`{"pattern":"whenever"}`), reqCtx())
		assert.True(t, errs.IsCode(err, errs.CodeValidation))
	})

	t.Run("pattern is required", func(t *testing.T) {
		r := command.NewRouter()
		Register(r, Deps{Recurrence: taskmocks.NewRecurrence(t)})

		_, err := r.Route(ctx, "v1/recurrence/validate-pattern", json.RawMessage(`{}`), reqCtx())
		assert.True(t, errs.IsCode(err, errs.CodeValidation))
	})
}

func TestQueryHandlers(t *testing.T) {
	ctx := context.Background()

	t.Run("list wraps tasks with a count", func(t *testing.T) {
		storage := taskmocks.NewStorage(t)
		filter := json.RawMessage(`{"status":"pending"}`)
		tasks := []task.Task{{ID: "task-1"}, {ID: "task-2"}}
		storage.On("List", ctx, "ws-1", filter).Return(tasks, nil)

		r := command.NewRouter()
		Register(r, Deps{Storage: storage})

		result, err := r.Route(ctx, "v1/query/list", filter, reqCtx())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"tasks": tasks, "count": 2}, result.Data)
	})

	t.Run("search requires a query", func(t *testing.T) {
		r := command.NewRouter()
		Register(r, Deps{Storage: taskmocks.NewStorage(t)})

		_, err := r.Route(ctx, "v1/query/search", json.RawMessage(`{"query":""}`), reqCtx())
		assert.True(t, errs.IsCode(err, errs.CodeValidation))
	})

	t.Run("stats returns the aggregate", func(t *testing.T) {
		storage := taskmocks.NewStorage(t)
		stats := map[string]any{"total": 12, "overdue": 3}
		storage.On("Stats", ctx, "ws-1").Return(stats, nil)

		r := command.NewRouter()
		Register(r, Deps{Storage: storage})

		result, err := r.Route(ctx, "v1/query/stats", json.RawMessage(`{}`), reqCtx())
		require.NoError(t, err)
		assert.Equal(t, stats, result.Data)
	})
}

func TestWebhookHandlers(t *testing.T) {
	ctx := context.Background()

	newDeps := func(t *testing.T) (Deps, *submocks.Repository) {
		repo := submocks.NewRepository(t)
		registry := subscription.NewRegistry(repo, event.Catalog(), discardLogger())
		return Deps{Registry: registry}, repo
	}

	t.Run("subscribe creates a subscription and returns the secret", func(t *testing.T) {
		deps, repo := newDeps(t)
		repo.On("Store", ctx, subscription.MatchSubscription(func(sub subscription.Subscription) bool {
			return sub.WorkspaceID == "ws-1" && sub.URL == "https://example.com/hook" && sub.Active
		})).Return(nil)

		r := command.NewRouter()
		Register(r, deps)

		result, err := r.Route(ctx, "v1/webhooks/subscribe",
			json.RawMessage(`{"url":"https://example.com/hook","events":["task.created"]}`), reqCtx())
		require.NoError(t, err)

		sub, ok := result.Data.(subscription.Subscription)
		require.True(t, ok)
		assert.NotEmpty(t, sub.ID)
		assert.NotEmpty(t, sub.Secret)
	})

	t.Run("subscribe rejects an unknown event type", func(t *testing.T) {
		deps, _ := newDeps(t)

		r := command.NewRouter()
		Register(r, deps)

		_, err := r.Route(ctx, "v1/webhooks/subscribe",
			json.RawMessage(`{"url":"https://example.com/hook","events":["task.exploded"]}`), reqCtx())
		assert.True(t, errs.IsCode(err, errs.CodeValidation))
	})

	t.Run("get redacts the secret", func(t *testing.T) {
		deps, repo := newDeps(t)
		stored := subscription.Subscription{
			ID:          "sub-1",
			WorkspaceID: "ws-1",
			URL:         "https://example.com/hook",
			Events:      []string{"task.created"},
			Secret:      "whsec_topsecret",
			Active:      true,
		}
		repo.On("Get", ctx, "sub-1").Return(stored, true, nil)

		r := command.NewRouter()
		Register(r, deps)

		result, err := r.Route(ctx, "v1/webhooks/get", json.RawMessage(`{"subscriptionId":"sub-1"}`), reqCtx())
		require.NoError(t, err)

		sub, ok := result.Data.(subscription.Subscription)
		require.True(t, ok)
		assert.Empty(t, sub.Secret)
	})

	t.Run("get refuses a subscription owned by another workspace", func(t *testing.T) {
		deps, repo := newDeps(t)
		repo.On("Get", ctx, "sub-1").Return(subscription.Subscription{
			ID:          "sub-1",
			WorkspaceID: "ws-other",
		}, true, nil)

		r := command.NewRouter()
		Register(r, deps)

		_, err := r.Route(ctx, "v1/webhooks/get", json.RawMessage(`{"subscriptionId":"sub-1"}`), reqCtx())
		assert.True(t, errs.IsCode(err, errs.CodeForbidden))
	})

	t.Run("unsubscribe deletes the subscription", func(t *testing.T) {
		deps, repo := newDeps(t)
		repo.On("Get", ctx, "sub-1").Return(subscription.Subscription{
			ID:          "sub-1",
			WorkspaceID: "ws-1",
		}, true, nil)
		repo.On("Delete", ctx, "sub-1").Return(true, nil)

		r := command.NewRouter()
		Register(r, deps)

		result, err := r.Route(ctx, "v1/webhooks/unsubscribe", json.RawMessage(`{"subscriptionId":"sub-1"}`), reqCtx())
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"deleted": true}, result.Data)
	})
}

func TestUnknownCommand(t *testing.T) {
	r := command.NewRouter()
	Register(r, Deps{})

	_, err := r.Route(context.Background(), "v1/tasks/destroy-all", json.RawMessage(`{}`), reqCtx())
	assert.True(t, errs.IsCode(err, errs.CodeNotFound))
}
