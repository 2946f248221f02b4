package handlers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/taskhub/webhook-gateway/command"
	"github.com/taskhub/webhook-gateway/errs"
	"github.com/taskhub/webhook-gateway/event"
	"github.com/taskhub/webhook-gateway/subscription"
	"github.com/taskhub/webhook-gateway/task"
)

/* Command handlers bind the domain collaborators and the subscription
 * registry to command names. Handlers never write HTTP responses; they
 * return discriminated results and let the gateway's single error stage
 * do the translation.
 */

// Deps are the collaborators the handlers call into
type Deps struct {
	Tasks      task.Manager
	Storage    task.Storage
	Recurrence task.Recurrence
	Registry   *subscription.Registry
	Emitter    *event.Emitter
}

// Register wires every command the gateway serves onto the router
func Register(r *command.Router, deps Deps) {
	registerTaskHandlers(r, deps)
	registerRecurrenceHandlers(r, deps)
	registerQueryHandlers(r, deps)
	registerWebhookHandlers(r, deps)
}

// resultFromErr converts a collaborator error into an error result,
// preserving typed codes and hiding everything else behind INTERNAL_ERROR
func resultFromErr(err error) command.Result {
	if domainErr := errs.AsError(err); domainErr != nil {
		return command.FailureWithDetails(domainErr.Code, domainErr.Message, domainErr.Details)
	}
	return command.Failure(errs.CodeInternal, "internal error")
}

func decode(data json.RawMessage, into any) error {
	if err := json.Unmarshal(data, into); err != nil {
		return errs.Newf(errs.CodeValidation, "invalid command data: %v", err)
	}
	return nil
}

// emitTaskEvent publishes a task lifecycle event. Fire-and-forget.
func emitTaskEvent(ctx context.Context, deps Deps, eventType string, t task.Task) {
	if deps.Emitter == nil {
		return
	}
	payload, err := json.Marshal(t)
	if err != nil {
		return
	}
	deps.Emitter.Emit(ctx, event.Event{
		WorkspaceID: t.WorkspaceID,
		Event:       eventType,
		Payload:     payload,
		Tags:        t.Tags,
		Priority:    t.Priority,
	})
}

func registerTaskHandlers(r *command.Router, deps Deps) {
	r.Register("v1/tasks/get", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		var in struct {
			TaskID string `json:"taskId"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.TaskID == "" {
			return command.Failure(errs.CodeValidation, "taskId is required")
		}
		t, err := deps.Tasks.GetTask(ctx, reqCtx.WorkspaceID, in.TaskID)
		if err != nil {
			return resultFromErr(err)
		}
		return command.Success(t)
	})

	r.Register("v1/tasks/create", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		t, err := deps.Tasks.CreateTask(ctx, reqCtx.WorkspaceID, data)
		if err != nil {
			return resultFromErr(err)
		}
		emitTaskEvent(ctx, deps, event.TypeTaskCreated, t)
		return command.Success(t)
	})

	r.Register("v1/tasks/update", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		var in struct {
			TaskID string          `json:"taskId"`
			Fields json.RawMessage `json:"fields"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.TaskID == "" {
			return command.Failure(errs.CodeValidation, "taskId is required")
		}
		t, err := deps.Tasks.UpdateTask(ctx, reqCtx.WorkspaceID, in.TaskID, in.Fields)
		if err != nil {
			return resultFromErr(err)
		}
		emitTaskEvent(ctx, deps, event.TypeTaskUpdated, t)
		return command.Success(t)
	})

	r.Register("v1/tasks/pause", taskTransition(deps, func(ctx context.Context, d Deps, workspaceID, taskID string) (task.Task, error) {
		return d.Tasks.PauseTask(ctx, workspaceID, taskID)
	}))
	r.Register("v1/tasks/resume", taskTransition(deps, func(ctx context.Context, d Deps, workspaceID, taskID string) (task.Task, error) {
		return d.Tasks.ResumeTask(ctx, workspaceID, taskID)
	}))
}

func taskTransition(deps Deps, do func(ctx context.Context, d Deps, workspaceID, taskID string) (task.Task, error)) command.Handler {
	return func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		var in struct {
			TaskID string `json:"taskId"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.TaskID == "" {
			return command.Failure(errs.CodeValidation, "taskId is required")
		}
		t, err := do(ctx, deps, reqCtx.WorkspaceID, in.TaskID)
		if err != nil {
			return resultFromErr(err)
		}
		emitTaskEvent(ctx, deps, event.TypeTaskUpdated, t)
		return command.Success(t)
	}
}

func registerRecurrenceHandlers(r *command.Router, deps Deps) {
	r.Register("v1/recurrence/pause", taskTransition(deps, func(ctx context.Context, d Deps, workspaceID, taskID string) (task.Task, error) {
		return d.Tasks.PauseTask(ctx, workspaceID, taskID)
	}))
	r.Register("v1/recurrence/resume", taskTransition(deps, func(ctx context.Context, d Deps, workspaceID, taskID string) (task.Task, error) {
		return d.Tasks.ResumeTask(ctx, workspaceID, taskID)
	}))

	r.Register("v1/recurrence/calculate-next", func(ctx context.Context, _ string, data json.RawMessage, _ *command.RequestContext) command.Result {
		var in struct {
			Pattern string    `json:"pattern"`
			From    time.Time `json:"from"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.Pattern == "" {
			return command.Failure(errs.CodeValidation, "pattern is required")
		}
		if in.From.IsZero() {
			in.From = time.Now().UTC()
		}
		next, err := deps.Recurrence.CalculateNextDueDate(ctx, in.Pattern, in.From)
		if err != nil {
			return resultFromErr(err)
		}
		return command.Success(map[string]any{"nextDueDate": next.Format(time.RFC3339)})
	})

	r.Register("v1/recurrence/validate-pattern", func(ctx context.Context, _ string, data json.RawMessage, _ *command.RequestContext) command.Result {
		var in struct {
			Pattern string `json:"pattern"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.Pattern == "" {
			return command.Failure(errs.CodeValidation, "pattern is required")
		}
		if err := deps.Recurrence.ValidatePattern(ctx, in.Pattern); err != nil {
			return resultFromErr(err)
		}
		return command.Success(map[string]any{"valid": true})
	})
}

func registerQueryHandlers(r *command.Router, deps Deps) {
	r.Register("v1/query/list", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		tasks, err := deps.Storage.List(ctx, reqCtx.WorkspaceID, data)
		if err != nil {
			return resultFromErr(err)
		}
		return command.Success(map[string]any{"tasks": tasks, "count": len(tasks)})
	})

	r.Register("v1/query/search", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		var in struct {
			Query string `json:"query"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.Query == "" {
			return command.Failure(errs.CodeValidation, "query is required")
		}
		tasks, err := deps.Storage.Search(ctx, reqCtx.WorkspaceID, in.Query)
		if err != nil {
			return resultFromErr(err)
		}
		return command.Success(map[string]any{"tasks": tasks, "count": len(tasks)})
	})

	r.Register("v1/query/stats", func(ctx context.Context, _ string, _ json.RawMessage, reqCtx *command.RequestContext) command.Result {
		stats, err := deps.Storage.Stats(ctx, reqCtx.WorkspaceID)
		if err != nil {
			return resultFromErr(err)
		}
		return command.Success(stats)
	})
}
