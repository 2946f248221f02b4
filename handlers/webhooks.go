package handlers

import (
	"context"
	"encoding/json"

	"github.com/taskhub/webhook-gateway/command"
	"github.com/taskhub/webhook-gateway/errs"
	"github.com/taskhub/webhook-gateway/subscription"
)

func registerWebhookHandlers(r *command.Router, deps Deps) {
	r.Register("v1/webhooks/subscribe", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		var in struct {
			URL         string               `json:"url"`
			Events      []string             `json:"events"`
			Description string               `json:"description"`
			Filters     subscription.Filters `json:"filters"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		sub, err := deps.Registry.Create(ctx, reqCtx.WorkspaceID, subscription.CreateInput{
			URL:         in.URL,
			Events:      in.Events,
			Description: in.Description,
			Filters:     in.Filters,
		})
		if err != nil {
			return resultFromErr(err)
		}
		// the only response that ever carries the signing secret
		return command.Success(sub)
	})

	r.Register("v1/webhooks/update", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		var in struct {
			SubscriptionID string                `json:"subscriptionId"`
			URL            *string               `json:"url"`
			Events         []string              `json:"events"`
			Active         *bool                 `json:"active"`
			Filters        *subscription.Filters `json:"filters"`
			Description    *string               `json:"description"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.SubscriptionID == "" {
			return command.Failure(errs.CodeValidation, "subscriptionId is required")
		}
		sub, err := deps.Registry.Update(ctx, reqCtx.WorkspaceID, in.SubscriptionID, subscription.UpdateInput{
			URL:         in.URL,
			Events:      in.Events,
			Active:      in.Active,
			Filters:     in.Filters,
			Description: in.Description,
		})
		if err != nil {
			return resultFromErr(err)
		}
		return command.Success(sub)
	})

	r.Register("v1/webhooks/unsubscribe", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		var in struct {
			SubscriptionID string `json:"subscriptionId"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.SubscriptionID == "" {
			return command.Failure(errs.CodeValidation, "subscriptionId is required")
		}
		if err := deps.Registry.Delete(ctx, reqCtx.WorkspaceID, in.SubscriptionID); err != nil {
			return resultFromErr(err)
		}
		return command.Success(map[string]any{"deleted": true})
	})

	r.Register("v1/webhooks/list", func(ctx context.Context, _ string, _ json.RawMessage, reqCtx *command.RequestContext) command.Result {
		subs, err := deps.Registry.List(ctx, reqCtx.WorkspaceID)
		if err != nil {
			return resultFromErr(err)
		}
		return command.Success(map[string]any{"subscriptions": subs, "count": len(subs)})
	})

	r.Register("v1/webhooks/get", func(ctx context.Context, _ string, data json.RawMessage, reqCtx *command.RequestContext) command.Result {
		var in struct {
			SubscriptionID string `json:"subscriptionId"`
		}
		if err := decode(data, &in); err != nil {
			return resultFromErr(err)
		}
		if in.SubscriptionID == "" {
			return command.Failure(errs.CodeValidation, "subscriptionId is required")
		}
		sub, err := deps.Registry.Get(ctx, reqCtx.WorkspaceID, in.SubscriptionID)
		if err != nil {
			return resultFromErr(err)
		}
		return command.Success(sub)
	})
}
