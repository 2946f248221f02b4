package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/taskhub/webhook-gateway/errs"
	"github.com/taskhub/webhook-gateway/signature"
)

/* Registry is the business logic layer over the subscription store.
 * Explicitly constructed and injected, never a global, so tests can
 * run isolated instances.
 */
type Registry struct {
	repo          Repository
	allowedEvents map[string]struct{}
	logger        *slog.Logger
	now           func() time.Time
}

// NewRegistry creates a registry. allowedEvents is the closed whitelist of
// event types a subscription may ask for; "*" is always accepted.
func NewRegistry(repo Repository, allowedEvents []string, logger *slog.Logger) *Registry {
	allowed := make(map[string]struct{}, len(allowedEvents))
	for _, e := range allowedEvents {
		allowed[e] = struct{}{}
	}
	return &Registry{
		repo:          repo,
		allowedEvents: allowed,
		logger:        logger,
		now:           time.Now,
	}
}

// WithNow overrides the clock, for tests
func (r *Registry) WithNow(now func() time.Time) *Registry {
	r.now = now
	return r
}

// CreateInput is the caller-supplied half of a new subscription
type CreateInput struct {
	URL         string
	Events      []string
	Description string
	Filters     Filters
}

// Create validates the input, generates the id and signing secret, and
// persists the subscription. The returned value includes the secret; this
// is the only time it is ever exposed.
func (r *Registry) Create(ctx context.Context, workspaceID string, input CreateInput) (Subscription, error) {
	if workspaceID == "" {
		return Subscription{}, errs.New(errs.CodeValidation, "workspaceId is required")
	}
	if err := r.validateURL(input.URL); err != nil {
		return Subscription{}, err
	}
	if err := r.validateEvents(input.Events); err != nil {
		return Subscription{}, err
	}

	secret, err := signature.GenerateSecret()
	if err != nil {
		return Subscription{}, fmt.Errorf("generating subscription secret: %w", err)
	}

	now := r.now()
	sub := Subscription{
		ID:          uuid.New().String(),
		WorkspaceID: workspaceID,
		URL:         input.URL,
		Events:      input.Events,
		Secret:      secret.String(),
		Active:      true,
		Description: input.Description,
		Filters:     input.Filters,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := r.repo.Store(ctx, sub); err != nil {
		return Subscription{}, fmt.Errorf("storing subscription: %w", err)
	}

	r.logger.Info("subscription created",
		"subscriptionId", sub.ID,
		"workspaceId", workspaceID,
		"url", sub.URL,
		"events", sub.Events)

	return sub, nil
}

// UpdateInput carries the mutable fields of a subscription. Nil pointers
// and nil slices leave the current value untouched.
type UpdateInput struct {
	URL         *string
	Events      []string
	Active      *bool
	Filters     *Filters
	Description *string
}

// Update mutates url/events/active/filters on an owned subscription.
// The id, workspace, secret and stats never change.
func (r *Registry) Update(ctx context.Context, workspaceID, id string, input UpdateInput) (Subscription, error) {
	sub, err := r.owned(ctx, workspaceID, id)
	if err != nil {
		return Subscription{}, err
	}

	if input.URL != nil {
		if err := r.validateURL(*input.URL); err != nil {
			return Subscription{}, err
		}
		sub.URL = *input.URL
	}
	if input.Events != nil {
		if err := r.validateEvents(input.Events); err != nil {
			return Subscription{}, err
		}
		sub.Events = input.Events
	}
	if input.Active != nil {
		sub.Active = *input.Active
	}
	if input.Filters != nil {
		sub.Filters = *input.Filters
	}
	if input.Description != nil {
		sub.Description = *input.Description
	}
	sub.UpdatedAt = r.now()

	if err := r.repo.Store(ctx, sub); err != nil {
		return Subscription{}, fmt.Errorf("updating subscription: %w", err)
	}

	return sub.Redacted(), nil
}

// Delete removes an owned subscription. Delivery records that still point
// at it are dropped by the worker as orphans.
func (r *Registry) Delete(ctx context.Context, workspaceID, id string) error {
	if _, err := r.owned(ctx, workspaceID, id); err != nil {
		return err
	}

	found, err := r.repo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting subscription: %w", err)
	}
	if !found {
		return errs.Newf(errs.CodeNotFound, "subscription not found: %s", id)
	}

	r.logger.Info("subscription deleted", "subscriptionId", id, "workspaceId", workspaceID)
	return nil
}

// Get returns an owned subscription with the secret redacted
func (r *Registry) Get(ctx context.Context, workspaceID, id string) (Subscription, error) {
	sub, err := r.owned(ctx, workspaceID, id)
	if err != nil {
		return Subscription{}, err
	}
	return sub.Redacted(), nil
}

// List returns every subscription in the workspace, secrets redacted
func (r *Registry) List(ctx context.Context, workspaceID string) ([]Subscription, error) {
	subs, err := r.repo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("listing subscriptions: %w", err)
	}
	redacted := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		redacted = append(redacted, sub.Redacted())
	}
	return redacted, nil
}

// ForEvent returns the active subscriptions in the workspace whose event
// whitelist covers the event type and whose filters pass the attributes.
// Secrets are included; this is the delivery path's lookup.
func (r *Registry) ForEvent(ctx context.Context, workspaceID, eventType string, attrs EventAttrs) ([]Subscription, error) {
	subs, err := r.repo.ListByWorkspace(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("resolving subscribers: %w", err)
	}

	matched := make([]Subscription, 0, len(subs))
	for _, sub := range subs {
		if !sub.Active {
			continue
		}
		if !sub.WantsEvent(eventType) {
			continue
		}
		if !sub.MatchesFilters(attrs) {
			continue
		}
		matched = append(matched, sub)
	}
	return matched, nil
}

// UpdateStats records the outcome of one delivery attempt. Persistence
// failures are logged, not returned: losing a stats update must never
// block delivery.
func (r *Registry) UpdateStats(ctx context.Context, id string, success bool) {
	if err := r.repo.IncrStats(ctx, id, success, r.now()); err != nil {
		r.logger.Warn("updating subscription stats failed",
			"subscriptionId", id, "error", err)
	}
}

func (r *Registry) owned(ctx context.Context, workspaceID, id string) (Subscription, error) {
	sub, found, err := r.repo.Get(ctx, id)
	if err != nil {
		return Subscription{}, fmt.Errorf("getting subscription: %w", err)
	}
	if !found {
		return Subscription{}, errs.Newf(errs.CodeNotFound, "subscription not found: %s", id)
	}
	if sub.WorkspaceID != workspaceID {
		return Subscription{}, errs.New(errs.CodeForbidden, "subscription belongs to another workspace")
	}
	return sub, nil
}

func (r *Registry) validateURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return errs.Newf(errs.CodeValidation, "invalid url: %s", raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return errs.Newf(errs.CodeValidation, "url scheme must be http or https: %s", raw)
	}
	return nil
}

func (r *Registry) validateEvents(events []string) error {
	if len(events) == 0 {
		return errs.New(errs.CodeValidation, "at least one event type is required")
	}
	for _, e := range events {
		if e == "*" {
			continue
		}
		if _, ok := r.allowedEvents[e]; !ok {
			return errs.Newf(errs.CodeValidation, "unknown event type: %s", e)
		}
	}
	return nil
}
