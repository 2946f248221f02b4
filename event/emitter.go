package event

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskhub/webhook-gateway/queue"
	"github.com/taskhub/webhook-gateway/subscription"
)

// SubscriberSource resolves which subscriptions should receive an event
type SubscriberSource interface {
	ForEvent(ctx context.Context, workspaceID, eventType string, attrs subscription.EventAttrs) ([]subscription.Subscription, error)
}

/* Emitter fans one domain event out into delivery records, one per
 * matching subscriber. Emission is fire-and-forget: failures are logged
 * and recorded, never surfaced to the domain caller.
 */
type Emitter struct {
	subscribers SubscriberSource
	records     queue.Writer
	logger      *slog.Logger
	now         func() time.Time
}

// NewEmitter creates an emitter
func NewEmitter(subscribers SubscriberSource, records queue.Writer, logger *slog.Logger) *Emitter {
	return &Emitter{
		subscribers: subscribers,
		records:     records,
		logger:      logger,
		now:         time.Now,
	}
}

// WithNow overrides the clock, for tests
func (e *Emitter) WithNow(now func() time.Time) *Emitter {
	e.now = now
	return e
}

// Emit enqueues one delivery record per matching active subscription.
// Missing fields are filled in: a zero EventID gets a generated id, a
// zero Timestamp gets the current time.
func (e *Emitter) Emit(ctx context.Context, evt Event) {
	if evt.EventID == "" {
		evt.EventID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = e.now().UTC()
	}

	subs, err := e.subscribers.ForEvent(ctx, evt.WorkspaceID, evt.Event, subscription.EventAttrs{
		Tags:     evt.Tags,
		Priority: evt.Priority,
	})
	if err != nil {
		e.logger.Error("resolving subscribers for event",
			"eventId", evt.EventID, "event", evt.Event, "error", err)
		return
	}
	if len(subs) == 0 {
		return
	}

	payload, err := json.Marshal(evt)
	if err != nil {
		e.logger.Error("marshaling event payload",
			"eventId", evt.EventID, "event", evt.Event, "error", err)
		return
	}

	enqueued := 0
	for _, sub := range subs {
		record := queue.Delivery{
			EventID:        evt.EventID,
			SubscriptionID: sub.ID,
			WorkspaceID:    evt.WorkspaceID,
			URL:            sub.URL,
			Event:          evt.Event,
			Payload:        payload,
			Status:         queue.Pending,
			CreatedAt:      e.now(),
		}
		if err := e.records.Store(ctx, record); err != nil {
			e.logger.Error("enqueuing delivery record",
				"eventId", evt.EventID, "subscriptionId", sub.ID, "error", err)
			continue
		}
		enqueued++
	}

	e.logger.Info("event enqueued for delivery",
		"eventId", evt.EventID,
		"event", evt.Event,
		"workspaceId", evt.WorkspaceID,
		"subscribers", enqueued)
}
