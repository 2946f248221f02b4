package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/alitto/pond/v2"

	"github.com/taskhub/webhook-gateway/clock"
	"github.com/taskhub/webhook-gateway/metrics"
	"github.com/taskhub/webhook-gateway/queue"
	"github.com/taskhub/webhook-gateway/retry"
	"github.com/taskhub/webhook-gateway/signature"
	"github.com/taskhub/webhook-gateway/subscription"
)

// non-2xx response bodies are truncated to this many bytes before being
// recorded on the delivery
const maxErrorBodyBytes = 512

// HTTPClient is the subset of http.Client the worker needs
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatsRecorder records delivery outcomes against a subscription
type StatsRecorder interface {
	UpdateStats(ctx context.Context, id string, success bool)
}

// Config controls batching, concurrency and retention
type Config struct {
	Interval        time.Duration
	BatchSize       int
	Concurrency     int
	CleanupInterval time.Duration
	RetentionDays   int
	SignatureHeader string
	DeliveryTimeout time.Duration
}

/* Worker drains the delivery queue. Each tick it claims a batch of due
 * records and fans them out over a bounded pool; one slow endpoint can
 * delay at most one pool slot. All state lives in the queue records, so
 * a crashed worker resumes exactly where the records say it left off.
 */
type Worker struct {
	cfg     Config
	records queue.Repository
	subs    subscription.Reader
	stats   StatsRecorder
	policy  retry.Policy
	client  HTTPClient
	clk     clock.Clock
	metrics *metrics.Metrics
	logger  *slog.Logger

	pool    pond.Pool
	stop    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New creates a worker. The pool is sized lazily on Start.
func New(cfg Config, records queue.Repository, subs subscription.Reader, stats StatsRecorder, policy retry.Policy, client HTTPClient, clk clock.Clock, m *metrics.Metrics, logger *slog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 30 * time.Second
	}
	return &Worker{
		cfg:     cfg,
		records: records,
		subs:    subs,
		stats:   stats,
		policy:  policy,
		client:  client,
		clk:     clk,
		metrics: m,
		logger:  logger,
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start runs the delivery loop until the context is canceled or Stop is
// called. Blocks; run it in a goroutine.
func (w *Worker) Start(ctx context.Context) {
	w.pool = pond.NewPool(
		w.cfg.Concurrency,
		pond.WithContext(ctx),
	)

	ticker := w.clk.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	var cleanupCh <-chan time.Time
	if w.cfg.CleanupInterval > 0 {
		cleanup := w.clk.NewTicker(w.cfg.CleanupInterval)
		defer cleanup.Stop()
		cleanupCh = cleanup.C()
	}

	w.logger.Info("delivery worker started",
		"interval", w.cfg.Interval,
		"batch_size", w.cfg.BatchSize,
		"concurrency", w.cfg.Concurrency,
	)

	defer close(w.stopped)
	defer w.pool.StopAndWait()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("delivery worker stopping", "reason", ctx.Err())
			return
		case <-w.stop:
			w.logger.Info("delivery worker stop requested")
			return
		case <-ticker.C():
			w.RunBatch(ctx)
		case <-cleanupCh:
			w.runCleanup(ctx)
		}
	}
}

// Stop signals the loop to exit and waits for in-flight deliveries
func (w *Worker) Stop(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunBatch claims one batch of due records and processes it to completion.
// Exported so a single cycle can be driven directly.
func (w *Worker) RunBatch(ctx context.Context) {
	deliveries, err := w.records.GetPending(ctx, w.cfg.BatchSize)
	if err != nil {
		w.logger.Error("fetching pending deliveries", "error", err)
		return
	}
	if len(deliveries) == 0 {
		return
	}

	if w.pool == nil {
		for _, d := range deliveries {
			w.process(ctx, d)
		}
		return
	}

	// Wait on the per-task handles rather than a WaitGroup: when the pool
	// context is canceled mid-batch, queued tasks are discarded without
	// running, and a discarded task's Wait returns immediately with
	// ErrPoolStopped instead of leaving the batch blocked.
	tasks := make([]pond.Task, 0, len(deliveries))
	for _, d := range deliveries {
		d := d
		tasks = append(tasks, w.pool.Submit(func() {
			w.process(ctx, d)
		}))
	}
	for _, t := range tasks {
		_ = t.Wait()
	}
}

func (w *Worker) process(ctx context.Context, d queue.Delivery) {
	logger := w.logger.With(
		"event_id", d.EventID,
		"subscription_id", d.SubscriptionID,
		"event", d.Event,
	)

	sub, found, err := w.subs.Get(ctx, d.SubscriptionID)
	if err != nil {
		// transient store error, leave the record for the next tick
		logger.Error("loading subscription", "error", err)
		return
	}
	if !found {
		// the subscription was deleted out from under the record
		if err := w.records.Remove(ctx, d.EventID, d.SubscriptionID); err != nil {
			logger.Error("removing orphaned delivery", "error", err)
			return
		}
		logger.Info("removed orphaned delivery")
		w.metrics.DeliveriesTotal.WithLabelValues("orphaned").Inc()
		return
	}
	if !sub.Active {
		d.Status = queue.Abandoned
		d.LastError = "subscription deactivated"
		if err := w.records.Store(ctx, d); err != nil {
			logger.Error("abandoning delivery", "error", err)
			return
		}
		logger.Info("abandoned delivery for inactive subscription")
		w.metrics.DeliveriesTotal.WithLabelValues("abandoned").Inc()
		return
	}

	now := w.clk.Now()
	d.Attempts++
	d.LastAttemptAt = now

	start := time.Now()
	attemptErr := w.attempt(ctx, d, sub)
	w.metrics.DeliveryDuration.Observe(time.Since(start).Seconds())

	if attemptErr == nil {
		d.Status = queue.Delivered
		d.LastError = ""
		d.NextRetryAt = time.Time{}
		if err := w.records.Store(ctx, d); err != nil {
			logger.Error("storing delivered record", "error", err)
			return
		}
		w.stats.UpdateStats(ctx, sub.ID, true)
		w.metrics.DeliveriesTotal.WithLabelValues("delivered").Inc()
		logger.Info("delivered", "attempts", d.Attempts)
		return
	}

	d.LastError = attemptErr.Error()
	outcome := "retried"
	if w.policy.ShouldRetry(d.Attempts) {
		d.NextRetryAt = now.Add(w.policy.Delay(d.Attempts))
		logger.Warn("delivery failed, scheduled retry",
			"attempts", d.Attempts,
			"next_retry_at", d.NextRetryAt,
			"error", attemptErr,
		)
	} else {
		d.Status = queue.Abandoned
		d.NextRetryAt = time.Time{}
		outcome = "abandoned"
		logger.Warn("delivery abandoned after max attempts",
			"attempts", d.Attempts,
			"error", attemptErr,
		)
	}
	if err := w.records.Store(ctx, d); err != nil {
		logger.Error("storing failed record", "error", err)
		return
	}
	w.stats.UpdateStats(ctx, sub.ID, false)
	w.metrics.DeliveriesTotal.WithLabelValues(outcome).Inc()
}

// attempt performs one signed HTTP POST to the subscriber endpoint
func (w *Worker) attempt(ctx context.Context, d queue.Delivery, sub subscription.Subscription) error {
	secret, err := signature.ParseSecret(sub.Secret)
	if err != nil {
		return fmt.Errorf("parsing subscription secret: %w", err)
	}

	signedAt := w.clk.Now()
	tag, err := signature.Sign(secret, d.EventID, signedAt, d.Payload)
	if err != nil {
		return fmt.Errorf("signing payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, w.cfg.DeliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.URL, bytes.NewReader(d.Payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(w.cfg.SignatureHeader, tag.String())
	req.Header.Set("X-Webhook-Timestamp", strconv.FormatInt(signedAt.Unix(), 10))
	req.Header.Set("X-Event-Type", d.Event)
	req.Header.Set("X-Event-ID", d.EventID)
	req.Header.Set("X-Workspace-ID", d.WorkspaceID)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting to endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	if len(body) > 0 {
		return fmt.Errorf("endpoint returned status %d: %s", resp.StatusCode, body)
	}
	return fmt.Errorf("endpoint returned status %d", resp.StatusCode)
}

func (w *Worker) runCleanup(ctx context.Context) {
	removed, err := w.records.Cleanup(ctx, w.cfg.RetentionDays)
	if err != nil {
		w.logger.Error("cleaning up terminal deliveries", "error", err)
		return
	}
	if removed > 0 {
		w.logger.Info("removed expired delivery records", "count", removed)
	}
}
