package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"github.com/taskhub/webhook-gateway/auth"
	"github.com/taskhub/webhook-gateway/clock"
	"github.com/taskhub/webhook-gateway/command"
	"github.com/taskhub/webhook-gateway/config"
	"github.com/taskhub/webhook-gateway/envelope"
	"github.com/taskhub/webhook-gateway/event"
	"github.com/taskhub/webhook-gateway/handlers"
	"github.com/taskhub/webhook-gateway/idempotency"
	httpchi "github.com/taskhub/webhook-gateway/internal/http/chi"
	"github.com/taskhub/webhook-gateway/metrics"
	queueredis "github.com/taskhub/webhook-gateway/queue/redis"
	"github.com/taskhub/webhook-gateway/ratelimit"
	"github.com/taskhub/webhook-gateway/retry"
	"github.com/taskhub/webhook-gateway/subscription"
	subredis "github.com/taskhub/webhook-gateway/subscription/redis"
	"github.com/taskhub/webhook-gateway/task/remote"
	"github.com/taskhub/webhook-gateway/worker"
)

const shutdownTimeout = 30 * time.Second

// sweepInterval paces the in-memory state sweeps (rate limiter, lockout
// tracker, idempotency cache)
const sweepInterval = time.Minute

/* main wires every package together: config, logger, Redis, the
 * repositories and services on top, the delivery worker, and finally the
 * HTTP server. Dependencies flow one way only: main imports the business
 * packages, which import the storage adapters, never the reverse.
 */

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT,
	)
	defer stop()

	client, err := connectRedis(ctx, cfg)
	if err != nil {
		logger.Error("connecting to redis", "addr", cfg.RedisAddr, "error", err)
		return
	}
	defer client.Close()

	keys := auth.NewLoader()
	if err := keys.Load(cfg.APIKeysFile); err != nil {
		logger.Error("loading API keys", "file", cfg.APIKeysFile, "error", err)
		return
	}

	subRepo := subredis.NewRepository(client, logger)
	registry := subscription.NewRegistry(subRepo, event.Catalog(), logger)

	queueRepo := queueredis.NewRepository(client)
	emitter := event.NewEmitter(registry, queueRepo, logger)

	taskClient := remote.New(cfg.TaskServiceURL, cfg.DeliveryTimeout())

	router := command.NewRouter()
	handlers.Register(router, handlers.Deps{
		Tasks:      taskClient,
		Storage:    taskClient,
		Recurrence: taskClient,
		Registry:   registry,
		Emitter:    emitter,
	})

	m := metrics.New()
	if err := m.Register(metrics.NewQueueCollector(client, logger)); err != nil {
		logger.Error("registering queue collector", "error", err)
		return
	}

	lockout := auth.NewLockout(cfg.LockoutMaxFailures, cfg.LockoutCooldown())
	limiter := ratelimit.NewLimiter(cfg.RateLimitMaxRequests, cfg.RateLimitWindow())
	idemCache := idempotency.NewCache(cfg.IdempotencyTTL())
	go sweep(ctx, lockout, limiter, idemCache)

	policy := retry.Policy{
		InitialDelay: cfg.RetryInitialDelay(),
		Multiplier:   cfg.RetryMultiplier,
		MaxDelay:     cfg.RetryMaxDelay(),
		MaxAttempts:  cfg.RetryMaxAttempts,
	}
	deliveryWorker := worker.New(worker.Config{
		Interval:        cfg.WorkerInterval(),
		BatchSize:       cfg.WorkerBatchSize,
		Concurrency:     cfg.WorkerConcurrency,
		CleanupInterval: cfg.CleanupInterval(),
		RetentionDays:   cfg.RetentionDays,
		SignatureHeader: cfg.SignatureHeader,
		DeliveryTimeout: cfg.DeliveryTimeout(),
	}, queueRepo, subRepo, registry, policy,
		&http.Client{Timeout: cfg.DeliveryTimeout()},
		clock.Real{}, m, logger)
	go deliveryWorker.Start(ctx)

	r := httpchi.Handlers(httpchi.Config{
		BodyLimit:      cfg.MaxBodyBytes,
		RequestTimeout: cfg.RequestTimeout(),
		RequireHTTPS:   cfg.RequireHTTPS,
		Version:        cfg.Version,
	}, httpchi.Deps{
		Validator:   envelope.NewValidator(cfg.MaxRequestAge(), cfg.MaxClockSkew()),
		Router:      router,
		Keys:        keys,
		Lockout:     lockout,
		Limiter:     limiter,
		Idempotency: idemCache,
		Metrics:     m,
		Logger:      logger,
	})

	srv := &http.Server{
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		Addr:         ":" + cfg.Port,
		Handler:      r,
	}

	errShutdown := make(chan error, 1)
	go shutdown(srv, ctx, deliveryWorker, errShutdown)
	logger.Info("listening", "port", cfg.Port, "version", cfg.Version)
	err = srv.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "error", err)
		return
	}
	if err := <-errShutdown; err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}

// connectRedis pings with exponential backoff so the gateway survives a
// Redis that comes up a few seconds later than the process
func connectRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		return client.Ping(ctx).Err()
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

// sweep periodically evicts stale in-memory state so the maps stay bounded
func sweep(ctx context.Context, lockout *auth.Lockout, limiter *ratelimit.Limiter, cache *idempotency.Cache) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			lockout.Sweep()
			limiter.Sweep()
			cache.Sweep()
		}
	}
}

func shutdown(server *http.Server, ctxShutdown context.Context, deliveryWorker *worker.Worker, errShutdown chan error) {
	<-ctxShutdown.Done()

	ctxTimeout, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()

	// drain in-flight deliveries before closing the listener
	if err := deliveryWorker.Stop(ctxTimeout); err != nil {
		slog.Warn("delivery worker did not stop cleanly", "error", err)
	}

	err := server.Shutdown(ctxTimeout)
	switch err {
	case nil:
		errShutdown <- nil
	case context.DeadlineExceeded:
		errShutdown <- fmt.Errorf("forcing server close after timeout")
	default:
		errShutdown <- err
	}
}
