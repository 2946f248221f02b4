package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/taskhub/webhook-gateway/config"
	"github.com/taskhub/webhook-gateway/event"
	queueredis "github.com/taskhub/webhook-gateway/queue/redis"
	"github.com/taskhub/webhook-gateway/subscription"
	subredis "github.com/taskhub/webhook-gateway/subscription/redis"
)

// emit pushes one test event through the real emission path so an
// operator can smoke-test a subscription end to end. The running API's
// delivery worker picks the records up on its next tick.
func main() {
	workspace := flag.String("workspace", "", "workspace id the event belongs to")
	eventType := flag.String("event", event.TypeTaskCreated, "event type to emit")
	payload := flag.String("payload", `{"smoke":true}`, "JSON payload")
	tags := flag.String("tags", "", "comma-separated event tags")
	priority := flag.String("priority", "", "event priority")
	flag.Parse()

	if *workspace == "" {
		fmt.Fprintln(os.Stderr, "-workspace is required")
		os.Exit(1)
	}
	if !json.Valid([]byte(*payload)) {
		fmt.Fprintln(os.Stderr, "-payload must be valid JSON")
		os.Exit(1)
	}

	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := context.Background()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		fmt.Println(err)
		return
	}

	registry := subscription.NewRegistry(subredis.NewRepository(client, logger), event.Catalog(), logger)
	emitter := event.NewEmitter(registry, queueredis.NewRepository(client), logger)

	evt := event.Event{
		EventID:     uuid.New().String(),
		WorkspaceID: *workspace,
		Event:       *eventType,
		Payload:     json.RawMessage(*payload),
		Priority:    *priority,
	}
	if *tags != "" {
		evt.Tags = strings.Split(*tags, ",")
	}

	emitter.Emit(ctx, evt)
	fmt.Printf("emitted %s event %s for workspace %s\n", evt.Event, evt.EventID, evt.WorkspaceID)
}
