package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

const collectTimeout = 2 * time.Second

// QueueCollector reports delivery queue depth straight from Redis on
// every scrape, so the gauge is accurate even across process restarts.
type QueueCollector struct {
	client *redis.Client
	logger *slog.Logger

	depthDesc *prometheus.Desc
}

// NewQueueCollector creates a collector over the delivery queue's sorted sets
func NewQueueCollector(client *redis.Client, logger *slog.Logger) *QueueCollector {
	return &QueueCollector{
		client: client,
		logger: logger,
		depthDesc: prometheus.NewDesc(
			"gateway_queue_depth",
			"Delivery records in the queue, by state.",
			[]string{"state"}, nil,
		),
	}
}

func (c *QueueCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.depthDesc
}

func (c *QueueCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), collectTimeout)
	defer cancel()

	for key, state := range map[string]string{
		"deliveries:pending":  "pending",
		"deliveries:terminal": "terminal",
	} {
		count, err := c.client.ZCard(ctx, key).Result()
		if err != nil {
			// a failed scrape must not take the endpoint down
			c.logger.Warn("queue depth scrape failed", "key", key, "error", err)
			continue
		}
		ch <- prometheus.MustNewConstMetric(c.depthDesc, prometheus.GaugeValue, float64(count), state)
	}
}
