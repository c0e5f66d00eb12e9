package metrics

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
)

// redisCollector samples current-state gauges straight from Redis on scrape:
// open sessions, stored verdicts, active subscriptions.
type redisCollector struct {
	rdb    *redis.Client
	logger *slog.Logger

	openSessionsDesc *prometheus.Desc
	verdictsDesc     *prometheus.Desc
	subsActiveDesc   *prometheus.Desc
}

func newRedisCollector(rdb *redis.Client, logger *slog.Logger) *redisCollector {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisCollector{
		rdb:    rdb,
		logger: logger,
		openSessionsDesc: prometheus.NewDesc(
			"fleetfox_open_sessions",
			"Current number of open upload sessions.",
			nil,
			nil,
		),
		verdictsDesc: prometheus.NewDesc(
			"fleetfox_verdicts_stored",
			"Current number of stored verdict events.",
			nil,
			nil,
		),
		subsActiveDesc: prometheus.NewDesc(
			"fleetfox_subscriptions_active",
			"Current number of unexpired verdict subscriptions.",
			nil,
			nil,
		),
	}
}

func (c *redisCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.openSessionsDesc
	ch <- c.verdictsDesc
	ch <- c.subsActiveDesc
}

func (c *redisCollector) Collect(ch chan<- prometheus.Metric) {
	if c.rdb == nil {
		return
	}

	// Keep Redis reads bounded so scrapes do not hang.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	minScore := strconv.FormatInt(time.Now().UTC().Unix(), 10)

	var sessions int64
	iter := c.rdb.Scan(ctx, 0, "fleetfox:qa:session:*", 1000).Iterator()
	for iter.Next(ctx) {
		sessions++
	}
	if err := iter.Err(); err != nil {
		c.logger.Warn("prometheus redis collector failed", "err", err)
		return
	}

	pipe := c.rdb.Pipeline()
	verdicts := pipe.HLen(ctx, "fleetfox:qa:verdicts")
	subs := pipe.ZCount(ctx, "fleetfox:qa:subs:index", minScore, "+inf")
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		c.logger.Warn("prometheus redis collector failed", "err", err)
		return
	}

	emitGauge(ch, c.openSessionsDesc, float64(sessions))
	emitGauge(ch, c.verdictsDesc, float64(verdicts.Val()))
	emitGauge(ch, c.subsActiveDesc, float64(subs.Val()))
}

func emitGauge(ch chan<- prometheus.Metric, desc *prometheus.Desc, v float64, labelValues ...string) {
	m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, v, labelValues...)
	if err != nil {
		return
	}
	ch <- m
}

var registerRedisCollectorOnce sync.Once

func RegisterRedisCollector(rdb *redis.Client, logger *slog.Logger) {
	registerRedisCollectorOnce.Do(func() {
		prometheus.MustRegister(newRedisCollector(rdb, logger))
	})
}
