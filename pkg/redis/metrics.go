package redis

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	redisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_requests_total",
			Help: "Redis commands issued through the cache client, by method.",
		},
		[]string{"method"},
	)
	redisErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_errors_total",
			Help: "Redis commands that failed, by method. A cache miss is not a failure.",
		},
		[]string{"method"},
	)
	redisRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_request_duration_seconds",
			Help:    "Redis command latency.",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
		},
		[]string{"method"},
	)
)

// MetricsClient is the cache facing client with every command instrumented.
type MetricsClient struct {
	next *Client
}

func NewMetricsClient(next *Client) *MetricsClient {
	return &MetricsClient{next: next}
}

func (m *MetricsClient) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := observe("get", func() error {
		var err error
		value, err = m.next.Get(ctx, key)
		return err
	})
	return value, err
}

func (m *MetricsClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return observe("set", func() error {
		return m.next.Set(ctx, key, value, ttl)
	})
}

func (m *MetricsClient) Ping(ctx context.Context) error {
	return observe("ping", func() error {
		return m.next.Ping(ctx)
	})
}

func (m *MetricsClient) Close() error {
	return m.next.Close()
}

func observe(method string, fn func() error) error {
	start := time.Now()
	err := fn()

	redisRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	redisRequestsTotal.WithLabelValues(method).Inc()
	if err != nil && !errors.Is(err, Nil) {
		redisErrorsTotal.WithLabelValues(method).Inc()
	}

	return err
}
