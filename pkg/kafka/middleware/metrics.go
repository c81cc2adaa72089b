package kafka_middleware

import (
	"context"
	"sync/atomic"
	"time"

	"openrequests/pkg/kafka"
)

// Metrics counts Kafka traffic for the service's stats endpoint.
type Metrics struct {
	published       atomic.Int64
	publishFailed   atomic.Int64
	publishDuration atomic.Int64 // nanoseconds
	consumed        atomic.Int64
	consumeFailed   atomic.Int64
	consumeDuration atomic.Int64 // nanoseconds
}

type MetricsSnapshot struct {
	MessagesPublished       int64         `json:"messages_published"`
	MessagesPublishedFailed int64         `json:"messages_published_failed"`
	AvgPublishDuration      time.Duration `json:"avg_publish_duration_ns"`
	MessagesConsumed        int64         `json:"messages_consumed"`
	MessagesConsumedFailed  int64         `json:"messages_consumed_failed"`
	AvgConsumeDuration      time.Duration `json:"avg_consume_duration_ns"`
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	published := m.published.Load()
	consumed := m.consumed.Load()
	return MetricsSnapshot{
		MessagesPublished:       published,
		MessagesPublishedFailed: m.publishFailed.Load(),
		AvgPublishDuration:      average(m.publishDuration.Load(), published),
		MessagesConsumed:        consumed,
		MessagesConsumedFailed:  m.consumeFailed.Load(),
		AvgConsumeDuration:      average(m.consumeDuration.Load(), consumed),
	}
}

func average(total, n int64) time.Duration {
	if n == 0 {
		return 0
	}
	return time.Duration(total / n)
}

func (m *Metrics) ProducerMiddleware() kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		if err != nil {
			m.publishFailed.Add(1)
			return err
		}
		m.published.Add(1)
		m.publishDuration.Add(int64(time.Since(start)))
		return nil
	}
}

func (m *Metrics) ConsumerMiddleware() kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)
		if err != nil {
			m.consumeFailed.Add(1)
			return err
		}
		m.consumed.Add(1)
		m.consumeDuration.Add(int64(time.Since(start)))
		return nil
	}
}
