package kafka

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"student-portal/config"
	"student-portal/logger"

	"github.com/segmentio/kafka-go"
)

// Reader is the part of *kafka.Reader used by Consume.
type Reader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// NewReader opens a consumer-group reader on topic using the configured
// brokers. It returns nil when Kafka is disabled.
func NewReader(topic, group string) Reader {
	brokers := config.AppConfig.KafkaBrokerList()
	if len(brokers) == 0 {
		logger.Info("Kafka consumer is disabled (KAFKA_BROKERS is empty)")
		return nil
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:          brokers,
		Topic:            topic,
		GroupID:          group,
		StartOffset:      kafka.LastOffset,
		CommitInterval:   time.Second,
		MaxBytes:         10e6,
		SessionTimeout:   20 * time.Second,
		ReadBackoffMin:   100 * time.Millisecond,
		ReadBackoffMax:   time.Second,
		QueueCapacity:    100,
		RebalanceTimeout: 60 * time.Second,
	})
	logger.Info("Kafka consumer initialized. Brokers=%v, Topic=%s, ConsumerGroup=%s", brokers, topic, group)
	return r
}

// Consume reads messages until ctx is done or the reader is closed, passing
// each one to handle. Handler errors are logged and do not stop the loop.
func Consume(ctx context.Context, r Reader, handle func(kafka.Message) error) error {
	for {
		msg, err := r.ReadMessage(ctx)
		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe):
				return nil
			case strings.Contains(err.Error(), "Group Coordinator Not Available"):
				sleep(ctx, 500*time.Millisecond)
			default:
				logger.Warn("Kafka read failed: %v", err)
				sleep(ctx, time.Second)
			}
			continue
		}

		if err := handle(msg); err != nil {
			logger.Error("handling message %s/%d@%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
