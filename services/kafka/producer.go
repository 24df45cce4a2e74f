package kafka

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"sync"
	"time"

	"student-portal/config"
	"student-portal/logger"

	"github.com/segmentio/kafka-go"
)

// Writer is the part of *kafka.Writer used here.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	producer      Writer
	producerMutex sync.Mutex
	isConnected   bool

	// retry backoff base, shortened in tests
	backoffUnit = time.Second
)

const maxAttempts = 3

// InitProducer initializes a Kafka writer using brokers from the config.
func InitProducer() {
	producerMutex.Lock()
	defer producerMutex.Unlock()
	initLocked()
}

func initLocked() {
	brokers := config.AppConfig.KafkaBrokerList()
	if len(brokers) == 0 {
		logger.Info("Kafka is disabled (KAFKA_BROKERS is empty)")
		return
	}

	ensureTopicExists(brokers, config.AppConfig.KafkaTopic)

	producer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: 10 * time.Second,
		RequiredAcks: kafka.RequireAll,
	}

	logger.Info("Kafka producer initialized. Brokers=%v, Topic=%s", brokers, config.AppConfig.KafkaTopic)
	isConnected = true
}

// SetWriter replaces the underlying writer. Used by tests and alternative transports.
func SetWriter(w Writer) {
	producerMutex.Lock()
	defer producerMutex.Unlock()
	producer = w
	isConnected = w != nil
}

// ensureTopicExists creates topic in the background, retrying with
// exponential backoff while brokers come up.
func ensureTopicExists(brokers []string, topic string) {
	if strings.TrimSpace(topic) == "" {
		return
	}
	go func() {
		maxRetries := 5
		for attempt := 0; attempt < maxRetries; attempt++ {
			time.Sleep(time.Duration(math.Pow(2, float64(attempt))) * time.Second)

			conn, err := kafka.Dial("tcp", brokers[0])
			if err != nil {
				if attempt == maxRetries-1 {
					logger.Warn("Could not reach Kafka broker for topic creation after %d attempts: %v", maxRetries, err)
				}
				continue
			}

			err = conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
			conn.Close()
			if err == nil || strings.Contains(err.Error(), "already exists") {
				return
			}
		}
	}()
}

// Publish marshals value to JSON and writes it to topic under key, retrying
// with exponential backoff. When Kafka is disabled it does nothing.
func Publish(ctx context.Context, topic, key string, value interface{}) error {
	producerMutex.Lock()
	if producer == nil && len(config.AppConfig.KafkaBrokerList()) > 0 {
		initLocked()
	}
	w := producer
	producerMutex.Unlock()

	if w == nil {
		return nil
	}

	payload, err := json.Marshal(value)
	if err != nil {
		logger.Error("Error marshaling Kafka message: %v", err)
		return err
	}

	msg := kafka.Message{Topic: topic, Key: []byte(key), Value: payload}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := w.WriteMessages(wctx, msg)
		cancel()

		if err == nil {
			setConnected(true)
			return nil
		}

		lastErr = err
		setConnected(false)
		logger.Warn("Kafka publish attempt %d to %s failed: %v", attempt+1, topic, err)

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(math.Pow(2, float64(attempt))) * backoffUnit):
			}
		}
	}
	return lastErr
}

func setConnected(v bool) {
	producerMutex.Lock()
	isConnected = v
	producerMutex.Unlock()
}

// IsConnected returns true if the producer is ready.
func IsConnected() bool {
	producerMutex.Lock()
	defer producerMutex.Unlock()
	return isConnected && producer != nil
}

// Close gracefully closes the producer.
func Close() error {
	producerMutex.Lock()
	defer producerMutex.Unlock()

	if producer == nil {
		return nil
	}
	err := producer.Close()
	producer = nil
	isConnected = false
	return err
}
