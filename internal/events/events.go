// Package events publishes order lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/whatscommerce/whatscommerce/internal/models"
)

// DefaultTopic is the Kafka topic order-created events are published to.
const DefaultTopic = "whatscommerce.orders"

// OrderCreatedEvent is the wire form of an order-created notification.
type OrderCreatedEvent struct {
	OrderID     int64              `json:"order_id"`
	PhoneNumber string             `json:"phone_number"`
	Status      string             `json:"status"`
	Total       float64            `json:"total"`
	Lines       []models.OrderLine `json:"lines"`
	CreatedAt   time.Time          `json:"created_at"`
}

// KafkaPublisher emits order events through a synchronous Sarama producer.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
}

// Opts holds configuration for NewKafkaPublisher.
type Opts struct {
	Brokers []string
	Topic   string
}

// Option configures Opts.
type Option func(*Opts)

// WithBrokers sets the Kafka broker addresses.
func WithBrokers(brokers []string) Option {
	return func(o *Opts) { o.Brokers = brokers }
}

// WithTopic overrides the destination topic.
func WithTopic(topic string) Option {
	return func(o *Opts) { o.Topic = topic }
}

// NewKafkaPublisher connects a synchronous producer to the configured brokers.
func NewKafkaPublisher(opts ...Option) (*KafkaPublisher, error) {
	cfg := Opts{Topic: DefaultTopic}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}

	sc := sarama.NewConfig()
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 3
	sc.Producer.Return.Successes = true

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}
	slog.Info("KafkaPublisher connected", "brokers", cfg.Brokers, "topic", cfg.Topic)
	return &KafkaPublisher{producer: producer, topic: cfg.Topic}, nil
}

// NewKafkaPublisherFromProducer wraps an existing producer (used by tests).
func NewKafkaPublisherFromProducer(producer sarama.SyncProducer, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &KafkaPublisher{producer: producer, topic: topic}
}

// PublishOrderCreated sends an order-created event keyed by phone number so
// events for one customer stay in partition order.
func (p *KafkaPublisher) PublishOrderCreated(ctx context.Context, order models.Order, phoneNumber string) error {
	event := OrderCreatedEvent{
		OrderID:     order.ID,
		PhoneNumber: phoneNumber,
		Status:      order.Status,
		Total:       order.Total,
		Lines:       order.Lines,
		CreatedAt:   time.Now().UTC(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode order event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(phoneNumber),
		Value: sarama.ByteEncoder(payload),
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	slog.Debug("KafkaPublisher.PublishOrderCreated sent",
		"order_id", order.ID, "topic", p.topic, "partition", partition, "offset", offset)
	return nil
}

// Close shuts down the underlying producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
