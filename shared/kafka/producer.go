package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"newsbot/types"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

const eventTypeHeader = "event-type"

// ProducerConfig holds Kafka producer configuration
type ProducerConfig struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// Producer publishes delivery events keyed by article identity hash
type Producer struct {
	producer sarama.SyncProducer
	topic    string
	logger   *slog.Logger
}

// NewProducer connects a synchronous producer to the brokers
func NewProducer(config ProducerConfig) (*Producer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Version = sarama.V3_6_0_0
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.Return.Successes = true

	p, err := sarama.NewSyncProducer(config.Brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("kafka: create producer: %w", err)
	}
	return NewProducerWith(p, config.Topic, config.Logger), nil
}

// NewProducerWith wraps an existing sarama producer
func NewProducerWith(p sarama.SyncProducer, topic string, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{producer: p, topic: topic, logger: logger}
}

// PublishDelivery sends one delivery event. Events without an ID get a random one.
func (p *Producer) PublishDelivery(ctx context.Context, ev types.DeliveryEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("kafka: marshal delivery event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.Hash),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte(eventTypeHeader), Value: []byte("delivery")},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("kafka: publish delivery event %s: %w", ev.ID, err)
	}
	p.logger.Debug("kafka: published delivery event", "id", ev.ID, "partition", partition, "offset", offset)
	return nil
}

// Close flushes and closes the producer
func (p *Producer) Close() error {
	return p.producer.Close()
}
