package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/IBM/sarama"
)

// rejoinDelay spaces out consume attempts after a broker error
const rejoinDelay = 2 * time.Second

// MessageHandler processes one message value. When mark is false the offset
// is not committed and the message is redelivered after the next rebalance.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (mark bool, err error)
}

// ConsumerConfig holds consumer group settings
type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
	Logger  *slog.Logger
}

// Consumer feeds a topic to a MessageHandler as a member of a consumer group
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string
	logger  *slog.Logger

	joined    chan struct{}
	closeOnce sync.Once
}

// NewConsumer joins nothing yet; it only validates the config and dials the brokers
func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if cfg.Handler == nil {
		return nil, errors.New("kafka: consumer handler is required")
	}
	if cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("kafka: consumer topic and group id are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	// triggers are only meaningful when fresh
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}
	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		logger:  logger.With("topic", cfg.Topic, "group", cfg.GroupID),
		joined:  make(chan struct{}),
	}, nil
}

// Start consumes in the background until ctx is done or Close is called.
// It returns once the first session is set up, or with ctx's error.
func (c *Consumer) Start(ctx context.Context) error {
	h := &groupHandler{consumer: c}

	go func() {
		for {
			err := c.group.Consume(ctx, []string{c.topic}, h)
			switch {
			case errors.Is(err, sarama.ErrClosedConsumerGroup), errors.Is(err, context.Canceled):
				c.logger.Info("kafka: consumer stopped")
				return
			case err != nil:
				c.logger.Error("kafka: consume failed", "error", err)
				select {
				case <-time.After(rejoinDelay):
				case <-ctx.Done():
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			c.logger.Warn("kafka: consumer error", "error", err)
		}
	}()

	select {
	case <-c.joined:
		c.logger.Info("kafka: consumer joined")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close leaves the group
func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	consumer *Consumer
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	h.consumer.closeOnce.Do(func() { close(h.consumer.joined) })
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	c := h.consumer
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			log := c.logger.With("partition", msg.Partition, "offset", msg.Offset)
			log.Debug("kafka: message received", "key", string(msg.Key))

			mark, err := c.handler.HandleMessage(session.Context(), msg.Value)
			if err != nil {
				log.Error("kafka: message handling failed", "error", err)
			}
			if mark {
				session.MarkMessage(msg, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON messages into T before processing
type TypedMessageHandler[T any] struct {
	// Validate may normalize msg; returning false skips it
	Validate func(msg *T) bool
	Process  func(ctx context.Context, msg *T) error
	// AlwaysMark commits undecodable and rejected messages instead of leaving them
	AlwaysMark bool
	Logger     *slog.Logger
}

// HandleMessage implements MessageHandler. A Process error leaves the message unmarked.
func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		h.logger().Warn("kafka: dropping undecodable message", "error", err)
		return h.AlwaysMark, nil
	}
	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}
	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}

func (h *TypedMessageHandler[T]) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}
