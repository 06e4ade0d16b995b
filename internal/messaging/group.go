package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Runnable represents a component that can be started and shutdown.
type Runnable interface {
	Start(ctx context.Context) error
	Shutdown() error
}

type topicConsumer interface {
	Topic() string
}

// ConsumerGroup starts consumers sharing one subscriber and stops them together.
type ConsumerGroup struct {
	consumers  []Runnable
	subscriber message.Subscriber
	logger     *zap.Logger
}

// NewConsumerGroup creates a new consumer group.
func NewConsumerGroup(subscriber message.Subscriber, logger *zap.Logger) *ConsumerGroup {
	return &ConsumerGroup{
		subscriber: subscriber,
		logger:     logger,
	}
}

// Add registers a consumer to the group.
func (g *ConsumerGroup) Add(consumer Runnable) {
	g.consumers = append(g.consumers, consumer)
}

// Topics lists the topics of the registered consumers, in registration order.
func (g *ConsumerGroup) Topics() []string {
	topics := make([]string, 0, len(g.consumers))

	for _, c := range g.consumers {
		if tc, ok := c.(topicConsumer); ok {
			topics = append(topics, tc.Topic())
		}
	}

	return topics
}

// Start starts every consumer. If one fails, those already running are stopped.
func (g *ConsumerGroup) Start(ctx context.Context) error {
	for i, consumer := range g.consumers {
		if err := consumer.Start(ctx); err != nil {
			rollback := make([]error, 0, i)
			for j := i - 1; j >= 0; j-- {
				rollback = append(rollback, g.consumers[j].Shutdown())
			}

			return errors.Join(fmt.Errorf("start consumer %s: %w", describe(consumer, i), err), errors.Join(rollback...))
		}
	}

	g.logger.Info("consumer group started", zap.Strings("topics", g.Topics()))

	return nil
}

// Shutdown stops every consumer, then closes the subscriber. All errors are returned joined.
func (g *ConsumerGroup) Shutdown() error {
	g.logger.Info("shutting down consumer group", zap.Int("count", len(g.consumers)))

	errs := make([]error, 0, len(g.consumers)+1)

	for i, consumer := range g.consumers {
		if err := consumer.Shutdown(); err != nil {
			errs = append(errs, fmt.Errorf("stop consumer %s: %w", describe(consumer, i), err))
		}
	}

	if err := g.subscriber.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close subscriber: %w", err))
	}

	return errors.Join(errs...)
}

func describe(consumer Runnable, index int) string {
	if tc, ok := consumer.(topicConsumer); ok {
		return tc.Topic()
	}

	return fmt.Sprintf("#%d", index)
}
