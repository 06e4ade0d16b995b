package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
)

// MetadataTopic carries the topic an event was published to.
const MetadataTopic = "topic"

type correlationKey struct{}

// WithCorrelationID tags ctx so events published under it share the id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id set by WithCorrelationID, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)

	return id
}

// Publish is a function that publishes a typed event.
type Publish[T any] func(ctx context.Context, event *T) error

// PublisherGroup owns the publisher shared by every typed publish function
// and remembers which topics were bound to it.
type PublisherGroup struct {
	publisher message.Publisher

	mu     sync.Mutex
	topics map[string]struct{}
}

// NewPublisherGroup creates a new publisher group.
func NewPublisherGroup(publisher message.Publisher) *PublisherGroup {
	return &PublisherGroup{
		publisher: publisher,
		topics:    make(map[string]struct{}),
	}
}

// NewPublishFunc binds a typed publish function for topic to the group.
// Messages carry the topic and the correlation id of ctx; a fresh id is
// generated when ctx has none.
func NewPublishFunc[T any](group *PublisherGroup, topic string) Publish[T] {
	group.bind(topic)

	return func(ctx context.Context, event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal %s event: %w", topic, err)
		}

		correlationID := CorrelationID(ctx)
		if correlationID == "" {
			correlationID = watermill.NewShortUUID()
		}

		msg := message.NewMessage(watermill.NewUUID(), payload)
		msg.Metadata.Set(MetadataTopic, topic)
		middleware.SetCorrelationID(correlationID, msg)

		if err := group.publisher.Publish(topic, msg); err != nil {
			return fmt.Errorf("publish %s event: %w", topic, err)
		}

		return nil
	}
}

func (g *PublisherGroup) bind(topic string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.topics[topic] = struct{}{}
}

// Topics returns the bound topics in sorted order.
func (g *PublisherGroup) Topics() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	topics := make([]string, 0, len(g.topics))
	for topic := range g.topics {
		topics = append(topics, topic)
	}

	slices.Sort(topics)

	return topics
}

// Shutdown closes the underlying publisher.
func (g *PublisherGroup) Shutdown() error {
	return g.publisher.Close()
}
