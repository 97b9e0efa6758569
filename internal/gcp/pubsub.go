package gcp

import (
	"context"
	"fmt"
	"sync"

	"cloud.google.com/go/pubsub"
)

// QueuePublisher sends messages to Pub/Sub topics, caching topic handles
// across invocations of the same function instance.
type QueuePublisher struct {
	client *pubsub.Client

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewQueuePublisher creates a publisher for the given project.
func NewQueuePublisher(ctx context.Context, projectID string) (*QueuePublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pub/Sub client: %w", err)
	}
	return &QueuePublisher{
		client: client,
		topics: make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends one message and blocks until the server acknowledges it,
// so a routing failure surfaces in the publishing invocation.
func (p *QueuePublisher) Publish(ctx context.Context, topic string, data []byte, attributes map[string]string) error {
	result := p.topic(topic).Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes,
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, err)
	}
	return nil
}

func (p *QueuePublisher) topic(id string) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.topics[id]
	if !ok {
		t = p.client.Topic(id)
		p.topics[id] = t
	}
	return t
}
