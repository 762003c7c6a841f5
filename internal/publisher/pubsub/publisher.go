// Package pubsub publishes harvested records to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/JakeFAU/stepstone-harvester/internal/crawler"
)

// Config identifies the destination topic.
type Config struct {
	ProjectID string
	TopicID   string
}

// Publisher sends one JSON message per record.
type Publisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

// Connect opens a client for cfg and verifies that the topic exists.
func Connect(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Publisher, error) {
	if cfg.ProjectID == "" || cfg.TopicID == "" {
		return nil, fmt.Errorf("pubsub project and topic are required")
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)
	ok, err := topic.Exists(ctx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("check topic %s: %w", cfg.TopicID, err)
	}
	if !ok {
		_ = client.Close()
		return nil, fmt.Errorf("topic %s does not exist", cfg.TopicID)
	}
	p := New(topic)
	p.client = client
	return p, nil
}

// New creates a Publisher for an existing topic handle.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// Name identifies the sink in logs and metrics.
func (p *Publisher) Name() string {
	return "pubsub"
}

// Append marshals record to JSON and waits for the publish to be acknowledged.
func (p *Publisher) Append(ctx context.Context, record crawler.JobRecord) error {
	if p.topic == nil {
		return fmt.Errorf("pubsub publisher is not configured")
	}
	data, err := json.Marshal(record.Normalize())
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"job_id":   record.ID,
			"platform": crawler.OrSentinel(record.Platform),
		},
	}
	if _, err := p.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// Close flushes pending messages and releases the client, if owned.
func (p *Publisher) Close() error {
	if p.topic != nil {
		p.topic.Stop()
	}
	if p.client != nil {
		if err := p.client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
	}
	return nil
}
