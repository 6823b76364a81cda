// Package pubsub implements a Google Cloud Pub/Sub notifier.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/JakeFAU/permafrost/internal/notify"
)

// Notifier wraps a Pub/Sub topic.
type Notifier struct {
	topic *pubsub.Topic
}

// New creates a Notifier for the provided topic.
func New(topic *pubsub.Topic) *Notifier {
	return &Notifier{topic: topic}
}

// Notify marshals the event to JSON and publishes it to the topic.
func (n *Notifier) Notify(ctx context.Context, event notify.Event) (string, error) {
	if n.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	msg := &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"action": event.Action, "site": event.Site},
	}
	result := n.topic.Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish event: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages. Call it during shutdown.
func (n *Notifier) Stop() {
	if n.topic != nil {
		n.topic.Stop()
	}
}
