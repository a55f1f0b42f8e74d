package notify

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/hometech/api/internal/services"
)

// PubSubNotifier publishes notifications to a Pub/Sub topic.
type PubSubNotifier struct {
	topic *pubsub.Topic
}

// NewPubSubNotifier constructs a Pub/Sub backed notifier.
func NewPubSubNotifier(topic *pubsub.Topic) (*PubSubNotifier, error) {
	if topic == nil {
		return nil, errors.New("pubsub notifier: topic is required")
	}
	return &PubSubNotifier{topic: topic}, nil
}

// Notify publishes the notification and waits for the server acknowledgement.
func (p *PubSubNotifier) Notify(ctx context.Context, n services.Notification) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub notifier: not initialised")
	}
	data, err := encode(n)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attributes(n),
	})
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
