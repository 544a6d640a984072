package push

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// PubSubDispatcher publishes delivery requests to a Pub/Sub topic consumed by
// the delivery worker. Publishing keeps the HTTP request path and database
// transactions decoupled from the push collaborator.
type PubSubDispatcher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	topicName string
	logger    zerolog.Logger
}

// PubSubConfig holds configuration for the Pub/Sub dispatcher.
type PubSubConfig struct {
	ProjectID string
	TopicName string
	Logger    zerolog.Logger
}

// NewPubSubDispatcher creates a dispatcher publishing to the configured topic.
func NewPubSubDispatcher(ctx context.Context, cfg PubSubConfig) (*PubSubDispatcher, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	return &PubSubDispatcher{
		client:    client,
		publisher: client.Publisher(cfg.TopicName),
		topicName: cfg.TopicName,
		logger:    cfg.Logger,
	}, nil
}

// Dispatch publishes the message. The publish result is awaited on a separate
// goroutine; failures are logged and dropped, delivery is best-effort.
func (d *PubSubDispatcher) Dispatch(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding push message: %w", err)
	}

	result := d.publisher.Publish(ctx, &pubsub.Message{Data: data})

	go func() {
		if _, err := result.Get(context.Background()); err != nil {
			d.logger.Warn().
				Err(err).
				Str("topic", d.topicName).
				Msg("push message publish failed")
		}
	}()

	return nil
}

// Close releases the underlying Pub/Sub client.
func (d *PubSubDispatcher) Close() error {
	d.publisher.Stop()
	return d.client.Close()
}

var _ Dispatcher = (*PubSubDispatcher)(nil)
