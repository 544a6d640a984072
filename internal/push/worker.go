package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// Worker consumes push messages from the Pub/Sub subscription and delivers
// them through the gateway client.
type Worker struct {
	client           *pubsub.Client
	subscriber       *pubsub.Subscriber
	subscriptionName string
	delivery         *DeliveryClient
	logger           zerolog.Logger
}

// WorkerConfig holds configuration for the push worker.
type WorkerConfig struct {
	ProjectID        string
	SubscriptionName string
	Delivery         *DeliveryClient
	Logger           zerolog.Logger
}

// NewWorker creates a push worker bound to the configured subscription.
func NewWorker(ctx context.Context, cfg WorkerConfig) (*Worker, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}

	subscriber := client.Subscriber(cfg.SubscriptionName)
	subscriber.ReceiveSettings.MaxOutstandingMessages = 50
	subscriber.ReceiveSettings.MaxExtension = 10 * time.Minute

	return &Worker{
		client:           client,
		subscriber:       subscriber,
		subscriptionName: cfg.SubscriptionName,
		delivery:         cfg.Delivery,
		logger:           cfg.Logger,
	}, nil
}

// Start begins processing push messages. Blocks until the context is
// cancelled or the subscription fails.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info().
		Str("subscription", w.subscriptionName).
		Msg("starting push worker")

	return w.subscriber.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		w.handleMessage(ctx, msg)
	})
}

// Close closes the Pub/Sub client.
func (w *Worker) Close() error {
	return w.client.Close()
}

func (w *Worker) handleMessage(ctx context.Context, msg *pubsub.Message) {
	startTime := time.Now()

	logger := w.logger.With().
		Str("message_id", msg.ID).
		Str("publish_time", msg.PublishTime.Format(time.RFC3339)).
		Logger()

	logger.Debug().Msg("received push message")

	var pushMsg Message
	if err := json.Unmarshal(msg.Data, &pushMsg); err != nil {
		logger.Error().Err(err).Msg("failed to parse push message")
		// Malformed payloads never become deliverable, drop them.
		msg.Ack()
		return
	}

	if pushMsg.Target == "" {
		logger.Warn().Msg("push message without target token")
		msg.Ack()
		return
	}

	err := w.delivery.Deliver(ctx, pushMsg)
	switch {
	case err == nil:
		logger.Info().
			Str("platform", pushMsg.Platform).
			Dur("duration", time.Since(startTime)).
			Msg("push delivered")
		msg.Ack()
	case errors.Is(err, ErrTokenRejected):
		// Stale token, redelivery would fail the same way.
		logger.Warn().Str("platform", pushMsg.Platform).Msg("push token rejected by gateway")
		msg.Ack()
	case errors.Is(err, ErrGatewayUnavailable):
		logger.Warn().Msg("push gateway unavailable, message redelivered")
		msg.Nack()
	default:
		logger.Error().Err(err).Msg("push delivery failed")
		msg.Nack()
	}
}
