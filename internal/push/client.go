package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker/v2"
)

// Predefined errors for push delivery.
var (
	// ErrGatewayUnavailable is returned when the push gateway circuit is open.
	ErrGatewayUnavailable = errors.New("push gateway unavailable")

	// ErrTokenRejected is returned when the gateway reports the device token
	// as invalid or expired. The caller should clear the stored token.
	ErrTokenRejected = errors.New("push token rejected")
)

// DeliveryConfig holds configuration for the push delivery client.
type DeliveryConfig struct {
	// GatewayURL is the base URL of the push gateway.
	GatewayURL string

	// APIKey authenticates requests to the gateway.
	APIKey string

	// Timeout is the request timeout for individual delivery calls.
	// Default: 10 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts.
	// Default: 3
	MaxRetries uint64

	// InitialInterval is the initial retry backoff interval.
	// Default: 250ms
	InitialInterval time.Duration

	// MaxInterval is the maximum retry backoff interval.
	// Default: 5 seconds
	MaxInterval time.Duration

	// Metrics records delivery attempts. Optional.
	Metrics *DeliveryMetrics
}

// DeliveryClient sends push payloads to the gateway with circuit breaker
// protection and exponential backoff on transient failures.
type DeliveryClient struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[int]
	config     DeliveryConfig
}

// NewDeliveryClient creates a delivery client for the configured gateway.
func NewDeliveryClient(cfg DeliveryConfig) *DeliveryClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialInterval == 0 {
		cfg.InitialInterval = 250 * time.Millisecond
	}
	if cfg.MaxInterval == 0 {
		cfg.MaxInterval = 5 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "push-gateway",
		MaxRequests: 1,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
	})

	return &DeliveryClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		config:     cfg,
	}
}

// deliveryPayload is the wire format the gateway accepts.
type deliveryPayload struct {
	Token    string            `json:"token"`
	Platform string            `json:"platform"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
}

// Deliver sends a single push message to the gateway. Network errors and 5xx
// responses are retried with exponential backoff; a 410 from the gateway maps
// to ErrTokenRejected and is not retried.
func (c *DeliveryClient) Deliver(ctx context.Context, msg Message) error {
	body, err := json.Marshal(deliveryPayload{
		Token:    msg.Target,
		Platform: msg.Platform,
		Title:    msg.Title,
		Body:     msg.Body,
		Data:     msg.Metadata,
	})
	if err != nil {
		return fmt.Errorf("encoding delivery payload: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.config.InitialInterval
	bo.MaxInterval = c.config.MaxInterval
	bo.MaxElapsedTime = 0

	retryPolicy := backoff.WithContext(backoff.WithMaxRetries(bo, c.config.MaxRetries), ctx)

	operation := func() error {
		start := time.Now()
		_, err := c.breaker.Execute(func() (int, error) {
			return c.send(ctx, body)
		})
		c.config.Metrics.RecordDelivery(msg.Platform, time.Since(start), err)
		if err != nil {
			if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(ErrGatewayUnavailable)
			}
			if errors.Is(err, ErrTokenRejected) {
				c.config.Metrics.RecordTokenRejection(msg.Platform)
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	return backoff.Retry(operation, retryPolicy)
}

func (c *DeliveryClient) send(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.GatewayURL+"/v1/deliveries", bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusGone:
		return resp.StatusCode, ErrTokenRejected
	case resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("gateway error: %s", http.StatusText(resp.StatusCode))
	case resp.StatusCode >= 400:
		return resp.StatusCode, backoff.Permanent(fmt.Errorf("delivery rejected: %s", http.StatusText(resp.StatusCode)))
	}

	return resp.StatusCode, nil
}

// BreakerState returns the current state of the gateway circuit breaker.
func (c *DeliveryClient) BreakerState() gobreaker.State {
	return c.breaker.State()
}
