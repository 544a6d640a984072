package push_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dosepoint/dosepoint/internal/push"
)

func testMessage() push.Message {
	return push.Message{
		Target:   "token-abc",
		Platform: "ios",
		Title:    "Supplement low",
		Body:     "Fish oil is at 15%",
		Metadata: map[string]string{"device_id": "dev_1"},
	}
}

func fastConfig(url string) push.DeliveryConfig {
	return push.DeliveryConfig{
		GatewayURL:      url,
		APIKey:          "test-key",
		Timeout:         2 * time.Second,
		MaxRetries:      3,
		InitialInterval: 5 * time.Millisecond,
		MaxInterval:     20 * time.Millisecond,
	}
}

func TestDeliver_Success(t *testing.T) {
	var gotAuth string
	var gotPayload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := push.NewDeliveryClient(fastConfig(server.URL))

	err := client.Deliver(context.Background(), testMessage())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "token-abc", gotPayload["token"])
	assert.Equal(t, "ios", gotPayload["platform"])
}

func TestDeliver_RetriesOn5xx(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := push.NewDeliveryClient(fastConfig(server.URL))

	err := client.Deliver(context.Background(), testMessage())
	require.NoError(t, err)
	assert.Equal(t, int32(3), attempts.Load(), "should have retried until success")
}

func TestDeliver_TokenRejectedNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusGone)
	}))
	defer server.Close()

	client := push.NewDeliveryClient(fastConfig(server.URL))

	err := client.Deliver(context.Background(), testMessage())
	assert.ErrorIs(t, err, push.ErrTokenRejected)
	assert.Equal(t, int32(1), attempts.Load(), "410 must not be retried")
}

func TestDeliver_ClientErrorNotRetried(t *testing.T) {
	var attempts atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	client := push.NewDeliveryClient(fastConfig(server.URL))

	err := client.Deliver(context.Background(), testMessage())
	assert.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestDeliver_CircuitBreakerOpens(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := push.NewDeliveryClient(fastConfig(server.URL))

	// Enough failing deliveries to trip the breaker.
	for range 3 {
		_ = client.Deliver(context.Background(), testMessage())
	}

	assert.Equal(t, gobreaker.StateOpen, client.BreakerState())

	err := client.Deliver(context.Background(), testMessage())
	assert.ErrorIs(t, err, push.ErrGatewayUnavailable)
}

func TestDeliver_RecordsMetrics(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	metrics, err := push.NewDeliveryMetrics()
	require.NoError(t, err)

	cfg := fastConfig(server.URL)
	cfg.Metrics = metrics
	client := push.NewDeliveryClient(cfg)

	// Recording against the default no-op meter must not panic.
	require.NoError(t, client.Deliver(context.Background(), testMessage()))
}
