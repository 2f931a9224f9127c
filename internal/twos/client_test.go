package twos

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/highlightsync/internal/delivery"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{UserID: "user-1", Token: "secret", BaseURL: server.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)
	client.now = func() time.Time { return time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC) }
	return client
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(Config{UserID: "user-1"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient(Config{Token: "token"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestClient_Post(t *testing.T) {
	var received addToTodayRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, addToTodayPath, r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	})

	err := client.Post(context.Background(), "Dune, Frank Herbert: Fear is the mind-killer.")
	require.NoError(t, err)

	assert.Equal(t, "Dune, Frank Herbert: Fear is the mind-killer.", received.Text)
	assert.Equal(t, "Mon May 06, 2024", received.Title)
	assert.Equal(t, "secret", received.Token)
	assert.Equal(t, "user-1", received.UserID)
}

func TestClient_Post_Classification(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		wantRetry    bool
		wantRejected bool
	}{
		{name: "server error is retryable", status: http.StatusServiceUnavailable, wantRetry: true},
		{name: "rate limit is retryable", status: http.StatusTooManyRequests, wantRetry: true},
		{name: "bad request is rejected", status: http.StatusBadRequest, wantRejected: true},
		{name: "forbidden is rejected", status: http.StatusForbidden, wantRejected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":"nope"}`))
			})

			err := client.Post(context.Background(), "text")
			require.Error(t, err)
			assert.Equal(t, tt.wantRetry, delivery.IsRetryable(err))
			assert.Equal(t, tt.wantRejected, delivery.IsRejected(err))
		})
	}
}

func TestClient_Post_TransportErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(Config{UserID: "u", Token: "t", BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	err = client.Post(context.Background(), "text")
	require.Error(t, err)
	assert.True(t, delivery.IsRetryable(err))
}
