package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"designer-marketplace/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateIntent_SendsAuthAndIdempotencyKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test", user)
		assert.Equal(t, "key-secret", pass)
		assert.Equal(t, "idem-1", r.Header.Get("Idempotency-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 49900, body["amount"])
		assert.Equal(t, "INR", body["currency"])

		_ = json.NewEncoder(w).Encode(Intent{ID: "order_abc", Amount: 49900, Currency: "INR", Status: StatusCreated})
	}))
	defer srv.Close()

	intent, err := newTestClient(t, srv.URL).CreateIntent(context.Background(), 49900, "INR", "idem-1")
	require.NoError(t, err)
	assert.Equal(t, "order_abc", intent.ID)
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/payments/pay_1":
			_ = json.NewEncoder(w).Encode(Payment{ID: "pay_1", OrderID: "order_abc", Status: StatusCaptured, Amount: 100, Method: "upi"})
		default:
			http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		}
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	p, err := c.FetchStatus(context.Background(), "pay_1")
	require.NoError(t, err)
	assert.Equal(t, StatusCaptured, p.Status)
	assert.Equal(t, "order_abc", p.OrderID)

	_, err = c.FetchStatus(context.Background(), "pay_missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCall_ServerErrorsTripBreaker(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()
	c := newTestClient(t, srv.URL)

	for i := 0; i < 8; i++ {
		_, err := c.FetchStatus(context.Background(), "pay_1")
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
	}
	assert.Equal(t, int32(5), hits.Load(), "breaker should stop calling after five consecutive failures")
}

func TestCall_ClientErrorsAreValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"description":"amount too small"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv.URL).CreateIntent(context.Background(), 1, "INR", "idem-2")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCall_TimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c, err := NewHTTPClient(Config{BaseURL: srv.URL, KeyID: "id", KeySecret: "s", Timeout: 20 * time.Millisecond}, nil, nil)
	require.NoError(t, err)
	_, err = c.FetchStatus(context.Background(), "pay_1")
	assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
}
