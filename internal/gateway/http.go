package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"designer-marketplace/internal/domain"
	"designer-marketplace/internal/logging"
	"designer-marketplace/internal/metrics"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

type Config struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	Timeout       time.Duration
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway responded %d: %s", e.StatusCode, e.Body)
}

// HTTPClient calls a Razorpay-compatible REST API. Calls go through a circuit
// breaker that opens after consecutive transport or 5xx failures.
type HTTPClient struct {
	cfg     Config
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	metrics *metrics.Metrics
	logger  *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg Config, m *metrics.Metrics, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		return nil, errors.New("gateway: key id and secret are required")
	}
	if cfg.WebhookSecret == "" {
		cfg.WebhookSecret = cfg.KeySecret
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	logger = logging.OrNop(logger).Named("gateway")

	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "payment-gateway",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			var apiErr *APIError
			return err == nil || (errors.As(err, &apiErr) && apiErr.StatusCode < http.StatusInternalServerError)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &HTTPClient{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		breaker: breaker,
		metrics: m,
		logger:  logger,
	}, nil
}

func (c *HTTPClient) CreateIntent(ctx context.Context, amountMinor int64, currency, idempotencyKey string) (*Intent, error) {
	body := map[string]any{
		"amount":   amountMinor,
		"currency": currency,
		"receipt":  receipt(idempotencyKey),
		"notes":    map[string]string{"idempotency_key": idempotencyKey},
	}
	var intent Intent
	if err := c.call(ctx, "create_intent", http.MethodPost, "/orders", body, idempotencyKey, &intent); err != nil {
		return nil, err
	}
	c.logger.Info("intent created", zap.String("intent_id", intent.ID), zap.Int64("amount", intent.Amount))
	return &intent, nil
}

func (c *HTTPClient) FetchStatus(ctx context.Context, paymentRef string) (*Payment, error) {
	var p Payment
	if err := c.call(ctx, "fetch_status", http.MethodGet, "/payments/"+url.PathEscape(paymentRef), nil, "", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *HTTPClient) VerifySignature(orderRef, paymentRef, signature string) bool {
	return verify(c.cfg.KeySecret, []byte(orderRef+"|"+paymentRef), signature)
}

func (c *HTTPClient) VerifyWebhook(body []byte, signature string) bool {
	return verify(c.cfg.WebhookSecret, body, signature)
}

func (c *HTTPClient) call(ctx context.Context, op, method, path string, in any, idempotencyKey string, out any) error {
	start := time.Now()
	defer func() { c.metrics.ObserveGateway(op, time.Since(start).Seconds()) }()

	var payload []byte
	if in != nil {
		var err error
		if payload, err = json.Marshal(in); err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
	}

	raw, err := c.breaker.Execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.cfg.KeyID, c.cfg.KeySecret)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	})
	if err != nil {
		return c.classify(op, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s response: %v", domain.ErrGatewayUnavailable, op, err)
	}
	return nil
}

func (c *HTTPClient) classify(op string, err error) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, domain.ErrNotFound)
		case apiErr.StatusCode < http.StatusInternalServerError:
			c.logger.Warn("gateway rejected request", zap.String("op", op), zap.Int("status", apiErr.StatusCode))
			return domain.Validationf("gateway rejected %s: %s", op, apiErr.Body)
		}
	}
	c.logger.Error("gateway call failed", zap.String("op", op), zap.Error(err))
	return fmt.Errorf("%w: %s: %v", domain.ErrGatewayUnavailable, op, err)
}

// receipt fits the idempotency key into the provider's 40 character receipt field.
func receipt(key string) string {
	if len(key) > 40 {
		return key[:40]
	}
	return key
}
