package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, baseURL string) *HTTPClient {
	t.Helper()
	c, err := NewHTTPClient(Config{BaseURL: baseURL, KeyID: "rzp_test", KeySecret: "key-secret", WebhookSecret: "hook-secret"}, nil, nil)
	require.NoError(t, err)
	return c
}

func TestVerifySignature_ValidPairPasses(t *testing.T) {
	c := newTestClient(t, "http://unused")
	sig := SignPayment("key-secret", "order_1", "pay_1")
	assert.True(t, c.VerifySignature("order_1", "pay_1", sig))
	assert.False(t, c.VerifySignature("order_1", "pay_2", sig))
	assert.False(t, c.VerifySignature("order_1", "pay_1", SignPayment("other", "order_1", "pay_1")))
}

func TestVerifySignature_AnyFlippedByteFails(t *testing.T) {
	c := newTestClient(t, "http://unused")
	sig := SignPayment("key-secret", "order_1", "pay_1")
	for i := 0; i < len(sig); i++ {
		b := []byte(sig)
		b[i] ^= 0x01
		assert.False(t, c.VerifySignature("order_1", "pay_1", string(b)), "flipped byte %d passed", i)
	}
	assert.False(t, c.VerifySignature("order_1", "pay_1", ""))
	assert.False(t, c.VerifySignature("order_1", "pay_1", sig[:len(sig)-2]))
}

func TestVerifyWebhook_UsesRawBytes(t *testing.T) {
	c := newTestClient(t, "http://unused")
	body := []byte(`{"event":"payment.captured", "payload":{}}`)
	sig := Sign("hook-secret", body)

	assert.True(t, c.VerifyWebhook(body, sig))
	reencoded := []byte(`{"event":"payment.captured","payload":{}}`)
	assert.False(t, c.VerifyWebhook(reencoded, sig))
	assert.False(t, c.VerifyWebhook(body, Sign("key-secret", body)))
}

func TestNewHTTPClient_RequiresKeys(t *testing.T) {
	_, err := NewHTTPClient(Config{KeyID: "id"}, nil, nil)
	assert.Error(t, err)
}
