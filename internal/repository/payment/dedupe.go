package payment

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedupe remembers webhook deliveries so gateway retries short-circuit before
// touching the database. The payment_reference unique key remains the arbiter;
// this only saves work.
type Dedupe struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDedupe(client *redis.Client, ttl time.Duration) *Dedupe {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Dedupe{client: client, ttl: ttl}
}

// Claim reports true the first time key is seen within the TTL.
func (d *Dedupe) Claim(ctx context.Context, key string) (bool, error) {
	return d.client.SetNX(ctx, dedupeKey(key), time.Now().Unix(), d.ttl).Result()
}

// Forget drops a claim so a failed delivery can be processed again.
func (d *Dedupe) Forget(ctx context.Context, key string) error {
	return d.client.Del(ctx, dedupeKey(key)).Err()
}

func dedupeKey(key string) string {
	return "webhook:" + key
}
