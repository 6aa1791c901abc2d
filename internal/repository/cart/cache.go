package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"designer-marketplace/internal/domain"
	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("cart cache miss")

// versionTTL bounds the invalidation counter's lifetime; a missing counter reads as 0.
const versionTTL = 24 * time.Hour

// setIfVersion writes the cart only while cart:ver:<buyerID> still holds the
// version the reader saw before loading it. A missing version counts as 0.
var setIfVersion = redis.NewScript(`
local current = redis.call('GET', KEYS[2])
if current == false then current = '0' end
if current ~= ARGV[2] then return 0 end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
return 1
`)

// Cache keeps read copies of carts in Redis under cart:<buyerID>. Every
// invalidation bumps cart:ver:<buyerID> so a fill that raced a write is dropped.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{client: client, ttl: ttl}
}

func (c *Cache) Get(ctx context.Context, buyerID string) (*domain.Cart, error) {
	data, err := c.client.Get(ctx, cacheKey(buyerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("decode cached cart: %w", err)
	}
	return &cart, nil
}

// Version returns the invalidation counter to pass to Set.
func (c *Cache) Version(ctx context.Context, buyerID string) (int64, error) {
	v, err := c.client.Get(ctx, versionKey(buyerID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("redis get version: %w", err)
	}
	return v, nil
}

// Set stores cart if no invalidation happened since version was read. It
// reports whether the entry was written.
func (c *Cache) Set(ctx context.Context, cart *domain.Cart, version int64) (bool, error) {
	data, err := json.Marshal(cart)
	if err != nil {
		return false, fmt.Errorf("encode cart: %w", err)
	}
	keys := []string{cacheKey(cart.BuyerID), versionKey(cart.BuyerID)}
	written, err := setIfVersion.Run(ctx, c.client, keys, data, version, c.ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("redis set: %w", err)
	}
	return written == 1, nil
}

// Delete drops the cached cart and bumps its version.
func (c *Cache) Delete(ctx context.Context, buyerID string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, cacheKey(buyerID))
		pipe.Incr(ctx, versionKey(buyerID))
		pipe.Expire(ctx, versionKey(buyerID), versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func cacheKey(buyerID string) string {
	return "cart:" + buyerID
}

func versionKey(buyerID string) string {
	return "cart:ver:" + buyerID
}
