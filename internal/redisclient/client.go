package redisclient

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is a read-side cache over Redis. Product availability cached here
// is derived state refreshed after commits; stock is never mutated through
// it.
type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetAvailability caches the availability of a product
func (c *Client) SetAvailability(ctx context.Context, productID int64, available int) error {
	key := fmt.Sprintf("stock:%d", productID)
	return c.rdb.Set(ctx, key, available, 0).Err()
}

// GetAvailability returns the cached availability of a product. The second
// return value is false on a cache miss.
func (c *Client) GetAvailability(ctx context.Context, productID int64) (int, bool, error) {
	key := fmt.Sprintf("stock:%d", productID)

	val, err := c.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	available, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt availability value for product %d: %w", productID, err)
	}

	return available, true, nil
}
