package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"procurement-service/internal/service"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	ledgerKey           = "ledger:suppliers"
	ledgerGenerationKey = "ledger:generation"
)

type Client struct {
	rdb *redis.Client
}

var _ service.Cache = (*Client)(nil)

// NewClient creates a new Redis client and checks the connection
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

	return NewFromClient(rdb), nil
}

// NewFromClient wraps an existing Redis client
func NewFromClient(rdb *redis.Client) *Client {
	return &Client{rdb: rdb}
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func ledgerSnapshotKey(generation int64) string {
	return fmt.Sprintf("%s:%d", ledgerKey, generation)
}

// LedgerGeneration returns the current ledger generation, 0 if none was started
func (c *Client) LedgerGeneration(ctx context.Context) (int64, error) {
	gen, err := c.rdb.Get(ctx, ledgerGenerationKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

// GetLedger returns the ledger snapshot cached for a generation
func (c *Client) GetLedger(ctx context.Context, generation int64) ([]byte, error) {
	data, err := c.rdb.Get(ctx, ledgerSnapshotKey(generation)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, service.ErrCacheMiss
	}
	return data, err
}

// SetLedger caches a ledger snapshot for a generation with TTL
func (c *Client) SetLedger(ctx context.Context, generation int64, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, ledgerSnapshotKey(generation), data, ttl).Err()
}

// InvalidateLedger starts a new ledger generation. Snapshots of older
// generations are left to expire.
func (c *Client) InvalidateLedger(ctx context.Context) error {
	return c.rdb.Incr(ctx, ledgerGenerationKey).Err()
}

// SetIdempotentOrders stores the orders created for an idempotency key with TTL
func (c *Client) SetIdempotentOrders(ctx context.Context, key string, orderIDs []uuid.UUID, ttl time.Duration) error {
	value, err := json.Marshal(orderIDs)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, fmt.Sprintf("idempotency:%s", key), value, ttl).Err()
}

// GetIdempotentOrders returns the orders created for an idempotency key
func (c *Client) GetIdempotentOrders(ctx context.Context, key string) ([]uuid.UUID, error) {
	value, err := c.rdb.Get(ctx, fmt.Sprintf("idempotency:%s", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, service.ErrCacheMiss
	}
	if err != nil {
		return nil, err
	}

	var ids []uuid.UUID
	if err := json.Unmarshal(value, &ids); err != nil {
		return nil, fmt.Errorf("corrupt idempotency record %q: %w", key, err)
	}
	return ids, nil
}

// AcquireLock acquires a distributed lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a distributed lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
