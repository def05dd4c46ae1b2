package wallet

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = 5 * time.Minute

// ErrCacheMiss indicates the balance is not cached.
var ErrCacheMiss = errors.New("balance not cached")

// Cache keeps recently read balances in Redis so balance lookups don't hit the
// database on every request. It is strictly best-effort: the ledger remains
// the source of truth and writers refresh entries after each commit.
type Cache struct {
	client *redis.Client
}

// NewCache wraps a Redis client as a balance cache.
func NewCache(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// SetBalance stores the balance for an (owner, kind) pair.
func (c *Cache) SetBalance(ctx context.Context, ownerID string, kind Kind, balance int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	err := c.client.Set(ctx, balanceKey(ownerID, kind), strconv.FormatInt(balance, 10), cacheTTL).Err()
	if err != nil {
		return fmt.Errorf("cache balance: %w", err)
	}
	return nil
}

// GetBalance returns the cached balance or ErrCacheMiss.
func (c *Cache) GetBalance(ctx context.Context, ownerID string, kind Kind) (int64, error) {
	if c == nil || c.client == nil {
		return 0, ErrCacheMiss
	}
	raw, err := c.client.Get(ctx, balanceKey(ownerID, kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, fmt.Errorf("read cached balance: %w", err)
	}
	balance, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse cached balance: %w", err)
	}
	return balance, nil
}

// Invalidate drops the cached balance for an (owner, kind) pair.
func (c *Cache) Invalidate(ctx context.Context, ownerID string, kind Kind) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, balanceKey(ownerID, kind)).Err()
}

func balanceKey(ownerID string, kind Kind) string {
	return "wallet:" + ownerID + ":" + string(kind) + ":balance"
}
