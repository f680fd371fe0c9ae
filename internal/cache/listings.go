// Package cache provides the Redis response cache for listing pages.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sandesh333-sw/Unyt/internal/domain"
)

const listingKeyPrefix = "listings:"

// ListingCache caches rendered listing pages keyed by (type, query, page,
// tier). Premium pages use a short TTL so boosted placement shows up quickly;
// free pages cache for longer.
type ListingCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewListingCache creates a listing cache on the given Redis client.
func NewListingCache(client *redis.Client, logger *slog.Logger) *ListingCache {
	return &ListingCache{client: client, logger: logger}
}

// Key builds the cache key for a listing page. Page size is part of the key
// so a free-tier page never serves a premium-sized one.
func Key(listingType domain.ListingType, query string, page, perPage int, tier domain.Tier) string {
	return fmt.Sprintf("%s%s:%s:%d:%d:%s", listingKeyPrefix, listingType, query, page, perPage, tier)
}

// Get loads a cached page into dst. The second return value reports a hit.
// Cache failures are logged and treated as misses.
func (c *ListingCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		c.logger.WarnContext(ctx, "listing cache get failed", slog.String("error", err.Error()))
		return false, nil
	}

	if err := json.Unmarshal(data, dst); err != nil {
		return false, fmt.Errorf("unmarshal cached page: %w", err)
	}
	return true, nil
}

// Set stores a page with the TTL of the requester's tier.
func (c *ListingCache) Set(ctx context.Context, key string, value any, tier domain.Tier) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal page for cache: %w", err)
	}

	ttl := domain.LimitsFor(tier).CacheTTL
	if err := c.client.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "listing cache set failed", slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate drops every cached listing page. Called on any listing write;
// SCAN keeps it non-blocking on a shared Redis.
func (c *ListingCache) Invalidate(ctx context.Context) error {
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, listingKeyPrefix+"*", 100).Result()
		if err != nil {
			return fmt.Errorf("scan listing cache keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("delete listing cache keys: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
