package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ikkim/quickcart-backend/internal/app/model"
	"github.com/redis/go-redis/v9"
)

const mostSoldKey = "catalog:most-sold"

// RankingCache stores the precomputed most-sold ranking as one JSON value.
type RankingCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRankingCache(client *redis.Client, ttl time.Duration) *RankingCache {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RankingCache{client: client, ttl: ttl}
}

func (c *RankingCache) GetMostSold(ctx context.Context) ([]model.ProductSales, error) {
	data, err := c.client.Get(ctx, mostSoldKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var ranking []model.ProductSales
	if err := json.Unmarshal(data, &ranking); err != nil {
		return nil, fmt.Errorf("unmarshal ranking failed: %w", err)
	}
	return ranking, nil
}

func (c *RankingCache) SetMostSold(ctx context.Context, ranking []model.ProductSales) error {
	data, err := json.Marshal(ranking)
	if err != nil {
		return fmt.Errorf("marshal ranking failed: %w", err)
	}
	if err := c.client.Set(ctx, mostSoldKey, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *RankingCache) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, mostSoldKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
