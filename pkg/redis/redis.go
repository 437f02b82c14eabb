package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/ikkim/quickcart-backend/config"
	"github.com/ikkim/quickcart-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

const (
	connectAttempts = 3
	pingTimeout     = 2 * time.Second
)

// Connect dials Redis and pings it. A server that is still starting gets a
// couple more tries before the error is returned.
func Connect(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	log := logger.FromContext(ctx).WithContext(map[string]interface{}{
		"addr": cfg.Addr(),
		"db":   cfg.DB,
	})

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var err error
retry:
	for attempt := 1; attempt <= connectAttempts; attempt++ {
		if err = ping(ctx, client); err == nil {
			log.Info("Redis connection established")
			return client, nil
		}
		log.Warn("Redis ping failed", map[string]interface{}{
			"attempt": attempt,
			"error":   err.Error(),
		})
		if attempt == connectAttempts {
			break
		}
		select {
		case <-ctx.Done():
			err = ctx.Err()
			break retry
		case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr(), err)
}

func ping(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}
