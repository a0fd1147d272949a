package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/config"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis builds a client and logs whether the server answers. It never fails;
// callers that require the broker use ConnectRedis.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// ConnectRedis pings the server up to attempts times, sleeping delay between
// tries. The last ping error is returned when every attempt fails.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, attempts int, delay time.Duration, logger *zap.Logger) (*Redis, error) {
	if attempts <= 0 {
		attempts = 1
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = client.Ping(ctx).Err()
		if lastErr == nil {
			logger.Info("connected to redis", zap.Int("attempt", attempt))
			return &Redis{Client: client}, nil
		}
		logger.Warn("redis connection failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(lastErr),
		)
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			_ = client.Close()
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}

	_ = client.Close()
	return nil, fmt.Errorf("redis unreachable after %d attempts: %w", attempts, lastErr)
}

// Close closes the client.
func (r *Redis) Close() {
	if r != nil && r.Client != nil {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if r == nil || r.Client == nil {
		return errNotConfigured("redis")
	}
	return r.Client.Ping(ctx).Err()
}

func errNotConfigured(what string) error {
	return fmt.Errorf("%s client not configured", what)
}
