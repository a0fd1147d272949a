// Package queue moves JSON payloads through named redis lists.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/thnhpht/ITS/internal/config"
)

// ErrEmpty is returned by Pop when no message arrived within the block timeout.
var ErrEmpty = errors.New("queue empty")

// logPreview bounds how much of a payload is written to logs.
const logPreview = 255

// Publisher appends a payload to a named queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, payload []byte) error
}

// Consumer takes the oldest payload off a named queue.
type Consumer interface {
	Pop(ctx context.Context, queue string) ([]byte, error)
}

type listClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
}

// RedisQueue publishes with RPUSH and consumes with BLPOP.
type RedisQueue struct {
	client         listClient
	publishTimeout time.Duration
	blockTimeout   time.Duration
	logger         *zap.Logger
}

// NewRedisQueue wraps a go-redis client.
func NewRedisQueue(client *redis.Client, cfg config.QueueConfig, logger *zap.Logger) *RedisQueue {
	return newRedisQueue(client, cfg, logger)
}

func newRedisQueue(client listClient, cfg config.QueueConfig, logger *zap.Logger) *RedisQueue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisQueue{
		client:         client,
		publishTimeout: cfg.PublishTimeout,
		blockTimeout:   cfg.BlockTimeout,
		logger:         logger,
	}
}

// Publish appends payload to queue under the configured publish timeout.
func (q *RedisQueue) Publish(ctx context.Context, queue string, payload []byte) error {
	if q.publishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.publishTimeout)
		defer cancel()
	}
	if err := q.client.RPush(ctx, queue, payload).Err(); err != nil {
		return err
	}
	q.logger.Debug("published message",
		zap.String("queue", queue),
		zap.String("payload", Preview(payload)),
	)
	return nil
}

// Pop blocks up to the block timeout for the next payload.
func (q *RedisQueue) Pop(ctx context.Context, queue string) ([]byte, error) {
	res, err := q.client.BLPop(ctx, q.blockTimeout, queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}
	if len(res) < 2 {
		return nil, ErrEmpty
	}
	return []byte(res[1]), nil
}

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, p Publisher, queue string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, queue, payload)
}

// Preview truncates a payload for logging.
func Preview(payload []byte) string {
	if len(payload) <= logPreview {
		return string(payload)
	}
	return string(payload[:logPreview])
}
