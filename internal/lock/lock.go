// Package lock provides the single-worker mutual exclusion used by the poller.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Locker is held for the duration of one poll cycle.
type Locker interface {
	// TryLock reports whether the lock was acquired. It does not block.
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// FileLock is an exclusive-create lock file. A file older than staleAfter is
// treated as abandoned and removed.
type FileLock struct {
	path       string
	staleAfter time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

// NewFileLock builds a file lock at path.
func NewFileLock(path string, staleAfter time.Duration, logger *zap.Logger) *FileLock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileLock{path: path, staleAfter: staleAfter, now: time.Now, logger: logger}
}

func (l *FileLock) TryLock(_ context.Context) (bool, error) {
	if err := l.clearStale(); err != nil {
		return false, err
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create lock file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%d %s\n", os.Getpid(), l.now().Format(time.RFC3339)); err != nil {
		_ = os.Remove(l.path)
		return false, fmt.Errorf("write lock file: %w", err)
	}
	return true, nil
}

func (l *FileLock) clearStale() error {
	info, err := os.Stat(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat lock file: %w", err)
	}
	age := l.now().Sub(info.ModTime())
	if l.staleAfter <= 0 || age < l.staleAfter {
		return nil
	}
	l.logger.Warn("removing stale lock file",
		zap.String("path", l.path),
		zap.Duration("age", age),
	)
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale lock file: %w", err)
	}
	return nil
}

func (l *FileLock) Unlock(_ context.Context) error {
	if err := os.Remove(l.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type redisLockClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// RedisLock is a SET NX PX lock. The TTL plays the role of the file lock's
// staleness threshold.
type RedisLock struct {
	client redisLockClient
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisLock builds a lock on key.
func NewRedisLock(client *redis.Client, key string, ttl time.Duration) *RedisLock {
	return newRedisLock(client, key, ttl)
}

func newRedisLock(client redisLockClient, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl}
}

func (l *RedisLock) TryLock(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return false, err
	}
	if ok {
		l.token = token
	}
	return ok, nil
}

func (l *RedisLock) Unlock(ctx context.Context) error {
	if l.token == "" {
		return nil
	}
	err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.token).Err()
	l.token = ""
	return err
}
