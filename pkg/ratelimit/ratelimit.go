// Package ratelimit counts failed code submissions per email in redis.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultTimeout = 5 * time.Second

// registerFailureScript increments the counter and starts its window in one step,
// so a counter is never left without a TTL.
var registerFailureScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// Connect initialises a redis client and validates connectivity with a ping.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return client, nil
}

// AttemptLimiter locks a (scope, email) pair after MaxAttempts failures within Window.
type AttemptLimiter struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
}

func NewAttemptLimiter(client *redis.Client, maxAttempts int, window time.Duration) *AttemptLimiter {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &AttemptLimiter{client: client, maxAttempts: int64(maxAttempts), window: window}
}

func (l *AttemptLimiter) key(scope, email string) string {
	return "code_attempts:" + scope + ":" + strings.ToLower(email)
}

// Locked reports whether the pair has used up its attempts.
func (l *AttemptLimiter) Locked(ctx context.Context, scope, email string) (bool, error) {
	n, err := l.client.Get(ctx, l.key(scope, email)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read attempts: %w", err)
	}
	return n >= l.maxAttempts, nil
}

// RegisterFailure counts one failed attempt; the window starts at the first failure.
func (l *AttemptLimiter) RegisterFailure(ctx context.Context, scope, email string) error {
	key := l.key(scope, email)

	err := registerFailureScript.Run(ctx, l.client, []string{key}, l.window.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("count attempt: %w", err)
	}
	return nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, scope, email string) error {
	return l.client.Del(ctx, l.key(scope, email)).Err()
}
