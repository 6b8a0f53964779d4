package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the list inquiries are pushed to.
const DefaultRedisKey = "csreply:inquiries"

// RedisQueue is a Redis list used as a FIFO: producers LPUSH, consumers BRPOP.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue constructs a RedisQueue on key (DefaultRedisKey when empty).
func NewRedisQueue(client *redis.Client, key string) *RedisQueue {
	if strings.TrimSpace(key) == "" {
		key = DefaultRedisKey
	}
	return &RedisQueue{client: client, key: key}
}

// Send pushes msg onto the list.
func (q *RedisQueue) Send(ctx context.Context, msg Message) error {
	payload, err := EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("encode redis message: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Receive blocks on BRPOP for up to wait.
func (q *RedisQueue) Receive(ctx context.Context, wait time.Duration) (Message, bool, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Message{}, false, nil
		}
		if errors.Is(err, redis.ErrClosed) {
			return Message{}, false, ErrClosed
		}
		return Message{}, false, fmt.Errorf("redis brpop: %w", err)
	}
	// BRPOP returns [key, value].
	if len(res) != 2 {
		return Message{}, false, fmt.Errorf("redis brpop: unexpected reply length %d", len(res))
	}
	msg, err := DecodeMessage([]byte(res[1]))
	if err != nil {
		return Message{}, false, fmt.Errorf("decode redis message: %w", err)
	}
	return msg, true, nil
}

var (
	_ Client   = (*RedisQueue)(nil)
	_ Consumer = (*RedisQueue)(nil)
)
