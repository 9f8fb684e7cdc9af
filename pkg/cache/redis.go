package cache

import (
	"context"
	"fmt"

	redis "github.com/redis/go-redis/v9"
)

const (
	approvalsPattern  = "signoff:approvals:*"
	workflowKeyFormat = "signoff:workflow:%s:%s"
)

// RedisInvalidator deletes cached approval entries from Redis.
type RedisInvalidator struct {
	client redis.UniversalClient
}

func NewRedisInvalidator(redisURL string) (*RedisInvalidator, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	return &RedisInvalidator{client: redis.NewClient(opts)}, nil
}

// InvalidateApprovals scans and deletes every cached approval entry.
func (r *RedisInvalidator) InvalidateApprovals(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, approvalsPattern, 0).Iterator()

	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan approval cache keys: %w", err)
	}

	if len(keys) == 0 {
		return nil
	}

	err := r.client.Del(ctx, keys...).Err()
	if err != nil {
		return fmt.Errorf("failed to delete approval cache keys: %w", err)
	}

	return nil
}

// InvalidateWorkflow deletes the cached entry for one domain entity.
func (r *RedisInvalidator) InvalidateWorkflow(ctx context.Context, workflowType, workflowID string) error {
	key := fmt.Sprintf(workflowKeyFormat, workflowType, workflowID)

	err := r.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete workflow cache key %s: %w", key, err)
	}

	return nil
}

func (r *RedisInvalidator) Close() error {
	return r.client.Close()
}
