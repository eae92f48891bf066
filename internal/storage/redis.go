package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a durable Store backed by a Redis list per run, demonstrating
// how a production deployment substitutes durability for the in-memory
// default without its writers noticing. It persists the
// same append-only rollout items the in-memory store holds for a single
// run — not a queryable cross-session memory index.
type Redis struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedis builds a Redis-backed store from an already-configured client.
// ttl, when non-zero, is applied to each run's key so stale runs expire
// rather than accumulating forever.
func NewRedis(rdb *redis.Client, ttl time.Duration) *Redis {
	return &Redis{rdb: rdb, ttl: ttl}
}

func (s *Redis) Save(ctx context.Context, items []Item) error {
	pipe := s.rdb.Pipeline()
	for _, item := range items {
		encoded, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("storage: marshal item for run %s: %w", item.RunID, err)
		}
		key := runKey(item.RunID)
		pipe.RPush(ctx, key, encoded)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("storage: redis pipeline exec: %w", err)
	}
	return nil
}

// Items returns every item saved for a run, in append order — used by
// operational tooling and tests, not by the workflow body itself.
func (s *Redis) Items(ctx context.Context, runID string) ([]Item, error) {
	raw, err := s.rdb.LRange(ctx, runKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("storage: redis lrange: %w", err)
	}
	out := make([]Item, 0, len(raw))
	for _, r := range raw {
		var item Item
		if err := json.Unmarshal([]byte(r), &item); err != nil {
			return nil, fmt.Errorf("storage: unmarshal item: %w", err)
		}
		out = append(out, item)
	}
	return out, nil
}

func runKey(runID string) string {
	return "codex-temporal:rollout:" + runID
}
