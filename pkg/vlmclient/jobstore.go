package vlmclient

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisJobStore backs JobStore with the same redis.Client used by C11,
// keyed "vlm:job:<job_id>" so a webhook handler and a polling goroutine can
// race to populate the same entry.
type RedisJobStore struct {
	client *redis.Client
}

// NewRedisJobStore builds a RedisJobStore over an already-connected client.
func NewRedisJobStore(client *redis.Client) *RedisJobStore {
	return &RedisJobStore{client: client}
}

func jobKey(jobID string) string { return "vlm:job:" + jobID }

// Get reads a job result. ok is false on cache miss; err is set only for a
// genuine Redis failure, not a miss.
func (s *RedisJobStore) Get(ctx context.Context, jobID string) (*Result, bool, error) {
	raw, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

// Set writes a job result (or error record) under ttl.
func (s *RedisJobStore) Set(ctx context.Context, jobID string, result *Result, ttl time.Duration) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, jobKey(jobID), raw, ttl).Err()
}
