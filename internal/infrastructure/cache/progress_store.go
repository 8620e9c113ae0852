package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/crm/backend/internal/domain/imports"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const progressKeyPrefix = "cv_import_batch:"

// RedisProgressStore implements imports.ProgressStore on a Redis list
// per batch. Appends from parallel workers are atomic (RPUSH), so no
// read-modify-write race can drop results.
type RedisProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisProgressStore creates a progress store with the given entry TTL
func NewRedisProgressStore(client *redis.Client, ttl time.Duration) *RedisProgressStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisProgressStore{client: client, ttl: ttl}
}

func progressKey(batchUID uuid.UUID) string {
	return progressKeyPrefix + batchUID.String()
}

// Append pushes one entry onto the batch's list and refreshes the TTL in
// a single pipeline.
func (s *RedisProgressStore) Append(ctx context.Context, batchUID uuid.UUID, entry imports.Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal progress entry: %w", err)
	}

	key := progressKey(batchUID)
	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, payload)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append progress entry: %w", err)
	}
	return nil
}

// Get returns the aggregated progress of a batch
func (s *RedisProgressStore) Get(ctx context.Context, batchUID uuid.UUID) (imports.Progress, error) {
	items, err := s.client.LRange(ctx, progressKey(batchUID), 0, -1).Result()
	if err != nil {
		return imports.Progress{}, fmt.Errorf("failed to read progress entries: %w", err)
	}

	var p imports.Progress
	for _, item := range items {
		var entry imports.Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return imports.Progress{}, fmt.Errorf("failed to decode progress entry: %w", err)
		}
		bucket(&p, entry)
	}
	return p, nil
}

func bucket(p *imports.Progress, entry imports.Entry) {
	switch entry.Outcome {
	case imports.OutcomeSuccess:
		p.Success = append(p.Success, entry)
	case imports.OutcomeFailed:
		p.Failed = append(p.Failed, entry)
	case imports.OutcomeSkipped:
		p.Skipped = append(p.Skipped, entry)
	}
}

var _ imports.ProgressStore = (*RedisProgressStore)(nil)
