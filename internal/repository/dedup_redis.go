package repository

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisDedupKey = "clearlot:processed_events"

// RedisDedupStore keeps the ledger in a redis sorted set scored by insertion
// time, trimmed to capacity on every mark. Used when a redis address is
// configured; multiple server instances then share one ledger.
type RedisDedupStore struct {
	client   *redis.Client
	capacity int64
}

func NewRedisDedupStore(client *redis.Client, capacity int) *RedisDedupStore {
	if capacity <= 0 {
		capacity = 100
	}
	return &RedisDedupStore{client: client, capacity: int64(capacity)}
}

func (s *RedisDedupStore) HasProcessed(ctx context.Context, eventID string) (bool, error) {
	err := s.client.ZScore(ctx, redisDedupKey, eventID).Err()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *RedisDedupStore) MarkProcessed(ctx context.Context, eventID string) error {
	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, redisDedupKey, redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: eventID,
	})
	// keep only the newest capacity members
	pipe.ZRemRangeByRank(ctx, redisDedupKey, 0, -(s.capacity + 1))
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisDedupStore) Clear(ctx context.Context, eventID string) error {
	return s.client.ZRem(ctx, redisDedupKey, eventID).Err()
}
