package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// jobTTL bounds how long finished simulator jobs linger.
const jobTTL = 24 * time.Hour

// RedisStore keeps jobs in Redis so several simulator instances can share
// state during development.
type RedisStore struct {
	redis *redis.Client
}

func NewRedisStore(redisURL string) (*RedisStore, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{redis: client}, nil
}

func (s *RedisStore) Close() error {
	return s.redis.Close()
}

func jobKey(id string) string {
	return fmt.Sprintf("analysis:job:%s", id)
}

func idemKey(key string) string {
	return fmt.Sprintf("analysis:idem:%s", key)
}

func (s *RedisStore) Create(ctx context.Context, job Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err(); err != nil {
		return err
	}
	if job.IdempotencyKey != "" {
		return s.redis.Set(ctx, idemKey(job.IdempotencyKey), job.ID, jobTTL).Err()
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Job, error) {
	data, err := s.redis.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}

	var job Job
	if err := json.Unmarshal(data, &job); err != nil {
		return Job{}, fmt.Errorf("unmarshal job: %w", err)
	}
	return job, nil
}

func (s *RedisStore) GetByKey(ctx context.Context, key string) (Job, error) {
	id, err := s.redis.Get(ctx, idemKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return s.Get(ctx, id)
}

func (s *RedisStore) Update(ctx context.Context, job Job) error {
	job.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return s.redis.Set(ctx, jobKey(job.ID), data, jobTTL).Err()
}
