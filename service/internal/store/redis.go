// internal/store/redis.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/mazesim/service/internal/models"
	"github.com/redis/go-redis/v9"
)

// Redis layout: one JSON string per run, a sorted set indexing runs by
// creation time, and one list of JSON step records per run.
const (
	redisRunIndex = "mazesim:runs"
)

func redisRunKey(id uuid.UUID) string   { return "mazesim:run:" + id.String() }
func redisStepsKey(id uuid.UUID) string { return "mazesim:steps:" + id.String() }

// RedisStore persists runs in Redis.
type RedisStore struct {
	client *redis.Client
}

// ConnectRedis creates a store from a Redis URL.
func ConnectRedis(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts)), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// CreateRun stores the run and then indexes it. A failed index write deletes
// the run again so a retry can succeed.
func (s *RedisStore) CreateRun(ctx context.Context, run models.Run) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	ok, err := s.client.SetNX(ctx, redisRunKey(run.ID), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("create run %s: %w", run.ID, err)
	}
	if !ok {
		return fmt.Errorf("create run %s: already exists", run.ID)
	}
	err = s.client.ZAdd(ctx, redisRunIndex, redis.Z{
		Score:  float64(run.CreatedAt.UnixNano()),
		Member: run.ID.String(),
	}).Err()
	if err != nil {
		if derr := s.client.Del(ctx, redisRunKey(run.ID)).Err(); derr != nil {
			err = errors.Join(err, fmt.Errorf("roll back: %w", derr))
		}
		return fmt.Errorf("index run %s: %w", run.ID, err)
	}
	return nil
}

func (s *RedisStore) exists(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, redisRunKey(id)).Result()
	return n == 1, err
}

func (s *RedisStore) AppendStep(ctx context.Context, rec models.StepRecord) error {
	ok, err := s.exists(ctx, rec.RunID)
	if err != nil {
		return fmt.Errorf("append step %d: %w", rec.Step, err)
	}
	if !ok {
		return fmt.Errorf("append step %d: %w: %s", rec.Step, ErrRunNotFound, rec.RunID)
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("append step %d: %w", rec.Step, err)
	}
	if err := s.client.RPush(ctx, redisStepsKey(rec.RunID), payload).Err(); err != nil {
		return fmt.Errorf("append step %d: %w", rec.Step, err)
	}
	return nil
}

func (s *RedisStore) Steps(ctx context.Context, runID uuid.UUID) ([]models.StepRecord, error) {
	ok, err := s.exists(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("steps: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("steps: %w: %s", ErrRunNotFound, runID)
	}
	raw, err := s.client.LRange(ctx, redisStepsKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("steps: %w", err)
	}
	recs := make([]models.StepRecord, len(raw))
	for i, r := range raw {
		if err := json.Unmarshal([]byte(r), &recs[i]); err != nil {
			return nil, fmt.Errorf("steps: decode record %d: %w", i, err)
		}
	}
	return recs, nil
}

func (s *RedisStore) Runs(ctx context.Context) ([]models.Run, error) {
	ids, err := s.client.ZRange(ctx, redisRunIndex, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	if len(ids) == 0 {
		return []models.Run{}, nil
	}
	keys := make([]string, len(ids))
	for i, raw := range ids {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("runs: index entry %q: %w", raw, err)
		}
		keys[i] = redisRunKey(id)
	}
	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	runs := make([]models.Run, 0, len(vals))
	for i, v := range vals {
		str, ok := v.(string)
		if !ok {
			// Indexed but deleted out of band.
			continue
		}
		var run models.Run
		if err := json.Unmarshal([]byte(str), &run); err != nil {
			return nil, fmt.Errorf("runs: decode %s: %w", ids[i], err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
