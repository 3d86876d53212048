package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"imageGateway/api/models"
)

const (
	recordKeyPrefix = "task:record:"
	pendingSetKey   = "task:pending"
	recordTTL       = 24 * time.Hour
	casRetries      = 3
)

// RedisStore is a TaskStore backed by Redis, shared across gateway
// instances. Records carry a TTL so abandoned tasks age out even if the
// reaper never gets to them.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, task *models.Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, recordKeyPrefix+task.TaskID, data, recordTTL)
	if task.Status == models.StatusPending {
		pipe.SAdd(ctx, pendingSetKey, task.TaskID)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Get(ctx context.Context, taskID string) (*models.Task, error) {
	data, err := s.client.Get(ctx, recordKeyPrefix+taskID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, err
	}

	var task models.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

func (s *RedisStore) Touch(ctx context.Context, taskID string, taskState string, at time.Time) error {
	_, err := s.update(ctx, taskID, func(t *models.Task) {
		t.TaskState = taskState
		t.LastPolledAt = at
		t.UpdatedAt = at
	})
	return err
}

func (s *RedisStore) MarkCompleted(ctx context.Context, taskID string, images []models.ImageDescriptor) (*models.Task, error) {
	return s.update(ctx, taskID, func(t *models.Task) {
		t.Status = models.StatusCompleted
		t.Images = images
		t.TaskState = ""
		t.UpdatedAt = time.Now()
	})
}

func (s *RedisStore) MarkFailed(ctx context.Context, taskID string, detail string) (*models.Task, error) {
	return s.update(ctx, taskID, func(t *models.Task) {
		t.Status = models.StatusFailed
		t.ErrorDetail = detail
		t.TaskState = ""
		t.UpdatedAt = time.Now()
	})
}

// update applies mutate to a record under optimistic locking. Terminal
// records are returned as stored without applying mutate.
func (s *RedisStore) update(ctx context.Context, taskID string, mutate func(*models.Task)) (*models.Task, error) {
	key := recordKeyPrefix + taskID
	var result *models.Task

	txn := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrTaskNotFound
		}
		if err != nil {
			return err
		}

		var task models.Task
		if err := json.Unmarshal(data, &task); err != nil {
			return err
		}

		if task.Status.Terminal() {
			result = &task
			return nil
		}

		mutate(&task)

		updated, err := json.Marshal(&task)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, updated, recordTTL)
			if task.Status.Terminal() {
				pipe.SRem(ctx, pendingSetKey, taskID)
			}
			return nil
		})
		if err != nil {
			return err
		}

		result = &task
		return nil
	}

	for i := 0; i < casRetries; i++ {
		err := s.client.Watch(ctx, txn, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, redis.TxFailedErr
}

func (s *RedisStore) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.Task, error) {
	ids, err := s.client.SMembers(ctx, pendingSetKey).Result()
	if err != nil {
		return nil, err
	}

	var stale []*models.Task
	for _, id := range ids {
		task, err := s.Get(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			// Record expired; drop the dangling index entry.
			s.client.SRem(ctx, pendingSetKey, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		if task.Status != models.StatusPending {
			s.client.SRem(ctx, pendingSetKey, id)
			continue
		}
		last := task.LastPolledAt
		if last.IsZero() {
			last = task.CreatedAt
		}
		if last.Before(cutoff) {
			stale = append(stale, task)
		}
	}
	return stale, nil
}
