package reaper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	apikafka "imageGateway/api/kafka"
	"imageGateway/api/models"
	"imageGateway/api/provider"
	"imageGateway/api/repository"
	"imageGateway/api/store"
)

const abandonedDetail = "abandoned: no poll observed before deadline"

// Reaper cleans up tasks whose clients stopped polling. The gateway never
// cancels a provider job on client timeout, so without this the provider
// keeps working on results nobody will read and pending records pile up.
type Reaper struct {
	tasks     store.TaskStore
	repo      repository.Repository
	provider  provider.API
	reapAfter time.Duration
	logger    *zap.Logger
}

func New(tasks store.TaskStore, repo repository.Repository, providerAPI provider.API, reapAfter time.Duration, logger *zap.Logger) *Reaper {
	return &Reaper{
		tasks:     tasks,
		repo:      repo,
		provider:  providerAPI,
		reapAfter: reapAfter,
		logger:    logger,
	}
}

// CheckAt returns when the task announced by event becomes eligible for
// a reap check. Events other than creation need no check at all.
func (r *Reaper) CheckAt(event *apikafka.TaskEvent) time.Time {
	return event.At.Add(r.reapAfter)
}

// HandleEvent runs one reap check for a created task. Callers hold the
// event until CheckAt has passed; the check itself is a single store
// lookup plus, for stale tasks, the reap.
func (r *Reaper) HandleEvent(ctx context.Context, event *apikafka.TaskEvent) error {
	if event.Type != apikafka.EventTaskCreated {
		return nil
	}

	return r.ReapTask(ctx, event.TaskID)
}

// ReapTask marks one task failed and cancels it at the provider, but only
// if it is still pending and its last poll predates the reap window.
func (r *Reaper) ReapTask(ctx context.Context, taskID string) error {
	task, err := r.tasks.Get(ctx, taskID)
	if errors.Is(err, store.ErrTaskNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if !r.stale(task) {
		return nil
	}

	return r.reap(ctx, task)
}

// Sweep reaps every stale pending task in the store. Run periodically as
// a safety net for events lost before the consumer saw them.
func (r *Reaper) Sweep(ctx context.Context) error {
	stale, err := r.tasks.ListStalePending(ctx, time.Now().Add(-r.reapAfter))
	if err != nil {
		return err
	}

	for _, task := range stale {
		if err := r.reap(ctx, task); err != nil {
			r.logger.Error("Failed to reap task",
				zap.String("task_id", task.TaskID),
				zap.Error(err),
			)
		}
	}
	return nil
}

func (r *Reaper) stale(task *models.Task) bool {
	if task.Status != models.StatusPending {
		return false
	}
	last := task.LastPolledAt
	if last.IsZero() {
		last = task.CreatedAt
	}
	return time.Since(last) >= r.reapAfter
}

func (r *Reaper) reap(ctx context.Context, task *models.Task) error {
	updated, err := r.tasks.MarkFailed(ctx, task.TaskID, abandonedDetail)
	if err != nil {
		return err
	}

	// A poll completed the task between the staleness check and the mark;
	// nothing to clean up.
	if updated.ErrorDetail != abandonedDetail {
		return nil
	}

	if err := r.provider.CancelTask(ctx, task.TaskID); err != nil {
		r.logger.Warn("Failed to cancel provider task",
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
	}

	if err := r.repo.UpdateRequestStatus(ctx, task.RequestID, models.StatusFailed, abandonedDetail); err != nil {
		r.logger.Error("Failed to update request row",
			zap.String("request_id", task.RequestID),
			zap.Error(err),
		)
	}

	r.logger.Info("Reaped abandoned task",
		zap.String("task_id", task.TaskID),
		zap.String("request_id", task.RequestID),
	)

	return nil
}
