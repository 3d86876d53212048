package store

import (
	"context"
	"errors"
	"time"

	"imageGateway/api/models"
)

var ErrTaskNotFound = errors.New("task not found")

// TaskStore holds live task records keyed by the provider task ID.
//
// Terminal states are hard-locked: MarkCompleted and MarkFailed only
// transition a record out of pending. If the record is already terminal
// they leave it untouched and return it as stored, so a late or retried
// poll can never overwrite a completed task with a failure.
type TaskStore interface {
	Put(ctx context.Context, task *models.Task) error
	Get(ctx context.Context, taskID string) (*models.Task, error)

	// Touch records a poll observation on a pending task: the verbatim
	// provider state and the poll time. No-op on terminal records.
	Touch(ctx context.Context, taskID string, taskState string, at time.Time) error

	MarkCompleted(ctx context.Context, taskID string, images []models.ImageDescriptor) (*models.Task, error)
	MarkFailed(ctx context.Context, taskID string, detail string) (*models.Task, error)

	// ListStalePending returns pending tasks whose last poll (or creation,
	// if never polled) predates cutoff. Used by the reaper.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.Task, error)
}
