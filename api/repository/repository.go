package repository

import (
	"context"
	"errors"

	"imageGateway/api/models"
)

var ErrRequestNotFound = errors.New("request not found")

// Repository persists durable request rows. Requests outlive the
// provider task and back per-session history.
type Repository interface {
	CreateRequest(ctx context.Context, req *models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	ListRequestsBySession(ctx context.Context, sessionID string, limit int) ([]*models.Request, error)
	AttachProviderTask(ctx context.Context, id string, taskID string) error
	UpdateRequestStatus(ctx context.Context, id string, status models.TaskStatus, errorMessage string) error
}
