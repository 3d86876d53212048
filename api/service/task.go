package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"imageGateway/api/dto"
	"imageGateway/api/kafka"
	"imageGateway/api/models"
	"imageGateway/api/provider"
	"imageGateway/api/repository"
	"imageGateway/api/store"
)

const (
	defaultSize         = "1024x1024"
	defaultOutputFormat = "png"
	historyLimit        = 50
)

type TaskService struct {
	repo      repository.Repository
	tasks     store.TaskStore
	provider  provider.API
	producer  kafka.Producer
	topic     string
	modelName string
	logger    *zap.Logger
}

func NewTaskService(
	repo repository.Repository,
	tasks store.TaskStore,
	providerAPI provider.API,
	producer kafka.Producer,
	topic string,
	modelName string,
	logger *zap.Logger,
) *TaskService {
	return &TaskService{
		repo:      repo,
		tasks:     tasks,
		provider:  providerAPI,
		producer:  producer,
		topic:     topic,
		modelName: modelName,
		logger:    logger,
	}
}

// CreateTask submits one generation attempt: a durable request row is
// written first, then the provider is invoked, and a pending task record
// is registered before the response is returned. Provider rejections mark
// the request row failed and surface the provider's status to the caller.
func (s *TaskService) CreateTask(ctx context.Context, traceID, sessionID string, req *dto.CreateTaskRequest) (*dto.TaskCreatedResponse, error) {
	size := req.Size
	if size == "" {
		size = defaultSize
	}

	request := &models.Request{
		ID:          uuid.New().String(),
		SessionID:   sessionID,
		TraceID:     traceID,
		Kind:        req.Kind,
		Prompt:      req.Prompt,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		Size:        size,
		ImageURLs:   req.ImageURLs,
		Status:      models.StatusPending,
	}

	if err := s.repo.CreateRequest(ctx, request); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	taskID, err := s.provider.CreateTask(ctx, &provider.CreateTaskRequest{
		Model: s.modelName,
		Input: provider.CreateTaskInput{
			Prompt:       req.Prompt,
			ImageURLs:    req.ImageURLs,
			OutputFormat: defaultOutputFormat,
			ImageSize:    size,
		},
	})
	if err != nil {
		if updateErr := s.repo.UpdateRequestStatus(ctx, request.ID, models.StatusFailed, err.Error()); updateErr != nil {
			s.logger.Error("Failed to mark request failed",
				zap.String("request_id", request.ID),
				zap.Error(updateErr),
			)
		}
		return nil, err
	}

	if err := s.repo.AttachProviderTask(ctx, request.ID, taskID); err != nil {
		s.logger.Error("Failed to attach provider task to request",
			zap.String("request_id", request.ID),
			zap.String("task_id", taskID),
			zap.Error(err),
		)
	}

	now := time.Now()
	task := &models.Task{
		TaskID:      taskID,
		RequestID:   request.ID,
		SessionID:   sessionID,
		Status:      models.StatusPending,
		NominalSize: size,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.tasks.Put(ctx, task); err != nil {
		return nil, fmt.Errorf("register task record: %w", err)
	}

	s.publishEvent(ctx, &kafka.TaskEvent{
		Type:      kafka.EventTaskCreated,
		TaskID:    taskID,
		RequestID: request.ID,
		SessionID: sessionID,
		TraceID:   traceID,
		At:        now,
	})

	return &dto.TaskCreatedResponse{
		RequestID: request.ID,
		TaskID:    taskID,
		Status:    string(models.StatusPending),
	}, nil
}

// PollTask resolves the current state of a task for its owning session.
// Terminal records are answered from the store without touching the
// provider; every failure during the provider round-trip is converted
// into the same failed payload the client already handles.
func (s *TaskService) PollTask(ctx context.Context, taskID, sessionID string) (*dto.PollResponse, error) {
	task, err := s.tasks.Get(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrTaskNotFound) {
			return nil, dto.ErrTaskNotFound
		}
		return nil, err
	}

	if task.SessionID != sessionID {
		return nil, dto.ErrForbidden
	}

	if task.Status.Terminal() {
		return terminalResponse(task), nil
	}

	status, err := s.provider.GetTask(ctx, taskID)
	if err != nil {
		return s.failTask(ctx, task, err.Error()), nil
	}

	switch {
	case status.State.InFlight():
		if err := s.tasks.Touch(ctx, taskID, string(status.State), time.Now()); err != nil {
			s.logger.Warn("Failed to touch task record",
				zap.String("task_id", taskID),
				zap.Error(err),
			)
		}
		return &dto.PollResponse{
			Status:    string(models.StatusPending),
			TaskState: string(status.State),
		}, nil

	case status.State == provider.StateSuccess:
		urls, err := status.ResultURLs()
		if err != nil {
			return s.failTask(ctx, task, err.Error()), nil
		}
		return s.completeTask(ctx, task, urls), nil

	default: // provider.StateFail
		return s.failTask(ctx, task, status.FailMsg), nil
	}
}

// ListSessionRequests returns the durable history of a session, newest first.
func (s *TaskService) ListSessionRequests(ctx context.Context, sessionID string) ([]*dto.RequestResponse, error) {
	requests, err := s.repo.ListRequestsBySession(ctx, sessionID, historyLimit)
	if err != nil {
		return nil, err
	}

	responses := make([]*dto.RequestResponse, 0, len(requests))
	for _, req := range requests {
		responses = append(responses, toRequestResponse(req))
	}
	return responses, nil
}

func (s *TaskService) completeTask(ctx context.Context, task *models.Task, urls []string) *dto.PollResponse {
	width, height := parseSize(task.NominalSize)

	images := make([]models.ImageDescriptor, 0, len(urls))
	for _, url := range urls {
		images = append(images, models.ImageDescriptor{
			ID:     uuid.New().String(),
			URL:    url,
			Width:  width,
			Height: height,
			Format: formatFromURL(url),
		})
	}

	updated, err := s.tasks.MarkCompleted(ctx, task.TaskID, images)
	if err != nil {
		s.logger.Error("Failed to complete task record",
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
		updated = task
		updated.Status = models.StatusCompleted
		updated.Images = images
	}

	// A concurrent writer may have reached a terminal state first; the
	// stored record wins.
	if updated.Status == models.StatusFailed {
		return terminalResponse(updated)
	}

	if err := s.repo.UpdateRequestStatus(ctx, task.RequestID, models.StatusCompleted, ""); err != nil {
		s.logger.Error("Failed to update request row",
			zap.String("request_id", task.RequestID),
			zap.Error(err),
		)
	}

	s.publishEvent(ctx, &kafka.TaskEvent{
		Type:      kafka.EventTaskCompleted,
		TaskID:    task.TaskID,
		RequestID: task.RequestID,
		SessionID: task.SessionID,
		At:        time.Now(),
	})

	return terminalResponse(updated)
}

func (s *TaskService) failTask(ctx context.Context, task *models.Task, detail string) *dto.PollResponse {
	updated, err := s.tasks.MarkFailed(ctx, task.TaskID, detail)
	if err != nil {
		s.logger.Error("Failed to fail task record",
			zap.String("task_id", task.TaskID),
			zap.Error(err),
		)
		updated = task
		updated.Status = models.StatusFailed
		updated.ErrorDetail = detail
	}

	if updated.Status == models.StatusCompleted {
		return terminalResponse(updated)
	}

	if err := s.repo.UpdateRequestStatus(ctx, task.RequestID, models.StatusFailed, updated.ErrorDetail); err != nil {
		s.logger.Error("Failed to update request row",
			zap.String("request_id", task.RequestID),
			zap.Error(err),
		)
	}

	s.publishEvent(ctx, &kafka.TaskEvent{
		Type:      kafka.EventTaskFailed,
		TaskID:    task.TaskID,
		RequestID: task.RequestID,
		SessionID: task.SessionID,
		Detail:    updated.ErrorDetail,
		At:        time.Now(),
	})

	return terminalResponse(updated)
}

func (s *TaskService) publishEvent(ctx context.Context, event *kafka.TaskEvent) {
	if s.producer == nil {
		return
	}
	if err := s.producer.SendTaskEvent(ctx, s.topic, event); err != nil {
		s.logger.Error("Failed to publish task event",
			zap.String("type", event.Type),
			zap.String("task_id", event.TaskID),
			zap.Error(err),
		)
	}
}

func terminalResponse(task *models.Task) *dto.PollResponse {
	if task.Status == models.StatusCompleted {
		return &dto.PollResponse{
			Status: string(models.StatusCompleted),
			Images: task.Images,
		}
	}
	return &dto.PollResponse{
		Status: string(models.StatusFailed),
		Error:  task.ErrorDetail,
	}
}

func toRequestResponse(req *models.Request) *dto.RequestResponse {
	var completedAt *string
	if req.CompletedAt != nil {
		formatted := req.CompletedAt.Format("2006-01-02T15:04:05Z")
		completedAt = &formatted
	}

	return &dto.RequestResponse{
		ID:           req.ID,
		SessionID:    req.SessionID,
		Kind:         string(req.Kind),
		Prompt:       req.Prompt,
		TaskID:       req.ProviderTask,
		Status:       string(req.Status),
		ErrorMessage: req.ErrorMessage,
		CreatedAt:    req.CreatedAt.Format("2006-01-02T15:04:05Z"),
		CompletedAt:  completedAt,
	}
}

func parseSize(size string) (int, int) {
	parts := strings.SplitN(size, "x", 2)
	if len(parts) == 2 {
		w, werr := strconv.Atoi(parts[0])
		h, herr := strconv.Atoi(parts[1])
		if werr == nil && herr == nil && w > 0 && h > 0 {
			return w, h
		}
	}
	return 1024, 1024
}

func formatFromURL(url string) models.ImageFormat {
	lower := strings.ToLower(url)
	if strings.HasSuffix(lower, ".jpg") || strings.HasSuffix(lower, ".jpeg") {
		return models.FormatJPEG
	}
	return models.FormatPNG
}
