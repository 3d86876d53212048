package dto

import (
	"errors"

	"imageGateway/api/models"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrForbidden    = errors.New("task belongs to a different session")
)

// CreateTaskRequest carries the validated parameters of one generation,
// edit or refinement attempt into the service layer.
type CreateTaskRequest struct {
	Kind        models.TaskKind `json:"kind"`
	Prompt      string          `json:"prompt"`
	Style       string          `json:"style,omitempty"`
	AspectRatio string          `json:"aspect_ratio,omitempty"`
	Size        string          `json:"size,omitempty"`
	ImageURLs   []string        `json:"image_urls,omitempty"`
}

// TaskCreatedResponse is returned from POST /api/tasks. RequestID names the
// durable request row, TaskID the in-flight provider job; the two are
// deliberately distinct.
type TaskCreatedResponse struct {
	RequestID string `json:"request_id"`
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
}

// PollResponse is the uniform body of GET /api/tasks/{id}. Every terminal
// outcome, including transport failures during the provider call, lands in
// the same shape so the polling client needs a single branch.
type PollResponse struct {
	Status    string                   `json:"status"`
	TaskState string                   `json:"task_state,omitempty"`
	Images    []models.ImageDescriptor `json:"images,omitempty"`
	Error     string                   `json:"error,omitempty"`
	Details   string                   `json:"details,omitempty"`
}

type RequestResponse struct {
	ID           string  `json:"id"`
	SessionID    string  `json:"session_id"`
	Kind         string  `json:"kind"`
	Prompt       string  `json:"prompt"`
	TaskID       string  `json:"task_id,omitempty"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  *string `json:"completed_at,omitempty"`
}

type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
	TraceID string   `json:"trace_id,omitempty"`
}
