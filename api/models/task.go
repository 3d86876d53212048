package models

import (
	"time"
)

type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
)

// Terminal reports whether no further status transitions are valid.
func (s TaskStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

type TaskKind string

const (
	KindGeneration TaskKind = "generation"
	KindEdit       TaskKind = "edit"
	KindRefinement TaskKind = "refinement"
)

type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// ImageDescriptor describes one generated image. Immutable once built
// from the provider's result payload.
type ImageDescriptor struct {
	ID     string      `json:"id"`
	URL    string      `json:"url"`
	Width  int         `json:"width"`
	Height int         `json:"height"`
	Format ImageFormat `json:"format"`
}

// Task is the live record of one in-flight provider job, keyed by the
// provider-assigned task ID. The task store is its only writer; callers
// hold the ID as a lookup key, never a handle for mutation.
type Task struct {
	TaskID       string            `json:"task_id"`
	RequestID    string            `json:"request_id"`
	SessionID    string            `json:"session_id"`
	Status       TaskStatus        `json:"status"`
	TaskState    string            `json:"task_state,omitempty"` // verbatim provider state while pending
	Images       []ImageDescriptor `json:"images,omitempty"`     // set iff Status == completed
	ErrorDetail  string            `json:"error_detail,omitempty"`
	NominalSize  string            `json:"nominal_size,omitempty"` // e.g. "1024x1024", fallback for descriptor dimensions
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	LastPolledAt time.Time         `json:"last_polled_at"`
}

// Request is the durable, user-facing row for one generation attempt.
// It outlives the provider task and is what session history is built from.
type Request struct {
	ID           string
	SessionID    string
	TraceID      string
	Kind         TaskKind
	Prompt       string
	Style        string
	AspectRatio  string
	Size         string
	ImageURLs    []string
	ProviderTask string
	Status       TaskStatus
	ErrorMessage string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}
