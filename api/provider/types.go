package provider

import (
	"encoding/json"
	"fmt"
)

// TaskState is the provider's own lifecycle vocabulary, carried verbatim
// to callers while a task is in flight.
type TaskState string

const (
	StateWaiting    TaskState = "waiting"
	StateQueuing    TaskState = "queuing"
	StateGenerating TaskState = "generating"
	StateSuccess    TaskState = "success"
	StateFail       TaskState = "fail"
)

func (s TaskState) InFlight() bool {
	switch s {
	case StateWaiting, StateQueuing, StateGenerating:
		return true
	}
	return false
}

// Known reports whether the state is one of the documented provider
// states. Anything else is treated as a malformed response, not guessed at.
func (s TaskState) Known() bool {
	return s.InFlight() || s == StateSuccess || s == StateFail
}

type CreateTaskInput struct {
	Prompt       string   `json:"prompt"`
	ImageURLs    []string `json:"image_urls,omitempty"`
	OutputFormat string   `json:"output_format"`
	ImageSize    string   `json:"image_size"`
}

type CreateTaskRequest struct {
	Model       string          `json:"model"`
	CallbackURL string          `json:"callback_url,omitempty"`
	Input       CreateTaskInput `json:"input"`
}

type createTaskResponse struct {
	TaskID string `json:"taskId"`
}

// TaskStatus is the decoded status payload for one provider task.
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	State      TaskState `json:"state"`
	ResultJSON string    `json:"resultJson,omitempty"`
	FailMsg    string    `json:"failMsg,omitempty"`
}

// taskResult is the shape encoded inside TaskStatus.ResultJSON on success.
type taskResult struct {
	ResultURLs []string `json:"resultUrls"`
}

// ResultURLs decodes the nested result payload of a successful task.
func (s *TaskStatus) ResultURLs() ([]string, error) {
	if s.State != StateSuccess {
		return nil, fmt.Errorf("task %s is not successful (state %q)", s.TaskID, s.State)
	}

	var result taskResult
	if err := json.Unmarshal([]byte(s.ResultJSON), &result); err != nil {
		return nil, fmt.Errorf("decode result payload: %w", err)
	}
	if len(result.ResultURLs) == 0 {
		return nil, fmt.Errorf("task %s succeeded with no result URLs", s.TaskID)
	}

	return result.ResultURLs, nil
}

type errorResponse struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Error is a provider rejection carrying the upstream HTTP status so the
// gateway can propagate it to its own caller.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider returned %d: %s", e.StatusCode, e.Message)
}
