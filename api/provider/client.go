package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// API is the boundary the gateway consumes. The external generation
// service is treated as an opaque collaborator behind these three calls.
type API interface {
	CreateTask(ctx context.Context, req *CreateTaskRequest) (string, error)
	GetTask(ctx context.Context, taskID string) (*TaskStatus, error)
	CancelTask(ctx context.Context, taskID string) error
}

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

// CreateTask submits a generation job and returns the provider-assigned
// task ID. Non-2xx responses come back as *Error with the upstream status.
func (c *Client) CreateTask(ctx context.Context, req *CreateTaskRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode create task request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("create task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", c.decodeError(resp)
	}

	var created createTaskResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("decode create task response: %w", err)
	}
	if created.TaskID == "" {
		return "", fmt.Errorf("provider returned no task id")
	}

	c.logger.Info("Provider task created", zap.String("task_id", created.TaskID))

	return created.TaskID, nil
}

// GetTask fetches the current status of a task. A response whose state is
// outside the documented set is rejected rather than interpreted.
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("get task status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.decodeError(resp)
	}

	var status TaskStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode task status: %w", err)
	}
	if status.TaskID == "" {
		status.TaskID = taskID
	}
	if !status.State.Known() {
		return nil, fmt.Errorf("provider returned unknown state %q for task %s", status.State, taskID)
	}

	return &status, nil
}

// CancelTask asks the provider to abandon a task. Best effort: a 404 is
// treated as already gone.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/tasks/"+taskID, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("cancel task: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{StatusCode: resp.StatusCode, Message: "cancel rejected"}
	}

	c.logger.Info("Provider task cancelled", zap.String("task_id", taskID))

	return nil
}

func (c *Client) decodeError(resp *http.Response) error {
	perr := &Error{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		perr.Message = resp.Status
		return perr
	}

	var decoded errorResponse
	if err := json.Unmarshal(body, &decoded); err == nil {
		switch {
		case decoded.Message != "":
			perr.Message = decoded.Message
		case decoded.Error != "":
			perr.Message = decoded.Error
		}
	}
	if perr.Message == "" {
		perr.Message = resp.Status
	}

	return perr
}
