package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"imageGateway/api/dto"
)

const (
	statusPending = "pending"
	statusFailed  = "failed"

	// Surfaced as the error of the synthetic failure when the polling
	// window elapses without a terminal state.
	timeoutDetail = "timeout"
)

// PollOnce issues a single status check.
func (c *Client) PollOnce(ctx context.Context, taskID string) (*dto.PollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tasks/"+taskID, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Session-ID", c.sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("poll task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var poll dto.PollResponse
	if err := json.NewDecoder(resp.Body).Decode(&poll); err != nil {
		return nil, fmt.Errorf("decode poll response: %w", err)
	}
	return &poll, nil
}

// WaitForTask polls a task until it reaches a terminal state or the
// polling window elapses. The first check is immediate, then one check
// per interval; checks are issued sequentially, so at most one is ever
// in flight. On timeout a synthetic failed payload is returned and the
// provider task is left to the server-side reaper.
//
// Transient transport errors are retried on the next tick; a 4xx from
// the gateway (unknown task, foreign session) aborts the loop.
func (c *Client) WaitForTask(ctx context.Context, taskID string) (*dto.PollResponse, error) {
	deadline := time.Now().Add(c.PollTimeout)

	ticker := time.NewTicker(c.PollInterval)
	defer ticker.Stop()

	var lastErr error
	for {
		poll, err := c.PollOnce(ctx, taskID)
		switch {
		case err == nil:
			if poll.Status != statusPending {
				return poll, nil
			}
			lastErr = nil
		default:
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return nil, apiErr
			}
			lastErr = err
		}

		if time.Now().After(deadline) {
			break
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	detail := timeoutDetail
	if lastErr != nil {
		detail = fmt.Sprintf("%s: %v", timeoutDetail, lastErr)
	}
	return &dto.PollResponse{
		Status: statusFailed,
		Error:  detail,
	}, nil
}

// Generate submits a task and waits for its outcome in one call.
func (c *Client) Generate(ctx context.Context, params CreateParams) (*dto.TaskCreatedResponse, *dto.PollResponse, error) {
	created, err := c.CreateTask(ctx, params)
	if err != nil {
		return nil, nil, err
	}

	result, err := c.WaitForTask(ctx, created.TaskID)
	if err != nil {
		return created, nil, err
	}
	return created, result, nil
}
