package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"imageGateway/api/dto"
)

const (
	DefaultPollInterval = 2500 * time.Millisecond
	DefaultPollTimeout  = 120 * time.Second
)

// Client talks to the gateway on behalf of one session: it submits tasks
// and runs the cooperative polling loop until a terminal outcome.
type Client struct {
	baseURL    string
	sessionID  string
	httpClient *http.Client

	// PollInterval and PollTimeout default to the standard cadence
	// (immediate first poll, then every 2.5s, give up after 120s).
	PollInterval time.Duration
	PollTimeout  time.Duration
}

func New(baseURL, sessionID string) *Client {
	return &Client{
		baseURL:      baseURL,
		sessionID:    sessionID,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		PollInterval: DefaultPollInterval,
		PollTimeout:  DefaultPollTimeout,
	}
}

// ReferenceImage is one uploaded image in a create request.
type ReferenceImage struct {
	Filename string
	Data     []byte
}

// CreateParams are the form fields of POST /api/tasks.
type CreateParams struct {
	Kind        string
	Prompt      string
	Style       string
	AspectRatio string
	Size        string
	Images      []ReferenceImage
}

// CreateTask submits a task and returns {requestId, taskId}.
func (c *Client) CreateTask(ctx context.Context, params CreateParams) (*dto.TaskCreatedResponse, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"kind":         params.Kind,
		"prompt":       params.Prompt,
		"style":        params.Style,
		"aspect_ratio": params.AspectRatio,
		"size":         params.Size,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return nil, err
		}
	}

	for _, img := range params.Images {
		part, err := writer.CreateFormFile("images", img.Filename)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/tasks", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("X-Session-ID", c.sessionID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeAPIError(resp)
	}

	var created dto.TaskCreatedResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return nil, fmt.Errorf("decode create response: %w", err)
	}
	return &created, nil
}

// APIError is a non-2xx gateway response.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil {
		var decoded dto.ErrorResponse
		if json.Unmarshal(body, &decoded) == nil {
			apiErr.Message = decoded.Error
			apiErr.Details = decoded.Details
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status
	}

	return apiErr
}
