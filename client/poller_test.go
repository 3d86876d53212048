package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"imageGateway/api/dto"
	"imageGateway/api/models"
)

func pollServer(t *testing.T, responses []*dto.PollResponse) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var calls atomic.Int64

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Session-ID") != "session-1" {
			t.Errorf("Missing session header")
		}
		n := calls.Add(1)
		idx := int(n) - 1
		if idx >= len(responses) {
			idx = len(responses) - 1
		}
		json.NewEncoder(w).Encode(responses[idx])
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func fastClient(baseURL string) *Client {
	c := New(baseURL, "session-1")
	c.PollInterval = 10 * time.Millisecond
	c.PollTimeout = time.Second
	return c
}

func TestWaitForTask_PendingThenCompleted(t *testing.T) {
	server, calls := pollServer(t, []*dto.PollResponse{
		{Status: "pending", TaskState: "queuing"},
		{Status: "pending", TaskState: "generating"},
		{Status: "completed", Images: []models.ImageDescriptor{{ID: "i1", URL: "https://x/1.png", Width: 1024, Height: 1024, Format: models.FormatPNG}}},
	})

	c := fastClient(server.URL)

	result, err := c.WaitForTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("WaitForTask failed: %v", err)
	}
	if result.Status != "completed" {
		t.Fatalf("Expected completed, got %s", result.Status)
	}
	if len(result.Images) != 1 || result.Images[0].URL != "https://x/1.png" {
		t.Errorf("Unexpected images: %+v", result.Images)
	}
	if calls.Load() != 3 {
		t.Errorf("Expected 3 polls, got %d", calls.Load())
	}
}

func TestWaitForTask_FailedIsTerminal(t *testing.T) {
	server, calls := pollServer(t, []*dto.PollResponse{
		{Status: "failed", Error: "content policy violation"},
	})

	c := fastClient(server.URL)

	result, err := c.WaitForTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("WaitForTask failed: %v", err)
	}
	if result.Status != "failed" || result.Error != "content policy violation" {
		t.Errorf("Unexpected result: %+v", result)
	}
	if calls.Load() != 1 {
		t.Errorf("Expected a single immediate poll, got %d", calls.Load())
	}
}

func TestWaitForTask_Timeout(t *testing.T) {
	server, _ := pollServer(t, []*dto.PollResponse{
		{Status: "pending", TaskState: "generating"},
	})

	c := fastClient(server.URL)
	c.PollTimeout = 50 * time.Millisecond

	result, err := c.WaitForTask(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Timeout must be a synthetic failure, got error: %v", err)
	}
	if result.Status != "failed" || result.Error != "timeout" {
		t.Errorf("Expected synthetic timeout failure, got %+v", result)
	}
}

func TestWaitForTask_GatewayErrorAborts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(dto.ErrorResponse{Error: "Task not found"})
	}))
	t.Cleanup(server.Close)

	c := fastClient(server.URL)

	_, err := c.WaitForTask(context.Background(), "missing")
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("Expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", apiErr.StatusCode)
	}
}

func TestWaitForTask_ContextCancel(t *testing.T) {
	server, _ := pollServer(t, []*dto.PollResponse{
		{Status: "pending", TaskState: "waiting"},
	})

	c := fastClient(server.URL)
	c.PollInterval = time.Hour // force the loop to park on the ticker

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	if _, err := c.WaitForTask(ctx, "t1"); err != context.Canceled {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestCreateTask(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Fatalf("Parse form: %v", err)
		}
		if prompt := r.FormValue("prompt"); prompt != "a red bicycle" {
			t.Errorf("Unexpected prompt %q", prompt)
		}
		if files := r.MultipartForm.File["images"]; len(files) != 1 {
			t.Errorf("Expected one image, got %d", len(files))
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(dto.TaskCreatedResponse{RequestID: "r1", TaskID: "t1", Status: "pending"})
	}))
	t.Cleanup(server.Close)

	c := New(server.URL, "session-1")

	created, err := c.CreateTask(context.Background(), CreateParams{
		Kind:   "edit",
		Prompt: "a red bicycle",
		Images: []ReferenceImage{{Filename: "photo.jpg", Data: []byte{0xFF, 0xD8, 0xFF, 0xE0}}},
	})
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	if created.TaskID != "t1" {
		t.Errorf("Expected t1, got %s", created.TaskID)
	}
}
