package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"imageGateway/api/models"
)

func pendingTask(id string, createdAt time.Time) *models.Task {
	return &models.Task{
		TaskID:    id,
		RequestID: "req-" + id,
		SessionID: "session-1",
		Status:    models.StatusPending,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

func TestMemoryStore_GetUnknown(t *testing.T) {
	s := NewMemoryStore()

	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestMemoryStore_PutReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	task := pendingTask("t1", time.Now())

	if err := s.Put(context.Background(), task); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Mutating the caller's struct must not leak into the store.
	task.Status = models.StatusFailed

	got, err := s.Get(context.Background(), "t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Store record aliased caller memory: %s", got.Status)
	}
}

func TestMemoryStore_TerminalIsLocked(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), pendingTask("t1", time.Now())); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	images := []models.ImageDescriptor{{ID: "i1", URL: "https://x/1.png", Width: 1024, Height: 1024, Format: models.FormatPNG}}
	completed, err := s.MarkCompleted(context.Background(), "t1", images)
	if err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}
	if completed.Status != models.StatusCompleted {
		t.Fatalf("Expected completed, got %s", completed.Status)
	}

	// A late failure observation must not overwrite the completed state.
	after, err := s.MarkFailed(context.Background(), "t1", "provider flipped")
	if err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	if after.Status != models.StatusCompleted {
		t.Errorf("Terminal state was overwritten: %s", after.Status)
	}
	if after.ErrorDetail != "" {
		t.Errorf("Error detail leaked onto completed record: %q", after.ErrorDetail)
	}
	if len(after.Images) != 1 {
		t.Errorf("Images lost on locked record: %d", len(after.Images))
	}
}

func TestMemoryStore_TouchOnTerminalIsNoop(t *testing.T) {
	s := NewMemoryStore()
	if err := s.Put(context.Background(), pendingTask("t1", time.Now())); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.MarkFailed(context.Background(), "t1", "boom"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	if err := s.Touch(context.Background(), "t1", "generating", time.Now()); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	got, _ := s.Get(context.Background(), "t1")
	if got.TaskState != "" {
		t.Errorf("Touch mutated a terminal record: %q", got.TaskState)
	}
}

func TestMemoryStore_ListStalePending(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	if err := s.Put(ctx, pendingTask("old", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, pendingTask("fresh", now)); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Put(ctx, pendingTask("polled", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := s.Touch(ctx, "polled", "generating", now); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}
	if err := s.Put(ctx, pendingTask("done", now.Add(-time.Hour))); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.MarkCompleted(ctx, "done", nil); err != nil {
		t.Fatalf("MarkCompleted failed: %v", err)
	}

	stale, err := s.ListStalePending(ctx, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("ListStalePending failed: %v", err)
	}
	if len(stale) != 1 || stale[0].TaskID != "old" {
		ids := make([]string, 0, len(stale))
		for _, task := range stale {
			ids = append(ids, task.TaskID)
		}
		t.Errorf("Expected [old], got %v", ids)
	}
}
