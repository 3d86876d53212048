package reaper

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	apikafka "imageGateway/api/kafka"
	"imageGateway/api/models"
	"imageGateway/api/provider"
	"imageGateway/api/store"
)

type fakeProvider struct {
	cancelled []string
}

func (f *fakeProvider) CreateTask(ctx context.Context, req *provider.CreateTaskRequest) (string, error) {
	return "", nil
}

func (f *fakeProvider) GetTask(ctx context.Context, taskID string) (*provider.TaskStatus, error) {
	return nil, nil
}

func (f *fakeProvider) CancelTask(ctx context.Context, taskID string) error {
	f.cancelled = append(f.cancelled, taskID)
	return nil
}

type fakeRepo struct {
	updated map[string]models.TaskStatus
}

func (f *fakeRepo) CreateRequest(ctx context.Context, req *models.Request) error { return nil }
func (f *fakeRepo) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	return nil, nil
}
func (f *fakeRepo) ListRequestsBySession(ctx context.Context, sessionID string, limit int) ([]*models.Request, error) {
	return nil, nil
}
func (f *fakeRepo) AttachProviderTask(ctx context.Context, id string, taskID string) error {
	return nil
}
func (f *fakeRepo) UpdateRequestStatus(ctx context.Context, id string, status models.TaskStatus, errorMessage string) error {
	if f.updated == nil {
		f.updated = make(map[string]models.TaskStatus)
	}
	f.updated[id] = status
	return nil
}

func putTask(t *testing.T, tasks *store.MemoryStore, id string, status models.TaskStatus, age time.Duration) {
	t.Helper()
	created := time.Now().Add(-age)
	task := &models.Task{
		TaskID:    id,
		RequestID: "req-" + id,
		SessionID: "session-1",
		Status:    models.StatusPending,
		CreatedAt: created,
		UpdatedAt: created,
	}
	if err := tasks.Put(context.Background(), task); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if status == models.StatusCompleted {
		if _, err := tasks.MarkCompleted(context.Background(), id, nil); err != nil {
			t.Fatalf("MarkCompleted failed: %v", err)
		}
	}
}

func newReaper(t *testing.T, tasks *store.MemoryStore, prov *fakeProvider, repo *fakeRepo) *Reaper {
	t.Helper()
	return New(tasks, repo, prov, time.Minute, zaptest.NewLogger(t))
}

func TestReapTask_StalePending(t *testing.T) {
	tasks := store.NewMemoryStore()
	prov := &fakeProvider{}
	repo := &fakeRepo{}
	putTask(t, tasks, "t1", models.StatusPending, time.Hour)

	r := newReaper(t, tasks, prov, repo)

	if err := r.ReapTask(context.Background(), "t1"); err != nil {
		t.Fatalf("ReapTask failed: %v", err)
	}

	task, _ := tasks.Get(context.Background(), "t1")
	if task.Status != models.StatusFailed {
		t.Errorf("Expected failed, got %s", task.Status)
	}
	if len(prov.cancelled) != 1 || prov.cancelled[0] != "t1" {
		t.Errorf("Expected provider cancel for t1, got %v", prov.cancelled)
	}
	if repo.updated["req-t1"] != models.StatusFailed {
		t.Errorf("Request row not marked failed: %v", repo.updated)
	}
}

func TestReapTask_FreshPendingUntouched(t *testing.T) {
	tasks := store.NewMemoryStore()
	prov := &fakeProvider{}
	putTask(t, tasks, "t1", models.StatusPending, time.Second)

	r := newReaper(t, tasks, prov, &fakeRepo{})

	if err := r.ReapTask(context.Background(), "t1"); err != nil {
		t.Fatalf("ReapTask failed: %v", err)
	}

	task, _ := tasks.Get(context.Background(), "t1")
	if task.Status != models.StatusPending {
		t.Errorf("Fresh task was reaped: %s", task.Status)
	}
	if len(prov.cancelled) != 0 {
		t.Errorf("Unexpected cancel: %v", prov.cancelled)
	}
}

func TestReapTask_RecentlyPolledUntouched(t *testing.T) {
	tasks := store.NewMemoryStore()
	prov := &fakeProvider{}
	putTask(t, tasks, "t1", models.StatusPending, time.Hour)
	if err := tasks.Touch(context.Background(), "t1", "generating", time.Now()); err != nil {
		t.Fatalf("Touch failed: %v", err)
	}

	r := newReaper(t, tasks, prov, &fakeRepo{})

	if err := r.ReapTask(context.Background(), "t1"); err != nil {
		t.Fatalf("ReapTask failed: %v", err)
	}

	task, _ := tasks.Get(context.Background(), "t1")
	if task.Status != models.StatusPending {
		t.Errorf("Actively polled task was reaped: %s", task.Status)
	}
}

func TestReapTask_CompletedUntouched(t *testing.T) {
	tasks := store.NewMemoryStore()
	prov := &fakeProvider{}
	putTask(t, tasks, "t1", models.StatusCompleted, time.Hour)

	r := newReaper(t, tasks, prov, &fakeRepo{})

	if err := r.ReapTask(context.Background(), "t1"); err != nil {
		t.Fatalf("ReapTask failed: %v", err)
	}

	task, _ := tasks.Get(context.Background(), "t1")
	if task.Status != models.StatusCompleted {
		t.Errorf("Completed task was reaped: %s", task.Status)
	}
	if len(prov.cancelled) != 0 {
		t.Errorf("Unexpected cancel: %v", prov.cancelled)
	}
}

func TestReapTask_UnknownIsNoop(t *testing.T) {
	r := newReaper(t, store.NewMemoryStore(), &fakeProvider{}, &fakeRepo{})

	if err := r.ReapTask(context.Background(), "missing"); err != nil {
		t.Errorf("Expected nil for an unknown task, got %v", err)
	}
}

func TestSweep(t *testing.T) {
	tasks := store.NewMemoryStore()
	prov := &fakeProvider{}
	putTask(t, tasks, "stale", models.StatusPending, time.Hour)
	putTask(t, tasks, "fresh", models.StatusPending, time.Second)

	r := newReaper(t, tasks, prov, &fakeRepo{})

	if err := r.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	staleTask, _ := tasks.Get(context.Background(), "stale")
	if staleTask.Status != models.StatusFailed {
		t.Errorf("Stale task not reaped: %s", staleTask.Status)
	}
	freshTask, _ := tasks.Get(context.Background(), "fresh")
	if freshTask.Status != models.StatusPending {
		t.Errorf("Fresh task was reaped: %s", freshTask.Status)
	}
}

func TestHandleEvent_IgnoresTerminalEvents(t *testing.T) {
	tasks := store.NewMemoryStore()
	prov := &fakeProvider{}
	putTask(t, tasks, "t1", models.StatusPending, time.Hour)

	r := newReaper(t, tasks, prov, &fakeRepo{})

	event := &apikafka.TaskEvent{Type: apikafka.EventTaskCompleted, TaskID: "t1", At: time.Now().Add(-2 * time.Minute)}
	if err := r.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	task, _ := tasks.Get(context.Background(), "t1")
	if task.Status != models.StatusPending {
		t.Errorf("Terminal event triggered a reap: %s", task.Status)
	}
}

func TestHandleEvent_ReapsAfterDeadline(t *testing.T) {
	tasks := store.NewMemoryStore()
	prov := &fakeProvider{}
	putTask(t, tasks, "t1", models.StatusPending, time.Hour)

	r := newReaper(t, tasks, prov, &fakeRepo{})

	event := &apikafka.TaskEvent{Type: apikafka.EventTaskCreated, TaskID: "t1", At: time.Now().Add(-2 * time.Minute)}
	if deadline := r.CheckAt(event); time.Now().Before(deadline) {
		t.Fatalf("Expected check deadline in the past, got %v", deadline)
	}
	if err := r.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}

	task, _ := tasks.Get(context.Background(), "t1")
	if task.Status != models.StatusFailed {
		t.Errorf("Expected reaped task, got %s", task.Status)
	}
}
