package store

import (
	"context"
	"sync"
	"time"

	"imageGateway/api/models"
)

// MemoryStore is a process-local TaskStore: a mutex-guarded map. Suitable
// for tests and single-instance deployments; records live until reaped.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks: make(map[string]*models.Task),
	}
}

func (m *MemoryStore) Put(ctx context.Context, task *models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *task
	m.tasks[task.TaskID] = &cp
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, taskID string) (*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) Touch(ctx context.Context, taskID string, taskState string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return ErrTaskNotFound
	}
	if t.Status.Terminal() {
		return nil
	}
	t.TaskState = taskState
	t.LastPolledAt = at
	t.UpdatedAt = at
	return nil
}

func (m *MemoryStore) MarkCompleted(ctx context.Context, taskID string, images []models.ImageDescriptor) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if !t.Status.Terminal() {
		t.Status = models.StatusCompleted
		t.Images = images
		t.TaskState = ""
		t.UpdatedAt = time.Now()
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) MarkFailed(ctx context.Context, taskID string, detail string) (*models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID]
	if !ok {
		return nil, ErrTaskNotFound
	}
	if !t.Status.Terminal() {
		t.Status = models.StatusFailed
		t.ErrorDetail = detail
		t.TaskState = ""
		t.UpdatedAt = time.Now()
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stale []*models.Task
	for _, t := range m.tasks {
		if t.Status != models.StatusPending {
			continue
		}
		last := t.LastPolledAt
		if last.IsZero() {
			last = t.CreatedAt
		}
		if last.Before(cutoff) {
			cp := *t
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}
