package pool

import (
	"context"
	"testing"
	"time"

	apikafka "imageGateway/api/kafka"
)

func TestSubmit_RunsWhenDue(t *testing.T) {
	p := NewWorkerPool(1)

	done := make(chan struct{})
	p.Submit(context.Background(), &apikafka.TaskEvent{TaskID: "t1"}, time.Time{}, func(ctx context.Context, event *apikafka.TaskEvent) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Handler did not run")
	}
	p.Wait()
}

func TestSubmit_WaitingEventDoesNotHoldSlot(t *testing.T) {
	p := NewWorkerPool(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// An event scheduled far in the future must not occupy the single
	// worker slot while it waits.
	p.Submit(ctx, &apikafka.TaskEvent{TaskID: "scheduled"}, time.Now().Add(time.Hour), func(ctx context.Context, event *apikafka.TaskEvent) error {
		t.Error("Scheduled handler ran before its time")
		return nil
	})

	done := make(chan struct{})
	p.Submit(ctx, &apikafka.TaskEvent{TaskID: "due"}, time.Time{}, func(ctx context.Context, event *apikafka.TaskEvent) error {
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Due event was blocked behind a waiting one")
	}

	cancel()
	p.Wait()
}

func TestSubmit_CancelledWhileWaiting(t *testing.T) {
	p := NewWorkerPool(1)
	ctx, cancel := context.WithCancel(context.Background())

	p.Submit(ctx, &apikafka.TaskEvent{TaskID: "t1"}, time.Now().Add(time.Hour), func(ctx context.Context, event *apikafka.TaskEvent) error {
		t.Error("Handler ran after cancellation")
		return nil
	})

	cancel()
	p.Wait()
}
