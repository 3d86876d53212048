package pool

import (
	"context"
	"sync"
	"time"

	apikafka "imageGateway/api/kafka"
)

// WorkerPool bounds the number of concurrently handled task events with
// a semaphore. Scheduled events wait out their notBefore time without
// holding a slot, so the bound covers in-flight store and provider
// calls, not goroutines sleeping on a deadline.
type WorkerPool struct {
	sem chan struct{}
	wg  sync.WaitGroup
}

func NewWorkerPool(maxWorkers int) *WorkerPool {
	return &WorkerPool{
		sem: make(chan struct{}, maxWorkers),
	}
}

// Submit runs handler for event once notBefore has passed and a worker
// slot is free. A zero notBefore runs as soon as a slot opens.
func (p *WorkerPool) Submit(ctx context.Context, event *apikafka.TaskEvent, notBefore time.Time, handler func(context.Context, *apikafka.TaskEvent) error) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if wait := time.Until(notBefore); wait > 0 {
			timer := time.NewTimer(wait)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return
			}
		}

		select {
		case p.sem <- struct{}{}:
			defer func() { <-p.sem }()
			handler(ctx, event)
		case <-ctx.Done():
		}
	}()
}

func (p *WorkerPool) Wait() {
	p.wg.Wait()
}
