package worker

import (
	"context"
	"sync"

	"github.com/nimasrn/receipt-gateway/pkg/logger"
)

type WorkerHandler[T any] func(ctx context.Context, workerIndex int, job T)

type WorkerManager[T any] struct {
	jobChannel     chan T
	numberOfWorker int
	do             WorkerHandler[T]
	waiter         *sync.WaitGroup
}

// NewWorkerManager
// is a job manager based on go routines. Define the number of internal
// workers, and start publishing jobs using the Enqueue APIs. Jobs are
// distributed among the pool until the context passed to Start is done.
// A single worker runs jobs strictly one after another.
func NewWorkerManager[T any](bufferSize, numberOfWorkers int) *WorkerManager[T] {
	if numberOfWorkers <= 0 {
		numberOfWorkers = 1
	}
	return &WorkerManager[T]{
		jobChannel:     make(chan T, bufferSize),
		numberOfWorker: numberOfWorkers,
		waiter:         &sync.WaitGroup{},
	}
}

func (w *WorkerManager[T]) GetUnreadCount() int64 {
	return int64(len(w.jobChannel))
}

func (w *WorkerManager[T]) SetWorker(worker WorkerHandler[T]) {
	w.do = worker
}

// Enqueue
// Publishes a job, blocking while the buffer is full
func (w *WorkerManager[T]) Enqueue(ctx context.Context, val T) error {
	select {
	case w.jobChannel <- val:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryEnqueue publishes a job only if the buffer has room.
func (w *WorkerManager[T]) TryEnqueue(val T) bool {
	select {
	case w.jobChannel <- val:
		return true
	default:
		return false
	}
}

// Start
// starts off the workers as many as defined
// by w.numberOfWorker and blocks until ctx is done and every running job
// has returned
func (w *WorkerManager[T]) Start(ctx context.Context) error {
	w.waiter.Add(w.numberOfWorker)
	for i := 0; i < w.numberOfWorker; i++ {
		go func(index int) {
			defer w.waiter.Done()
			for {
				select {
				case job := <-w.jobChannel:
					w.do(ctx, index, job)
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}
	w.waiter.Wait()

	logger.Info("worker manager stopped", "workers", w.numberOfWorker, "unread", w.GetUnreadCount())
	return ctx.Err()
}
