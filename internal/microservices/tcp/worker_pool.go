package tcp

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrPoolClosed is returned by Submit once the pool stopped taking work.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task represents a unit of work
type Task func(ctx context.Context) error

// WorkerPool runs tasks on a fixed number of goroutines.
// Submit blocks while the queue is full, so producers are slowed to the pool's pace.
type WorkerPool struct {
	workerCount int
	taskQueue   chan Task
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	logger      *slog.Logger

	closeMux   sync.RWMutex
	closed     bool
	closing    chan struct{}
	submitters sync.WaitGroup // Submit calls that may still send on taskQueue
	started    sync.Once
}

// NewWorkerPool creates a pool with specified number of workers
func NewWorkerPool(workerCount int, logger *slog.Logger) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		workerCount: workerCount,
		taskQueue:   make(chan Task, workerCount*2),
		ctx:         ctx,
		cancel:      cancel,
		logger:      logger,
		closing:     make(chan struct{}),
	}
}

// Start launches worker goroutines. Calling it more than once is a no-op.
func (wp *WorkerPool) Start() {
	wp.started.Do(func() {
		for i := 0; i < wp.workerCount; i++ {
			wp.wg.Add(1)
			go wp.worker(i)
		}
		wp.logger.Debug("worker_pool_started", "workers", wp.workerCount)
	})
}

// Submit adds a task to the queue. A Submit blocked on a full queue
// returns ErrPoolClosed as soon as the pool is closed.
func (wp *WorkerPool) Submit(task Task) error {
	wp.closeMux.RLock()
	if wp.closed {
		wp.closeMux.RUnlock()
		return ErrPoolClosed
	}
	wp.submitters.Add(1)
	wp.closeMux.RUnlock()
	defer wp.submitters.Done()

	select {
	case wp.taskQueue <- task:
		return nil
	case <-wp.closing:
		return ErrPoolClosed
	case <-wp.ctx.Done():
		return ErrPoolClosed
	}
}

// Close stops accepting tasks; queued tasks still run. It does not wait for
// blocked submitters, the queue is closed once they have returned.
func (wp *WorkerPool) Close() {
	wp.closeMux.Lock()
	defer wp.closeMux.Unlock()
	if wp.closed {
		return
	}
	wp.closed = true
	close(wp.closing)
	go func() {
		wp.submitters.Wait()
		close(wp.taskQueue)
	}()
}

// Wait closes the queue and blocks until all tasks complete
func (wp *WorkerPool) Wait() {
	wp.Close()
	wp.wg.Wait()
}

// WaitContext is Wait bounded by ctx.
func (wp *WorkerPool) WaitContext(ctx context.Context) error {
	wp.Close()

	done := make(chan struct{})
	go func() {
		wp.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown cancels all workers; tasks still queued are dropped.
func (wp *WorkerPool) Shutdown() {
	wp.cancel()
	wp.Wait()
	wp.logger.Debug("worker_pool_stopped")
}

// worker processes tasks from the queue
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for {
		select {
		case task, ok := <-wp.taskQueue:
			if !ok {
				return
			}
			if err := task(wp.ctx); err != nil {
				wp.logger.Warn("task_failed",
					"worker_id", id,
					"error", err.Error(),
				)
			}

		case <-wp.ctx.Done():
			return
		}
	}
}
