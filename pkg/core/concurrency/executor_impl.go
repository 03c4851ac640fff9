package concurrency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrExecutorClosed is returned by Submit after Shutdown.
var ErrExecutorClosed = errors.New("executor is closed")

// ExecutorConfig configures an Executor
type ExecutorConfig struct {
	Workers   int         // Number of worker goroutines
	QueueSize int         // Bounded task queue length
	Logger    ErrorLogger // Receives task failures; logrus standard logger when nil
}

// DefaultExecutorConfig returns default executor configuration
func DefaultExecutorConfig() ExecutorConfig {
	return ExecutorConfig{
		Workers:   10,
		QueueSize: 1000,
	}
}

type defaultExecutor struct {
	taskChan  chan Task
	workers   int
	queueSize int
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	mu        sync.RWMutex // guards closed and the close of taskChan
	closed    bool
	logger    ErrorLogger

	queuedTasks    int64
	completedTasks int64
	failedTasks    int64
	rejectedTasks  int64
}

// NewExecutor starts config.Workers workers. ctx is the parent of the context handed to tasks.
func NewExecutor(ctx context.Context, config ExecutorConfig) Executor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if config.QueueSize < 1 {
		config.QueueSize = 100
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	ctx, cancel := context.WithCancel(ctx)

	exec := &defaultExecutor{
		taskChan:  make(chan Task, config.QueueSize),
		workers:   config.Workers,
		queueSize: config.QueueSize,
		ctx:       ctx,
		cancel:    cancel,
		logger:    config.Logger,
	}

	exec.wg.Add(exec.workers)
	for i := 0; i < exec.workers; i++ {
		go exec.worker()
	}

	return exec
}

func (e *defaultExecutor) worker() {
	defer e.wg.Done()

	for task := range e.taskChan {
		atomic.AddInt64(&e.queuedTasks, -1)
		e.run(task)
		atomic.AddInt64(&e.completedTasks, 1)
	}
}

// run executes one task; a panicking task is logged and does not take the worker down.
func (e *defaultExecutor) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&e.failedTasks, 1)
			e.logger.Errorf("task %s panicked (isolated): %v", task.Name(), r)
		}
	}()

	if err := task.Execute(e.ctx); err != nil {
		atomic.AddInt64(&e.failedTasks, 1)
		e.logger.Errorf("task %s failed: %v", task.Name(), err)
	}
}

func (e *defaultExecutor) Submit(task Task) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrExecutorClosed
	}

	// Counted before the send so a fast worker never drives the gauge negative.
	atomic.AddInt64(&e.queuedTasks, 1)
	select {
	case e.taskChan <- task:
		return nil
	default:
		atomic.AddInt64(&e.queuedTasks, -1)
		atomic.AddInt64(&e.rejectedTasks, 1)
		return ErrMailboxFull
	}
}

func (e *defaultExecutor) SubmitWithTimeout(task Task, timeout time.Duration) error {
	if task == nil {
		return fmt.Errorf("task cannot be nil")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		return ErrExecutorClosed
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	atomic.AddInt64(&e.queuedTasks, 1)
	select {
	case e.taskChan <- task:
		return nil
	case <-timer.C:
		atomic.AddInt64(&e.queuedTasks, -1)
		atomic.AddInt64(&e.rejectedTasks, 1)
		return fmt.Errorf("submit timeout after %v", timeout)
	case <-e.ctx.Done():
		atomic.AddInt64(&e.queuedTasks, -1)
		return e.ctx.Err()
	}
}

func (e *defaultExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	close(e.taskChan)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		e.cancel()
		return nil
	case <-ctx.Done():
		e.cancel()
		return fmt.Errorf("shutdown timeout: %w", ctx.Err())
	}
}

func (e *defaultExecutor) Stats() ExecutorStats {
	queued := atomic.LoadInt64(&e.queuedTasks)
	queueUtilization := float64(queued) / float64(e.queueSize) * 100.0
	if queueUtilization > 100.0 {
		queueUtilization = 100.0
	}

	return ExecutorStats{
		QueuedTasks:      queued,
		ActiveWorkers:    e.workers,
		CompletedTasks:   atomic.LoadInt64(&e.completedTasks),
		FailedTasks:      atomic.LoadInt64(&e.failedTasks),
		RejectedTasks:    atomic.LoadInt64(&e.rejectedTasks),
		QueueCapacity:    e.queueSize,
		QueueUtilization: queueUtilization,
	}
}
