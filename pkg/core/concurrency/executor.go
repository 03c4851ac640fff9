package concurrency

import (
	"context"
	"time"
)

// ExecutorStats is a point-in-time snapshot of an Executor.
type ExecutorStats struct {
	QueuedTasks      int64   // Tasks waiting for a worker
	ActiveWorkers    int     // Worker goroutines
	CompletedTasks   int64   // Tasks that finished (successfully or not)
	FailedTasks      int64   // Tasks that returned an error or panicked
	RejectedTasks    int64   // Submissions refused because the queue was full
	QueueCapacity    int     // Maximum queue length
	QueueUtilization float64 // QueuedTasks / QueueCapacity in percent
}

// Executor runs Tasks on a fixed set of workers fed by a bounded queue.
type Executor interface {
	// Submit queues a task without blocking.
	// Returns ErrMailboxFull if the queue is full and ErrExecutorClosed after Shutdown.
	Submit(task Task) error

	// SubmitWithTimeout queues a task, waiting up to timeout for room in the queue.
	SubmitWithTimeout(task Task, timeout time.Duration) error

	// Shutdown stops accepting tasks and waits for queued ones to finish, up to ctx.
	// Running tasks see their context cancelled if ctx expires first.
	Shutdown(ctx context.Context) error

	// Stats returns current executor statistics
	Stats() ExecutorStats
}

// ErrorLogger is what the executor needs to report failing tasks.
// core.Logger and *logrus.Logger both satisfy it.
type ErrorLogger interface {
	Errorf(format string, args ...interface{})
}
