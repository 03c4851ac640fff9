package concurrency

import (
	"context"
)

// Task is a unit of work run by an Executor.
type Task interface {
	// Execute performs the work. ctx is cancelled when the executor shuts down.
	Execute(ctx context.Context) error

	// Name identifies the task in logs.
	Name() string
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func(ctx context.Context) error

// Execute implements Task.
func (f TaskFunc) Execute(ctx context.Context) error {
	return f(ctx)
}

// Name implements Task.
func (f TaskFunc) Name() string {
	return "TaskFunc"
}

// NamedTask is a TaskFunc with a name used for logging.
type NamedTask struct {
	name string
	task TaskFunc
}

// NewNamedTask creates a new NamedTask
func NewNamedTask(name string, task TaskFunc) *NamedTask {
	return &NamedTask{
		name: name,
		task: task,
	}
}

// Execute implements Task.
func (nt *NamedTask) Execute(ctx context.Context) error {
	return nt.task(ctx)
}

// Name returns the task name
func (nt *NamedTask) Name() string {
	return nt.name
}
