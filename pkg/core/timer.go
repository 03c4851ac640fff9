package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// timers runs periodic callbacks, each on its own ticker goroutine.
type timers struct {
	mu     sync.Mutex
	active map[string]context.CancelFunc
	wg     sync.WaitGroup
	logger Logger
}

func newTimers(logger Logger) *timers {
	return &timers{active: make(map[string]context.CancelFunc), logger: logger}
}

func (t *timers) setPeriodic(parent context.Context, interval time.Duration, fn func(ctx context.Context)) (string, error) {
	if interval <= 0 {
		return "", &Error{Code: "INVALID_INTERVAL", Message: "interval must be positive"}
	}
	if fn == nil {
		return "", &Error{Code: "INVALID_HANDLER", Message: "timer callback cannot be nil"}
	}

	id := fmt.Sprintf("timer.%s", GenerateRequestID())
	ctx, cancel := context.WithCancel(parent)

	t.mu.Lock()
	t.active[id] = cancel
	t.mu.Unlock()

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.fire(ctx, id, fn)
			}
		}
	}()

	return id, nil
}

func (t *timers) fire(ctx context.Context, id string, fn func(ctx context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Errorf("timer %s panicked (isolated): %v", id, r)
		}
	}()
	fn(ctx)
}

func (t *timers) cancel(id string) bool {
	t.mu.Lock()
	cancel, ok := t.active[id]
	delete(t.active, id)
	t.mu.Unlock()

	if ok {
		cancel()
	}
	return ok
}

// stopAll cancels every timer and waits for running callbacks to return.
func (t *timers) stopAll() {
	t.mu.Lock()
	for id, cancel := range t.active {
		cancel()
		delete(t.active, id)
	}
	t.mu.Unlock()

	t.wg.Wait()
}
