package concurrency

import (
	"context"
	"sync"
)

const defaultMailboxCapacity = 100

// boundedMailbox implements Mailbox on top of a buffered channel.
//
// mu serializes Close against Send so a send never hits a closed channel.
type boundedMailbox[T any] struct {
	ch       chan T
	mu       sync.RWMutex
	closed   bool
	capacity int
}

// NewBoundedMailbox creates a mailbox holding at most capacity messages.
// A capacity below 1 falls back to 100.
func NewBoundedMailbox[T any](capacity int) Mailbox[T] {
	if capacity < 1 {
		capacity = defaultMailboxCapacity
	}

	return &boundedMailbox[T]{
		ch:       make(chan T, capacity),
		capacity: capacity,
	}
}

func (mb *boundedMailbox[T]) Send(msg T) error {
	mb.mu.RLock()
	defer mb.mu.RUnlock()

	if mb.closed {
		return ErrMailboxClosed
	}

	select {
	case mb.ch <- msg:
		return nil
	default:
		return ErrMailboxFull
	}
}

func (mb *boundedMailbox[T]) Receive(ctx context.Context) (T, error) {
	var zero T
	if mb.IsClosed() {
		return zero, ErrMailboxClosed
	}

	select {
	case msg, ok := <-mb.ch:
		if !ok {
			return zero, ErrMailboxClosed
		}
		return msg, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (mb *boundedMailbox[T]) TryReceive() (T, bool, error) {
	var zero T
	if mb.IsClosed() {
		return zero, false, ErrMailboxClosed
	}

	select {
	case msg, ok := <-mb.ch:
		if !ok {
			return zero, false, ErrMailboxClosed
		}
		return msg, true, nil
	default:
		return zero, false, nil
	}
}

func (mb *boundedMailbox[T]) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()

	if mb.closed {
		return
	}
	mb.closed = true
	close(mb.ch)
}

func (mb *boundedMailbox[T]) Capacity() int {
	return mb.capacity
}

func (mb *boundedMailbox[T]) Size() int {
	return len(mb.ch)
}

func (mb *boundedMailbox[T]) IsClosed() bool {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	return mb.closed
}
