package concurrency

import (
	"context"
	"errors"
)

var (
	// ErrMailboxClosed is returned when sending to or receiving from a closed mailbox
	ErrMailboxClosed = errors.New("mailbox is closed")

	// ErrMailboxFull is returned when a bounded mailbox (or executor queue) has no room left
	ErrMailboxFull = errors.New("mailbox is full")
)

// Mailbox is a bounded FIFO of T that never blocks the sender.
type Mailbox[T any] interface {
	// Send enqueues msg.
	// Returns ErrMailboxFull if there is no room and ErrMailboxClosed after Close.
	Send(msg T) error

	// Receive blocks until a message is available, the mailbox is closed or ctx is done.
	Receive(ctx context.Context) (T, error)

	// TryReceive returns the next message without blocking.
	// ok is false when the mailbox is empty.
	TryReceive() (msg T, ok bool, err error)

	// Close closes the mailbox. Pending messages are discarded.
	Close()

	// Capacity returns the maximum number of queued messages
	Capacity() int

	// Size returns the current number of queued messages
	Size() int

	// IsClosed reports whether Close was called
	IsClosed() bool
}
