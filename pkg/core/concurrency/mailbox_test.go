package concurrency

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestNewBoundedMailbox(t *testing.T) {
	mailbox := NewBoundedMailbox[string](10)

	if mailbox.Capacity() != 10 {
		t.Errorf("Capacity() = %d, want 10", mailbox.Capacity())
	}

	if NewBoundedMailbox[string](0).Capacity() != defaultMailboxCapacity {
		t.Errorf("Capacity() with 0 should fall back to %d", defaultMailboxCapacity)
	}
}

func TestMailbox_Send(t *testing.T) {
	mailbox := NewBoundedMailbox[string](2)

	if err := mailbox.Send("message1"); err != nil {
		t.Errorf("Send() error = %v", err)
	}
	mailbox.Send("message2")

	if err := mailbox.Send("message3"); err != ErrMailboxFull {
		t.Errorf("Send() to full mailbox error = %v, want ErrMailboxFull", err)
	}
}

func TestMailbox_Receive(t *testing.T) {
	mailbox := NewBoundedMailbox[string](10)
	mailbox.Send("test message")

	msg, err := mailbox.Receive(context.Background())
	if err != nil {
		t.Errorf("Receive() error = %v", err)
	}
	if msg != "test message" {
		t.Errorf("Receive() = %v, want test message", msg)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := mailbox.Receive(ctx); err != context.DeadlineExceeded {
		t.Errorf("Receive() on empty mailbox error = %v, want DeadlineExceeded", err)
	}
}

func TestMailbox_TryReceive(t *testing.T) {
	mailbox := NewBoundedMailbox[string](10)

	msg, ok, err := mailbox.TryReceive()
	if err != nil || ok || msg != "" {
		t.Errorf("TryReceive() on empty mailbox = (%q, %v, %v)", msg, ok, err)
	}

	mailbox.Send("test")
	msg, ok, err = mailbox.TryReceive()
	if err != nil || !ok || msg != "test" {
		t.Errorf("TryReceive() = (%q, %v, %v), want (test, true, nil)", msg, ok, err)
	}
}

func TestMailbox_Close(t *testing.T) {
	mailbox := NewBoundedMailbox[string](10)
	mailbox.Close()
	mailbox.Close()

	if !mailbox.IsClosed() {
		t.Error("IsClosed() should return true after Close()")
	}
	if err := mailbox.Send("test"); err != ErrMailboxClosed {
		t.Errorf("Send() after close error = %v, want ErrMailboxClosed", err)
	}
	if _, err := mailbox.Receive(context.Background()); err != ErrMailboxClosed {
		t.Errorf("Receive() after close error = %v, want ErrMailboxClosed", err)
	}
}

func TestMailbox_ConcurrentSendAndClose(t *testing.T) {
	mailbox := NewBoundedMailbox[int](4)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = mailbox.Send(n)
				mailbox.TryReceive()
			}
		}(i)
	}
	mailbox.Close()
	wg.Wait()
}

func TestMailbox_Size(t *testing.T) {
	mailbox := NewBoundedMailbox[string](10)

	if mailbox.Size() != 0 {
		t.Errorf("Size() = %d, want 0", mailbox.Size())
	}
	mailbox.Send("msg1")
	mailbox.Send("msg2")
	if mailbox.Size() != 2 {
		t.Errorf("Size() = %d, want 2", mailbox.Size())
	}
}
