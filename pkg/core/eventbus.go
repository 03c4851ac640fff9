package core

import (
	"time"
)

// Message is one payload delivered by the event bus.
//
// The body is JSON and carries no type tag; receivers decide whether a message
// is meant for them by trying to decode it.
type Message interface {
	// Address returns the address the message was published on
	Address() string

	// Body returns a private copy of the JSON body
	Body() []byte

	// Headers returns a copy of the message headers
	Headers() map[string]string

	// ReplyAddress returns the reply address if this is a request message
	ReplyAddress() string

	// Reply sends a reply to this message
	Reply(body interface{}) error

	// DecodeBody decodes the JSON body into v
	DecodeBody(v interface{}) error
}

// DeliveryOptions carries per-message settings for PublishWithOptions.
type DeliveryOptions struct {
	// Headers are attached to the message as-is.
	Headers map[string]string
}

// EventBus provides publish-subscribe and point-to-point messaging between
// verticles of one process. Bodies are JSON: []byte and json.RawMessage are
// forwarded verbatim, anything else is encoded.
type EventBus interface {
	// Publish delivers body to every consumer registered on address at the
	// time of the call. It never waits for handlers. A message with no
	// consumers is dropped silently.
	Publish(address string, body interface{}) error

	// PublishWithOptions is Publish with headers.
	PublishWithOptions(address string, body interface{}, opts DeliveryOptions) error

	// Send delivers body to one consumer of address, rotating between consumers.
	Send(address string, body interface{}) error

	// Request sends body to one consumer and waits up to timeout for its reply.
	Request(address string, body interface{}, timeout time.Duration) (Message, error)

	// Consumer registers a consumer on address. Messages are queued until a
	// handler is set with Consumer.Handler. Panics on an invalid address.
	Consumer(address string) Consumer

	// Subscribe registers handler on address and returns its handle.
	Subscribe(address string, handler MessageHandler) (Consumer, error)

	// Close stops delivery and releases all consumers.
	Close() error
}

// Consumer is the handle of one subscription.
type Consumer interface {
	// Address returns the address this consumer listens on
	Address() string

	// Handler sets the message handler and starts delivery
	Handler(handler MessageHandler) Consumer

	// Completion is closed once the consumer is unregistered or the bus is closed
	Completion() <-chan struct{}

	// Unregister removes the consumer; queued messages are discarded.
	Unregister() error
}

// MessageHandler handles one message. Returned errors and panics are logged
// by the bus and never reach the publisher or other consumers.
type MessageHandler func(ctx FluxorContext, msg Message) error

// BusObserver receives delivery events, e.g. for metrics.
type BusObserver interface {
	// Published is called once per Publish/Send with the number of target consumers
	Published(address, kind string, consumers int)

	// Delivered is called after a handler returned
	Delivered(address string, elapsed time.Duration, err error)

	// Dropped is called when a message could not be queued for a consumer
	Dropped(address, reason string)
}

type noopObserver struct{}

func (noopObserver) Published(string, string, int)          {}
func (noopObserver) Delivered(string, time.Duration, error) {}
func (noopObserver) Dropped(string, string)                 {}

// Error is the error type of the core package.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches errors by Code so callers can use errors.Is(err, ErrTimeout).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// EventBusError is kept as a name for errors raised by the event bus.
type EventBusError = Error

var (
	ErrNoReplyAddress = &Error{Code: "NO_REPLY_ADDRESS", Message: "No reply address available"}
	ErrTimeout        = &Error{Code: "TIMEOUT", Message: "Request timeout"}
	ErrNoHandlers     = &Error{Code: "NO_HANDLERS", Message: "No handlers registered"}
	ErrBusClosed      = &Error{Code: "BUS_CLOSED", Message: "event bus is closed"}
	ErrDeliveryFailed = &Error{Code: "DELIVERY_FAILED", Message: "consumer mailbox rejected the message"}
)
