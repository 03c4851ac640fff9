package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/housebus/pkg/core/concurrency"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	tracerName = "github.com/fluxorio/housebus/pkg/core"

	// drainBatch bounds how many messages one consumer handles before it
	// yields its worker back to the executor.
	drainBatch = 64
)

// EventBusOptions configures NewEventBus.
type EventBusOptions struct {
	Workers         int // Executor workers shared by all consumers
	QueueSize       int // Executor task queue length
	MailboxCapacity int // Per-consumer queue length
	Logger          Logger
	Observer        BusObserver
}

// DefaultEventBusOptions returns 10 workers, a 1000 task queue and 100 message mailboxes.
func DefaultEventBusOptions() EventBusOptions {
	return EventBusOptions{
		Workers:         10,
		QueueSize:       1000,
		MailboxCapacity: 100,
	}
}

// eventBus implements EventBus.
//
// Registry:
//   - consumers maps an address to an immutable slice; writers replace the slice
//     under mu, so a publisher keeps iterating its snapshot without holding mu
//   - a consumer added during a publish does not receive that message
//
// Delivery:
//   - every consumer owns a bounded mailbox; publish only enqueues
//   - a consumer with pending messages has exactly one drain task on the executor,
//     so handlers of one consumer run in order and an idle consumer holds no worker
type eventBus struct {
	consumers map[string][]*consumer
	mu        sync.RWMutex
	closed    bool

	ctx      context.Context
	cancel   context.CancelFunc
	vertx    Vertx // may be nil for a standalone bus
	executor concurrency.Executor
	logger   Logger
	observer BusObserver
	tracer   trace.Tracer

	mailboxCapacity int
	sendCounter     uint64
}

// NewEventBus creates an in-memory event bus. vertx may be nil; it is only
// used to fill FluxorContext for handlers.
func NewEventBus(ctx context.Context, vertx Vertx, opts EventBusOptions) EventBus {
	defaults := DefaultEventBusOptions()
	if opts.Workers < 1 {
		opts.Workers = defaults.Workers
	}
	if opts.QueueSize < 1 {
		opts.QueueSize = defaults.QueueSize
	}
	if opts.MailboxCapacity < 1 {
		opts.MailboxCapacity = defaults.MailboxCapacity
	}
	if opts.Logger == nil {
		opts.Logger = NewDefaultLogger()
	}
	if opts.Observer == nil {
		opts.Observer = noopObserver{}
	}

	ctx, cancel := context.WithCancel(ctx)

	executor := concurrency.NewExecutor(ctx, concurrency.ExecutorConfig{
		Workers:   opts.Workers,
		QueueSize: opts.QueueSize,
		Logger:    opts.Logger,
	})

	return &eventBus{
		consumers:       make(map[string][]*consumer),
		ctx:             ctx,
		cancel:          cancel,
		vertx:           vertx,
		executor:        executor,
		logger:          opts.Logger,
		observer:        opts.Observer,
		tracer:          otel.Tracer(tracerName),
		mailboxCapacity: opts.MailboxCapacity,
	}
}

func (eb *eventBus) Publish(address string, body interface{}) error {
	return eb.PublishWithOptions(address, body, DeliveryOptions{})
}

func (eb *eventBus) PublishWithOptions(address string, body interface{}, opts DeliveryOptions) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}
	if err := ValidateBody(body); err != nil {
		return err
	}

	consumers, err := eb.snapshot(address)
	if err != nil {
		return err
	}

	headers := copyHeaders(opts.Headers)
	_, span := eb.startSpan("eventbus.publish", address, headers, len(consumers))
	defer span.End()

	msg := newMessage(address, eb.encodeBody(body), headers, "", eb)
	eb.observer.Published(address, "publish", len(consumers))

	for _, c := range consumers {
		c.enqueue(msg)
	}
	return nil
}

func (eb *eventBus) Send(address string, body interface{}) error {
	if err := ValidateAddress(address); err != nil {
		return err
	}
	if err := ValidateBody(body); err != nil {
		return err
	}

	consumers, err := eb.snapshot(address)
	if err != nil {
		return err
	}
	if len(consumers) == 0 {
		return &EventBusError{Code: ErrNoHandlers.Code, Message: "No handlers registered for address: " + address}
	}

	headers := make(map[string]string)
	_, span := eb.startSpan("eventbus.send", address, headers, 1)
	defer span.End()

	msg := newMessage(address, eb.encodeBody(body), headers, "", eb)
	eb.observer.Published(address, "send", 1)

	if !eb.pick(consumers).enqueue(msg) {
		return ErrDeliveryFailed
	}
	return nil
}

func (eb *eventBus) Request(address string, body interface{}, timeout time.Duration) (Message, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if err := ValidateBody(body); err != nil {
		return nil, err
	}
	if err := ValidateTimeout(timeout); err != nil {
		return nil, err
	}

	consumers, err := eb.snapshot(address)
	if err != nil {
		return nil, err
	}
	if len(consumers) == 0 {
		return nil, &EventBusError{Code: ErrNoHandlers.Code, Message: "No handlers registered for address: " + address}
	}

	replyAddress := generateReplyAddress()
	replies := concurrency.NewBoundedMailbox[Message](1)
	replyConsumer := eb.Consumer(replyAddress).Handler(func(ctx FluxorContext, msg Message) error {
		if err := replies.Send(msg); err != nil {
			eb.logger.Debugf("extra reply on %s ignored: %v", replyAddress, err)
		}
		return nil
	})
	defer func() { _ = replyConsumer.Unregister() }()

	headers := map[string]string{"replyAddress": replyAddress}
	_, span := eb.startSpan("eventbus.request", address, headers, 1)
	defer span.End()

	msg := newMessage(address, eb.encodeBody(body), headers, replyAddress, eb)
	eb.observer.Published(address, "request", 1)

	if !eb.pick(consumers).enqueue(msg) {
		return nil, ErrDeliveryFailed
	}

	replyCtx, cancel := context.WithTimeout(eb.ctx, timeout)
	defer cancel()

	reply, err := replies.Receive(replyCtx)
	if err != nil {
		if err == context.DeadlineExceeded {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return reply, nil
}

func (eb *eventBus) Consumer(address string) Consumer {
	failFast(ValidateAddress(address))

	c := &consumer{
		address: address,
		mailbox: concurrency.NewBoundedMailbox[*message](eb.mailboxCapacity),
		bus:     eb,
		done:    make(chan struct{}),
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	if eb.closed {
		c.close()
		return c
	}

	current := eb.consumers[address]
	next := make([]*consumer, len(current), len(current)+1)
	copy(next, current)
	eb.consumers[address] = append(next, c)
	return c
}

func (eb *eventBus) Subscribe(address string, handler MessageHandler) (Consumer, error) {
	if err := ValidateAddress(address); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, &EventBusError{Code: "INVALID_HANDLER", Message: "handler cannot be nil"}
	}

	eb.mu.RLock()
	closed := eb.closed
	eb.mu.RUnlock()
	if closed {
		return nil, ErrBusClosed
	}

	return eb.Consumer(address).Handler(handler), nil
}

func (eb *eventBus) Close() error {
	eb.mu.Lock()
	if eb.closed {
		eb.mu.Unlock()
		return nil
	}
	eb.closed = true
	all := eb.consumers
	eb.consumers = make(map[string][]*consumer)
	eb.mu.Unlock()

	for _, consumers := range all {
		for _, c := range consumers {
			c.close()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eb.executor.Shutdown(shutdownCtx); err != nil {
		eb.logger.Warnf("event bus executor shutdown: %v", err)
	}

	eb.cancel()
	return nil
}

// snapshot returns the current consumer list of address. The slice is never
// mutated afterwards, so it may be iterated without the lock.
func (eb *eventBus) snapshot(address string) ([]*consumer, error) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if eb.closed {
		return nil, ErrBusClosed
	}
	return eb.consumers[address], nil
}

func (eb *eventBus) remove(c *consumer) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	current := eb.consumers[c.address]
	next := make([]*consumer, 0, len(current))
	for _, cons := range current {
		if cons != c {
			next = append(next, cons)
		}
	}

	if len(next) == 0 {
		delete(eb.consumers, c.address)
		return
	}
	eb.consumers[c.address] = next
}

func (eb *eventBus) pick(consumers []*consumer) *consumer {
	n := atomic.AddUint64(&eb.sendCounter, 1) - 1
	return consumers[n%uint64(len(consumers))]
}

// encodeBody turns body into JSON. Bytes are copied so the caller may reuse
// its buffer. A value that cannot be encoded becomes {} and is logged.
func (eb *eventBus) encodeBody(body interface{}) []byte {
	switch b := body.(type) {
	case []byte:
		return bytes.Clone(b)
	case json.RawMessage:
		return bytes.Clone(b)
	default:
		return EncodeOrEmpty(body, eb.logger)
	}
}

// startSpan opens a producer span and injects it into headers so consumers
// can continue the trace.
func (eb *eventBus) startSpan(name, address string, headers map[string]string, fanout int) (context.Context, trace.Span) {
	carrier := propagation.MapCarrier(headers)
	parent := otel.GetTextMapPropagator().Extract(eb.ctx, carrier)

	ctx, span := eb.tracer.Start(parent, name,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.destination.name", address),
			attribute.Int("messaging.fanout", fanout),
		),
	)
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return ctx, span
}

func (eb *eventBus) contextFor(ctx context.Context) FluxorContext {
	return newFluxorContext(ctx, eb, eb.vertx, eb.logger)
}

// consumer implements Consumer as a mailbox drained on the bus executor.
type consumer struct {
	address string
	mailbox concurrency.Mailbox[*message]
	bus     *eventBus

	mu        sync.RWMutex
	handler   MessageHandler
	scheduled atomic.Bool

	closeOnce sync.Once
	done      chan struct{}
}

func (c *consumer) Address() string {
	return c.address
}

func (c *consumer) Handler(handler MessageHandler) Consumer {
	failFastNotNil(handler, "handler")

	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	// Messages may have been queued before the handler was set.
	c.schedule()
	return c
}

func (c *consumer) Completion() <-chan struct{} {
	return c.done
}

func (c *consumer) Unregister() error {
	c.bus.remove(c)
	c.close()
	return nil
}

func (c *consumer) close() {
	c.closeOnce.Do(func() {
		c.mailbox.Close()
		close(c.done)
	})
}

func (c *consumer) currentHandler() MessageHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handler
}

// enqueue hands msg to the consumer. It reports false when the message was dropped.
func (c *consumer) enqueue(msg *message) bool {
	if err := c.mailbox.Send(msg); err != nil {
		reason := "mailbox_full"
		if err == concurrency.ErrMailboxClosed {
			reason = "unregistered"
		}
		c.bus.observer.Dropped(c.address, reason)
		c.bus.logger.Debugf("message for %s dropped: %v", c.address, err)
		return false
	}
	c.schedule()
	return true
}

// schedule submits a drain task unless one is already pending or running.
func (c *consumer) schedule() {
	if c.currentHandler() == nil || c.mailbox.Size() == 0 {
		return
	}
	if !c.scheduled.CompareAndSwap(false, true) {
		return
	}

	task := concurrency.NewNamedTask("eventbus-consumer-"+c.address, c.drain)
	if err := c.bus.executor.Submit(task); err != nil {
		// Messages stay queued; the next enqueue retries.
		c.scheduled.Store(false)
		c.bus.logger.Warnf("could not schedule consumer for %s: %v", c.address, err)
	}
}

func (c *consumer) drain(ctx context.Context) error {
	for handled := 0; handled < drainBatch; handled++ {
		msg, ok, err := c.mailbox.TryReceive()
		if err != nil {
			c.scheduled.Store(false)
			return nil
		}
		if !ok {
			c.scheduled.Store(false)
			// A publisher may have enqueued after TryReceive but before Store.
			if c.mailbox.Size() > 0 {
				c.schedule()
			}
			return nil
		}
		c.deliver(ctx, msg)
	}

	c.scheduled.Store(false)
	c.schedule()
	return nil
}

// deliver runs the handler for one message with panic isolation.
func (c *consumer) deliver(ctx context.Context, msg *message) {
	handler := c.currentHandler()
	if handler == nil {
		return
	}

	parent := otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(msg.headers))
	spanCtx, span := c.bus.tracer.Start(parent, "eventbus.deliver",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(attribute.String("messaging.destination.name", c.address)),
	)
	defer span.End()

	start := time.Now()
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("handler panic (isolated): %v", r)
			}
		}()
		err = handler(c.bus.contextFor(spanCtx), msg)
	}()

	c.bus.observer.Delivered(c.address, time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if requestID := msg.headers[HeaderRequestID]; requestID != "" {
			c.bus.logger.Errorf("handler error for address %s (request_id=%s): %v", c.address, requestID, err)
		} else {
			c.bus.logger.Errorf("handler error for address %s: %v", c.address, err)
		}
	}
}

// message implements Message. It is never mutated after construction and is
// shared by all consumers of one publish.
type message struct {
	address      string
	body         []byte
	headers      map[string]string
	replyAddress string
	bus          *eventBus
}

func newMessage(address string, body []byte, headers map[string]string, replyAddress string, bus *eventBus) *message {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &message{
		address:      address,
		body:         body,
		headers:      headers,
		replyAddress: replyAddress,
		bus:          bus,
	}
}

func (m *message) Address() string {
	return m.address
}

func (m *message) Body() []byte {
	return bytes.Clone(m.body)
}

func (m *message) Headers() map[string]string {
	return copyHeaders(m.headers)
}

func (m *message) ReplyAddress() string {
	return m.replyAddress
}

func (m *message) Reply(body interface{}) error {
	if m.replyAddress == "" {
		return ErrNoReplyAddress
	}
	return m.bus.Send(m.replyAddress, body)
}

func (m *message) DecodeBody(v interface{}) error {
	return JSONDecode(m.body, v)
}

func copyHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		out[k] = v
	}
	return out
}

func generateReplyAddress() string {
	return "reply." + uuid.New().String()
}
