package core

import (
	"context"
	"sync"
	"time"
)

// BaseVerticle carries the bookkeeping most verticles need. Embed it, call
// Start from the embedding verticle's Start before registering anything and
// Stop from its Stop; consumers and timers created through it are released
// on Stop.
type BaseVerticle struct {
	name string

	mu        sync.RWMutex
	ctx       FluxorContext
	started   bool
	stopped   bool
	consumers []Consumer
	timers    []string
}

// NewBaseVerticle creates a new BaseVerticle
func NewBaseVerticle(name string) *BaseVerticle {
	return &BaseVerticle{name: name}
}

// Start binds the verticle to ctx.
func (bv *BaseVerticle) Start(ctx FluxorContext) error {
	bv.mu.Lock()
	defer bv.mu.Unlock()

	if bv.started {
		return &Error{Code: "ALREADY_STARTED", Message: "verticle already started"}
	}
	bv.ctx = ctx
	bv.started = true
	return nil
}

// Stop unregisters tracked consumers and cancels tracked timers.
func (bv *BaseVerticle) Stop(ctx FluxorContext) error {
	bv.mu.Lock()
	if bv.stopped || !bv.started {
		bv.mu.Unlock()
		return nil
	}
	bv.stopped = true
	consumers := bv.consumers
	timers := bv.timers
	bv.consumers = nil
	bv.timers = nil
	vertx := bv.ctx.Vertx()
	bv.mu.Unlock()

	for _, timerID := range timers {
		if vertx != nil {
			vertx.CancelTimer(timerID)
		}
	}
	for _, consumer := range consumers {
		_ = consumer.Unregister()
	}
	return nil
}

// Name returns the verticle name
func (bv *BaseVerticle) Name() string {
	return bv.name
}

// Context returns the FluxorContext set by Start
func (bv *BaseVerticle) Context() FluxorContext {
	bv.mu.RLock()
	defer bv.mu.RUnlock()
	return bv.ctx
}

// EventBus returns the bus of the bound context, nil before Start
func (bv *BaseVerticle) EventBus() EventBus {
	ctx := bv.Context()
	if ctx == nil {
		return nil
	}
	return ctx.EventBus()
}

// Logger returns the context logger, or a default logger before Start
func (bv *BaseVerticle) Logger() Logger {
	ctx := bv.Context()
	if ctx == nil || ctx.Logger() == nil {
		return NewDefaultLogger()
	}
	return ctx.Logger()
}

// IsStarted returns whether the verticle has been started
func (bv *BaseVerticle) IsStarted() bool {
	bv.mu.RLock()
	defer bv.mu.RUnlock()
	return bv.started
}

// IsStopped returns whether the verticle has been stopped
func (bv *BaseVerticle) IsStopped() bool {
	bv.mu.RLock()
	defer bv.mu.RUnlock()
	return bv.stopped
}

// Subscribe registers handler on address and tracks the consumer for Stop.
func (bv *BaseVerticle) Subscribe(address string, handler MessageHandler) (Consumer, error) {
	eb := bv.EventBus()
	if eb == nil {
		return nil, errNotStarted
	}

	consumer, err := eb.Subscribe(address, handler)
	if err != nil {
		return nil, err
	}

	bv.mu.Lock()
	bv.consumers = append(bv.consumers, consumer)
	bv.mu.Unlock()
	return consumer, nil
}

// Publish is a convenience method to publish messages
func (bv *BaseVerticle) Publish(address string, body interface{}) error {
	eb := bv.EventBus()
	if eb == nil {
		return errNotStarted
	}
	return eb.Publish(address, body)
}

// PublishWithOptions is Publish with delivery options
func (bv *BaseVerticle) PublishWithOptions(address string, body interface{}, opts DeliveryOptions) error {
	eb := bv.EventBus()
	if eb == nil {
		return errNotStarted
	}
	return eb.PublishWithOptions(address, body, opts)
}

// SetPeriodic starts a runtime timer tracked for Stop.
func (bv *BaseVerticle) SetPeriodic(interval time.Duration, fn func(ctx context.Context)) (string, error) {
	ctx := bv.Context()
	if ctx == nil || ctx.Vertx() == nil {
		return "", errNotStarted
	}

	timerID, err := ctx.Vertx().SetPeriodic(interval, fn)
	if err != nil {
		return "", err
	}

	bv.mu.Lock()
	bv.timers = append(bv.timers, timerID)
	bv.mu.Unlock()
	return timerID, nil
}

var errNotStarted = &Error{Code: "NOT_STARTED", Message: "verticle not started"}
