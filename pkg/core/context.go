package core

import (
	"context"
)

// FluxorContext is handed to verticles and message handlers. It exposes the
// runtime a piece of code was started in.
type FluxorContext interface {
	// Context returns the Go context; it is cancelled when the runtime closes
	Context() context.Context

	// EventBus returns the event bus
	EventBus() EventBus

	// Vertx returns the owning runtime, nil for a standalone event bus
	Vertx() Vertx

	// Logger returns the logger for this context
	Logger() Logger
}

type fluxorContext struct {
	ctx      context.Context
	eventBus EventBus
	vertx    Vertx
	logger   Logger
}

func newFluxorContext(ctx context.Context, eventBus EventBus, vertx Vertx, logger Logger) FluxorContext {
	return &fluxorContext{ctx: ctx, eventBus: eventBus, vertx: vertx, logger: logger}
}

func (c *fluxorContext) Context() context.Context { return c.ctx }
func (c *fluxorContext) EventBus() EventBus       { return c.eventBus }
func (c *fluxorContext) Vertx() Vertx             { return c.vertx }
func (c *fluxorContext) Logger() Logger           { return c.logger }
