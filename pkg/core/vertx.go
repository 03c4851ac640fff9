package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Vertx is the main entry point of the runtime.
type Vertx interface {
	// EventBus returns the event bus
	EventBus() EventBus

	// DeployVerticle starts verticle and returns its deployment ID
	DeployVerticle(verticle Verticle) (string, error)

	// UndeployVerticle stops the verticle deployed under deploymentID
	UndeployVerticle(deploymentID string) error

	// DeploymentCount returns the number of deployed verticles
	DeploymentCount() int

	// SetPeriodic calls fn every interval until the timer is cancelled or
	// the runtime closes. Returns the timer ID.
	SetPeriodic(interval time.Duration, fn func(ctx context.Context)) (string, error)

	// CancelTimer stops a periodic timer. Returns false if the ID is unknown.
	CancelTimer(timerID string) bool

	// Logger returns the runtime logger
	Logger() Logger

	// Close undeploys all verticles, stops timers and closes the event bus
	Close() error

	// Context returns the root context
	Context() context.Context
}

// VertxOptions configures NewVertxWithOptions.
type VertxOptions struct {
	EventBus EventBusOptions
	Logger   Logger

	// EventBusFactory replaces the in-memory bus when set.
	EventBusFactory func(ctx context.Context, vertx Vertx) (EventBus, error)
}

type vertx struct {
	eventBus    EventBus
	deployments map[string]*deployment
	order       []string // deployment IDs in deploy order
	mu          sync.RWMutex
	closed      bool
	ctx         context.Context
	cancel      context.CancelFunc
	logger      Logger
	timers      *timers
}

// NewVertx creates a runtime with default options.
func NewVertx(ctx context.Context) Vertx {
	v, err := NewVertxWithOptions(ctx, VertxOptions{})
	failFast(err)
	return v
}

// NewVertxWithOptions creates a runtime. When the event bus factory fails the
// internal context is cancelled and the error returned.
func NewVertxWithOptions(ctx context.Context, opts VertxOptions) (Vertx, error) {
	if opts.Logger == nil {
		opts.Logger = NewDefaultLogger()
	}

	ctx, cancel := context.WithCancel(ctx)
	v := &vertx{
		deployments: make(map[string]*deployment),
		ctx:         ctx,
		cancel:      cancel,
		logger:      opts.Logger,
		timers:      newTimers(opts.Logger),
	}

	if opts.EventBusFactory != nil {
		eb, err := opts.EventBusFactory(ctx, v)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("create event bus: %w", err)
		}
		if eb == nil {
			cancel()
			return nil, &Error{Code: "INVALID_EVENT_BUS", Message: "event bus factory returned nil"}
		}
		v.eventBus = eb
	} else {
		busOpts := opts.EventBus
		if busOpts.Logger == nil {
			busOpts.Logger = opts.Logger
		}
		v.eventBus = NewEventBus(ctx, v, busOpts)
	}

	return v, nil
}

func (v *vertx) EventBus() EventBus {
	return v.eventBus
}

func (v *vertx) Logger() Logger {
	return v.logger
}

func (v *vertx) Context() context.Context {
	return v.ctx
}

func (v *vertx) DeployVerticle(verticle Verticle) (string, error) {
	if err := ValidateVerticle(verticle); err != nil {
		return "", err
	}

	if v.isClosed() {
		return "", &Error{Code: "VERTX_CLOSED", Message: "runtime is closed"}
	}

	deploymentID := generateDeploymentID()
	logger := v.logger.WithField("deployment", deploymentID)
	if named, ok := verticle.(NamedVerticle); ok {
		logger = logger.WithField("verticle", named.Name())
	}

	dep := &deployment{
		id:       deploymentID,
		verticle: verticle,
		ctx:      newFluxorContext(v.ctx, v.eventBus, v, logger),
	}

	// Start runs without the lock: verticles call back into SetPeriodic and EventBus.
	if err := verticle.Start(dep.ctx); err != nil {
		return "", fmt.Errorf("verticle start failed: %w", err)
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		if err := verticle.Stop(dep.ctx); err != nil {
			v.logger.Warnf("stop of %s after close failed: %v", deploymentID, err)
		}
		return "", &Error{Code: "VERTX_CLOSED", Message: "runtime is closed"}
	}
	v.deployments[deploymentID] = dep
	v.order = append(v.order, deploymentID)
	v.mu.Unlock()

	return deploymentID, nil
}

func (v *vertx) isClosed() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.closed
}

func (v *vertx) UndeployVerticle(deploymentID string) error {
	if deploymentID == "" {
		return &Error{Code: "INVALID_DEPLOYMENT_ID", Message: "deployment ID cannot be empty"}
	}

	v.mu.Lock()
	dep, exists := v.deployments[deploymentID]
	if !exists {
		v.mu.Unlock()
		return &Error{Code: "DEPLOYMENT_NOT_FOUND", Message: "Deployment not found: " + deploymentID}
	}
	delete(v.deployments, deploymentID)
	v.order = removeID(v.order, deploymentID)
	v.mu.Unlock()

	if err := dep.verticle.Stop(dep.ctx); err != nil {
		return fmt.Errorf("verticle stop failed: %w", err)
	}
	return nil
}

func (v *vertx) DeploymentCount() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.deployments)
}

func (v *vertx) SetPeriodic(interval time.Duration, fn func(ctx context.Context)) (string, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if v.closed {
		return "", &Error{Code: "VERTX_CLOSED", Message: "runtime is closed"}
	}
	return v.timers.setPeriodic(v.ctx, interval, fn)
}

func (v *vertx) CancelTimer(timerID string) bool {
	return v.timers.cancel(timerID)
}

func (v *vertx) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	ids := make([]string, len(v.order))
	copy(ids, v.order)
	v.mu.Unlock()

	// Reverse deploy order so producers stop before the consumers they feed.
	for i := len(ids) - 1; i >= 0; i-- {
		if err := v.UndeployVerticle(ids[i]); err != nil {
			v.logger.Warnf("Failed to undeploy verticle %s during close: %v", ids[i], err)
		}
	}

	v.timers.stopAll()
	err := v.eventBus.Close()
	v.cancel()
	return err
}

type deployment struct {
	id       string
	verticle Verticle
	ctx      FluxorContext
}

func generateDeploymentID() string {
	return fmt.Sprintf("deployment.%s", GenerateRequestID())
}

func removeID(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
