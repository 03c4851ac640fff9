package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testVerticle struct {
	started  bool
	stopped  bool
	startErr error
}

func (v *testVerticle) Start(ctx FluxorContext) error {
	if v.startErr != nil {
		return v.startErr
	}
	v.started = true
	return nil
}

func (v *testVerticle) Stop(ctx FluxorContext) error {
	v.stopped = true
	return nil
}

func newTestVertx(t *testing.T) Vertx {
	t.Helper()
	vx, err := NewVertxWithOptions(context.Background(), VertxOptions{Logger: quietLogger()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = vx.Close() })
	return vx
}

func TestVertx_DeployVerticle(t *testing.T) {
	vx := newTestVertx(t)

	_, err := vx.DeployVerticle(nil)
	assert.Error(t, err)

	var nilVerticle *testVerticle
	_, err = vx.DeployVerticle(nilVerticle)
	assert.Error(t, err)

	verticle := &testVerticle{}
	deploymentID, err := vx.DeployVerticle(verticle)
	require.NoError(t, err)
	assert.NotEmpty(t, deploymentID)
	assert.True(t, verticle.started)
	assert.Equal(t, 1, vx.DeploymentCount())
}

func TestVertx_DeployVerticle_StartError(t *testing.T) {
	vx := newTestVertx(t)

	wantErr := errors.New("no port")
	_, err := vx.DeployVerticle(&testVerticle{startErr: wantErr})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 0, vx.DeploymentCount())
}

func TestVertx_UndeployVerticle(t *testing.T) {
	vx := newTestVertx(t)

	assert.Error(t, vx.UndeployVerticle(""))
	assert.Error(t, vx.UndeployVerticle("non-existent"))

	verticle := &testVerticle{}
	deploymentID, err := vx.DeployVerticle(verticle)
	require.NoError(t, err)

	require.NoError(t, vx.UndeployVerticle(deploymentID))
	assert.True(t, verticle.stopped)
	assert.Equal(t, 0, vx.DeploymentCount())
}

func TestVertx_Close_StopsEverything(t *testing.T) {
	vx, err := NewVertxWithOptions(context.Background(), VertxOptions{Logger: quietLogger()})
	require.NoError(t, err)

	a, b := &testVerticle{}, &testVerticle{}
	_, err = vx.DeployVerticle(a)
	require.NoError(t, err)
	_, err = vx.DeployVerticle(b)
	require.NoError(t, err)

	require.NoError(t, vx.Close())
	assert.True(t, a.stopped)
	assert.True(t, b.stopped)
	assert.Error(t, vx.Context().Err())
	assert.ErrorIs(t, vx.EventBus().Publish("shared", "x"), ErrBusClosed)

	_, err = vx.DeployVerticle(&testVerticle{})
	assert.Error(t, err)
	assert.NoError(t, vx.Close())
}

func TestVertx_SetPeriodic(t *testing.T) {
	vx := newTestVertx(t)

	_, err := vx.SetPeriodic(0, func(ctx context.Context) {})
	assert.Error(t, err)
	_, err = vx.SetPeriodic(time.Millisecond, nil)
	assert.Error(t, err)

	var ticks int32
	id, err := vx.SetPeriodic(5*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&ticks, 1)
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 3 }, 2*time.Second, 5*time.Millisecond)

	assert.True(t, vx.CancelTimer(id))
	assert.False(t, vx.CancelTimer(id))

	// At most one tick may have been in flight when the timer was cancelled.
	time.Sleep(20 * time.Millisecond)
	after := atomic.LoadInt32(&ticks)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&ticks))
}

func TestVertx_SetPeriodic_PanicIsIsolated(t *testing.T) {
	vx := newTestVertx(t)

	var ticks int32
	_, err := vx.SetPeriodic(5*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&ticks, 1)
		panic("tick")
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return atomic.LoadInt32(&ticks) >= 2 }, 2*time.Second, 5*time.Millisecond)
}

func TestNewVertxWithOptions_EventBusFactoryErrorCancelsContext(t *testing.T) {
	wantErr := errors.New("factory failed")
	var factoryCtx context.Context

	vx, err := NewVertxWithOptions(context.Background(), VertxOptions{
		Logger: quietLogger(),
		EventBusFactory: func(ctx context.Context, _ Vertx) (EventBus, error) {
			factoryCtx = ctx
			return nil, wantErr
		},
	})
	require.Error(t, err)
	assert.Nil(t, vx)
	assert.ErrorIs(t, err, wantErr)
	require.NotNil(t, factoryCtx)

	select {
	case <-factoryCtx.Done():
	case <-time.After(250 * time.Millisecond):
		t.Fatal("expected internal context to be cancelled on factory error")
	}
}

func TestVertx_DeployedVerticleSeesRuntime(t *testing.T) {
	vx := newTestVertx(t)

	var seen FluxorContext
	_, err := vx.DeployVerticle(&funcVerticle{start: func(ctx FluxorContext) error {
		seen = ctx
		return nil
	}})
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Same(t, vx.(*vertx), seen.Vertx().(*vertx))
	assert.Equal(t, vx.EventBus(), seen.EventBus())
	assert.NotNil(t, seen.Logger())
	assert.NoError(t, seen.Context().Err())
}

type funcVerticle struct {
	start func(ctx FluxorContext) error
}

func (v *funcVerticle) Start(ctx FluxorContext) error { return v.start(ctx) }
func (v *funcVerticle) Stop(ctx FluxorContext) error  { return nil }
