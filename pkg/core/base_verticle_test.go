package core

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trackingVerticle struct {
	*BaseVerticle
	ticks    int32
	received chan []byte
}

func (v *trackingVerticle) Start(ctx FluxorContext) error {
	if err := v.BaseVerticle.Start(ctx); err != nil {
		return err
	}
	if _, err := v.Subscribe("tracked", func(ctx FluxorContext, msg Message) error {
		v.received <- msg.Body()
		return nil
	}); err != nil {
		return err
	}
	_, err := v.SetPeriodic(5*time.Millisecond, func(ctx context.Context) {
		atomic.AddInt32(&v.ticks, 1)
	})
	return err
}

func TestBaseVerticle_ReleasesOnStop(t *testing.T) {
	vx := newTestVertx(t)

	v := &trackingVerticle{BaseVerticle: NewBaseVerticle("tracking"), received: make(chan []byte, 4)}
	id, err := vx.DeployVerticle(v)
	require.NoError(t, err)
	assert.True(t, v.IsStarted())
	assert.Equal(t, "tracking", v.Name())

	require.NoError(t, v.Publish("tracked", "hello"))
	select {
	case b := <-v.received:
		assert.Equal(t, `"hello"`, string(b))
	case <-time.After(2 * time.Second):
		t.Fatal("message not received")
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&v.ticks) > 0 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, vx.UndeployVerticle(id))
	assert.True(t, v.IsStopped())

	require.NoError(t, vx.EventBus().Publish("tracked", "late"))
	select {
	case b := <-v.received:
		t.Fatalf("stopped verticle received %s", b)
	case <-time.After(50 * time.Millisecond):
	}

	after := atomic.LoadInt32(&v.ticks)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, atomic.LoadInt32(&v.ticks))
}

func TestBaseVerticle_NotStarted(t *testing.T) {
	bv := NewBaseVerticle("idle")

	assert.Error(t, bv.Publish("x", "y"))
	_, err := bv.Subscribe("x", func(ctx FluxorContext, msg Message) error { return nil })
	assert.Error(t, err)
	_, err = bv.SetPeriodic(time.Second, func(ctx context.Context) {})
	assert.Error(t, err)
	assert.NotNil(t, bv.Logger())
	assert.NoError(t, bv.Stop(nil))
}

func TestBaseVerticle_StartTwice(t *testing.T) {
	vx := newTestVertx(t)
	bv := NewBaseVerticle("twice")

	ctx := newFluxorContext(vx.Context(), vx.EventBus(), vx, vx.Logger())
	require.NoError(t, bv.Start(ctx))
	assert.Error(t, bv.Start(ctx))
}
