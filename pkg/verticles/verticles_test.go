package verticles

import (
	"bytes"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/domain"
	"github.com/fluxorio/housebus/pkg/observability/prometheus"
	"github.com/fluxorio/housebus/pkg/schema"
	"github.com/fluxorio/housebus/pkg/web"
)

// syncBuffer is a log sink safe for concurrent writers and readers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type recordingObserver struct {
	mu       sync.Mutex
	accepted map[string]int
	rejected map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{accepted: map[string]int{}, rejected: map[string]int{}}
}

func (o *recordingObserver) Accepted(shape string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.accepted[shape]++
}

func (o *recordingObserver) Rejected(shape string, _ schema.Reason) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected[shape]++
}

func (o *recordingObserver) counts(shape string) (int, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.accepted[shape], o.rejected[shape]
}

func newRuntime(t *testing.T) (core.Vertx, *syncBuffer) {
	t.Helper()
	logs := &syncBuffer{}
	logger, err := core.NewLogger(core.LoggerOptions{Level: "info", Output: logs})
	require.NoError(t, err)

	v, err := core.NewVertxWithOptions(t.Context(), core.VertxOptions{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = v.Close() })
	return v, logs
}

// tap subscribes a raw consumer on topic and forwards every message.
func tap(t *testing.T, v core.Vertx, topic string) <-chan core.Message {
	t.Helper()
	ch := make(chan core.Message, 16)
	_, err := v.EventBus().Subscribe(topic, func(ctx core.FluxorContext, msg core.Message) error {
		ch <- msg
		return nil
	})
	require.NoError(t, err)
	return ch
}

func receive(t *testing.T, ch <-chan core.Message) core.Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestConsumers_FanOutByShape(t *testing.T) {
	v, logs := newRuntime(t)
	obs := newRecordingObserver()

	_, err := v.DeployVerticle(NewHouseConsumer("", obs))
	require.NoError(t, err)
	_, err = v.DeployVerticle(NewRoomConsumer("", obs))
	require.NoError(t, err)

	house := []byte(`{"name":"Haus","rooms":[{"size":10},{"size":5},{"size":15}]}`)
	require.NoError(t, v.EventBus().Publish(DefaultTopic, house))

	assert.Eventually(t, func() bool {
		ha, _ := obs.counts("House")
		_, rr := obs.counts("Room")
		return ha == 1 && rr == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "Received: Haus  (3 rooms, 30 m²)")

	require.NoError(t, v.EventBus().Publish(DefaultTopic, []byte(`{"size":10}`)))

	assert.Eventually(t, func() bool {
		_, hr := obs.counts("House")
		ra, _ := obs.counts("Room")
		return hr == 1 && ra == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Contains(t, logs.String(), "Received: Room{size=10} (10 m²)")

	ha, _ := obs.counts("House")
	assert.Equal(t, 1, ha, "room payload must not reach the house handler")
}

func TestConsumers_IgnoreUnrelatedPayloads(t *testing.T) {
	v, logs := newRuntime(t)
	obs := newRecordingObserver()

	_, err := v.DeployVerticle(NewHouseConsumer("", obs))
	require.NoError(t, err)
	_, err = v.DeployVerticle(NewRoomConsumer("", nil))
	require.NoError(t, err)

	require.NoError(t, v.EventBus().Publish(DefaultTopic, []byte(`{"name":"Haus","rooms":[]}`)))
	require.NoError(t, v.EventBus().Publish(DefaultTopic, []byte(`not json`)))

	assert.Eventually(t, func() bool {
		_, hr := obs.counts("House")
		return hr == 2
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, logs.String(), "Received:")
}

func TestHouseSpawner_PublishesSampleHouse(t *testing.T) {
	v, logs := newRuntime(t)
	messages := tap(t, v, "houses")

	id, err := v.DeployVerticle(NewHouseSpawner("houses", 20*time.Millisecond))
	require.NoError(t, err)

	msg := receive(t, messages)
	got, err := domain.HouseSchema.Decode(msg.Body())
	require.NoError(t, err)
	assert.True(t, got.Equal(sampleHouse()))
	assert.Equal(t, "Haus", got.Name())
	assert.Equal(t, 30, got.TotalSize())
	assert.Contains(t, logs.String(), "Spawning house")

	require.NoError(t, v.UndeployVerticle(id))
	time.Sleep(50 * time.Millisecond)
	for len(messages) > 0 {
		<-messages
	}
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, messages, "no spawns after undeploy")
}

func TestNewHouseSpawner_DefaultInterval(t *testing.T) {
	s := NewHouseSpawner("", 0)
	assert.Equal(t, DefaultSpawnInterval, s.interval)
	assert.Equal(t, DefaultTopic, s.topic)
}

type webFixture struct {
	vertx   core.Vertx
	api     *WebAPI
	client  *fasthttp.Client
	metrics *prometheus.Metrics
}

func startWebAPI(t *testing.T) *webFixture {
	t.Helper()
	v, _ := newRuntime(t)
	ln := fasthttputil.NewInmemoryListener()
	m := prometheus.NewMetrics(prometheus.Options{Namespace: "web_test"})

	api := NewWebAPI(WebAPIConfig{
		Server:   web.DefaultFastHTTPServerConfig(":0"),
		Metrics:  m,
		Listener: ln,
	})
	_, err := v.DeployVerticle(api)
	require.NoError(t, err)

	return &webFixture{
		vertx:   v,
		api:     api,
		metrics: m,
		client: &fasthttp.Client{
			Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
		},
	}
}

func (f *webFixture) do(t *testing.T, method, path string, body []byte) (int, string, string) {
	t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://housebus" + path)
	req.SetBody(body)
	require.NoError(t, f.client.DoTimeout(req, resp, 2*time.Second))
	return resp.StatusCode(), string(resp.Body()), string(resp.Header.Peek(core.HeaderRequestID))
}

func TestWebAPI_RepublishesBodyVerbatim(t *testing.T) {
	f := startWebAPI(t)
	messages := tap(t, f.vertx, DefaultTopic)

	payload := []byte(`{ "name": "Haus",  "rooms": [{"size": 10}], "extra": true }`)
	status, body, requestID := f.do(t, "POST", "/", payload)
	require.Equal(t, 200, status)
	assert.Equal(t, "ok", body)
	require.NotEmpty(t, requestID)

	msg := receive(t, messages)
	assert.Equal(t, payload, msg.Body())
	assert.Equal(t, requestID, msg.Headers()[core.HeaderRequestID])
}

func TestWebAPI_RejectsNonObjectBodies(t *testing.T) {
	f := startWebAPI(t)
	messages := tap(t, f.vertx, DefaultTopic)

	for _, payload := range []string{"", "not json", `[1,2]`, `{"size":`} {
		status, _, _ := f.do(t, "POST", "/", []byte(payload))
		assert.Equal(t, 400, status, "payload %q", payload)
	}

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, messages)
}

func TestWebAPI_HealthAndMetrics(t *testing.T) {
	f := startWebAPI(t)

	status, body, _ := f.do(t, "GET", "/healthz", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body)

	status, body, _ = f.do(t, "GET", "/metrics", nil)
	assert.Equal(t, 200, status)
	assert.Contains(t, body, `web_test_http_requests_total{method="GET",path="/healthz",status="2xx"} 1`)

	status, body, _ = f.do(t, "GET", "/status", nil)
	assert.Equal(t, 200, status)
	assert.Contains(t, body, `"deployments":1`)
	assert.Contains(t, body, `"topic":"shared"`)

	status, _, _ = f.do(t, "GET", "/", nil)
	assert.Equal(t, 405, status)
}

func TestWebAPI_StopShutsServerDown(t *testing.T) {
	v, _ := newRuntime(t)
	ln := fasthttputil.NewInmemoryListener()
	api := NewWebAPI(WebAPIConfig{Listener: ln})

	id, err := v.DeployVerticle(api)
	require.NoError(t, err)
	require.NotNil(t, api.Server())

	require.NoError(t, v.UndeployVerticle(id))
	assert.True(t, api.IsStopped())

	_, err = ln.Dial()
	assert.Error(t, err)
}

func TestIsJSONObject(t *testing.T) {
	assert.True(t, isJSONObject([]byte(` {"a":1}`)))
	assert.True(t, isJSONObject([]byte(`{}`)))
	assert.False(t, isJSONObject(nil))
	assert.False(t, isJSONObject([]byte(`"text"`)))
	assert.False(t, isJSONObject([]byte(`{"a":1} trailing`)))
}
