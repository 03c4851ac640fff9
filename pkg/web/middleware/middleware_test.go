package middleware

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/web"
)

func newServer(logger core.Logger) *web.FastHTTPServer {
	return web.NewFastHTTPServer(web.DefaultFastHTTPServerConfig(":0"), logger)
}

func serve(s *web.FastHTTPServer, method, path string) *fasthttp.RequestCtx {
	rc := &fasthttp.RequestCtx{}
	rc.Request.Header.SetMethod(method)
	rc.Request.SetRequestURI(path)
	s.Handler()(rc)
	return rc
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger, err := core.NewLogger(core.LoggerOptions{Output: &buf})
	require.NoError(t, err)

	s := newServer(logger)
	s.Router().Use(Recovery(RecoveryConfig{Logger: logger, StackTrace: true}))
	s.Router().GET("/", func(ctx *web.FastRequestContext) error { panic("kaputt") })

	rc := serve(s, "GET", "/")
	assert.Equal(t, 500, rc.Response.StatusCode())
	assert.Contains(t, string(rc.Response.Body()), "Panic: kaputt")
	assert.Contains(t, buf.String(), "Panic recovered: kaputt")
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger, err := core.NewLogger(core.LoggerOptions{Level: "debug", Output: &buf})
	require.NoError(t, err)

	s := newServer(logger)
	s.Router().Use(AccessLog(logger))
	s.Router().GET("/healthz", func(ctx *web.FastRequestContext) error { return ctx.Text(200, "ok") })

	rc := serve(s, "GET", "/healthz")
	assert.Equal(t, 200, rc.Response.StatusCode())
	assert.Contains(t, buf.String(), "GET /healthz")
	assert.Contains(t, buf.String(), "status=200")
}
