package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/fluxorio/housebus/pkg/web"
)

// unmatchedPath labels requests that found no route, keeping path cardinality bounded.
const unmatchedPath = "unmatched"

// Middleware records count, latency and body size of every request.
func (m *Metrics) Middleware() web.FastMiddleware {
	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			start := time.Now()
			method := ctx.Method()
			path := ctx.Path()
			requestSize := len(ctx.RequestCtx.PostBody())

			err := next(ctx)

			status := ctx.RequestCtx.Response.StatusCode()
			if err != nil {
				// the router turns handler errors into 500 after middleware ran
				status = fasthttp.StatusInternalServerError
			}
			if status == fasthttp.StatusNotFound {
				path = unmatchedPath
			}

			m.recordHTTPRequest(method, path, statusClass(status), time.Since(start), requestSize)
			return err
		}
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() web.FastRequestHandler {
	h := fasthttpadaptor.NewFastHTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return func(ctx *web.FastRequestContext) error {
		h(ctx.RequestCtx)
		return nil
	}
}

// Register mounts Handler on router at path.
func (m *Metrics) Register(router *web.Router, path string) {
	router.GET(path, m.Handler())
}

func statusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
