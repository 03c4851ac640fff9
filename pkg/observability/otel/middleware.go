package otel

import (
	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/fluxorio/housebus/pkg/web"
)

const tracerName = "github.com/fluxorio/housebus/pkg/observability/otel"

// HTTPMiddleware starts a server span per request, continuing any trace
// found in the request headers. The span context is stored on the request so
// handlers can hand it on, e.g. into event bus headers.
func HTTPMiddleware() web.FastMiddleware {
	tracer := otel.Tracer(tracerName)

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			parent := otel.GetTextMapPropagator().Extract(ctx.Context(), headerCarrier{&ctx.RequestCtx.Request.Header})

			spanCtx, span := tracer.Start(parent, ctx.Method()+" "+ctx.Path(),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", ctx.Method()),
					attribute.String("url.path", ctx.Path()),
					attribute.String("http.request.id", ctx.RequestID()),
				),
			)
			defer span.End()
			ctx.SetContext(spanCtx)

			err := next(ctx)

			status := ctx.RequestCtx.Response.StatusCode()
			if err != nil {
				status = fasthttp.StatusInternalServerError
				span.RecordError(err)
			}
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if status >= fasthttp.StatusInternalServerError {
				span.SetStatus(codes.Error, fasthttp.StatusMessage(status))
			}
			return err
		}
	}
}

// headerCarrier adapts fasthttp request headers to propagation.TextMapCarrier.
type headerCarrier struct {
	h *fasthttp.RequestHeader
}

func (c headerCarrier) Get(key string) string {
	return string(c.h.Peek(key))
}

func (c headerCarrier) Set(key, value string) {
	c.h.Set(key, value)
}

func (c headerCarrier) Keys() []string {
	var keys []string
	c.h.VisitAll(func(key, _ []byte) {
		keys = append(keys, string(key))
	})
	return keys
}
