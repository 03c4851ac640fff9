package middleware

import (
	"time"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/web"
)

// AccessLog logs one debug line per request with status and latency.
func AccessLog(logger core.Logger) web.FastMiddleware {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) error {
			start := time.Now()
			err := next(ctx)

			logger.WithField("request_id", ctx.RequestID()).
				WithField("status", ctx.RequestCtx.Response.StatusCode()).
				WithField("latency", time.Since(start).String()).
				Debugf("%s %s", ctx.Method(), ctx.Path())
			return err
		}
	}
}
