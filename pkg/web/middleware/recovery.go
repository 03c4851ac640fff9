// Package middleware holds fasthttp middleware for web.Router.
package middleware

import (
	"fmt"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/web"
)

// RecoveryConfig configures panic recovery middleware
type RecoveryConfig struct {
	// Logger receives the panic; core.NewDefaultLogger() when nil
	Logger core.Logger

	// StackTrace puts the panic value in the response body
	StackTrace bool
}

// Recovery turns a handler panic into a JSON 500 response.
func Recovery(config RecoveryConfig) web.FastMiddleware {
	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	return func(next web.FastRequestHandler) web.FastRequestHandler {
		return func(ctx *web.FastRequestContext) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.WithField("request_id", ctx.RequestID()).
						WithField("method", ctx.Method()).
						WithField("path", ctx.Path()).
						Errorf("Panic recovered: %v", r)

					errorMsg := "Internal Server Error"
					if config.StackTrace {
						errorMsg = fmt.Sprintf("Panic: %v", r)
					}
					err = ctx.JSON(500, map[string]string{
						"error":      "internal_server_error",
						"message":    errorMsg,
						"request_id": ctx.RequestID(),
					})
				}
			}()

			return next(ctx)
		}
	}
}
