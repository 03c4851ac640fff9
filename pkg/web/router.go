package web

import (
	"strings"
	"sync"

	"github.com/valyala/fasthttp"
)

// FastRequestHandler handles fasthttp requests
type FastRequestHandler func(ctx *FastRequestContext) error

// FastMiddleware wraps a handler.
type FastMiddleware func(handler FastRequestHandler) FastRequestHandler

// Router matches method and path, with :name segments as parameters.
// Middleware registered with Use wraps every route, in registration order.
type Router struct {
	routes     []*route
	middleware []FastMiddleware
	mu         sync.RWMutex
}

type route struct {
	method  string
	pattern []string
	handler FastRequestHandler
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{}
}

func (r *Router) GET(path string, handler FastRequestHandler) {
	r.Handle(fasthttp.MethodGet, path, handler)
}

func (r *Router) POST(path string, handler FastRequestHandler) {
	r.Handle(fasthttp.MethodPost, path, handler)
}

// Handle registers handler for method and path.
func (r *Router) Handle(method, path string, handler FastRequestHandler) {
	if handler == nil {
		panic("web: nil handler for " + method + " " + path)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.routes = append(r.routes, &route{
		method:  method,
		pattern: splitPath(path),
		handler: handler,
	})
}

// Use appends middleware.
func (r *Router) Use(middleware ...FastMiddleware) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, middleware...)
}

// ServeFastHTTP dispatches ctx. An unknown path gets 404, a known path with
// another method 405. A handler error becomes a 500 with the error text.
func (r *Router) ServeFastHTTP(ctx *FastRequestContext) {
	r.mu.RLock()
	routes := r.routes
	middleware := r.middleware
	r.mu.RUnlock()

	method := ctx.Method()
	parts := splitPath(ctx.Path())

	var handler FastRequestHandler
	pathMatched := false
	for _, rt := range routes {
		if !matchPath(rt.pattern, parts) {
			continue
		}
		pathMatched = true
		if rt.method == method {
			extractParams(rt.pattern, parts, ctx.Params)
			handler = rt.handler
			break
		}
	}

	if handler == nil {
		handler = func(ctx *FastRequestContext) error {
			if pathMatched {
				ctx.Error("Method Not Allowed", fasthttp.StatusMethodNotAllowed)
			} else {
				ctx.Error("Not Found", fasthttp.StatusNotFound)
			}
			return nil
		}
	}

	for i := len(middleware) - 1; i >= 0; i-- {
		handler = middleware[i](handler)
	}

	if err := handler(ctx); err != nil {
		ctx.Error(err.Error(), fasthttp.StatusInternalServerError)
	}
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func matchPath(pattern, parts []string) bool {
	if len(pattern) != len(parts) {
		return false
	}
	for i, part := range pattern {
		if strings.HasPrefix(part, ":") {
			continue
		}
		if part != parts[i] {
			return false
		}
	}
	return true
}

func extractParams(pattern, parts []string, params map[string]string) {
	for i, part := range pattern {
		if strings.HasPrefix(part, ":") {
			params[strings.TrimPrefix(part, ":")] = parts[i]
		}
	}
}
