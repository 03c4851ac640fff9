package web

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fluxorio/housebus/pkg/core"
	"github.com/valyala/fasthttp"
)

// FastHTTPServer serves a Router with fasthttp.
type FastHTTPServer struct {
	router *Router
	server *fasthttp.Server
	addr   string
	logger core.Logger

	mu       sync.Mutex
	listener net.Listener
	done     chan error

	totalRequests      int64
	successfulRequests int64
	clientErrors       int64
	errorRequests      int64
}

// FastHTTPServerConfig configures the fasthttp server
type FastHTTPServerConfig struct {
	Addr               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	MaxRequestBodySize int
	MaxConnsPerIP      int
	ReadBufferSize     int
	WriteBufferSize    int
}

// DefaultFastHTTPServerConfig returns the default configuration listening on addr.
func DefaultFastHTTPServerConfig(addr string) FastHTTPServerConfig {
	return FastHTTPServerConfig{
		Addr:               addr,
		ReadTimeout:        10 * time.Second,
		WriteTimeout:       10 * time.Second,
		MaxRequestBodySize: 4 * 1024 * 1024,
		ReadBufferSize:     8192,
		WriteBufferSize:    8192,
	}
}

// ServerMetrics is a snapshot of request counters.
type ServerMetrics struct {
	TotalRequests      int64 `json:"total"`         // Requests routed
	SuccessfulRequests int64 `json:"successful"`    // 2xx responses
	ClientErrors       int64 `json:"client_errors"` // 4xx responses
	ErrorRequests      int64 `json:"errors"`        // 5xx responses
}

// NewFastHTTPServer creates a server. logger may be nil.
func NewFastHTTPServer(config FastHTTPServerConfig, logger core.Logger) *FastHTTPServer {
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	defaults := DefaultFastHTTPServerConfig(config.Addr)
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.MaxRequestBodySize <= 0 {
		config.MaxRequestBodySize = defaults.MaxRequestBodySize
	}
	if config.ReadBufferSize <= 0 {
		config.ReadBufferSize = defaults.ReadBufferSize
	}
	if config.WriteBufferSize <= 0 {
		config.WriteBufferSize = defaults.WriteBufferSize
	}

	s := &FastHTTPServer{
		router: NewRouter(),
		addr:   config.Addr,
		logger: logger,
	}
	s.server = &fasthttp.Server{
		Handler:               s.handleRequest,
		ReadTimeout:           config.ReadTimeout,
		WriteTimeout:          config.WriteTimeout,
		MaxRequestBodySize:    config.MaxRequestBodySize,
		MaxConnsPerIP:         config.MaxConnsPerIP,
		ReadBufferSize:        config.ReadBufferSize,
		WriteBufferSize:       config.WriteBufferSize,
		NoDefaultServerHeader: true,
		Logger:                fasthttpLogger{logger},
	}
	return s
}

// Router returns the router
func (s *FastHTTPServer) Router() *Router {
	return s.router
}

// Handler returns the fasthttp handler of s, for serving without a listener.
func (s *FastHTTPServer) Handler() fasthttp.RequestHandler {
	return s.handleRequest
}

// Addr returns the bound address once started, the configured one before.
func (s *FastHTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start binds the configured address and serves in the background. Bind
// errors are returned directly.
func (s *FastHTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.StartOn(ln)
}

// StartOn serves on an existing listener in the background.
func (s *FastHTTPServer) StartOn(ln net.Listener) error {
	s.mu.Lock()
	if s.listener != nil {
		s.mu.Unlock()
		return &core.Error{Code: "ALREADY_STARTED", Message: "server already started"}
	}
	s.listener = ln
	s.done = make(chan error, 1)
	done := s.done
	s.mu.Unlock()

	go func() {
		done <- s.server.Serve(ln)
	}()
	return nil
}

// Stop shuts the server down, waiting for open requests up to ctx.
func (s *FastHTTPServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	started := s.listener != nil
	s.mu.Unlock()

	if !started {
		return nil
	}
	if err := s.server.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-done; err != nil {
		s.logger.Debugf("http serve returned after shutdown: %v", err)
	}
	return nil
}

// Metrics returns current server metrics
func (s *FastHTTPServer) Metrics() ServerMetrics {
	return ServerMetrics{
		TotalRequests:      atomic.LoadInt64(&s.totalRequests),
		SuccessfulRequests: atomic.LoadInt64(&s.successfulRequests),
		ClientErrors:       atomic.LoadInt64(&s.clientErrors),
		ErrorRequests:      atomic.LoadInt64(&s.errorRequests),
	}
}

// handleRequest assigns a request ID, routes the request and records the status.
// A panicking handler yields a 500 without taking the connection down.
func (s *FastHTTPServer) handleRequest(ctx *fasthttp.RequestCtx) {
	requestID := string(ctx.Request.Header.Peek(core.HeaderRequestID))
	if requestID == "" {
		requestID = core.GenerateRequestID()
	}
	ctx.Response.Header.Set(core.HeaderRequestID, requestID)

	reqCtx := newFastRequestContext(ctx, requestID)
	atomic.AddInt64(&s.totalRequests, 1)

	func() {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Errorf("handler panic (request_id=%s): %v", requestID, r)
				ctx.ResetBody()
				ctx.SetStatusCode(fasthttp.StatusInternalServerError)
				ctx.SetContentType("application/json")
				_, _ = ctx.WriteString(fmt.Sprintf(`{"error":"handler_panic","message":"Request handler failed","request_id":"%s"}`, requestID))
			}
		}()
		s.router.ServeFastHTTP(reqCtx)
	}()

	switch status := ctx.Response.StatusCode(); {
	case status >= 200 && status < 300:
		atomic.AddInt64(&s.successfulRequests, 1)
	case status >= 400 && status < 500:
		atomic.AddInt64(&s.clientErrors, 1)
	case status >= 500:
		atomic.AddInt64(&s.errorRequests, 1)
	}
}

// fasthttpLogger routes fasthttp's internal messages to core.Logger.
type fasthttpLogger struct {
	logger core.Logger
}

func (l fasthttpLogger) Printf(format string, args ...interface{}) {
	l.logger.Warnf("fasthttp: "+format, args...)
}
