package verticles

import (
	"bytes"
	"context"
	"net"
	"time"

	"github.com/valyala/fasthttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/fluxorio/housebus/pkg/core"
	metrics "github.com/fluxorio/housebus/pkg/observability/prometheus"
	tracing "github.com/fluxorio/housebus/pkg/observability/otel"
	"github.com/fluxorio/housebus/pkg/web"
	"github.com/fluxorio/housebus/pkg/web/middleware"
)

const shutdownTimeout = 5 * time.Second

// WebAPIConfig configures the HTTP ingress.
type WebAPIConfig struct {
	Topic  string
	Server web.FastHTTPServerConfig

	// Metrics enables request metrics and GET MetricsPath when non-nil.
	Metrics     *metrics.Metrics
	MetricsPath string

	// Tracing adds a server span per request and forwards its context in
	// the published message headers.
	Tracing bool

	// Listener, when set, is served instead of binding Server.Addr.
	Listener net.Listener
}

// WebAPI republishes JSON objects posted to / on the shared topic.
type WebAPI struct {
	*core.BaseVerticle
	config WebAPIConfig
	topic  string
	server *web.FastHTTPServer
}

// NewWebAPI creates the ingress verticle. The server is built on Start.
func NewWebAPI(config WebAPIConfig) *WebAPI {
	if config.Server.Addr == "" {
		config.Server = web.DefaultFastHTTPServerConfig(":8080")
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	return &WebAPI{
		BaseVerticle: core.NewBaseVerticle("web-api"),
		config:       config,
		topic:        topicOrDefault(config.Topic),
	}
}

// Start binds the server and returns once it is accepting connections.
func (v *WebAPI) Start(ctx core.FluxorContext) error {
	if err := v.BaseVerticle.Start(ctx); err != nil {
		return err
	}

	logger := v.Logger()
	server := web.NewFastHTTPServer(v.config.Server, logger)
	router := server.Router()
	router.Use(middleware.Recovery(middleware.RecoveryConfig{Logger: logger}))
	if v.config.Tracing {
		router.Use(tracing.HTTPMiddleware())
	}
	if v.config.Metrics != nil {
		router.Use(v.config.Metrics.Middleware())
	}
	router.Use(middleware.AccessLog(logger))

	router.POST("/", v.handlePost)
	router.GET("/healthz", func(c *web.FastRequestContext) error {
		return c.Text(fasthttp.StatusOK, "ok")
	})
	router.GET("/status", v.handleStatus)
	if v.config.Metrics != nil {
		v.config.Metrics.Register(router, v.config.MetricsPath)
	}

	v.server = server
	var err error
	if v.config.Listener != nil {
		err = server.StartOn(v.config.Listener)
	} else {
		err = server.Start()
	}
	if err != nil {
		v.server = nil
		return err
	}

	logger.Info("WebAPIVerticle started")
	logger.Infof("Listening on %s", server.Addr())
	return nil
}

// Stop shuts the server down, then releases the verticle.
func (v *WebAPI) Stop(ctx core.FluxorContext) error {
	if v.server != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := v.server.Stop(stopCtx); err != nil {
			v.Logger().Warnf("web api shutdown: %v", err)
		}
	}
	return v.BaseVerticle.Stop(ctx)
}

// Server returns the running server, nil before Start.
func (v *WebAPI) Server() *web.FastHTTPServer {
	return v.server
}

func (v *WebAPI) handlePost(c *web.FastRequestContext) error {
	body := c.Body()
	if !isJSONObject(body) {
		return c.Text(fasthttp.StatusBadRequest, "body must be a JSON object")
	}

	v.Logger().WithField("request_id", c.RequestID()).Infof("Received POST message: %s", body)

	headers := map[string]string{core.HeaderRequestID: c.RequestID()}
	otel.GetTextMapPropagator().Inject(c.Context(), propagation.MapCarrier(headers))

	if err := v.PublishWithOptions(v.topic, body, core.DeliveryOptions{Headers: headers}); err != nil {
		return err
	}
	return c.Text(fasthttp.StatusOK, "ok")
}

// handleStatus reports the topic, deployment count and request counters.
func (v *WebAPI) handleStatus(c *web.FastRequestContext) error {
	status := map[string]interface{}{
		"topic":    v.topic,
		"requests": v.server.Metrics(),
	}
	if vx := v.Context().Vertx(); vx != nil {
		status["deployments"] = vx.DeploymentCount()
	}
	return c.JSON(fasthttp.StatusOK, status)
}

func isJSONObject(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '{' && core.JSONValid(body)
}
