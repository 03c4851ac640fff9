package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fluxorio/housebus/pkg/config"
	"github.com/fluxorio/housebus/pkg/core"
	"github.com/fluxorio/housebus/pkg/observability/otel"
	"github.com/fluxorio/housebus/pkg/observability/prometheus"
	"github.com/fluxorio/housebus/pkg/schema"
	"github.com/fluxorio/housebus/pkg/verticles"
	"github.com/fluxorio/housebus/pkg/web"
)

type application struct {
	cfg     config.AppConfig
	logger  core.Logger
	vertx   core.Vertx
	metrics *prometheus.Metrics
	tracing bool
	webAPI  *verticles.WebAPI
}

func newApplication(ctx context.Context, cfg config.AppConfig, logger core.Logger) (*application, error) {
	app := &application{cfg: cfg, logger: logger}

	if cfg.Tracing.Enabled {
		err := otel.Initialize(ctx, otel.Config{
			ServiceName: cfg.Tracing.ServiceName,
			Exporter:    cfg.Tracing.Exporter,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRate:  cfg.Tracing.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("init tracing: %w", err)
		}
		app.tracing = true
		logger.Infof("OpenTelemetry tracing enabled (exporter=%s)", cfg.Tracing.Exporter)
	}

	busOpts := core.EventBusOptions{
		Workers:         cfg.Bus.Workers,
		QueueSize:       cfg.Bus.QueueSize,
		MailboxCapacity: cfg.Bus.MailboxCapacity,
		Logger:          logger,
	}
	if cfg.Metrics.Enabled {
		app.metrics = prometheus.NewMetrics(prometheus.Options{Namespace: cfg.Metrics.Namespace})
		busOpts.Observer = app.metrics
	}

	vertx, err := core.NewVertxWithOptions(ctx, core.VertxOptions{EventBus: busOpts, Logger: logger})
	if err != nil {
		app.shutdownTracing()
		return nil, err
	}
	app.vertx = vertx
	return app, nil
}

// schemaObserver keeps a nil *Metrics from turning into a non-nil interface.
func (a *application) schemaObserver() schema.Observer {
	if a.metrics == nil {
		return nil
	}
	return a.metrics
}

// deploy starts consumers before producers so the first spawn is seen.
func (a *application) deploy() error {
	topic := a.cfg.Bus.Topic
	deployables := []core.NamedVerticle{
		verticles.NewHouseConsumer(topic, a.schemaObserver()),
		verticles.NewRoomConsumer(topic, a.schemaObserver()),
	}
	if a.cfg.Spawner.Enabled {
		deployables = append(deployables, verticles.NewHouseSpawner(topic, a.cfg.Spawner.Interval))
	}
	if a.cfg.Server.Enabled {
		a.webAPI = verticles.NewWebAPI(verticles.WebAPIConfig{
			Topic:       topic,
			Server:      a.serverConfig(),
			Metrics:     a.metrics,
			MetricsPath: a.cfg.Metrics.Path,
			Tracing:     a.tracing,
		})
		deployables = append(deployables, a.webAPI)
	}

	for _, v := range deployables {
		id, err := a.vertx.DeployVerticle(v)
		if err != nil {
			return fmt.Errorf("deploy %s: %w", v.Name(), err)
		}
		a.logger.Infof("Deployed %s (%s)", v.Name(), id)
	}
	return nil
}

func (a *application) serverConfig() web.FastHTTPServerConfig {
	sc := web.DefaultFastHTTPServerConfig(a.cfg.Server.Addr)
	if a.cfg.Server.ReadTimeout > 0 {
		sc.ReadTimeout = a.cfg.Server.ReadTimeout
	}
	if a.cfg.Server.WriteTimeout > 0 {
		sc.WriteTimeout = a.cfg.Server.WriteTimeout
	}
	if a.cfg.Server.MaxBodyBytes > 0 {
		sc.MaxRequestBodySize = a.cfg.Server.MaxBodyBytes
	}
	return sc
}

// shutdown undeploys everything, then flushes traces.
func (a *application) shutdown() {
	if err := a.vertx.Close(); err != nil {
		a.logger.Warnf("close runtime: %v", err)
	}
	a.shutdownTracing()
}

func (a *application) shutdownTracing() {
	if !a.tracing {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := otel.Shutdown(ctx); err != nil {
		a.logger.Warnf("flush traces: %v", err)
	}
}
