// Command housebus runs the house/room event bus demo: a periodic house
// spawner and an HTTP ingress publishing on one topic, and one consumer per
// payload shape.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fluxorio/housebus/pkg/config"
	"github.com/fluxorio/housebus/pkg/core"
)

func main() {
	configPath := flag.String("config", "", "YAML or JSON config file; defaults plus HOUSEBUS_* env when empty")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := run(*configPath, *envFile); err != nil {
		log.Fatalf("housebus: %v", err)
	}
}

func run(configPath, envFile string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg, err := config.LoadApp(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := core.NewLogger(core.LoggerOptions{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if err := app.deploy(); err != nil {
		app.shutdown()
		return err
	}

	logger.Infof("housebus running on topic %q with %d verticles", cfg.Bus.Topic, app.vertx.DeploymentCount())
	<-ctx.Done()
	logger.Info("Shutting down")
	app.shutdown()
	return nil
}
