package config

import (
	"time"
)

// EnvPrefix prefixes every environment override, e.g. HOUSEBUS_SERVER_ADDR.
const EnvPrefix = "HOUSEBUS"

// AppConfig is the configuration of the housebus binary.
type AppConfig struct {
	Server  ServerConfig  `yaml:"server"`
	Bus     BusConfig     `yaml:"bus"`
	Spawner SpawnerConfig `yaml:"spawner"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ServerConfig configures the HTTP ingress.
type ServerConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr" validate:"required_if=Enabled true"`
	ReadTimeout  time.Duration `yaml:"read_timeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`
	MaxBodyBytes int           `yaml:"max_body_bytes" validate:"gte=0"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	Topic           string `yaml:"topic" validate:"required,max=255"`
	Workers         int    `yaml:"workers" validate:"gte=1,lte=1024"`
	QueueSize       int    `yaml:"queue_size" validate:"gte=1"`
	MailboxCapacity int    `yaml:"mailbox_capacity" validate:"gte=1"`
}

// SpawnerConfig configures the periodic house producer.
type SpawnerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval" validate:"required_if=Enabled true,gte=0"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// MetricsConfig configures the Prometheus endpoint served by the ingress.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path" validate:"omitempty,startswith=/"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name" validate:"required_if=Enabled true"`
	Exporter    string  `yaml:"exporter" validate:"omitempty,oneof=stdout zipkin none"`
	Endpoint    string  `yaml:"endpoint" validate:"omitempty,url"`
	SampleRatio float64 `yaml:"sample_ratio" validate:"gte=0,lte=1"`
}

// Default returns the configuration used when nothing is overridden.
func Default() AppConfig {
	return AppConfig{
		Server: ServerConfig{
			Enabled:      true,
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			MaxBodyBytes: 4 * 1024 * 1024,
		},
		Bus: BusConfig{
			Topic:           "shared",
			Workers:         10,
			QueueSize:       1000,
			MailboxCapacity: 100,
		},
		Spawner: SpawnerConfig{
			Enabled:  true,
			Interval: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Path:      "/metrics",
			Namespace: "housebus",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "housebus",
			Exporter:    "stdout",
			SampleRatio: 1,
		},
	}
}

// LoadApp returns Default overlaid with the file at path (optional) and the
// HOUSEBUS_* environment, then validated.
func LoadApp(path string) (AppConfig, error) {
	cfg := Default()
	if err := LoadWithEnv(path, EnvPrefix, &cfg); err != nil {
		return AppConfig{}, err
	}
	if err := Validate(&cfg, StructTags()); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}
