package observability

import (
	"context"
	"fmt"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/kbukum/streamkit/component"
)

// Config configures the observability component. Disabled leaves the
// global providers untouched (noop).
type Config struct {
	Enabled        bool          `yaml:"enabled" mapstructure:"enabled"`
	ServiceName    string        `yaml:"service_name" mapstructure:"service_name"`
	ServiceVersion string        `yaml:"service_version" mapstructure:"service_version"`
	Environment    string        `yaml:"environment" mapstructure:"environment"`
	Endpoint       string        `yaml:"endpoint" mapstructure:"endpoint"`
	Insecure       bool          `yaml:"insecure" mapstructure:"insecure"`
	SampleRate     float64       `yaml:"sample_rate" mapstructure:"sample_rate"`
	Interval       time.Duration `yaml:"interval" mapstructure:"interval"`
}

// ApplyDefaults applies development defaults to unset fields.
func (c *Config) ApplyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "streamkit"
	}
	if c.ServiceVersion == "" {
		c.ServiceVersion = "1.0.0"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4318"
	}
	if c.SampleRate == 0 {
		c.SampleRate = 1.0
	}
	if c.Interval == 0 {
		c.Interval = 15 * time.Second
	}
}

// Component manages the tracer and meter providers as a lifecycle component
// for the component registry.
type Component struct {
	cfg Config
	tp  *sdktrace.TracerProvider
	mp  *sdkmetric.MeterProvider
}

// NewComponent creates an observability component with defaults applied.
func NewComponent(cfg Config) *Component {
	cfg.ApplyDefaults()
	return &Component{cfg: cfg}
}

// Name returns the component name.
func (c *Component) Name() string { return "observability" }

// Start initializes the tracer and meter providers when enabled.
func (c *Component) Start(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}

	tp, err := InitTracer(ctx, &TracerConfig{
		ServiceName:    c.cfg.ServiceName,
		ServiceVersion: c.cfg.ServiceVersion,
		Environment:    c.cfg.Environment,
		Endpoint:       c.cfg.Endpoint,
		Insecure:       c.cfg.Insecure,
		SampleRate:     c.cfg.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	c.tp = tp

	mp, err := InitMeter(ctx, &MeterConfig{
		ServiceName:    c.cfg.ServiceName,
		ServiceVersion: c.cfg.ServiceVersion,
		Environment:    c.cfg.Environment,
		Endpoint:       c.cfg.Endpoint,
		Insecure:       c.cfg.Insecure,
		Interval:       c.cfg.Interval,
	})
	if err != nil {
		c.tp.Shutdown(ctx)
		c.tp = nil
		return fmt.Errorf("init meter: %w", err)
	}
	c.mp = mp
	return nil
}

// Stop shuts down both providers, flushing pending spans and metrics.
func (c *Component) Stop(ctx context.Context) error {
	var errs []error
	if c.mp != nil {
		if err := c.mp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter shutdown: %w", err))
		}
		c.mp = nil
	}
	if c.tp != nil {
		if err := c.tp.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer shutdown: %w", err))
		}
		c.tp = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("observability shutdown: %v", errs)
	}
	return nil
}

// Health reports provider state. A disabled component is healthy.
func (c *Component) Health(ctx context.Context) component.Health {
	if !c.cfg.Enabled {
		return component.Health{Name: c.Name(), Status: component.StatusHealthy, Message: "disabled"}
	}
	if c.tp == nil || c.mp == nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: "providers not started"}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

// Describe reports the component for the registry's startup log.
func (c *Component) Describe() component.Description {
	details := c.cfg.Endpoint
	if !c.cfg.Enabled {
		details = "disabled"
	}
	return component.Description{Name: "OpenTelemetry", Type: "telemetry", Details: details}
}
