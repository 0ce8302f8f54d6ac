// Package otel sets up OpenTelemetry tracing for stonix runs. Tracing is off
// unless enabled in the configuration file.
package otel

import (
	"errors"
)

// OTLP exporter protocols.
const (
	ProtocolHTTP = "otlphttp"
	ProtocolGRPC = "otlpgrpc"
)

// DefaultServiceName is the service.name resource attribute.
const DefaultServiceName = "stonix"

// Config holds the tracing options.
type Config struct {
	Enabled bool `yaml:"enabled"`

	// Endpoint of the collector, e.g. "http://localhost:4318" or
	// "localhost:4317". Empty uses OTEL_EXPORTER_OTLP_ENDPOINT or the
	// protocol default.
	Endpoint string `yaml:"endpoint"`

	// Protocol is otlphttp or otlpgrpc.
	// Default: otlphttp
	Protocol string `yaml:"protocol"`

	// Insecure disables TLS towards the collector.
	Insecure bool `yaml:"insecure"`

	// Default: stonix
	ServiceName string `yaml:"service_name"`

	// SampleRatio is the fraction of runs traced, 0 to 1.
	// Default: 1
	SampleRatio *float64 `yaml:"sample_ratio"`
}

// ApplyDefaults sets default values for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Protocol == "" {
		c.Protocol = ProtocolHTTP
	}
	if c.ServiceName == "" {
		c.ServiceName = DefaultServiceName
	}
	if c.SampleRatio == nil {
		one := 1.0
		c.SampleRatio = &one
	}
}

// Ratio returns the sample ratio, 1 when unset.
func (c Config) Ratio() float64 {
	if c.SampleRatio == nil {
		return 1
	}
	return *c.SampleRatio
}

// Validate checks the configuration. A disabled configuration is always valid.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Protocol {
	case ProtocolHTTP, ProtocolGRPC:
	default:
		return errors.New("otel: protocol must be 'otlphttp' or 'otlpgrpc'")
	}
	if r := c.Ratio(); r < 0 || r > 1 {
		return errors.New("otel: sample_ratio must be between 0 and 1")
	}
	return nil
}
