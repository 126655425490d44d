package tracing

import "os"

// Config selects the OTLP exporter. Tracing is off unless an endpoint is
// configured here or through OTEL_EXPORTER_OTLP_ENDPOINT.
type Config struct {
	Endpoint    string  `mapstructure:"endpoint"`
	Protocol    string  `mapstructure:"protocol"` // "grpc" (default) or "http"
	ServiceName string  `mapstructure:"service_name"`
	SampleRate  float64 `mapstructure:"sample_rate"` // fraction of iterations
	Insecure    bool    `mapstructure:"insecure"`
	// Propagate controls W3C header injection; nil means on when enabled.
	Propagate *bool `mapstructure:"propagate"`
}

// Enabled reports whether an exporter endpoint is available.
func (c Config) Enabled() bool {
	return c.endpoint() != ""
}

// ShouldPropagate reports whether trace headers are injected into requests.
func (c Config) ShouldPropagate() bool {
	if !c.Enabled() {
		return false
	}
	return c.Propagate == nil || *c.Propagate
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
}

func (c Config) serviceName() string {
	if c.ServiceName != "" {
		return c.ServiceName
	}
	if name := os.Getenv("OTEL_SERVICE_NAME"); name != "" {
		return name
	}
	return defaultServiceName
}
