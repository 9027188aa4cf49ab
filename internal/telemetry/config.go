package telemetry

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/fyrsmithlabs/chatindex/internal/config"
)

// Config is the telemetry section of config.yaml.
type Config struct {
	Enabled        bool   `koanf:"enabled"`
	Endpoint       string `koanf:"endpoint"`
	Protocol       string `koanf:"protocol"` // "grpc" or "http/protobuf"
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
	Insecure       bool   `koanf:"insecure"` // plaintext, local endpoints only
	TLSSkipVerify  bool   `koanf:"tls_skip_verify"`

	Sampling SamplingConfig `koanf:"sampling"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Shutdown ShutdownConfig `koanf:"shutdown"`
}

type SamplingConfig struct {
	Rate float64 `koanf:"rate"` // fraction of root traces kept
}

type MetricsConfig struct {
	Enabled        bool            `koanf:"enabled"`
	ExportInterval config.Duration `koanf:"export_interval"`
}

// ShutdownConfig bounds the final flush when a command exits.
type ShutdownConfig struct {
	Timeout config.Duration `koanf:"timeout"`
}

// NewDefaultConfig returns telemetry defaults. Export is disabled until a
// collector is configured (telemetry.enabled or CHATINDEX_TELEMETRY_ENABLED).
func NewDefaultConfig() *Config {
	return &Config{
		Endpoint:       "localhost:4317",
		Protocol:       "grpc",
		ServiceName:    "chatindex",
		ServiceVersion: "dev",
		Insecure:       true,
		Sampling:       SamplingConfig{Rate: 1},
		Metrics: MetricsConfig{
			Enabled:        true,
			ExportInterval: config.Duration(15 * time.Second),
		},
		Shutdown: ShutdownConfig{Timeout: config.Duration(5 * time.Second)},
	}
}

// Validate is a no-op for disabled telemetry; otherwise it reports the
// first unusable setting.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch {
	case c.Endpoint == "":
		return errors.New("endpoint is required when telemetry is enabled")
	case c.ServiceName == "":
		return errors.New("service_name is required when telemetry is enabled")
	case c.ServiceVersion == "":
		return errors.New("service_version is required when telemetry is enabled")
	case c.Protocol != "" && c.Protocol != "grpc" && c.Protocol != protocolHTTP:
		return fmt.Errorf("protocol %q: want grpc or %s", c.Protocol, protocolHTTP)
	case c.Insecure && !c.isLocalEndpoint():
		return fmt.Errorf("insecure connections are only allowed to loopback collectors, not %s; set insecure: false", c.Endpoint)
	case c.Sampling.Rate < 0 || c.Sampling.Rate > 1:
		return fmt.Errorf("sampling.rate %g is outside [0, 1]", c.Sampling.Rate)
	case c.Metrics.Enabled && c.Metrics.ExportInterval.Duration() <= 0:
		return errors.New("metrics.export_interval must be positive")
	case c.Shutdown.Timeout.Duration() <= 0:
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}

// isLocalEndpoint reports whether the endpoint host is loopback.
func (c *Config) isLocalEndpoint() bool {
	hostport := stripScheme(c.Endpoint)
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		host = strings.Trim(hostport, "[]")
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
