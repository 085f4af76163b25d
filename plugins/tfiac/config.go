package tfiac

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joshp123/gohome-tfiac/internal/config"
)

// Config defines runtime configuration shared by every TFIAC client.
type Config struct {
	Port           int
	RequestTimeout time.Duration
	// RateLimit is requests per minute per unit; 0 means unlimited.
	RateLimit int
}

// ConfigFromYAML validates the tfiac config section.
func ConfigFromYAML(cfg *config.TFIACConfig) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("tfiac config is required")
	}

	out := Config{Port: cfg.Port, RequestTimeout: cfg.RequestTimeout, RateLimit: cfg.MaxRequestsPerMinute}
	switch {
	case out.RateLimit == 0:
		out.RateLimit = DefaultRateLimit
	case out.RateLimit < 0:
		out.RateLimit = 0
	}
	if out.Port == 0 {
		out.Port = DefaultPort
	}
	if out.RequestTimeout == 0 {
		out.RequestTimeout = DefaultRequestTimeout
	}
	if out.Port < 1 || out.Port > 65535 {
		return Config{}, fmt.Errorf("tfiac port %d out of range", out.Port)
	}
	if out.RequestTimeout < 0 {
		return Config{}, fmt.Errorf("tfiac request_timeout must be positive")
	}
	return out, nil
}

// DeviceFactory builds a Device for a host.
type DeviceFactory func(host string) (Device, error)

// ClientFactory returns a DeviceFactory that builds UDP clients.
func (c Config) ClientFactory(logger *slog.Logger) DeviceFactory {
	return func(host string) (Device, error) {
		return NewClient(host,
			WithPort(c.Port),
			WithRequestTimeout(c.RequestTimeout),
			WithRateLimit(c.RateLimit),
			WithLogger(logger),
		)
	}
}
