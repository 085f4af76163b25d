package tfiac

import (
	"errors"
	"log/slog"
	"time"
)

const (
	DefaultPort           = 7777
	DefaultRequestTimeout = 5 * time.Second
	DefaultRateLimit      = 60
)

// ClientOption configures a Client.
type ClientOption func(*clientConfig) error

type clientConfig struct {
	port           int
	requestTimeout time.Duration
	perMinute      int
	logger         *slog.Logger
}

func defaultConfig() *clientConfig {
	return &clientConfig{
		port:           DefaultPort,
		requestTimeout: DefaultRequestTimeout,
		perMinute:      DefaultRateLimit,
	}
}

// WithPort sets the UDP port of the unit. Default is 7777.
func WithPort(port int) ClientOption {
	return func(c *clientConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		c.port = port
		return nil
	}
}

// WithRequestTimeout bounds each request/response exchange. A caller
// deadline that expires sooner still applies. Default is 5 seconds.
func WithRequestTimeout(d time.Duration) ClientOption {
	return func(c *clientConfig) error {
		if d <= 0 {
			return errors.New("request timeout must be positive")
		}
		c.requestTimeout = d
		return nil
	}
}

// WithRateLimit caps exchanges with the unit per minute. Zero disables
// the limit. Default is 60.
func WithRateLimit(perMinute int) ClientOption {
	return func(c *clientConfig) error {
		if perMinute < 0 {
			return errors.New("rate limit must not be negative")
		}
		c.perMinute = perMinute
		return nil
	}
}

// WithLogger sets a structured logger for debug logging.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *clientConfig) error {
		c.logger = logger
		return nil
	}
}
