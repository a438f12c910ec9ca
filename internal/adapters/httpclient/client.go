// Package httpclient provides a shared HTTP client factory with common
// timeout presets.
package httpclient

import (
	"net/http"
	"time"
)

const (
	TimeoutShort  = 10 * time.Second
	TimeoutMedium = 30 * time.Second
)

type Config struct {
	Timeout   time.Duration
	Transport http.RoundTripper
}

type Option func(*Config)

func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.Timeout = d
	}
}

// WithTransport sets a custom transport (e.g., for OTEL tracing).
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Config) {
		c.Transport = rt
	}
}

func New(opts ...Option) *http.Client {
	cfg := &Config{
		Timeout:   TimeoutMedium,
		Transport: http.DefaultTransport,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: cfg.Transport,
	}
}

// NewShort returns a client suited to health probes.
func NewShort(opts ...Option) *http.Client {
	return New(append([]Option{WithTimeout(TimeoutShort)}, opts...)...)
}

// NewStreaming returns a client with no overall timeout, for long-lived
// streaming responses. Cancellation is the request context's job.
func NewStreaming(opts ...Option) *http.Client {
	return New(append([]Option{WithTimeout(0)}, opts...)...)
}
