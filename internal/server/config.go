package server

import (
	"time"
)

// Config holds the server configuration.
type Config struct {
	Host              string        `env:"HOST"`                // default: "127.0.0.1"
	Port              int           `env:"PORT"`                // default: 8080
	ReadHeaderTimeout time.Duration `env:"READ_HEADER_TIMEOUT"` // default: 10s
	WebhookPath       string        `env:"WEBHOOK_PATH"`        // default: "/api-endpoint"
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT"`    // default: 30s
	PipelineTimeout   time.Duration `env:"PIPELINE_TIMEOUT"`    // default: 30m, negative means none
}

// defaultWebhookPath is also the path the OpenAPI document describes.
const defaultWebhookPath = "/api-endpoint"

func (c *Config) host() string {
	h := c.Host
	if h == "" {
		h = "127.0.0.1"
	}
	return h
}

func (c *Config) port() int {
	p := c.Port
	if p == 0 {
		p = 8080
	}
	return p
}

func (c *Config) readHeaderTimeout() time.Duration {
	t := c.ReadHeaderTimeout
	if t == 0 {
		t = 10 * time.Second
	}
	return t
}

func (c *Config) webhookPath() string {
	p := c.WebhookPath
	if p == "" {
		p = defaultWebhookPath
	}
	return p
}

// ShutdownTimeoutOrDefault returns how long a graceful shutdown may take.
func (c *Config) ShutdownTimeoutOrDefault() time.Duration {
	t := c.ShutdownTimeout
	if t == 0 {
		t = 30 * time.Second
	}
	return t
}

func (c *Config) pipelineTimeout() time.Duration {
	t := c.PipelineTimeout
	if t == 0 {
		t = 30 * time.Minute
	}
	if t < 0 {
		t = 0
	}
	return t
}
