package llm

import "time"

// Config holds the chat completion client configuration.
type Config struct {
	URL     string        `env:"URL"`     // default: "https://aipipe.org/openrouter/v1/chat/completions"
	APIKey  string        `env:"API_KEY"` // required
	Model   string        `env:"MODEL"`   // default: "openai/gpt-4o-mini"
	Timeout time.Duration `env:"TIMEOUT"` // default: 2m
}

func (c *Config) url() string {
	u := c.URL
	if u == "" {
		u = "https://aipipe.org/openrouter/v1/chat/completions"
	}
	return u
}

func (c *Config) model() string {
	m := c.Model
	if m == "" {
		m = "openai/gpt-4o-mini"
	}
	return m
}

func (c *Config) timeout() time.Duration {
	t := c.Timeout
	if t == 0 {
		t = 2 * time.Minute
	}
	return t
}
