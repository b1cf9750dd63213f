// Package notify reports finished deployments to evaluation endpoints.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/k11v/sitegen/internal/fault"
)

// Payload is the body sent to an evaluation endpoint.
type Payload struct {
	Email     string `json:"email"`
	Task      string `json:"task"`
	Round     int    `json:"round"`
	Nonce     string `json:"nonce"`
	RepoURL   string `json:"repo_url"`
	CommitSHA string `json:"commit_sha"`
	PagesURL  string `json:"pages_url"`
}

// Config holds the notifier configuration.
type Config struct {
	Timeout time.Duration `env:"TIMEOUT"` // default: 30s
}

func (c *Config) timeout() time.Duration {
	t := c.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return t
}

type Notifier struct {
	httpClient *http.Client
	log        *slog.Logger
}

func NewNotifier(config *Config, log *slog.Logger) *Notifier {
	return &Notifier{
		httpClient: &http.Client{Timeout: config.timeout()},
		log:        log.With("component", "notifier"),
	}
}

// Notify posts payload as JSON to url. Only a 2xx response counts as delivered.
func (n *Notifier) Notify(ctx context.Context, url string, payload *Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("notify.Notifier: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify.Notifier: %w: %w", fault.ErrValidation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("notify.Notifier: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("notify.Notifier: %w: status %d: %s", fault.ErrUpstreamCallFailed, resp.StatusCode, bytes.TrimSpace(excerpt))
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	n.log.Info("notified", "task", payload.Task, "round", payload.Round, "status", resp.StatusCode)
	return nil
}
