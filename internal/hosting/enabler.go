// Package hosting turns on static hosting for published repositories.
package hosting

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// alreadyEnabledText is what the host reports when enabling Pages twice.
const alreadyEnabledText = "is already enabled"

// Client talks to the Pages API of the version control host.
type Client interface {
	PagesEnabled(ctx context.Context, owner, repo string) (bool, error)
	EnablePages(ctx context.Context, owner, repo, branch, path string) error
}

// Config holds the enabler configuration.
type Config struct {
	Owner            string        // required
	Branch           string        // default: "main"
	PropagationDelay time.Duration // default: 5s, negative disables waiting
}

func (c *Config) branch() string {
	b := c.Branch
	if b == "" {
		b = "main"
	}
	return b
}

func (c *Config) propagationDelay() time.Duration {
	d := c.PropagationDelay
	if d == 0 {
		d = 5 * time.Second
	}
	if d < 0 {
		d = 0
	}
	return d
}

type Enabler struct {
	config *Config // required
	client Client  // required
	log    *slog.Logger
}

func NewEnabler(config *Config, client Client, log *slog.Logger) *Enabler {
	return &Enabler{
		config: config,
		client: client,
		log:    log.With("component", "enabler"),
	}
}

// Enable makes the task's repository served from the root of the configured branch.
// Calling it for a repository that is already served is not an error.
// After turning Pages on it waits for the configuration to propagate.
func (e *Enabler) Enable(ctx context.Context, task string) error {
	log := e.log.With("task", task)

	enabled, err := e.client.PagesEnabled(ctx, e.config.Owner, task)
	if err != nil {
		log.Warn("didn't get pages status, enabling anyway", "err", err)
	} else if enabled {
		log.Info("pages already enabled")
		return nil
	}

	err = e.client.EnablePages(ctx, e.config.Owner, task, e.config.branch(), "/")
	if err != nil {
		if !strings.Contains(err.Error(), alreadyEnabledText) {
			return fmt.Errorf("hosting.Enabler: %w", err)
		}
		log.Info("pages already enabled")
	} else {
		log.Info("enabled pages", "branch", e.config.branch())
	}

	if err = sleep(ctx, e.config.propagationDelay()); err != nil {
		return fmt.Errorf("hosting.Enabler: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
