// Package githubcli manages GitHub repositories and Pages through the gh command-line tool.
package githubcli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/oauth2"

	"github.com/k11v/sitegen/internal/command"
)

// Config holds the gh configuration.
type Config struct {
	Path string // default: "gh"
	Host string // optional, for GitHub Enterprise Server
}

func (c *Config) path() string {
	p := c.Path
	if p == "" {
		p = "gh"
	}
	return p
}

// Client runs gh commands.
// When a token source is set, its token is passed to gh through GH_TOKEN.
// Otherwise gh uses its own stored credentials.
type Client struct {
	config      *Config            // required
	tokenSource oauth2.TokenSource // optional
	log         *slog.Logger
}

func NewClient(config *Config, tokenSource oauth2.TokenSource, log *slog.Logger) *Client {
	return &Client{
		config:      config,
		tokenSource: tokenSource,
		log:         log.With("component", "githubcli"),
	}
}

func (c *Client) run(ctx context.Context, args ...string) (string, error) {
	env := []string{"GH_PROMPT_DISABLED=1", "NO_COLOR=1"}
	if c.tokenSource != nil {
		token, err := c.tokenSource.Token()
		if err != nil {
			return "", fmt.Errorf("token: %w", err)
		}
		env = append(env, "GH_TOKEN="+token.AccessToken)
	}
	if c.config.Host != "" {
		env = append(env, "GH_HOST="+c.config.Host)
	}

	c.log.Debug("running gh", "args", args)
	return (&command.Runner{Env: env}).Run(ctx, c.config.path(), args...)
}

// RepositoryExists reports whether owner/name exists and is visible to the caller.
func (c *Client) RepositoryExists(ctx context.Context, owner, name string) (bool, error) {
	_, err := c.run(ctx, "repo", "view", owner+"/"+name, "--json", "name")
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("githubcli.Client: repo view: %w", err)
	}
	return true, nil
}

// CreateRepository creates the public repository owner/name.
func (c *Client) CreateRepository(ctx context.Context, owner, name string) error {
	if _, err := c.run(ctx, "repo", "create", owner+"/"+name, "--public"); err != nil {
		return fmt.Errorf("githubcli.Client: repo create: %w", err)
	}
	c.log.Info("created repository", "repo", owner+"/"+name)
	return nil
}

// DeleteRepository deletes owner/name. The token needs the delete_repo scope.
func (c *Client) DeleteRepository(ctx context.Context, owner, name string) error {
	if _, err := c.run(ctx, "repo", "delete", owner+"/"+name, "--yes"); err != nil {
		return fmt.Errorf("githubcli.Client: repo delete: %w", err)
	}
	c.log.Info("deleted repository", "repo", owner+"/"+name)
	return nil
}

// PagesEnabled reports whether owner/repo has a Pages site.
func (c *Client) PagesEnabled(ctx context.Context, owner, repo string) (bool, error) {
	_, err := c.run(ctx, "api", pagesEndpoint(owner, repo))
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("githubcli.Client: get pages: %w", err)
	}
	return true, nil
}

// EnablePages creates a Pages site for owner/repo built by workflow from branch and path.
func (c *Client) EnablePages(ctx context.Context, owner, repo, branch, path string) error {
	_, err := c.run(ctx, "api",
		"--method", "POST",
		pagesEndpoint(owner, repo),
		"-f", "build_type=workflow",
		"-f", "source[branch]="+branch,
		"-f", "source[path]="+path,
	)
	if err != nil {
		return fmt.Errorf("githubcli.Client: enable pages: %w", err)
	}
	return nil
}

func pagesEndpoint(owner, repo string) string {
	return "repos/" + owner + "/" + repo + "/pages"
}

// isNotFound reports whether gh failed because the resource doesn't exist.
func isNotFound(err error) bool {
	var commandErr *command.Error
	if !errors.As(err, &commandErr) {
		return false
	}
	out := commandErr.Stderr + commandErr.Stdout
	return strings.Contains(out, "Could not resolve to a Repository") ||
		strings.Contains(out, "HTTP 404") ||
		strings.Contains(out, "Not Found")
}
