// Package githubapi manages GitHub repositories and Pages through the REST API.
package githubapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"

	"github.com/k11v/sitegen/internal/fault"
)

// Config holds the API client configuration.
type Config struct {
	BaseURL string // default: "https://api.github.com/"
}

type Client struct {
	client *github.Client
	log    *slog.Logger
}

// NewClient returns a client authenticating every request with tokenSource.
// It returns an error if the base URL is not a valid URL.
func NewClient(ctx context.Context, config *Config, tokenSource oauth2.TokenSource, log *slog.Logger) (*Client, error) {
	var httpClient *http.Client
	if tokenSource != nil {
		httpClient = oauth2.NewClient(ctx, tokenSource)
	}
	client := github.NewClient(httpClient)

	if config.BaseURL != "" {
		u, err := url.Parse(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("githubapi.NewClient: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}

	return &Client{client: client, log: log.With("component", "githubapi")}, nil
}

// RepositoryExists reports whether owner/name exists and is visible to the caller.
func (c *Client) RepositoryExists(ctx context.Context, owner, name string) (bool, error) {
	_, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("githubapi.Client: get repository: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	return true, nil
}

// CreateRepository creates the public repository owner/name.
// Owner may be the authenticated user or an organization.
func (c *Client) CreateRepository(ctx context.Context, owner, name string) error {
	org, err := c.organization(ctx, owner)
	if err != nil {
		return fmt.Errorf("githubapi.Client: create repository: %w", err)
	}

	_, _, err = c.client.Repositories.Create(ctx, org, &github.Repository{
		Name:    github.String(name),
		Private: github.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("githubapi.Client: create repository: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	c.log.Info("created repository", "repo", owner+"/"+name)
	return nil
}

// DeleteRepository deletes owner/name. The token needs the delete_repo scope.
func (c *Client) DeleteRepository(ctx context.Context, owner, name string) error {
	if _, err := c.client.Repositories.Delete(ctx, owner, name); err != nil {
		return fmt.Errorf("githubapi.Client: delete repository: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	c.log.Info("deleted repository", "repo", owner+"/"+name)
	return nil
}

// PagesEnabled reports whether owner/repo has a Pages site.
func (c *Client) PagesEnabled(ctx context.Context, owner, repo string) (bool, error) {
	_, _, err := c.client.Repositories.GetPagesInfo(ctx, owner, repo)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("githubapi.Client: get pages: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	return true, nil
}

// EnablePages creates a Pages site for owner/repo built by workflow from branch and path.
func (c *Client) EnablePages(ctx context.Context, owner, repo, branch, path string) error {
	_, _, err := c.client.Repositories.EnablePages(ctx, owner, repo, &github.Pages{
		BuildType: github.String("workflow"),
		Source: &github.PagesSource{
			Branch: github.String(branch),
			Path:   github.String(path),
		},
	})
	if err != nil {
		return fmt.Errorf("githubapi.Client: enable pages: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	return nil
}

// organization returns owner if it is an organization and "" if it is a user.
func (c *Client) organization(ctx context.Context, owner string) (string, error) {
	user, _, err := c.client.Users.Get(ctx, owner)
	if err != nil {
		return "", fmt.Errorf("get owner: %w: %w", fault.ErrUpstreamCallFailed, err)
	}
	if user.GetType() == "Organization" {
		return owner, nil
	}
	return "", nil
}

func isNotFound(err error) bool {
	var errResp *github.ErrorResponse
	return errors.As(err, &errResp) && errResp.Response != nil && errResp.Response.StatusCode == http.StatusNotFound
}
