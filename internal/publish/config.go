package publish

import (
	"os"
	"strings"

	"github.com/k11v/sitegen/internal/site"
)

// Config holds the repository publisher configuration.
type Config struct {
	Owner       string   // required
	GitHubURL   string   // default: "https://github.com"
	Branch      string   // default: "main"
	WorkDir     string   // default: os.TempDir()
	Names       []string // default: site.DefaultNames
	AuthorName  string   // default: "sitegen[bot]"
	AuthorEmail string   // default: "sitegen-bot@users.noreply.github.com"
}

func (c *Config) githubURL() string {
	u := c.GitHubURL
	if u == "" {
		u = "https://github.com"
	}
	return strings.TrimSuffix(u, "/")
}

func (c *Config) branch() string {
	b := c.Branch
	if b == "" {
		b = "main"
	}
	return b
}

func (c *Config) workDir() string {
	d := c.WorkDir
	if d == "" {
		d = os.TempDir()
	}
	return d
}

func (c *Config) names() []string {
	n := c.Names
	if len(n) == 0 {
		n = site.DefaultNames
	}
	return n
}

func (c *Config) authorName() string {
	n := c.AuthorName
	if n == "" {
		n = "sitegen[bot]"
	}
	return n
}

func (c *Config) authorEmail() string {
	e := c.AuthorEmail
	if e == "" {
		e = "sitegen-bot@users.noreply.github.com"
	}
	return e
}

// RepoURL returns the web URL of the task's repository.
func (c *Config) RepoURL(task string) string {
	return c.githubURL() + "/" + c.Owner + "/" + task
}

// CloneURL returns the URL git clones and pushes the task's repository with.
func (c *Config) CloneURL(task string) string {
	return c.RepoURL(task) + ".git"
}

// PagesURL returns the URL the task's site is served at.
func (c *Config) PagesURL(task string) string {
	return "https://" + strings.ToLower(c.Owner) + ".github.io/" + task + "/"
}
