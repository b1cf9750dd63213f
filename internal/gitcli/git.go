// Package gitcli operates local working copies through the git command-line tool.
package gitcli

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/k11v/sitegen/internal/command"
)

// Git runs git commands.
// When a token source is set, clone and push authenticate over HTTPS with its token.
type Git struct {
	tokenSource oauth2.TokenSource // optional
	log         *slog.Logger
}

func New(tokenSource oauth2.TokenSource, log *slog.Logger) *Git {
	return &Git{tokenSource: tokenSource, log: log.With("component", "git")}
}

// configEnv passes config through the environment so tokens stay out of argv.
func configEnv(pairs ...[2]string) []string {
	env := []string{"GIT_CONFIG_COUNT=" + strconv.Itoa(len(pairs))}
	for i, p := range pairs {
		env = append(env,
			fmt.Sprintf("GIT_CONFIG_KEY_%d=%s", i, p[0]),
			fmt.Sprintf("GIT_CONFIG_VALUE_%d=%s", i, p[1]),
		)
	}
	return env
}

func (g *Git) run(ctx context.Context, dir string, authenticated bool, args ...string) (string, error) {
	config := [][2]string{{"commit.gpgsign", "false"}}
	if authenticated && g.tokenSource != nil {
		token, err := g.tokenSource.Token()
		if err != nil {
			return "", fmt.Errorf("token: %w", err)
		}
		basic := base64.StdEncoding.EncodeToString([]byte("x-access-token:" + token.AccessToken))
		config = append(config, [2]string{"http.extraHeader", "Authorization: Basic " + basic})
	}

	r := &command.Runner{
		Dir: dir,
		Env: append(configEnv(config...), "GIT_TERMINAL_PROMPT=0"),
	}
	g.log.Debug("running git", "dir", dir, "args", args)
	return r.Run(ctx, "git", args...)
}

// Init creates a repository in dir with branch as the initial branch.
func (g *Git) Init(ctx context.Context, dir, branch string) error {
	if _, err := g.run(ctx, dir, false, "init", "--quiet", "--initial-branch="+branch); err != nil {
		return fmt.Errorf("gitcli.Git: init: %w", err)
	}
	return nil
}

// SetIdentity sets the committer identity of the repository in dir.
func (g *Git) SetIdentity(ctx context.Context, dir, name, email string) error {
	if _, err := g.run(ctx, dir, false, "config", "user.name", name); err != nil {
		return fmt.Errorf("gitcli.Git: set identity: %w", err)
	}
	if _, err := g.run(ctx, dir, false, "config", "user.email", email); err != nil {
		return fmt.Errorf("gitcli.Git: set identity: %w", err)
	}
	return nil
}

// Clone clones url into dir. Dir must not exist or be empty.
func (g *Git) Clone(ctx context.Context, url, dir string) error {
	if _, err := g.run(ctx, "", true, "clone", "--quiet", url, dir); err != nil {
		return fmt.Errorf("gitcli.Git: clone: %w", err)
	}
	return nil
}

// AddAll stages every change in the working tree.
func (g *Git) AddAll(ctx context.Context, dir string) error {
	if _, err := g.run(ctx, dir, false, "add", "--all"); err != nil {
		return fmt.Errorf("gitcli.Git: add: %w", err)
	}
	return nil
}

// HasChanges reports whether the working tree or the index differ from HEAD.
func (g *Git) HasChanges(ctx context.Context, dir string) (bool, error) {
	out, err := g.run(ctx, dir, false, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("gitcli.Git: status: %w", err)
	}
	return out != "", nil
}

func (g *Git) Commit(ctx context.Context, dir, message string) error {
	if _, err := g.run(ctx, dir, false, "commit", "--quiet", "--message", message); err != nil {
		return fmt.Errorf("gitcli.Git: commit: %w", err)
	}
	return nil
}

// Push pushes HEAD to branch of url.
func (g *Git) Push(ctx context.Context, dir, url, branch string) error {
	if _, err := g.run(ctx, dir, true, "push", "--quiet", url, "HEAD:refs/heads/"+branch); err != nil {
		return fmt.Errorf("gitcli.Git: push: %w", err)
	}
	return nil
}

// Head returns the commit hash HEAD points to.
func (g *Git) Head(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, dir, false, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("gitcli.Git: rev-parse: %w", err)
	}
	return out, nil
}
