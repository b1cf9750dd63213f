package gitcli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"testing"

	"golang.org/x/oauth2"

	"github.com/k11v/sitegen/internal/command"
)

var commitHashRegexp = regexp.MustCompile(`^[0-9a-f]{40}$`)

func TestGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found")
	}
	ctx := context.Background()
	git := NewTestGit(t, nil)

	// Prepare a bare remote.
	remoteDir := filepath.Join(t.TempDir(), "remote.git")
	if _, err := (&command.Runner{}).Run(ctx, "git", "init", "--quiet", "--bare", "--initial-branch=main", remoteDir); err != nil {
		t.Fatalf("didn't want %q", err)
	}
	remoteURL := "file://" + remoteDir

	var firstHead string

	t.Run("inits, commits and pushes", func(t *testing.T) {
		dir := t.TempDir()
		if err := git.Init(ctx, dir, "main"); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if err := git.SetIdentity(ctx, dir, "Test Bot", "bot@example.com"); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		writeFile(t, filepath.Join(dir, "index.html"), "<h1>apples</h1>")

		changed, err := git.HasChanges(ctx, dir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if !changed {
			t.Fatal("want changes before the first commit")
		}

		if err = git.AddAll(ctx, dir); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if err = git.Commit(ctx, dir, "Initial commit"); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if err = git.Push(ctx, dir, remoteURL, "main"); err != nil {
			t.Fatalf("didn't want %q", err)
		}

		firstHead, err = git.Head(ctx, dir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if !commitHashRegexp.MatchString(firstHead) {
			t.Fatalf("got %q, want a commit hash", firstHead)
		}
	})

	t.Run("clones and detects changes", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "clone")
		if err := git.Clone(ctx, remoteURL, dir); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if err := git.SetIdentity(ctx, dir, "Test Bot", "bot@example.com"); err != nil {
			t.Fatalf("didn't want %q", err)
		}

		head, err := git.Head(ctx, dir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if head != firstHead {
			t.Fatalf("got %q, want %q", head, firstHead)
		}

		// Rewriting identical content is not a change.
		writeFile(t, filepath.Join(dir, "index.html"), "<h1>apples</h1>")
		if err = git.AddAll(ctx, dir); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		changed, err := git.HasChanges(ctx, dir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if changed {
			t.Fatal("didn't want changes")
		}

		writeFile(t, filepath.Join(dir, "index.html"), "<h1>bananas</h1>")
		if err = git.AddAll(ctx, dir); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		changed, err = git.HasChanges(ctx, dir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if !changed {
			t.Fatal("want changes")
		}

		if err = git.Commit(ctx, dir, "Apply updates"); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if err = git.Push(ctx, dir, remoteURL, "main"); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		head, err = git.Head(ctx, dir)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if head == firstHead {
			t.Fatalf("got %q, want a new commit", head)
		}
	})

	t.Run("returns an error when cloning a missing remote", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "clone")
		if err := git.Clone(ctx, "file://"+filepath.Join(t.TempDir(), "missing.git"), dir); err == nil {
			t.Fatal("want error")
		}
	})
}

func TestGitAuthentication(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found")
	}
	ctx := context.Background()
	git := NewTestGit(t, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret-token"}))

	// The extra header is harmless for local transports.
	remoteDir := filepath.Join(t.TempDir(), "remote.git")
	if _, err := (&command.Runner{}).Run(ctx, "git", "init", "--quiet", "--bare", "--initial-branch=main", remoteDir); err != nil {
		t.Fatalf("didn't want %q", err)
	}
	dir := filepath.Join(t.TempDir(), "clone")
	if err := git.Clone(ctx, "file://"+remoteDir, dir); err != nil {
		t.Fatalf("didn't want %q", err)
	}
}

func NewTestGit(tb testing.TB, tokenSource oauth2.TokenSource) *Git {
	tb.Helper()
	return New(tokenSource, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func writeFile(tb testing.TB, name, content string) {
	tb.Helper()
	if err := os.WriteFile(name, []byte(content), 0o666); err != nil {
		tb.Fatalf("didn't want %q", err)
	}
}
