package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/k11v/sitegen/internal/fault"
	"github.com/k11v/sitegen/internal/site"
)

const (
	initialCommitMessage = "Initial commit"
	updateCommitMessage  = "Apply updates from Round 2 brief"
)

// Git operates a local working copy.
type Git interface {
	Init(ctx context.Context, dir, branch string) error
	SetIdentity(ctx context.Context, dir, name, email string) error
	Clone(ctx context.Context, url, dir string) error
	AddAll(ctx context.Context, dir string) error
	HasChanges(ctx context.Context, dir string) (bool, error)
	Commit(ctx context.Context, dir, message string) error
	Push(ctx context.Context, dir, url, branch string) error
	Head(ctx context.Context, dir string) (string, error)
}

// Remotes manages repositories on the version control host.
type Remotes interface {
	RepositoryExists(ctx context.Context, owner, name string) (bool, error)
	CreateRepository(ctx context.Context, owner, name string) error
	DeleteRepository(ctx context.Context, owner, name string) error
}

// Generator turns a prompt into model output.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Result identifies what was published.
type Result struct {
	RepoURL   string
	CommitSHA string
	PagesURL  string
	Files     site.FileSet // generated files as pushed
}

// Publisher makes a task's files durable in a remote repository.
// Each call works in its own temporary directory that is removed on return.
// It doesn't guard against concurrent calls for the same task.
type Publisher struct {
	config    *Config   // required
	git       Git       // required
	remotes   Remotes   // required
	generator Generator // required by Update
	now       func() time.Time
	log       *slog.Logger
}

func NewPublisher(config *Config, git Git, remotes Remotes, generator Generator, log *slog.Logger) *Publisher {
	return &Publisher{
		config:    config,
		git:       git,
		remotes:   remotes,
		generator: generator,
		now:       time.Now,
		log:       log.With("component", "publisher"),
	}
}

// Names returns the file names a site of this publisher consists of.
func (p *Publisher) Names() []string {
	return p.config.names()
}

// PagesURL returns the URL the task's site is served at.
func (p *Publisher) PagesURL(task string) string {
	return p.config.PagesURL(task)
}

type CreateParams struct {
	Task   string
	Files  site.FileSet
	Brief  string
	Checks []string
}

// Create pushes files together with a license and a readme as the only commit
// of a new public repository named after the task.
// An existing repository with the same name is deleted first.
// Nothing is rolled back on failure.
func (p *Publisher) Create(ctx context.Context, params *CreateParams) (*Result, error) {
	log := p.log.With("task", params.Task)

	tempDir, cleanup, err := p.tempDir(params.Task)
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	defer cleanup()

	// Write files.
	repoDir := filepath.Join(tempDir, params.Task)
	if err = os.MkdirAll(repoDir, 0o777); err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	if err = writeFiles(repoDir, params.Files); err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	license, err := site.License(&site.LicenseParams{Year: p.now().Year(), Holder: p.config.Owner})
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: license: %w", err)
	}
	readme, err := site.Readme(&site.ReadmeParams{
		Task:     params.Task,
		Brief:    params.Brief,
		Checks:   params.Checks,
		Names:    params.Files.Names(),
		PagesURL: p.config.PagesURL(params.Task),
		Branch:   p.config.branch(),
	})
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: readme: %w", err)
	}
	err = writeFiles(repoDir, map[string]string{site.LicenseName: license, site.ReadmeName: readme})
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	log.Info("wrote files", "count", len(params.Files)+2)

	// Commit.
	if err = p.git.Init(ctx, repoDir, p.config.branch()); err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	if err = p.git.SetIdentity(ctx, repoDir, p.config.authorName(), p.config.authorEmail()); err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	if err = p.git.AddAll(ctx, repoDir); err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	if err = p.git.Commit(ctx, repoDir, initialCommitMessage); err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}

	// Replace remote repository.
	exists, err := p.remotes.RepositoryExists(ctx, p.config.Owner, params.Task)
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	if exists {
		log.Warn("deleting existing remote repository")
		if err = p.remotes.DeleteRepository(ctx, p.config.Owner, params.Task); err != nil {
			return nil, fmt.Errorf("publish.Publisher: create: %w", err)
		}
	}
	if err = p.remotes.CreateRepository(ctx, p.config.Owner, params.Task); err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	log.Info("created remote repository")

	// Push.
	if err = p.git.Push(ctx, repoDir, p.config.CloneURL(params.Task), p.config.branch()); err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	head, err := p.git.Head(ctx, repoDir)
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: create: %w", err)
	}
	log.Info("pushed", "commit_sha", head)

	return &Result{
		RepoURL:   p.config.RepoURL(params.Task),
		CommitSHA: head,
		PagesURL:  p.config.PagesURL(params.Task),
		Files:     params.Files,
	}, nil
}

type UpdateParams struct {
	Task   string
	Brief  string
	Checks []string
}

// Update clones the task's repository, asks the generator to revise its files
// and pushes the result. When the revised files are identical to the current ones,
// nothing is committed and the existing head is returned.
func (p *Publisher) Update(ctx context.Context, params *UpdateParams) (*Result, error) {
	log := p.log.With("task", params.Task)

	tempDir, cleanup, err := p.tempDir(params.Task)
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	defer cleanup()

	// Clone.
	repoDir := filepath.Join(tempDir, params.Task)
	if err = p.git.Clone(ctx, p.config.CloneURL(params.Task), repoDir); err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	if err = p.git.SetIdentity(ctx, repoDir, p.config.authorName(), p.config.authorEmail()); err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	log.Info("cloned remote repository")

	// Read current files.
	current := make(site.FileSet, len(p.config.names()))
	for _, name := range p.config.names() {
		content, err := os.ReadFile(filepath.Join(repoDir, name))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				err = fmt.Errorf("missing %q in repository", name)
			}
			return nil, fmt.Errorf("publish.Publisher: update: %w", err)
		}
		current[name] = string(content)
	}

	// Generate revised files.
	prompt, err := site.RevisePrompt(&site.RevisePromptParams{
		Brief:   params.Brief,
		Checks:  params.Checks,
		Names:   p.config.names(),
		Current: current,
	})
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: prompt: %w", err)
	}
	raw, err := p.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	files, err := site.Extract(raw)
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	if err = files.Check(p.config.names()); err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	if err = writeFiles(repoDir, files); err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	log.Info("wrote revised files", "count", len(files))

	// Commit and push if anything changed.
	if err = p.git.AddAll(ctx, repoDir); err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	changed, err := p.git.HasChanges(ctx, repoDir)
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	if changed {
		if err = p.git.Commit(ctx, repoDir, updateCommitMessage); err != nil {
			return nil, fmt.Errorf("publish.Publisher: update: %w", err)
		}
		if err = p.git.Push(ctx, repoDir, p.config.CloneURL(params.Task), p.config.branch()); err != nil {
			return nil, fmt.Errorf("publish.Publisher: update: %w", err)
		}
	} else {
		log.Info("no changes, skipping commit")
	}
	head, err := p.git.Head(ctx, repoDir)
	if err != nil {
		return nil, fmt.Errorf("publish.Publisher: update: %w", err)
	}
	log.Info("updated", "commit_sha", head, "changed", changed)

	return &Result{
		RepoURL:   p.config.RepoURL(params.Task),
		CommitSHA: head,
		PagesURL:  p.config.PagesURL(params.Task),
		Files:     files,
	}, nil
}

// tempDir creates a directory for a single call.
// The returned cleanup func removes it.
func (p *Publisher) tempDir(task string) (string, func(), error) {
	if err := os.MkdirAll(p.config.workDir(), 0o777); err != nil {
		return "", nil, err
	}
	dir, err := os.MkdirTemp(p.config.workDir(), task+"-")
	if err != nil {
		return "", nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			p.log.Error("didn't remove temporary directory", "dir", dir, "err", err)
		}
	}
	return dir, cleanup, nil
}

func writeFiles(dir string, files map[string]string) error {
	for name, content := range files {
		if !site.ValidName(name) && name != site.LicenseName && name != site.ReadmeName {
			return fmt.Errorf("%w: invalid file name %q", fault.ErrValidation, name)
		}
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o666); err != nil {
			return err
		}
	}
	return nil
}
