// Package publishtest provides in-memory doubles for the collaborators of publish.Publisher.
package publishtest

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Call names recorded by the doubles.
const (
	CallInit             = "Init"
	CallSetIdentity      = "SetIdentity"
	CallClone            = "Clone"
	CallAddAll           = "AddAll"
	CallHasChanges       = "HasChanges"
	CallCommit           = "Commit"
	CallPush             = "Push"
	CallHead             = "Head"
	CallRepositoryExists = "RepositoryExists"
	CallCreateRepository = "CreateRepository"
	CallDeleteRepository = "DeleteRepository"
	CallGenerate         = "Generate"
)

// Commit is a commit kept by Git.
type Commit struct {
	SHA   string
	Files map[string]string
}

// Git is a git double working on real directories.
// Remote histories are kept in memory by URL.
type Git struct {
	mu      sync.Mutex
	counter int
	heads   map[string]*Commit           // by dir
	staged  map[string]map[string]string // by dir

	Histories map[string][]Commit // by URL, last is the branch head
	PushErr   error
	Calls     []string
}

func (g *Git) appendCalls(c ...string) {
	g.Calls = append(g.Calls, c...)
}

// Seed sets the history of url to a single commit with files and returns its hash.
func (g *Git) Seed(url string, files map[string]string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := Commit{SHA: g.nextSHA(), Files: maps.Clone(files)}
	if g.Histories == nil {
		g.Histories = make(map[string][]Commit)
	}
	g.Histories[url] = []Commit{c}
	return c.SHA
}

// Latest returns the head commit of url.
func (g *Git) Latest(url string) (Commit, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	history := g.Histories[url]
	if len(history) == 0 {
		return Commit{}, false
	}
	return history[len(history)-1], true
}

func (g *Git) nextSHA() string {
	g.counter++
	return fmt.Sprintf("%040x", g.counter)
}

func (g *Git) init() {
	if g.heads == nil {
		g.heads = make(map[string]*Commit)
	}
	if g.staged == nil {
		g.staged = make(map[string]map[string]string)
	}
	if g.Histories == nil {
		g.Histories = make(map[string][]Commit)
	}
}

func (g *Git) Init(_ context.Context, dir, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.appendCalls(CallInit)
	g.heads[dir] = nil
	return nil
}

func (g *Git) SetIdentity(context.Context, string, string, string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.appendCalls(CallSetIdentity)
	return nil
}

func (g *Git) Clone(_ context.Context, url, dir string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.appendCalls(CallClone)

	history := g.Histories[url]
	if len(history) == 0 {
		return fmt.Errorf("repository %s not found", url)
	}
	head := history[len(history)-1]
	if err := os.MkdirAll(dir, 0o777); err != nil {
		return err
	}
	for name, content := range head.Files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o666); err != nil {
			return err
		}
	}
	g.heads[dir] = &head
	return nil
}

func (g *Git) AddAll(_ context.Context, dir string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.appendCalls(CallAddAll)

	files, err := readDir(dir)
	if err != nil {
		return err
	}
	g.staged[dir] = files
	return nil
}

func (g *Git) HasChanges(_ context.Context, dir string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.appendCalls(CallHasChanges)

	head := g.heads[dir]
	if head == nil {
		return len(g.staged[dir]) > 0, nil
	}
	return !maps.Equal(head.Files, g.staged[dir]), nil
}

func (g *Git) Commit(_ context.Context, dir, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.appendCalls(CallCommit)

	staged, ok := g.staged[dir]
	if !ok {
		return errors.New("nothing added to commit")
	}
	g.heads[dir] = &Commit{SHA: g.nextSHA(), Files: maps.Clone(staged)}
	return nil
}

func (g *Git) Push(_ context.Context, dir, url, _ string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.appendCalls(CallPush)

	if g.PushErr != nil {
		return g.PushErr
	}
	head := g.heads[dir]
	if head == nil {
		return errors.New("src refspec HEAD does not match any")
	}
	g.Histories[url] = append(g.Histories[url], *head)
	return nil
}

func (g *Git) Head(_ context.Context, dir string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	g.appendCalls(CallHead)

	head := g.heads[dir]
	if head == nil {
		return "", errors.New("ambiguous argument 'HEAD'")
	}
	return head.SHA, nil
}

func readDir(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	files := make(map[string]string, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		files[e.Name()] = string(content)
	}
	return files, nil
}

// Remotes is an in-memory repository host.
// Like GitHub, it ignores the case of owner and repository names.
type Remotes struct {
	mu           sync.Mutex
	repositories map[string]bool // by owner/name

	CreateErr error
	Calls     []string
}

func (r *Remotes) key(owner, name string) string {
	if r.repositories == nil {
		r.repositories = make(map[string]bool)
	}
	return strings.ToLower(owner + "/" + name)
}

// Add makes a repository exist.
func (r *Remotes) Add(owner, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.repositories[r.key(owner, name)] = true
}

func (r *Remotes) RepositoryExists(_ context.Context, owner, name string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, CallRepositoryExists)
	return r.repositories[r.key(owner, name)], nil
}

func (r *Remotes) CreateRepository(_ context.Context, owner, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, CallCreateRepository)
	if r.CreateErr != nil {
		return r.CreateErr
	}
	k := r.key(owner, name)
	if r.repositories[k] {
		return fmt.Errorf("name already exists on this account: %s", k)
	}
	r.repositories[k] = true
	return nil
}

func (r *Remotes) DeleteRepository(_ context.Context, owner, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, CallDeleteRepository)
	delete(r.repositories, r.key(owner, name))
	return nil
}

// Generator records prompts and returns Output or Err.
type Generator struct {
	mu sync.Mutex

	Output  string
	Err     error
	Prompts []string
}

func (g *Generator) Generate(_ context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Prompts = append(g.Prompts, prompt)
	return g.Output, g.Err
}
