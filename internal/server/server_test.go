package server_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/k11v/sitegen/internal/deploy"
	"github.com/k11v/sitegen/internal/hosting"
	"github.com/k11v/sitegen/internal/llm"
	"github.com/k11v/sitegen/internal/notify"
	"github.com/k11v/sitegen/internal/publish"
	"github.com/k11v/sitegen/internal/publish/publishtest"
	"github.com/k11v/sitegen/internal/server"
)

type pagesStub struct {
	mu      sync.Mutex
	enabled map[string]bool
}

func (p *pagesStub) PagesEnabled(_ context.Context, owner, repo string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled[owner+"/"+repo], nil
}

func (p *pagesStub) EnablePages(_ context.Context, owner, repo, _, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.enabled == nil {
		p.enabled = make(map[string]bool)
	}
	p.enabled[owner+"/"+repo] = true
	return nil
}

// evaluator records notifications like an evaluation server would.
type evaluator struct {
	mu       sync.Mutex
	payloads []notify.Payload
}

func (e *evaluator) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var p notify.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e.mu.Lock()
	e.payloads = append(e.payloads, p)
	e.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

// model is a chat completion endpoint answering with its current output.
type model struct {
	mu     sync.Mutex
	output string
	delay  time.Duration
}

func (m *model) set(output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.output = output
}

func newModel(t *testing.T, m *model) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		content, delay := m.output, m.delay
		m.mu.Unlock()
		time.Sleep(delay)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"role": "assistant", "content": content}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

const modelOutput = "```json\n" + `{"index.html": "<h1>Counter</h1>", "style.css": "", "script.js": "let count = 0;"}` + "\n```"

// newTestServer wires the real pipeline with in-memory git and GitHub doubles.
func newTestServer(t *testing.T, modelURL string) (*httptest.Server, *publishtest.Git) {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	git := &publishtest.Git{}
	generator := llm.NewClient(&llm.Config{URL: modelURL, APIKey: "sk-test"}, log)
	publisher := publish.NewPublisher(
		&publish.Config{Owner: "octocat", WorkDir: t.TempDir()},
		git,
		&publishtest.Remotes{},
		generator,
		log,
	)
	service := deploy.NewService(&deploy.NewServiceParams{
		Config:    &deploy.Config{Secret: "s3cret"},
		Generator: generator,
		Publisher: publisher,
		Enabler:   hosting.NewEnabler(&hosting.Config{Owner: "octocat", PropagationDelay: -1}, &pagesStub{}, log),
		Notifier:  notify.NewNotifier(&notify.Config{}, log),
	}, log)

	srv := httptest.NewServer(server.New(&server.Config{}, service, false, log).Handler)
	t.Cleanup(srv.Close)
	return srv, git
}

func requestBody(t *testing.T, round int, evaluationURL string) string {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"secret":         "s3cret",
		"task":           "counter-app",
		"round":          round,
		"brief":          "A counter",
		"checks":         []string{"Has a button"},
		"email":          "student@example.com",
		"nonce":          "ab12",
		"evaluation_url": evaluationURL,
	})
	if err != nil {
		t.Fatalf("didn't want %q", err)
	}
	return string(body)
}

func TestServer(t *testing.T) {
	m := &model{output: modelOutput}
	modelServer := newModel(t, m)
	eval := &evaluator{}
	evalServer := httptest.NewServer(eval)
	t.Cleanup(evalServer.Close)

	srv, git := newTestServer(t, modelServer.URL)

	post := func(t *testing.T, round int) (int, map[string]string) {
		t.Helper()
		resp, err := http.Post(srv.URL+"/api-endpoint", "application/json", strings.NewReader(requestBody(t, round, evalServer.URL)))
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		var got map[string]string
		if err = json.NewDecoder(resp.Body).Decode(&got); err != nil {
			t.Fatalf("didn't want %q", err)
		}
		return resp.StatusCode, got
	}

	t.Run("serves health", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/health")
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		health, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		if got, want := strings.TrimSpace(string(health)), `{"status":"ok"}`; got != want {
			t.Fatalf("got %q, want %q", got, want)
		}
	})

	t.Run("builds then revises", func(t *testing.T) {
		code, resp := post(t, 1)
		if code != http.StatusOK {
			t.Fatalf("got %d %v, want %d", code, resp, http.StatusOK)
		}

		m.set(`{"index.html": "<h1>Counter</h1><button>+</button>", "style.css": "", "script.js": "let count = 0;"}`)
		code, resp = post(t, 2)
		if code != http.StatusOK {
			t.Fatalf("got %d %v, want %d", code, resp, http.StatusOK)
		}
		if want := "Revise complete and notification sent!"; resp["message"] != want {
			t.Errorf("got %q, want %q", resp["message"], want)
		}

		eval.mu.Lock()
		defer eval.mu.Unlock()
		if len(eval.payloads) != 2 {
			t.Fatalf("got %d notifications, want 2", len(eval.payloads))
		}
		first, second := eval.payloads[0], eval.payloads[1]
		if first.Round != 1 || second.Round != 2 {
			t.Errorf("got rounds %d and %d, want 1 and 2", first.Round, second.Round)
		}
		if first.CommitSHA == second.CommitSHA {
			t.Errorf("got %q twice, want a new commit for the revision", first.CommitSHA)
		}
		pushed, _ := git.Latest("https://github.com/octocat/counter-app.git")
		if second.CommitSHA != pushed.SHA {
			t.Errorf("got %q, want %q", second.CommitSHA, pushed.SHA)
		}
		if want := "https://octocat.github.io/counter-app/"; second.PagesURL != want {
			t.Errorf("got %q, want %q", second.PagesURL, want)
		}
	})

	t.Run("rejects a wrong secret", func(t *testing.T) {
		resp, err := http.Post(srv.URL+"/api-endpoint", "application/json", strings.NewReader(`{"secret":"guess","round":1}`))
		if err != nil {
			t.Fatalf("didn't want %q", err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("got %d, want %d", resp.StatusCode, http.StatusForbidden)
		}
	})
}

func TestServerCallerDisconnects(t *testing.T) {
	modelServer := newModel(t, &model{output: modelOutput, delay: 500 * time.Millisecond})
	eval := &evaluator{}
	evalServer := httptest.NewServer(eval)
	t.Cleanup(evalServer.Close)

	srv, _ := newTestServer(t, modelServer.URL)

	caller := &http.Client{Timeout: 100 * time.Millisecond}
	resp, err := caller.Post(srv.URL+"/api-endpoint", "application/json", strings.NewReader(requestBody(t, 1, evalServer.URL)))
	if err == nil {
		_ = resp.Body.Close()
		t.Fatal("want the caller to give up before the pipeline finishes")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		eval.mu.Lock()
		got := len(eval.payloads)
		eval.mu.Unlock()
		if got == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d notifications, want 1", got)
		}
		time.Sleep(20 * time.Millisecond)
	}
}
