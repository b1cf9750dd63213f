// Package deploy runs the build and revise pipelines.
package deploy

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/k11v/sitegen/internal/notify"
	"github.com/k11v/sitegen/internal/publish"
	"github.com/k11v/sitegen/internal/site"
	"github.com/k11v/sitegen/internal/tasklock"
)

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Publisher interface {
	Names() []string
	Create(ctx context.Context, params *publish.CreateParams) (*publish.Result, error)
	Update(ctx context.Context, params *publish.UpdateParams) (*publish.Result, error)
}

type Enabler interface {
	Enable(ctx context.Context, task string) error
}

type Notifier interface {
	Notify(ctx context.Context, url string, payload *notify.Payload) error
}

// Archive keeps a copy of every generated file set.
type Archive interface {
	Store(ctx context.Context, task string, round int, files site.FileSet) error
}

// Broker announces finished deployments.
type Broker interface {
	Publish(ctx context.Context, event *Event) error
}

// Config holds the deploy configuration.
type Config struct {
	Secret string // required
}

type Service struct {
	config    *Config   // required
	generator Generator // required
	publisher Publisher // required
	enabler   Enabler   // required
	notifier  Notifier  // required
	archive   Archive   // optional
	broker    Broker    // optional
	locker    tasklock.Locker
	now       func() time.Time
	log       *slog.Logger
}

type NewServiceParams struct {
	Config    *Config
	Generator Generator
	Publisher Publisher
	Enabler   Enabler
	Notifier  Notifier
	Archive   Archive
	Broker    Broker
}

func NewService(params *NewServiceParams, log *slog.Logger) *Service {
	return &Service{
		config:    params.Config,
		generator: params.Generator,
		publisher: params.Publisher,
		enabler:   params.Enabler,
		notifier:  params.Notifier,
		archive:   params.Archive,
		broker:    params.Broker,
		now:       time.Now,
		log:       log.With("component", "deploy"),
	}
}

// Deploy dispatches req by round. The request must be validated.
func (s *Service) Deploy(ctx context.Context, req *Request) (*publish.Result, error) {
	if req.Round == RoundRevise {
		return s.Revise(ctx, req)
	}
	return s.Build(ctx, req)
}

// Build generates a site for req, publishes it to a fresh repository,
// enables Pages and notifies the evaluation URL.
func (s *Service) Build(ctx context.Context, req *Request) (*publish.Result, error) {
	log := s.requestLog(ctx, req)
	unlock := s.locker.Lock(lockKey(req.Task))
	defer unlock()
	log.Info("building")

	names := s.publisher.Names()
	prompt, err := site.BuildPrompt(&site.BuildPromptParams{Brief: req.Brief, Checks: req.Checks, Names: names})
	if err != nil {
		return nil, s.fail(log, StepGenerate, err)
	}
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return nil, s.fail(log, StepGenerate, err)
	}
	files, err := site.Extract(raw)
	if err != nil {
		return nil, s.fail(log, StepGenerate, err)
	}
	if err = files.Check(names); err != nil {
		return nil, s.fail(log, StepGenerate, err)
	}
	log.Info("generated files", "names", files.Names())

	result, err := s.publisher.Create(ctx, &publish.CreateParams{
		Task:   req.Task,
		Files:  files,
		Brief:  req.Brief,
		Checks: req.Checks,
	})
	if err != nil {
		return nil, s.fail(log, StepCreate, err)
	}

	if err = s.enabler.Enable(ctx, req.Task); err != nil {
		return nil, s.fail(log, StepEnable, err)
	}

	s.store(ctx, log, req, result.Files)

	if err = s.notifier.Notify(ctx, req.EvaluationURL, payload(req, result)); err != nil {
		return nil, s.fail(log, StepNotify, err)
	}

	s.publish(ctx, log, req, result)
	log.Info("built", "repo_url", result.RepoURL, "commit_sha", result.CommitSHA)
	return result, nil
}

// Revise asks for a revision of the task's existing site, pushes it
// if anything changed and notifies the evaluation URL.
func (s *Service) Revise(ctx context.Context, req *Request) (*publish.Result, error) {
	log := s.requestLog(ctx, req)
	unlock := s.locker.Lock(lockKey(req.Task))
	defer unlock()
	log.Info("revising")

	result, err := s.publisher.Update(ctx, &publish.UpdateParams{
		Task:   req.Task,
		Brief:  req.Brief,
		Checks: req.Checks,
	})
	if err != nil {
		return nil, s.fail(log, StepUpdate, err)
	}

	s.store(ctx, log, req, result.Files)

	if err = s.notifier.Notify(ctx, req.EvaluationURL, payload(req, result)); err != nil {
		return nil, s.fail(log, StepNotifyRevision, err)
	}

	s.publish(ctx, log, req, result)
	log.Info("revised", "repo_url", result.RepoURL, "commit_sha", result.CommitSHA)
	return result, nil
}

// lockKey folds case because repository names on GitHub are case-insensitive.
func lockKey(task string) string {
	return strings.ToLower(task)
}

func (s *Service) fail(log *slog.Logger, step string, err error) error {
	log.Error("step failed", "step", step, "err", err)
	return newStepError(step, err)
}

func (s *Service) store(ctx context.Context, log *slog.Logger, req *Request, files site.FileSet) {
	if s.archive == nil {
		return
	}
	if err := s.archive.Store(ctx, req.Task, req.Round, files); err != nil {
		log.Warn("didn't archive files", "err", err)
	}
}

func (s *Service) publish(ctx context.Context, log *slog.Logger, req *Request, result *publish.Result) {
	if s.broker == nil {
		return
	}
	event := &Event{
		ID:          uuid.New(),
		Task:        req.Task,
		Round:       req.Round,
		RepoURL:     result.RepoURL,
		CommitSHA:   result.CommitSHA,
		PagesURL:    result.PagesURL,
		CompletedAt: s.now().UTC(),
	}
	if err := s.broker.Publish(ctx, event); err != nil {
		log.Warn("didn't publish event", "err", err)
	}
}

func (s *Service) requestLog(ctx context.Context, req *Request) *slog.Logger {
	log := s.log.With("task", req.Task, "round", req.Round)
	if id, ok := RequestIDFromContext(ctx); ok {
		log = log.With("request_id", id)
	}
	return log
}

func payload(req *Request, result *publish.Result) *notify.Payload {
	return &notify.Payload{
		Email:     req.Email,
		Task:      req.Task,
		Round:     req.Round,
		Nonce:     req.Nonce,
		RepoURL:   result.RepoURL,
		CommitSHA: result.CommitSHA,
		PagesURL:  result.PagesURL,
	}
}

type requestIDKey struct{}

// WithRequestID returns a copy of ctx carrying id for log records.
func WithRequestID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(requestIDKey{}).(uuid.UUID)
	return id, ok
}
