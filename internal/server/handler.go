package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/k11v/sitegen/internal/deploy"
	"github.com/k11v/sitegen/internal/fault"
	"github.com/k11v/sitegen/internal/publish"
	"github.com/k11v/sitegen/internal/server/docs"
)

const maxBodySize = 1 << 20 // 1MB

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Deployer runs authenticated and validated requests.
type Deployer interface {
	Authenticate(secret string) error
	Deploy(ctx context.Context, req *deploy.Request) (*publish.Result, error)
}

type handler struct {
	mux             *http.ServeMux
	deployer        Deployer
	webhookPath     string
	pipelineTimeout time.Duration
	log             *slog.Logger
}

type handlerParams struct {
	deployer        Deployer // required
	webhookPath     string   // required
	pipelineTimeout time.Duration
	development     bool
}

func newHandler(params *handlerParams, log *slog.Logger) *handler {
	mux := http.NewServeMux()
	h := &handler{
		mux:             mux,
		deployer:        params.deployer,
		webhookPath:     params.webhookPath,
		pipelineTimeout: params.pipelineTimeout,
		log:             log,
	}

	if params.development {
		mux.HandleFunc("GET /swagger/doc.json", h.GetSwaggerDoc)
		mux.Handle("GET /swagger/", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))
	}

	mux.HandleFunc("GET /health", h.GetHealth)
	mux.HandleFunc("POST "+params.webhookPath, h.Deploy)

	return h
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// GetHealth reports that the server is up.
//
//	@Summary	Health check
//	@Tags		health
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Router		/health [get]
func (h *handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

type healthResponse struct {
	Status string `json:"status" example:"ok"`
}

// GetSwaggerDoc serves the OpenAPI document with the webhook at its configured path.
func (h *handler) GetSwaggerDoc(w http.ResponseWriter, r *http.Request) {
	doc, err := swaggerDoc(h.webhookPath)
	if err != nil {
		h.serveError(w, h.log, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_, _ = w.Write(doc)
}

func swaggerDoc(webhookPath string) ([]byte, error) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(docs.SwaggerInfo.ReadDoc()), &doc); err != nil {
		return nil, fmt.Errorf("server.swaggerDoc: %w", err)
	}
	paths, _ := doc["paths"].(map[string]any)
	if op, ok := paths[defaultWebhookPath]; ok && webhookPath != defaultWebhookPath {
		delete(paths, defaultWebhookPath)
		paths[webhookPath] = op
	}
	return json.Marshal(doc)
}

// deployRequest uses pointers to tell missing fields from zero values.
type deployRequest struct {
	Secret        *string         `json:"secret"`
	Task          *string         `json:"task" example:"counter-app"`
	Round         json.RawMessage `json:"round" swaggertype:"integer" example:"1"`
	Brief         *string         `json:"brief" example:"A page with a button that counts clicks"`
	Checks        *[]string       `json:"checks"`
	Email         *string         `json:"email" example:"student@example.com"`
	Nonce         *string         `json:"nonce" example:"ab12-cd34"`
	EvaluationURL *string         `json:"evaluation_url" example:"https://eval.example.com/notify"`
}

type deployResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"Build complete and notification sent!"`
}

// Deploy builds (round 1) or revises (round 2) a task's site.
// The route below is the default; GetSwaggerDoc rewrites it to the configured path.
//
//	@Summary	Build or revise a site
//	@Tags		deploy
//	@Accept		json
//	@Produce	json
//	@Param		request	body		deployRequest	true	"Deploy request"
//	@Success	200		{object}	deployResponse
//	@Failure	400		{object}	deployResponse
//	@Failure	403		{object}	deployResponse
//	@Failure	500		{object}	deployResponse
//	@Router		/api-endpoint [post]
func (h *handler) Deploy(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New()
	ctx := deploy.WithRequestID(r.Context(), requestID)
	log := h.log.With("request_id", requestID)

	// Body.
	var body deployRequest
	var typeErr error
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&body); err != nil {
		var unmarshalTypeErr *json.UnmarshalTypeError
		if !errors.As(err, &unmarshalTypeErr) || unmarshalTypeErr.Field == "" {
			h.serveError(w, log, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
			return
		}
		typeErr = fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		h.serveError(w, log, http.StatusBadRequest, errors.New("invalid request body: multiple top-level values"))
		return
	}

	// Secret, before anything else is looked at.
	if body.Secret == nil {
		h.serveError(w, log, http.StatusForbidden, fmt.Errorf("%w: missing secret", fault.ErrAuthRejected))
		return
	}
	if err := h.deployer.Authenticate(*body.Secret); err != nil {
		h.serveError(w, log, http.StatusForbidden, fmt.Errorf("%w: invalid secret", fault.ErrAuthRejected))
		return
	}

	// Fields.
	if typeErr != nil {
		h.serveError(w, log, http.StatusBadRequest, typeErr)
		return
	}
	req, err := body.toDeployRequest()
	if err != nil {
		h.serveError(w, log, http.StatusBadRequest, err)
		return
	}
	if err = req.Validate(); err != nil {
		h.serveError(w, log, http.StatusBadRequest, err)
		return
	}
	log = log.With("task", req.Task, "round", req.Round)
	log.Info("accepted request")

	// Pipeline. It runs to completion even if the caller disconnects.
	pipelineCtx, cancel := context.WithoutCancel(ctx), context.CancelFunc(func() {})
	if h.pipelineTimeout > 0 {
		pipelineCtx, cancel = context.WithTimeout(pipelineCtx, h.pipelineTimeout)
	}
	defer cancel()
	result, err := h.deploy(pipelineCtx, req)
	if err != nil {
		h.serveError(w, log, http.StatusInternalServerError, err)
		return
	}

	message := "Build complete and notification sent!"
	if req.Round == deploy.RoundRevise {
		message = "Revise complete and notification sent!"
	}
	log.Info("completed request", "repo_url", result.RepoURL, "commit_sha", result.CommitSHA)
	writeJSON(w, http.StatusOK, deployResponse{Status: statusSuccess, Message: message})
}

// deploy runs the pipeline and turns a panic into an internal error.
func (h *handler) deploy(ctx context.Context, req *deploy.Request) (result *publish.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			h.log.Error("recovered panic", "panic", p, "stack", string(debug.Stack()))
			result, err = nil, fault.ErrInternal
		}
	}()
	return h.deployer.Deploy(ctx, req)
}

func (b *deployRequest) toDeployRequest() (*deploy.Request, error) {
	missing := func(name string) error {
		return fmt.Errorf("%w: missing %s", fault.ErrValidation, name)
	}

	if len(b.Round) == 0 || string(b.Round) == "null" {
		return nil, missing("round")
	}
	// Whole numbers written as 1.0 or 1e0 count too.
	var f float64
	if err := json.Unmarshal(b.Round, &f); err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return nil, fmt.Errorf("%w: round must be 1 or 2", fault.ErrValidation)
	}
	round := int(f)

	switch {
	case b.Task == nil:
		return nil, missing("task")
	case b.Brief == nil:
		return nil, missing("brief")
	case b.Checks == nil:
		return nil, missing("checks")
	case b.Email == nil:
		return nil, missing("email")
	case b.Nonce == nil:
		return nil, missing("nonce")
	case b.EvaluationURL == nil:
		return nil, missing("evaluation_url")
	}

	return &deploy.Request{
		Task:          *b.Task,
		Round:         round,
		Brief:         *b.Brief,
		Checks:        *b.Checks,
		Email:         *b.Email,
		Nonce:         *b.Nonce,
		EvaluationURL: *b.EvaluationURL,
	}, nil
}

func (h *handler) serveError(w http.ResponseWriter, log *slog.Logger, status int, err error) {
	attrs := []any{"status", status, "kind", fault.Kind(err), "err", err}
	if stepErr, ok := deploy.AsStepError(err); ok {
		attrs = append(attrs, "step", stepErr.Step)
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", attrs...)
	} else {
		log.Warn("request rejected", attrs...)
	}
	writeJSON(w, status, deployResponse{Status: statusError, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
}
