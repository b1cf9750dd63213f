package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/k11v/sitegen/internal/deploy"
	"github.com/k11v/sitegen/internal/deploy/deployamqp"
	"github.com/k11v/sitegen/internal/deploy/deploys3"
	"github.com/k11v/sitegen/internal/github/githubapi"
	"github.com/k11v/sitegen/internal/github/githubauth"
	"github.com/k11v/sitegen/internal/github/githubcli"
	"github.com/k11v/sitegen/internal/gitcli"
	"github.com/k11v/sitegen/internal/hosting"
	"github.com/k11v/sitegen/internal/llm"
	"github.com/k11v/sitegen/internal/notify"
	"github.com/k11v/sitegen/internal/publish"
	"github.com/k11v/sitegen/internal/run/runs3"
	"github.com/k11v/sitegen/internal/server"
)

// githubClient manages repositories and their Pages sites.
type githubClient interface {
	publish.Remotes
	hosting.Client
}

// newServer wires every component from cfg.
func newServer(ctx context.Context, cfg *config, log *slog.Logger) (*http.Server, error) {
	tokenSource, err := newTokenSource(cfg, log)
	if err != nil {
		return nil, err
	}

	var github githubClient
	switch cfg.GitHub.Backend {
	case backendAPI:
		github, err = githubapi.NewClient(ctx, &githubapi.Config{BaseURL: cfg.GitHub.APIURL}, tokenSource, log)
		if err != nil {
			return nil, err
		}
	default:
		github = githubcli.NewClient(&githubcli.Config{Path: cfg.GitHub.CLIPath, Host: cfg.githubHost()}, tokenSource, log)
	}

	generator := llm.NewClient(&cfg.LLM, log)
	publisher := publish.NewPublisher(
		&publish.Config{
			Owner:       cfg.GitHub.Owner,
			GitHubURL:   cfg.GitHub.URL,
			Branch:      cfg.GitHub.Branch,
			WorkDir:     cfg.WorkDir,
			Names:       cfg.SiteFiles,
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
		},
		gitcli.New(tokenSource, log),
		github,
		generator,
		log,
	)
	enabler := hosting.NewEnabler(
		&hosting.Config{
			Owner:            cfg.GitHub.Owner,
			Branch:           cfg.GitHub.Branch,
			PropagationDelay: cfg.PagesPropagationDelay,
		},
		github,
		log,
	)

	params := &deploy.NewServiceParams{
		Config:    &deploy.Config{Secret: cfg.Secret},
		Generator: generator,
		Publisher: publisher,
		Enabler:   enabler,
		Notifier:  notify.NewNotifier(&cfg.Notify, log),
	}
	if cfg.S3.ConnectionString != "" {
		client, err := runs3.NewClient(cfg.S3.ConnectionString)
		if err != nil {
			return nil, err
		}
		if err = runs3.Setup(ctx, client, cfg.S3.BucketName()); err != nil {
			return nil, err
		}
		params.Archive = deploys3.NewArchive(client, cfg.S3.BucketName(), log)
		log.Info("archiving enabled", "bucket", cfg.S3.BucketName())
	}
	if cfg.AMQP.ConnectionString != "" {
		params.Broker = deployamqp.NewBroker(&cfg.AMQP, log)
		log.Info("events enabled", "exchange", cfg.AMQP.ExchangeName())
	}

	return server.New(&cfg.Server, deploy.NewService(params, log), cfg.Development, log), nil
}

// newTokenSource prefers GitHub App credentials over a personal token.
// It returns nil when neither is configured so that gh uses its own login.
func newTokenSource(cfg *config, log *slog.Logger) (oauth2.TokenSource, error) {
	switch {
	case cfg.GitHub.AppID != "":
		ts, err := githubauth.NewTokenSource(&githubauth.Config{
			AppID:          cfg.GitHub.AppID,
			PrivateKeyFile: cfg.GitHub.AppPrivateKeyFile,
			Owner:          cfg.GitHub.Owner,
			BaseURL:        cfg.GitHub.APIURL,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("github app: %w", err)
		}
		return ts, nil
	case cfg.GitHub.Token != "":
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHub.Token}), nil
	default:
		log.Warn("no GitHub token configured, relying on gh credentials")
		return nil, nil
	}
}
