package main

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/k11v/sitegen/internal/deploy/deployamqp"
	"github.com/k11v/sitegen/internal/deploy/deploys3"
	"github.com/k11v/sitegen/internal/llm"
	"github.com/k11v/sitegen/internal/notify"
	"github.com/k11v/sitegen/internal/server"
	"github.com/k11v/sitegen/internal/site"
)

const (
	backendCLI = "cli"
	backendAPI = "api"
)

// config holds the application configuration.
type config struct {
	Development           bool              `env:"SITEGEN_DEVELOPMENT"`
	Secret                string            `env:"SITEGEN_SECRET,required"`
	WorkDir               string            `env:"SITEGEN_WORK_DIR"`
	SiteFiles             []string          `env:"SITEGEN_SITE_FILES" envSeparator:","`
	PagesPropagationDelay time.Duration     `env:"SITEGEN_PAGES_PROPAGATION_DELAY"`
	Server                server.Config     `envPrefix:"SITEGEN_SERVER_"`
	LLM                   llm.Config        `envPrefix:"SITEGEN_LLM_"`
	GitHub                githubConfig      `envPrefix:"SITEGEN_GITHUB_"`
	Git                   gitConfig         `envPrefix:"SITEGEN_GIT_"`
	Notify                notify.Config     `envPrefix:"SITEGEN_NOTIFY_"`
	S3                    deploys3.Config   `envPrefix:"SITEGEN_S3_"`
	AMQP                  deployamqp.Config `envPrefix:"SITEGEN_AMQP_"`
}

type githubConfig struct {
	Backend           string `env:"BACKEND" envDefault:"cli"`
	Token             string `env:"TOKEN"`
	Owner             string `env:"OWNER"`
	URL               string `env:"URL"`     // default: "https://github.com"
	APIURL            string `env:"API_URL"` // default: "https://api.github.com/"
	CLIPath           string `env:"CLI_PATH"`
	AppID             string `env:"APP_ID"`
	AppPrivateKeyFile string `env:"APP_PRIVATE_KEY_FILE"`
	Branch            string `env:"BRANCH"` // default: "main"
}

type gitConfig struct {
	AuthorName  string `env:"AUTHOR_NAME"`
	AuthorEmail string `env:"AUTHOR_EMAIL"`
}

// parseConfig parses the application configuration from the environment variables.
func parseConfig(environ []string) (*config, error) {
	var cfg config

	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: env.ToMap(environ),
	})
	if err != nil {
		return nil, err
	}

	if err = cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (cfg *config) validate() error {
	if cfg.LLM.APIKey == "" {
		return errors.New("SITEGEN_LLM_API_KEY is required")
	}
	if cfg.GitHub.Owner == "" {
		return errors.New("SITEGEN_GITHUB_OWNER is required")
	}

	switch cfg.GitHub.Backend {
	case backendCLI:
	case backendAPI:
		if cfg.GitHub.Token == "" && cfg.GitHub.AppID == "" {
			return errors.New("SITEGEN_GITHUB_TOKEN or SITEGEN_GITHUB_APP_ID is required for the api backend")
		}
	default:
		return fmt.Errorf("SITEGEN_GITHUB_BACKEND must be %q or %q, got %q", backendCLI, backendAPI, cfg.GitHub.Backend)
	}
	if cfg.GitHub.AppID != "" && cfg.GitHub.AppPrivateKeyFile == "" {
		return errors.New("SITEGEN_GITHUB_APP_PRIVATE_KEY_FILE is required with SITEGEN_GITHUB_APP_ID")
	}

	for _, name := range cfg.SiteFiles {
		if !site.ValidName(name) {
			return fmt.Errorf("SITEGEN_SITE_FILES: invalid file name %q", name)
		}
	}
	if cfg.GitHub.URL != "" {
		if u, err := url.Parse(cfg.GitHub.URL); err != nil || u.Host == "" {
			return fmt.Errorf("SITEGEN_GITHUB_URL: invalid URL %q", cfg.GitHub.URL)
		}
	}

	return nil
}

// githubHost returns the host gh should talk to, or "" for github.com.
func (cfg *config) githubHost() string {
	if cfg.GitHub.URL == "" {
		return ""
	}
	u, err := url.Parse(cfg.GitHub.URL)
	if err != nil || u.Host == "github.com" {
		return ""
	}
	return u.Host
}
