// Package githubauth authenticates as a GitHub App installation.
package githubauth

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/go-github/v61/github"
	"golang.org/x/oauth2"
)

// Config holds the GitHub App configuration.
type Config struct {
	AppID          string        // required
	PrivateKeyFile string        // required, PEM encoded RSA key
	Owner          string        // required, account the app is installed on
	BaseURL        string        // default: "https://api.github.com/"
	Timeout        time.Duration // default: 30s
}

func (c *Config) timeout() time.Duration {
	t := c.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	return t
}

// NewTokenSource returns a token source of installation access tokens.
// Tokens are reused until they are about to expire.
func NewTokenSource(config *Config, log *slog.Logger) (oauth2.TokenSource, error) {
	if config.AppID == "" {
		return nil, errors.New("githubauth.NewTokenSource: empty app id")
	}
	data, err := os.ReadFile(config.PrivateKeyFile)
	if err != nil {
		return nil, fmt.Errorf("githubauth.NewTokenSource: %w", err)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(data)
	if err != nil {
		return nil, fmt.Errorf("githubauth.NewTokenSource: %w", err)
	}

	var baseURL *url.URL
	if config.BaseURL != "" {
		baseURL, err = url.Parse(config.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("githubauth.NewTokenSource: %w", err)
		}
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
		}
	}

	s := &installationTokenSource{
		appID:   config.AppID,
		key:     key,
		owner:   config.Owner,
		baseURL: baseURL,
		timeout: config.timeout(),
		now:     time.Now,
		log:     log.With("component", "githubauth"),
	}
	return oauth2.ReuseTokenSource(nil, s), nil
}

type installationTokenSource struct {
	appID   string
	key     *rsa.PrivateKey
	owner   string
	baseURL *url.URL // optional
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

func (s *installationTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	appToken, err := s.appToken()
	if err != nil {
		return nil, fmt.Errorf("githubauth: app token: %w", err)
	}
	client := github.NewClient(nil).WithAuthToken(appToken)
	if s.baseURL != nil {
		u := *s.baseURL
		client.BaseURL = &u
	}

	installation, _, err := client.Apps.FindUserInstallation(ctx, s.owner)
	if err != nil {
		var errResp *github.ErrorResponse
		if !errors.As(err, &errResp) || errResp.Response == nil || errResp.Response.StatusCode != 404 {
			return nil, fmt.Errorf("githubauth: find installation: %w", err)
		}
		installation, _, err = client.Apps.FindOrganizationInstallation(ctx, s.owner)
		if err != nil {
			return nil, fmt.Errorf("githubauth: find installation: %w", err)
		}
	}

	token, _, err := client.Apps.CreateInstallationToken(ctx, installation.GetID(), nil)
	if err != nil {
		return nil, fmt.Errorf("githubauth: create installation token: %w", err)
	}
	s.log.Info("created installation token", "installation_id", installation.GetID(), "expires_at", token.GetExpiresAt().Time)

	return &oauth2.Token{
		AccessToken: token.GetToken(),
		TokenType:   "Bearer",
		Expiry:      token.GetExpiresAt().Time,
	}, nil
}

// appToken returns a JWT identifying the app.
// It is backdated a minute against clock drift and lives under the ten minute limit.
func (s *installationTokenSource) appToken() (string, error) {
	now := s.now()
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.RegisteredClaims{
		Issuer:    s.appID,
		IssuedAt:  jwt.NewNumericDate(now.Add(-time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
	})
	return jwtToken.SignedString(s.key)
}
