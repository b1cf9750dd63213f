package deploy

import (
	"crypto/subtle"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/k11v/sitegen/internal/fault"
)

const (
	RoundBuild  = 1
	RoundRevise = 2
)

// taskRegexp matches names usable both as a directory and as a GitHub repository.
var taskRegexp = regexp.MustCompile(`^[A-Za-z0-9._-]{1,100}$`)

// Request is a build or revise request.
type Request struct {
	Task          string
	Round         int
	Brief         string
	Checks        []string
	Email         string
	Nonce         string
	EvaluationURL string
}

// Validate checks the fields a handler can't check by presence alone.
func (r *Request) Validate() error {
	if r.Round != RoundBuild && r.Round != RoundRevise {
		return fmt.Errorf("%w: round must be 1 or 2, got %d", fault.ErrValidation, r.Round)
	}
	if err := ValidateTask(r.Task); err != nil {
		return err
	}
	if strings.TrimSpace(r.Brief) == "" {
		return fmt.Errorf("%w: empty brief", fault.ErrValidation)
	}
	if strings.TrimSpace(r.Email) == "" {
		return fmt.Errorf("%w: empty email", fault.ErrValidation)
	}
	if r.Nonce == "" {
		return fmt.Errorf("%w: empty nonce", fault.ErrValidation)
	}
	u, err := url.Parse(r.EvaluationURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: evaluation_url must be an absolute http or https URL", fault.ErrValidation)
	}
	return nil
}

// ValidateTask checks that task names a repository and a directory safely.
func ValidateTask(task string) error {
	if !taskRegexp.MatchString(task) || strings.HasPrefix(task, ".") {
		return fmt.Errorf("%w: invalid task %q", fault.ErrValidation, task)
	}
	return nil
}

// Authenticate compares secret with the configured one in constant time.
func (s *Service) Authenticate(secret string) error {
	want := []byte(s.config.Secret)
	if len(want) == 0 || subtle.ConstantTimeCompare([]byte(secret), want) != 1 {
		return fault.ErrAuthRejected
	}
	return nil
}
