package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/k11v/sitegen/internal/fault"
)

// Error is returned by Run when the command exits with a non-zero code
// or cannot be started.
type Error struct {
	Args     []string
	ExitCode int // -1 if the command didn't start or was killed
	Stdout   string
	Stderr   string
	Err      error
}

func (e *Error) Error() string {
	output := strings.TrimSpace(e.Stderr)
	if output == "" {
		output = strings.TrimSpace(e.Stdout)
	}
	if output == "" {
		return fmt.Sprintf("%s: %v", strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", strings.Join(e.Args, " "), e.Err, output)
}

func (e *Error) Unwrap() []error {
	return []error{fault.ErrExternalCommandFailed, e.Err}
}

// Runner runs external commands.
// The zero value runs commands in the current directory with the current environment.
type Runner struct {
	Dir string   // optional
	Env []string // optional, appended to os.Environ
}

// Run runs name with args and returns its trimmed stdout.
// The command is killed when ctx is done.
func (r *Runner) Run(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = r.Dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		exitCode := -1
		if exitErr := (*exec.ExitError)(nil); errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return "", &Error{
			Args:     append([]string{name}, args...),
			ExitCode: exitCode,
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			Err:      err,
		}
	}

	return strings.TrimSpace(stdout.String()), nil
}
