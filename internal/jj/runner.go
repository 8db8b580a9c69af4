// Package jj reads history from and runs operations through the jj command
// line tool.
package jj

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrCommandFailed is wrapped by every CommandError.
var ErrCommandFailed = errors.New("jj command failed")

// Runner executes jj with args inside dir and returns its standard output.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) ([]byte, error)
}

// CommandError is a failed jj invocation.
type CommandError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("jj %s", strings.Join(e.Args, " "))
	if s := strings.TrimSpace(e.Stderr); s != "" {
		return fmt.Sprintf("%s: %s", msg, firstLine(s))
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}

// QueryError reports a revision set the tool could not evaluate.
type QueryError struct {
	Revset string
	Err    error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query %q: %v", e.Revset, e.Err)
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// ExecRunner runs the binary at Path.
type ExecRunner struct {
	Path string
	Env  []string
}

// NewExecRunner returns a runner for path, or "jj" from PATH when empty.
func NewExecRunner(path string) *ExecRunner {
	if path == "" {
		path = "jj"
	}
	return &ExecRunner{Path: path}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &CommandError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return stdout.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
