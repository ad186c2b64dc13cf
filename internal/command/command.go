// Package command is the process boundary: every external effect that
// shells out (version control, build, test) goes through a Runner so the
// pipeline depends on an abstraction that tests can substitute.
package command

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result captures one process invocation. A zero ExitCode means
// success; stdout and stderr are plain text, never structured.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// OK reports whether the process exited zero.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Runner executes external commands in a working directory.
type Runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes the command and captures its output. A nonzero exit is
// reported in the Result, not as an error; the error return is for
// failures to run at all (binary missing, context canceled).
func (ExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := Result{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctx.Err() != nil {
		return res, ctx.Err()
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		err = nil
	default:
		return res, err
	}
	return res, nil
}

// Shell wraps a command line for Runner execution via sh -c, used for
// configured build and test commands.
func Shell(cmdline string) (string, []string) {
	return "sh", []string{"-c", cmdline}
}
