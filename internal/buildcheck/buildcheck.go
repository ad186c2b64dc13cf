// Package buildcheck runs the configured build and test commands
// against the workspace after a patch lands. A nonzero exit is a
// verification result, not a pipeline error: the caller decides what a
// failed check means for the attempt.
package buildcheck

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ldi/forge/internal/command"
	"github.com/ldi/forge/pkg/models"
)

// maxOutput bounds how much of each stream is retained per check.
const maxOutput = 2048

// Checker shells out the configured commands in the repository root.
// Empty command strings disable the corresponding check.
type Checker struct {
	repoPath string
	buildCmd string
	testCmd  string
	runner   command.Runner
	logger   *slog.Logger
}

func New(repoPath, buildCmd, testCmd string, runner command.Runner, logger *slog.Logger) *Checker {
	return &Checker{
		repoPath: repoPath,
		buildCmd: buildCmd,
		testCmd:  testCmd,
		runner:   runner,
		logger:   logger,
	}
}

// RunBuild executes the build command, or reports a skipped result
// when none is configured.
func (c *Checker) RunBuild(ctx context.Context) (*models.CheckResult, error) {
	return c.run(ctx, "build", c.buildCmd)
}

// RunTest executes the test command, or reports a skipped result when
// none is configured.
func (c *Checker) RunTest(ctx context.Context) (*models.CheckResult, error) {
	return c.run(ctx, "test", c.testCmd)
}

func (c *Checker) run(ctx context.Context, label, cmdline string) (*models.CheckResult, error) {
	if cmdline == "" {
		c.logger.Info("check skipped, no command configured", "check", label)
		return &models.CheckResult{Skipped: true}, nil
	}

	name, args := command.Shell(cmdline)
	res, err := c.runner.Run(ctx, c.repoPath, name, args...)
	if err != nil {
		return nil, fmt.Errorf("%s command: %w", label, err)
	}

	out := &models.CheckResult{
		ExitCode: res.ExitCode,
		Stdout:   truncate(res.Stdout),
		Stderr:   truncate(res.Stderr),
	}
	c.logger.Info("check finished", "check", label, "exit", out.ExitCode)
	return out, nil
}

func truncate(s string) string {
	if len(s) <= maxOutput {
		return s
	}
	return s[:maxOutput] + "\n... (truncated)"
}
