// Package workspace wraps the version-controlled working copy a task
// attempt operates on. All mutating git effects run through the command
// boundary; read-only introspection uses go-git.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/google/uuid"
	"github.com/ldi/forge/internal/command"
)

// scratchPatch is the transient patch file written during ApplyPatch.
// It lives inside the repo so a crash leaves it where ResetClean will
// sweep it up.
const scratchPatch = ".forge.patch"

// Error reports a failed version-control step with the underlying
// tool's diagnostic text.
type Error struct {
	Step   string
	Output string
}

func (e *Error) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("workspace: %s failed", e.Step)
	}
	return fmt.Sprintf("workspace: %s failed: %s", e.Step, strings.TrimSpace(e.Output))
}

// ApplyResult reports a patch application attempt.
type ApplyResult struct {
	OK bool
	// Whitespace is true when the strict apply failed and the
	// whitespace-tolerant retry succeeded.
	Whitespace bool
	Detail     string
}

// Workspace provides an isolated, reproducible working copy for one
// task attempt. It must not be operated on concurrently.
type Workspace struct {
	repoPath      string
	defaultBranch string
	runner        command.Runner
	logger        *slog.Logger
}

func New(repoPath, defaultBranch string, runner command.Runner, logger *slog.Logger) *Workspace {
	return &Workspace{
		repoPath:      repoPath,
		defaultBranch: defaultBranch,
		runner:        runner,
		logger:        logger,
	}
}

// RepoPath returns the working copy's root directory.
func (w *Workspace) RepoPath() string { return w.repoPath }

// ResetClean discards all uncommitted changes and untracked files.
// Destructive to unsaved local work; called before every new attempt.
func (w *Workspace) ResetClean(ctx context.Context) error {
	if err := w.git(ctx, "reset", "--hard"); err != nil {
		return err
	}
	return w.git(ctx, "clean", "-fd")
}

// CreateBranch resets the working copy, switches to the default branch,
// pulls, and creates a uniquely named branch. A pull failure is logged
// and ignored so offline operation keeps working.
func (w *Workspace) CreateBranch(ctx context.Context, prefix string) (string, error) {
	if err := w.ResetClean(ctx); err != nil {
		return "", err
	}
	if err := w.git(ctx, "checkout", w.defaultBranch); err != nil {
		return "", err
	}
	if res, err := w.runner.Run(ctx, w.repoPath, "git", "pull"); err != nil || !res.OK() {
		w.logger.Warn("git pull failed, continuing with local state", "stderr", strings.TrimSpace(res.Stderr))
	}

	name := fmt.Sprintf("%s/%s", prefix, uuid.NewString()[:8])
	if err := w.git(ctx, "checkout", "-b", name); err != nil {
		return "", err
	}

	w.logger.Info("created branch", "branch", name)
	return name, nil
}

// ApplyPatch writes the patch to a scratch file and applies it with a
// strict git apply, retrying once with relaxed whitespace handling. On
// success all resulting changes are staged. The scratch file is removed
// on every exit path.
func (w *Workspace) ApplyPatch(ctx context.Context, patchText string) (ApplyResult, error) {
	patchFile := filepath.Join(w.repoPath, scratchPatch)
	if err := os.WriteFile(patchFile, []byte(patchText), 0644); err != nil {
		return ApplyResult{}, fmt.Errorf("failed to write patch file: %w", err)
	}
	defer os.Remove(patchFile)

	res, err := w.runner.Run(ctx, w.repoPath, "git", "apply", "--index", scratchPatch)
	if err != nil {
		return ApplyResult{}, fmt.Errorf("git apply: %w", err)
	}

	whitespace := false
	if !res.OK() {
		// Generated patches commonly carry trailing-whitespace mismatches
		// unrelated to the change itself; one relaxed retry, no more.
		res, err = w.runner.Run(ctx, w.repoPath, "git", "apply", "--index", "--whitespace=fix", scratchPatch)
		if err != nil {
			return ApplyResult{}, fmt.Errorf("git apply retry: %w", err)
		}
		whitespace = res.OK()
	}

	if !res.OK() {
		return ApplyResult{OK: false, Detail: strings.TrimSpace(res.Stderr)}, nil
	}

	if err := w.git(ctx, "add", "-A"); err != nil {
		return ApplyResult{}, err
	}
	return ApplyResult{OK: true, Whitespace: whitespace, Detail: "patch applied"}, nil
}

// Commit commits staged changes. Failure (for example nothing staged)
// is reported via the bool, not as a fatal error.
func (w *Workspace) Commit(ctx context.Context, message string) (bool, error) {
	res, err := w.runner.Run(ctx, w.repoPath, "git", "commit", "-m", message)
	if err != nil {
		return false, fmt.Errorf("git commit: %w", err)
	}
	if !res.OK() {
		w.logger.Warn("commit failed", "stderr", strings.TrimSpace(res.Stderr), "stdout", strings.TrimSpace(res.Stdout))
	}
	return res.OK(), nil
}

// CheckoutDefault switches back to the configured default branch,
// used by the rollback path.
func (w *Workspace) CheckoutDefault(ctx context.Context) error {
	return w.git(ctx, "checkout", w.defaultBranch)
}

// DiffSummary returns a human-readable summary of the last commit's
// changes, or empty text when unavailable.
func (w *Workspace) DiffSummary(ctx context.Context) string {
	res, err := w.runner.Run(ctx, w.repoPath, "git", "diff", "--stat", "HEAD~1")
	if err != nil || !res.OK() {
		return ""
	}
	return res.Stdout
}

// CurrentBranch reads the checked-out branch without shelling out.
// It falls back to the default branch when the repository cannot be
// introspected (bare repo, detached HEAD, not a repo at all).
func (w *Workspace) CurrentBranch() string {
	repo, err := git.PlainOpen(w.repoPath)
	if err != nil {
		return w.defaultBranch
	}
	head, err := repo.Head()
	if err != nil {
		return w.defaultBranch
	}
	if head.Name().IsBranch() {
		return head.Name().Short()
	}
	return w.defaultBranch
}

// git runs a git subcommand and converts a nonzero exit into *Error.
func (w *Workspace) git(ctx context.Context, args ...string) error {
	res, err := w.runner.Run(ctx, w.repoPath, "git", args...)
	if err != nil {
		return fmt.Errorf("git %s: %w", args[0], err)
	}
	if !res.OK() {
		return &Error{Step: "git " + strings.Join(args, " "), Output: res.Stderr}
	}
	return nil
}
