package workspace

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ldi/forge/internal/command"
	"github.com/ldi/forge/internal/logging"
)

// fakeRunner scripts results per command prefix and records every call.
type fakeRunner struct {
	calls   [][]string
	results map[string]command.Result
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, dir string, name string, args ...string) (command.Result, error) {
	call := append([]string{name}, args...)
	f.calls = append(f.calls, call)
	if f.err != nil {
		return command.Result{}, f.err
	}
	for prefix, res := range f.results {
		if strings.HasPrefix(strings.Join(call, " "), prefix) {
			return res, nil
		}
	}
	return command.Result{}, nil
}

func (f *fakeRunner) joined() []string {
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = strings.Join(c, " ")
	}
	return out
}

func newTestWorkspace(t *testing.T, runner command.Runner) *Workspace {
	t.Helper()
	return New(t.TempDir(), "main", runner, logging.Discard())
}

func TestCreateBranchSequence(t *testing.T) {
	f := &fakeRunner{}
	w := newTestWorkspace(t, f)

	name, err := w.CreateBranch(context.Background(), "auto")
	if err != nil {
		t.Fatalf("create branch failed: %v", err)
	}
	if !strings.HasPrefix(name, "auto/") {
		t.Errorf("expected auto/ prefix, got %q", name)
	}
	if len(name) != len("auto/")+8 {
		t.Errorf("expected 8-character suffix, got %q", name)
	}

	calls := f.joined()
	want := []string{
		"git reset --hard",
		"git clean -fd",
		"git checkout main",
		"git pull",
		"git checkout -b " + name,
	}
	if len(calls) != len(want) {
		t.Fatalf("expected %d git calls, got %v", len(want), calls)
	}
	for i, c := range want {
		if calls[i] != c {
			t.Errorf("call %d: expected %q, got %q", i, c, calls[i])
		}
	}
}

func TestCreateBranchPullFailureIsNonFatal(t *testing.T) {
	f := &fakeRunner{results: map[string]command.Result{
		"git pull": {ExitCode: 1, Stderr: "no network"},
	}}
	w := newTestWorkspace(t, f)

	if _, err := w.CreateBranch(context.Background(), "auto"); err != nil {
		t.Fatalf("pull failure must not fail branch creation: %v", err)
	}
}

func TestCreateBranchCheckoutFailure(t *testing.T) {
	f := &fakeRunner{results: map[string]command.Result{
		"git checkout main": {ExitCode: 1, Stderr: "pathspec 'main' did not match"},
	}}
	w := newTestWorkspace(t, f)

	_, err := w.CreateBranch(context.Background(), "auto")
	if err == nil {
		t.Fatal("expected error when checkout fails")
	}
	var wsErr *Error
	if !errors.As(err, &wsErr) {
		t.Fatalf("expected workspace.Error, got %T: %v", err, err)
	}
	if !strings.Contains(wsErr.Error(), "pathspec") {
		t.Errorf("expected diagnostic text, got %q", wsErr.Error())
	}
}

func TestApplyPatchStrictSuccess(t *testing.T) {
	f := &fakeRunner{}
	w := newTestWorkspace(t, f)

	res, err := w.ApplyPatch(context.Background(), "diff --git a/x b/x\n")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !res.OK || res.Whitespace {
		t.Errorf("expected strict apply success, got %+v", res)
	}

	calls := f.joined()
	if len(calls) != 2 {
		t.Fatalf("expected apply + add, got %v", calls)
	}
	if calls[0] != "git apply --index .forge.patch" {
		t.Errorf("unexpected first call %q", calls[0])
	}
	if calls[1] != "git add -A" {
		t.Errorf("unexpected second call %q", calls[1])
	}
}

func TestApplyPatchWhitespaceRetry(t *testing.T) {
	f := &fakeRunner{results: map[string]command.Result{
		"git apply --index .forge.patch": {ExitCode: 1, Stderr: "trailing whitespace"},
	}}
	w := newTestWorkspace(t, f)

	res, err := w.ApplyPatch(context.Background(), "diff --git a/x b/x\n")
	if err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if !res.OK {
		t.Fatalf("expected retry to succeed, got %+v", res)
	}
	if !res.Whitespace {
		t.Error("expected whitespace retry to be flagged")
	}

	calls := f.joined()
	if calls[1] != "git apply --index --whitespace=fix .forge.patch" {
		t.Errorf("expected whitespace retry, got %q", calls[1])
	}
}

func TestApplyPatchBothAttemptsFail(t *testing.T) {
	f := &fakeRunner{results: map[string]command.Result{
		"git apply": {ExitCode: 1, Stderr: "corrupt patch at line 3"},
	}}
	w := newTestWorkspace(t, f)

	res, err := w.ApplyPatch(context.Background(), "garbage")
	if err != nil {
		t.Fatalf("apply returned pipeline error: %v", err)
	}
	if res.OK {
		t.Fatal("expected apply failure")
	}
	if !strings.Contains(res.Detail, "corrupt patch") {
		t.Errorf("expected tool diagnostic in detail, got %q", res.Detail)
	}

	// Exactly two attempts, never a third.
	if len(f.calls) != 2 {
		t.Errorf("expected exactly 2 apply attempts, got %d", len(f.calls))
	}
}

func TestApplyPatchRemovesScratchFile(t *testing.T) {
	f := &fakeRunner{results: map[string]command.Result{
		"git apply": {ExitCode: 1, Stderr: "rejected"},
	}}
	w := newTestWorkspace(t, f)

	if _, err := w.ApplyPatch(context.Background(), "bad"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.RepoPath(), scratchPatch)); !os.IsNotExist(err) {
		t.Error("scratch patch file left behind after failed apply")
	}

	f.results = nil
	if _, err := w.ApplyPatch(context.Background(), "diff --git a/x b/x\n"); err != nil {
		t.Fatalf("apply failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(w.RepoPath(), scratchPatch)); !os.IsNotExist(err) {
		t.Error("scratch patch file left behind after successful apply")
	}
}

func TestCommitFailureIsReportedNotFatal(t *testing.T) {
	f := &fakeRunner{results: map[string]command.Result{
		"git commit": {ExitCode: 1, Stdout: "nothing to commit"},
	}}
	w := newTestWorkspace(t, f)

	ok, err := w.Commit(context.Background(), "auto: abc")
	if err != nil {
		t.Fatalf("commit returned error: %v", err)
	}
	if ok {
		t.Error("expected commit to report failure")
	}
}

func TestDiffSummaryBestEffort(t *testing.T) {
	f := &fakeRunner{results: map[string]command.Result{
		"git diff --stat HEAD~1": {Stdout: " x | 2 +-\n 1 file changed"},
	}}
	w := newTestWorkspace(t, f)

	if got := w.DiffSummary(context.Background()); !strings.Contains(got, "1 file changed") {
		t.Errorf("unexpected summary %q", got)
	}

	f.results = map[string]command.Result{
		"git diff": {ExitCode: 128, Stderr: "bad revision"},
	}
	if got := w.DiffSummary(context.Background()); got != "" {
		t.Errorf("expected empty summary on failure, got %q", got)
	}
}

func TestCurrentBranchFallback(t *testing.T) {
	// The temp dir is not a git repository; introspection falls back to
	// the configured default branch.
	w := newTestWorkspace(t, &fakeRunner{})
	if got := w.CurrentBranch(); got != "main" {
		t.Errorf("expected fallback to main, got %q", got)
	}
}
