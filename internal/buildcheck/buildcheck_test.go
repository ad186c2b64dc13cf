package buildcheck

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ldi/forge/internal/command"
	"github.com/ldi/forge/internal/logging"
)

type fakeRunner struct {
	lastDir  string
	lastName string
	lastArgs []string
	result   command.Result
	err      error
}

func (f *fakeRunner) Run(_ context.Context, dir, name string, args ...string) (command.Result, error) {
	f.lastDir = dir
	f.lastName = name
	f.lastArgs = args
	return f.result, f.err
}

func TestRunBuildPassesCommandThroughShell(t *testing.T) {
	fr := &fakeRunner{result: command.Result{ExitCode: 0, Stdout: "ok"}}
	c := New("/repo", "make build", "make test", fr, logging.Discard())

	res, err := c.RunBuild(context.Background())
	if err != nil {
		t.Fatalf("RunBuild: %v", err)
	}
	if !res.OK() || res.Skipped {
		t.Errorf("result = %+v", res)
	}
	if fr.lastDir != "/repo" {
		t.Errorf("dir = %q", fr.lastDir)
	}
	if fr.lastName != "sh" || len(fr.lastArgs) != 2 || fr.lastArgs[1] != "make build" {
		t.Errorf("invocation = %s %v", fr.lastName, fr.lastArgs)
	}
}

func TestRunTestFailureIsResultNotError(t *testing.T) {
	fr := &fakeRunner{result: command.Result{ExitCode: 2, Stderr: "FAIL"}}
	c := New("/repo", "", "go test ./...", fr, logging.Discard())

	res, err := c.RunTest(context.Background())
	if err != nil {
		t.Fatalf("RunTest: %v", err)
	}
	if res.OK() {
		t.Error("exit 2 reported as passing")
	}
	if res.Stderr != "FAIL" {
		t.Errorf("stderr = %q", res.Stderr)
	}
}

func TestEmptyCommandSkips(t *testing.T) {
	fr := &fakeRunner{}
	c := New("/repo", "", "", fr, logging.Discard())

	res, err := c.RunBuild(context.Background())
	if err != nil {
		t.Fatalf("RunBuild: %v", err)
	}
	if !res.Skipped || !res.OK() {
		t.Errorf("result = %+v", res)
	}
	if fr.lastName != "" {
		t.Error("runner invoked for empty command")
	}
}

func TestRunnerErrorPropagates(t *testing.T) {
	fr := &fakeRunner{err: errors.New("sh not found")}
	c := New("/repo", "make", "", fr, logging.Discard())

	if _, err := c.RunBuild(context.Background()); err == nil {
		t.Fatal("expected runner error to propagate")
	}
}

func TestOutputTruncated(t *testing.T) {
	big := strings.Repeat("x", maxOutput+100)
	fr := &fakeRunner{result: command.Result{Stdout: big}}
	c := New("/repo", "make", "", fr, logging.Discard())

	res, err := c.RunBuild(context.Background())
	if err != nil {
		t.Fatalf("RunBuild: %v", err)
	}
	if len(res.Stdout) >= len(big) {
		t.Error("stdout not truncated")
	}
	if !strings.HasSuffix(res.Stdout, "(truncated)") {
		t.Error("truncation marker missing")
	}
}
