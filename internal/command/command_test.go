package command

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestExecRunnerCapturesOutput(t *testing.T) {
	var r ExecRunner

	res, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "echo out; echo err >&2")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !res.OK() {
		t.Errorf("expected zero exit, got %d", res.ExitCode)
	}
	if strings.TrimSpace(res.Stdout) != "out" {
		t.Errorf("unexpected stdout: %q", res.Stdout)
	}
	if strings.TrimSpace(res.Stderr) != "err" {
		t.Errorf("unexpected stderr: %q", res.Stderr)
	}
}

func TestExecRunnerNonzeroExitIsNotAnError(t *testing.T) {
	var r ExecRunner

	res, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "exit 3")
	if err != nil {
		t.Fatalf("nonzero exit should not be an error: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	var r ExecRunner

	if _, err := r.Run(context.Background(), t.TempDir(), "forge-no-such-binary"); err == nil {
		t.Fatal("expected error for missing binary")
	}
}

func TestExecRunnerHonorsContext(t *testing.T) {
	var r ExecRunner

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := r.Run(ctx, t.TempDir(), "sleep", "10")
	if err == nil {
		t.Fatal("expected error when context expires")
	}
}

func TestShell(t *testing.T) {
	name, args := Shell("make test")
	if name != "sh" || len(args) != 2 || args[0] != "-c" || args[1] != "make test" {
		t.Errorf("unexpected shell wrapping: %s %v", name, args)
	}
}
