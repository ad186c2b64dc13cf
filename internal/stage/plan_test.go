package stage

import (
	"context"
	"errors"
	"testing"

	"github.com/ldi/forge/internal/logging"
	"github.com/ldi/forge/pkg/models"
)

type fakeCompleter struct {
	out        string
	err        error
	lastPrompt string
	lastSystem string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt, system string) (string, error) {
	f.lastPrompt = prompt
	f.lastSystem = system
	return f.out, f.err
}

func testContext() *Context {
	return &Context{
		Task:     &models.TaskRecord{ID: "task-1", Kind: models.TaskKindTask, Text: "add retry logic to the fetcher"},
		RepoPath: "/tmp/repo",
		Branch:   "auto/abc123",
	}
}

const samplePlan = `Overview of the change.

COMPONENTS:
- fetcher
- retry policy

IMPLEMENTATION STEPS:
1. Add a backoff helper
2) Wire it into Fetch
3. Cover with tests

FILE STRUCTURE:
- internal/fetch/retry.go: backoff helper
- internal/fetch/fetch.go: call sites
not a file line

ACCEPTANCE CRITERIA:
- transient errors are retried three times
- permanent errors fail immediately
`

func TestParsePlanSections(t *testing.T) {
	plan := ParsePlan("directive", samplePlan)

	if len(plan.Components) != 2 || plan.Components[0] != "fetcher" {
		t.Errorf("components = %v", plan.Components)
	}
	if len(plan.Steps) != 3 {
		t.Fatalf("steps = %v", plan.Steps)
	}
	if plan.Steps[1] != "Wire it into Fetch" {
		t.Errorf("step numbering not stripped: %q", plan.Steps[1])
	}
	if len(plan.Files) != 2 {
		t.Fatalf("files = %v", plan.Files)
	}
	if plan.Files[0].Path != "internal/fetch/retry.go" || plan.Files[0].Purpose != "backoff helper" {
		t.Errorf("file entry = %+v", plan.Files[0])
	}
	if len(plan.Acceptance) != 2 {
		t.Errorf("acceptance = %v", plan.Acceptance)
	}
	if plan.PlanText != samplePlan {
		t.Error("raw plan text not preserved")
	}
}

func TestParsePlanMissingSections(t *testing.T) {
	plan := ParsePlan("directive", "just prose, no headers at all")

	if len(plan.Components) != 0 || len(plan.Steps) != 0 || len(plan.Files) != 0 || len(plan.Acceptance) != 0 {
		t.Errorf("expected empty sections, got %+v", plan)
	}
	if plan.Directive != "directive" {
		t.Errorf("directive = %q", plan.Directive)
	}
}

func TestPlannerFallbackWithoutCompleter(t *testing.T) {
	p := NewPlanner(nil, logging.Discard())

	art, err := p.Run(context.Background(), testContext(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Stage != models.StagePlan || art.Plan == nil {
		t.Fatalf("artifact = %+v", art)
	}
	if !art.Plan.Fallback {
		t.Error("fallback plan not marked")
	}
	if len(art.Plan.Steps) != 1 || art.Plan.Steps[0] != "add retry logic to the fetcher" {
		t.Errorf("fallback steps = %v", art.Plan.Steps)
	}
}

func TestPlannerCompleterError(t *testing.T) {
	p := NewPlanner(&fakeCompleter{err: errors.New("model unavailable")}, logging.Discard())

	if _, err := p.Run(context.Background(), testContext(), nil); err == nil {
		t.Fatal("expected error when configured completer fails")
	}
}

func TestPlannerParsesCompleterOutput(t *testing.T) {
	fc := &fakeCompleter{out: samplePlan}
	p := NewPlanner(fc, logging.Discard())

	art, err := p.Run(context.Background(), testContext(), nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if art.Plan.Fallback {
		t.Error("parsed plan wrongly marked fallback")
	}
	if len(art.Plan.Steps) != 3 {
		t.Errorf("steps = %v", art.Plan.Steps)
	}
	if fc.lastSystem == "" {
		t.Error("system prompt not supplied")
	}
}
