// Package pipeline drives tasks through the stage chain: claim a
// queued task, branch the workspace, plan, implement, integrate, apply
// and commit the patch, then verify with the configured build and test
// commands. There is exactly one consumer; concurrency safety lives in
// the task store's claim rename, not here.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ldi/forge/internal/config"
	"github.com/ldi/forge/internal/notify"
	"github.com/ldi/forge/internal/patch"
	"github.com/ldi/forge/internal/stage"
	"github.com/ldi/forge/internal/taskstore"
	"github.com/ldi/forge/internal/workspace"
	"github.com/ldi/forge/pkg/models"
)

// Queue is the task store surface the pipeline needs.
type Queue interface {
	ClaimNext() (*taskstore.Handle, *models.TaskRecord, error)
	Complete(h *taskstore.Handle, success bool) error
	RecoverProcessing() (int, error)
}

// VersionControl is the workspace surface the pipeline needs.
type VersionControl interface {
	RepoPath() string
	CreateBranch(ctx context.Context, prefix string) (string, error)
	ApplyPatch(ctx context.Context, patchText string) (workspace.ApplyResult, error)
	Commit(ctx context.Context, message string) (bool, error)
	ResetClean(ctx context.Context) error
	CheckoutDefault(ctx context.Context) error
	DiffSummary(ctx context.Context) string
}

// Checker verifies the workspace after a commit.
type Checker interface {
	RunBuild(ctx context.Context) (*models.CheckResult, error)
	RunTest(ctx context.Context) (*models.CheckResult, error)
}

// Ledger records finished attempts.
type Ledger interface {
	RecordRun(ctx context.Context, report *models.Report, directive string, startedAt time.Time) error
}

// Pipeline is the single-consumer orchestration loop.
type Pipeline struct {
	queue    Queue
	vcs      VersionControl
	stages   []stage.Runner
	checker  Checker
	ledger   Ledger
	notifier notify.Notifier
	events   *notify.EventLog
	cfg      *config.Config
	logger   *slog.Logger
	program  *tea.Program
	NoTUI    bool
}

func New(queue Queue, vcs VersionControl, stages []stage.Runner, checker Checker, ledger Ledger, notifier notify.Notifier, events *notify.EventLog, cfg *config.Config, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		queue:    queue,
		vcs:      vcs,
		stages:   stages,
		checker:  checker,
		ledger:   ledger,
		notifier: notifier,
		events:   events,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run starts the orchestration loop, optionally under the TUI.
func (p *Pipeline) Run(ctx context.Context) error {
	if n, err := p.queue.RecoverProcessing(); err != nil {
		return fmt.Errorf("recover stranded tasks: %w", err)
	} else if n > 0 {
		p.logger.Info("stranded tasks re-queued", "count", n)
	}

	if p.NoTUI {
		return p.loop(ctx)
	}

	m := NewTUIModel(p.cfg.ImplementerModel)
	p.program = tea.NewProgram(m, tea.WithMouseCellMotion())

	done := make(chan struct{})
	var loopErr error

	go func() {
		defer close(done)
		loopErr = p.loop(ctx)
		if loopErr != nil && loopErr != context.Canceled {
			p.program.Send(loopErr)
		}
		p.program.Quit()
	}()

	_, err := p.program.Run()
	<-done

	if loopErr != nil && loopErr != context.Canceled {
		return loopErr
	}
	return err
}

func (p *Pipeline) loop(ctx context.Context) error {
	iteration := 1
	for {
		select {
		case <-ctx.Done():
			p.sendStatus("Pipeline stopping...")
			return ctx.Err()
		default:
		}

		handle, rec, err := p.queue.ClaimNext()
		if err != nil {
			return fmt.Errorf("claim next task: %w", err)
		}
		if handle == nil {
			if p.cfg.PollInterval == 0 {
				p.sendStatus("Queue drained, stopping.")
				return nil
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.cfg.PollInterval):
			}
			continue
		}

		p.sendIteration(iteration)
		p.sendTask(rec)

		started := time.Now().UTC()
		report := p.processTask(ctx, handle, rec)
		p.finishTask(rec, report, started)
		iteration++
	}
}

// processTask runs one attempt end to end. A panic inside a stage is
// contained here: the task fails, the workspace is rolled back, and
// the loop keeps going.
func (p *Pipeline) processTask(ctx context.Context, handle *taskstore.Handle, rec *models.TaskRecord) (report *models.Report) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("panic during task processing", "task", rec.ID, "panic", r)
			report = p.fail(ctx, handle, rec, fmt.Errorf("panic: %v", r))
		}
	}()

	if rec.Kind == models.TaskKindNote {
		p.sendOutput(fmt.Sprintf("Note %s recorded, nothing to run.\n", rec.ID))
		if err := p.queue.Complete(handle, true); err != nil {
			p.logger.Error("complete note failed", "task", rec.ID, "error", err)
		}
		return &models.Report{TaskID: rec.ID, Outcome: models.OutcomeSkipped,
			Build: models.CheckResult{Skipped: true}, Tests: models.CheckResult{Skipped: true}}
	}

	branch, err := p.vcs.CreateBranch(ctx, p.cfg.BranchPrefix)
	if err != nil {
		return p.fail(ctx, handle, rec, fmt.Errorf("create branch: %w", err))
	}
	p.sendStatus("Working on branch " + branch)

	pctx := &stage.Context{Task: rec, RepoPath: p.vcs.RepoPath(), Branch: branch}

	var art *models.Artifact
	for _, s := range p.stages {
		p.sendStatus("Stage: " + s.Name())
		stageCtx, cancel := context.WithTimeout(ctx, p.cfg.StageTimeout)
		art, err = s.Run(stageCtx, pctx, art)
		cancel()
		if err != nil {
			return p.failOnBranch(ctx, handle, rec, branch, fmt.Errorf("stage %s: %w", s.Name(), err))
		}
		if art.Plan != nil && pctx.Plan == nil {
			pctx.Plan = art.Plan
		}
	}

	if art == nil || art.Patch == "" {
		return p.failOnBranch(ctx, handle, rec, branch, stage.ErrEmptyPatch)
	}

	applied, err := p.vcs.ApplyPatch(ctx, art.Patch)
	if err != nil {
		return p.failOnBranch(ctx, handle, rec, branch, fmt.Errorf("apply patch: %w", err))
	}
	if !applied.OK {
		return p.failOnBranch(ctx, handle, rec, branch, &workspace.Error{Step: "git apply", Output: applied.Detail})
	}
	if applied.Whitespace {
		p.sendOutput("Patch applied with whitespace fixes.\n")
	}

	committed, err := p.vcs.Commit(ctx, commitMessage(rec))
	if err != nil {
		p.logger.Warn("commit failed", "task", rec.ID, "error", err)
	}

	report = &models.Report{
		TaskID:       rec.ID,
		Outcome:      models.OutcomeSuccess,
		Branch:       branch,
		FilesChanged: patch.Stat(art.Patch),
	}
	if committed {
		report.DiffSummary = p.vcs.DiffSummary(ctx)
	}

	report.Build = p.check(ctx, "build", p.checker.RunBuild)
	report.Tests = p.check(ctx, "tests", p.checker.RunTest)

	if err := p.queue.Complete(handle, true); err != nil {
		p.logger.Error("complete task failed", "task", rec.ID, "error", err)
	}
	return report
}

func (p *Pipeline) check(ctx context.Context, label string, run func(context.Context) (*models.CheckResult, error)) models.CheckResult {
	res, err := run(ctx)
	if err != nil {
		p.logger.Error("check could not run", "check", label, "error", err)
		return models.CheckResult{ExitCode: -1, Stderr: err.Error()}
	}
	return *res
}

// failOnBranch rolls the workspace back to the default branch before
// failing the task.
func (p *Pipeline) failOnBranch(ctx context.Context, handle *taskstore.Handle, rec *models.TaskRecord, branch string, cause error) *models.Report {
	rollbackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if err := p.vcs.ResetClean(rollbackCtx); err != nil {
		p.logger.Error("rollback reset failed", "task", rec.ID, "error", err)
	}
	if err := p.vcs.CheckoutDefault(rollbackCtx); err != nil {
		p.logger.Error("rollback checkout failed", "task", rec.ID, "error", err)
	}
	report := p.fail(ctx, handle, rec, cause)
	report.Branch = branch
	return report
}

func (p *Pipeline) fail(_ context.Context, handle *taskstore.Handle, rec *models.TaskRecord, cause error) *models.Report {
	p.logger.Error("task failed", "task", rec.ID, "error", cause)
	if err := p.queue.Complete(handle, false); err != nil {
		p.logger.Error("complete task failed", "task", rec.ID, "error", err)
	}
	return &models.Report{
		TaskID:  rec.ID,
		Outcome: models.OutcomeFailed,
		Err:     cause.Error(),
		Build:   models.CheckResult{Skipped: true},
		Tests:   models.CheckResult{Skipped: true},
	}
}

// finishTask records the attempt and fans the result out to the
// ledger, event log, notifier and TUI. All of it is best-effort.
func (p *Pipeline) finishTask(rec *models.TaskRecord, report *models.Report, started time.Time) {
	recordCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if p.ledger != nil {
		if err := p.ledger.RecordRun(recordCtx, report, rec.Text, started); err != nil {
			p.logger.Error("record run failed", "task", rec.ID, "error", err)
		}
	}
	if p.events != nil {
		p.events.Append("task_"+string(report.Outcome), map[string]any{
			"task":    rec.ID,
			"branch":  report.Branch,
			"error":   report.Err,
			"elapsed": time.Since(started).Round(time.Second).String(),
		})
	}
	if p.notifier != nil {
		p.notifier.Notify(recordCtx, notify.Progress(rec.ID, string(report.Outcome), summarize(report)))
	}

	p.sendTaskResult(rec, report.Outcome != models.OutcomeFailed)
	switch report.Outcome {
	case models.OutcomeSuccess:
		if report.Degraded() {
			p.sendOutput(fmt.Sprintf("Task %s committed on %s, but checks failed.\n", rec.ID, report.Branch))
		} else {
			p.sendOutput(fmt.Sprintf("Task %s completed on %s.\n", rec.ID, report.Branch))
		}
	case models.OutcomeFailed:
		p.sendOutput(fmt.Sprintf("Task %s failed: %s\n", rec.ID, report.Err))
	}
}

func summarize(report *models.Report) string {
	if report.Err != "" {
		return report.Err
	}
	if report.Degraded() {
		return "committed on " + report.Branch + " (checks failed)"
	}
	if report.Branch != "" {
		return "branch " + report.Branch
	}
	return ""
}

func commitMessage(rec *models.TaskRecord) string {
	directive := rec.Text
	// Truncate on a rune boundary so multi-byte directives stay valid UTF-8.
	if r := []rune(directive); len(r) > 60 {
		directive = string(r[:60])
	}
	id := rec.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("auto: %s - %s", id, directive)
}
