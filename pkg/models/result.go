package models

// CheckResult captures one build or test command invocation. Skipped is
// true when no command is configured, which is not a failure.
type CheckResult struct {
	Skipped  bool   `json:"skipped"`
	ExitCode int    `json:"exit_code,omitempty"`
	Stdout   string `json:"stdout,omitempty"`
	Stderr   string `json:"stderr,omitempty"`
}

// OK reports whether the check passed or was skipped.
func (r CheckResult) OK() bool {
	return r.Skipped || r.ExitCode == 0
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// Report is the terminal outcome of one task attempt. Build and Test
// may fail without failing the attempt (degraded success).
type Report struct {
	TaskID       string      `json:"task_id"`
	Outcome      Outcome     `json:"status"`
	Branch       string      `json:"branch,omitempty"`
	DiffSummary  string      `json:"diff_summary,omitempty"`
	FilesChanged []string    `json:"files_changed,omitempty"`
	Build        CheckResult `json:"build"`
	Tests        CheckResult `json:"tests"`
	Err          string      `json:"error,omitempty"`
}

// Degraded reports whether the attempt succeeded but a configured build
// or test command failed.
func (r Report) Degraded() bool {
	return r.Outcome == OutcomeSuccess && (!r.Build.OK() || !r.Tests.OK())
}
