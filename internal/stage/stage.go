// Package stage implements the pipeline's transformation chain. Each
// stage consumes the previous stage's artifact and produces a new one
// under a uniform contract; the orchestrator owns ordering and the
// per-task state machine.
package stage

import (
	"context"
	"errors"

	"github.com/ldi/forge/pkg/models"
)

// ErrEmptyPatch is returned when the implement collaborator produces
// blank output.
var ErrEmptyPatch = errors.New("collaborator returned an empty patch")

// ErrInvalidPatch is returned when implement output is not recognizable
// unified-diff text.
var ErrInvalidPatch = errors.New("collaborator output is not a unified diff")

// Context carries the task and repository state shared across one
// attempt's stage chain. The orchestrator fills Plan after the plan
// stage so later stages can reference it.
type Context struct {
	Task     *models.TaskRecord
	RepoPath string
	Branch   string
	Plan     *models.Plan
}

// Runner is one pipeline stage.
type Runner interface {
	Name() string
	Run(ctx context.Context, pctx *Context, in *models.Artifact) (*models.Artifact, error)
}
