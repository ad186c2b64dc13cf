package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ldi/forge/embed/prompts"
	"github.com/ldi/forge/internal/llm"
	"github.com/ldi/forge/internal/patch"
	"github.com/ldi/forge/pkg/models"
)

// Implementer turns a plan into unified-diff patch text. Unlike
// planning, its collaborator is mandatory.
type Implementer struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewImplementer(completer llm.Completer, logger *slog.Logger) *Implementer {
	return &Implementer{completer: completer, logger: logger}
}

func (i *Implementer) Name() string { return "implement" }

func (i *Implementer) Run(ctx context.Context, pctx *Context, in *models.Artifact) (*models.Artifact, error) {
	if in == nil || in.Plan == nil {
		return nil, fmt.Errorf("implement stage requires a plan artifact")
	}
	if i.completer == nil {
		return nil, fmt.Errorf("implement collaborator not configured")
	}

	out, err := i.completer.Complete(ctx, i.buildPrompt(pctx, in.Plan), prompts.ImplementerSystem)
	if err != nil {
		return nil, fmt.Errorf("implementation failed: %w", err)
	}

	if strings.TrimSpace(out) == "" {
		return nil, ErrEmptyPatch
	}
	if !patch.IsValid(out) {
		return nil, ErrInvalidPatch
	}

	i.logger.Info("implementation patch generated", "task", pctx.Task.ID, "bytes", len(out))
	return &models.Artifact{
		TaskID:    pctx.Task.ID,
		Stage:     models.StageImplement,
		CreatedAt: time.Now().UTC(),
		Patch:     out,
	}, nil
}

func (i *Implementer) buildPrompt(pctx *Context, plan *models.Plan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Repository: %s\n", pctx.RepoPath)
	fmt.Fprintf(&sb, "Branch: %s\n\n", pctx.Branch)
	sb.WriteString("TECHNICAL SPECIFICATION:\n")
	sb.WriteString(strings.Repeat("=", 50) + "\n")
	sb.WriteString(plan.PlanText)
	sb.WriteString("\n" + strings.Repeat("=", 50) + "\n\n")
	sb.WriteString("Implement this specification as a unified diff patch.\n")
	sb.WriteString("Create/modify all necessary files as specified.\n")
	sb.WriteString("Output ONLY the patch, no explanations.")
	return sb.String()
}
