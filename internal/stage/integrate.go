package stage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ldi/forge/pkg/models"
)

// Integrator packages the validated patch together with human-readable
// handoff documents under <root>/<taskID>/. It invents nothing: every
// file is derived from the plan and patch produced upstream.
type Integrator struct {
	root   string
	logger *slog.Logger
}

func NewIntegrator(root string, logger *slog.Logger) *Integrator {
	return &Integrator{root: root, logger: logger}
}

func (g *Integrator) Name() string { return "integrate" }

func (g *Integrator) Run(ctx context.Context, pctx *Context, in *models.Artifact) (*models.Artifact, error) {
	if in == nil || in.Patch == "" {
		return nil, fmt.Errorf("integrate stage requires a patch artifact")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Join(g.root, pctx.Task.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}

	plan := pctx.Plan
	if plan == nil {
		plan = &models.Plan{Directive: pctx.Task.Text}
	}

	pkg := &models.IntegrationPackage{
		TaskID:           pctx.Task.ID,
		Directive:        plan.Directive,
		Components:       plan.Components,
		Files:            plan.Files,
		Acceptance:       plan.Acceptance,
		PatchFile:        filepath.Join(dir, "implementation.patch"),
		InstructionsFile: filepath.Join(dir, "instructions.md"),
		ChecklistFile:    filepath.Join(dir, "test_checklist.md"),
		GuideFile:        filepath.Join(dir, "integration_guide.md"),
		CreatedAt:        time.Now().UTC(),
	}

	writes := []struct {
		path string
		body string
	}{
		{pkg.PatchFile, in.Patch},
		{pkg.InstructionsFile, g.instructions(pkg)},
		{pkg.ChecklistFile, g.checklist(pkg)},
		{pkg.GuideFile, g.guide(pkg)},
	}
	for _, w := range writes {
		if err := os.WriteFile(w.path, []byte(w.body), 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", filepath.Base(w.path), err)
		}
	}

	meta, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal integration context: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "context.json"), meta, 0o644); err != nil {
		return nil, fmt.Errorf("write context.json: %w", err)
	}

	g.logger.Info("integration package written", "task", pctx.Task.ID, "dir", dir)
	return &models.Artifact{
		TaskID:      pctx.Task.ID,
		Stage:       models.StageIntegrate,
		CreatedAt:   pkg.CreatedAt,
		Patch:       in.Patch,
		Integration: pkg,
	}, nil
}

func (g *Integrator) instructions(pkg *models.IntegrationPackage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Integration Instructions\n\nTask: %s\n\n## Directive\n\n%s\n\n", pkg.TaskID, pkg.Directive)
	sb.WriteString("## Apply\n\n```\ngit apply --index implementation.patch\n```\n\n")
	if len(pkg.Components) > 0 {
		sb.WriteString("## Components\n\n")
		for _, c := range pkg.Components {
			fmt.Fprintf(&sb, "- %s\n", c)
		}
		sb.WriteString("\n")
	}
	if len(pkg.Files) > 0 {
		sb.WriteString("## Files\n\n")
		for _, f := range pkg.Files {
			fmt.Fprintf(&sb, "- `%s` — %s\n", f.Path, f.Purpose)
		}
	}
	return sb.String()
}

func (g *Integrator) checklist(pkg *models.IntegrationPackage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Test Checklist\n\nTask: %s\n\n", pkg.TaskID)
	if len(pkg.Acceptance) == 0 {
		sb.WriteString("- [ ] Build succeeds after applying the patch\n")
		sb.WriteString("- [ ] Existing test suite passes\n")
		return sb.String()
	}
	for _, a := range pkg.Acceptance {
		fmt.Fprintf(&sb, "- [ ] %s\n", a)
	}
	return sb.String()
}

func (g *Integrator) guide(pkg *models.IntegrationPackage) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Integration Guide\n\nTask: %s\nGenerated: %s\n\n", pkg.TaskID, pkg.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "%s\n\n", pkg.Directive)
	sb.WriteString("Review `instructions.md` for the apply procedure and\n")
	sb.WriteString("`test_checklist.md` for verification steps. The raw patch\n")
	sb.WriteString("lives in `implementation.patch`; `context.json` carries the\n")
	sb.WriteString("machine-readable description of this package.\n")
	return sb.String()
}
