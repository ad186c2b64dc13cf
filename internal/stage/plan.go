package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode"

	"github.com/ldi/forge/embed/prompts"
	"github.com/ldi/forge/internal/llm"
	"github.com/ldi/forge/pkg/models"
)

// Planner turns a directive into a structured plan. The collaborator is
// optional: when nil, a minimal fallback plan carrying the raw
// directive is substituted so implementation never runs unplanned.
type Planner struct {
	completer llm.Completer
	logger    *slog.Logger
}

func NewPlanner(completer llm.Completer, logger *slog.Logger) *Planner {
	return &Planner{completer: completer, logger: logger}
}

func (p *Planner) Name() string { return "plan" }

func (p *Planner) Run(ctx context.Context, pctx *Context, _ *models.Artifact) (*models.Artifact, error) {
	directive := pctx.Task.Text

	if p.completer == nil {
		p.logger.Info("planning collaborator unavailable, using fallback plan", "task", pctx.Task.ID)
		return planArtifact(pctx.Task.ID, FallbackPlan(directive)), nil
	}

	text, err := p.completer.Complete(ctx, p.buildPrompt(pctx), prompts.PlannerSystem)
	if err != nil {
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	plan := ParsePlan(directive, text)
	p.logger.Info("plan created", "task", pctx.Task.ID, "steps", len(plan.Steps))
	return planArtifact(pctx.Task.ID, plan), nil
}

func (p *Planner) buildPrompt(pctx *Context) string {
	var sb strings.Builder
	sb.WriteString("Project Context:\n")
	fmt.Fprintf(&sb, "- Repository: %s\n", pctx.RepoPath)
	fmt.Fprintf(&sb, "- Current Branch: %s\n\n", pctx.Branch)
	sb.WriteString("Task Directive:\n")
	sb.WriteString(pctx.Task.Text)
	sb.WriteString("\n\nCreate a detailed technical specification for implementing this directive.\n")
	sb.WriteString("Be specific about implementation details, not abstract concepts.")
	return sb.String()
}

// FallbackPlan builds the minimal plan used when planning is disabled:
// the raw directive as the sole step.
func FallbackPlan(directive string) *models.Plan {
	return &models.Plan{
		Directive:  directive,
		PlanText:   "Implement: " + directive,
		Components: []string{"main"},
		Steps:      []string{directive},
		Files:      []models.PlanFile{},
		Acceptance: []string{"Directive implemented as requested"},
		Fallback:   true,
		CreatedAt:  time.Now().UTC(),
	}
}

// ParsePlan extracts the structured fields from free-form plan text
// using the fixed section-header convention. Parsing is tolerant: a
// missing section yields an empty list, never an error.
func ParsePlan(directive, text string) *models.Plan {
	return &models.Plan{
		Directive:  directive,
		PlanText:   text,
		Components: dashItems(section(text, "COMPONENTS:")),
		Steps:      numberedItems(section(text, "IMPLEMENTATION STEPS:")),
		Files:      fileItems(section(text, "FILE STRUCTURE:")),
		Acceptance: dashItems(section(text, "ACCEPTANCE CRITERIA:")),
		CreatedAt:  time.Now().UTC(),
	}
}

// section returns the text between a header and the next blank line.
func section(text, header string) string {
	_, rest, found := strings.Cut(text, header)
	if !found {
		return ""
	}
	body, _, _ := strings.Cut(rest, "\n\n")
	return body
}

func dashItems(body string) []string {
	items := []string{}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			if item := strings.TrimSpace(strings.TrimLeft(trimmed, "- ")); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

func numberedItems(body string) []string {
	items := []string{}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || !unicode.IsDigit(rune(trimmed[0])) {
			continue
		}
		item := strings.TrimLeft(trimmed, "0123456789.) ")
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

func fileItems(body string) []models.PlanFile {
	files := []models.PlanFile{}
	for _, line := range strings.Split(body, "\n") {
		path, purpose, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		path = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(path), "- "))
		if path == "" || !(strings.ContainsRune(path, '/') || strings.ContainsRune(path, '.')) {
			continue
		}
		files = append(files, models.PlanFile{
			Path:    path,
			Purpose: strings.TrimSpace(purpose),
		})
	}
	return files
}

func planArtifact(taskID string, plan *models.Plan) *models.Artifact {
	return &models.Artifact{
		TaskID:    taskID,
		Stage:     models.StagePlan,
		CreatedAt: time.Now().UTC(),
		Plan:      plan,
	}
}
