package models

import "time"

type Stage string

const (
	StagePlan      Stage = "plan"
	StageImplement Stage = "implement"
	StageIntegrate Stage = "integrate"
)

// Artifact is the structured output of one pipeline stage. Exactly one
// payload field is set, matching Stage.
type Artifact struct {
	TaskID    string    `json:"task_id"`
	Stage     Stage     `json:"stage"`
	CreatedAt time.Time `json:"created_at"`

	Plan        *Plan               `json:"plan,omitempty"`
	Patch       string              `json:"patch,omitempty"`
	Integration *IntegrationPackage `json:"integration,omitempty"`
}

// IntegrationPackage references the files written for one task under the
// integration-artifacts root.
type IntegrationPackage struct {
	TaskID           string     `json:"task_id"`
	Directive        string     `json:"original_directive"`
	Components       []string   `json:"components"`
	Files            []PlanFile `json:"files_modified"`
	Acceptance       []string   `json:"acceptance_criteria"`
	PatchFile        string     `json:"patch_file"`
	InstructionsFile string     `json:"instructions_file"`
	ChecklistFile    string     `json:"checklist_file"`
	GuideFile        string     `json:"guide_file"`
	CreatedAt        time.Time  `json:"timestamp"`
}
