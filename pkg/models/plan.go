package models

import "time"

// PlanFile is one entry of a plan's file list.
type PlanFile struct {
	Path    string `json:"path"`
	Purpose string `json:"purpose"`
}

// Plan is the structured output of the planning stage. All list fields
// are best-effort extractions from free-form collaborator text; a
// missing section yields an empty list, never an error.
type Plan struct {
	Directive  string     `json:"directive"`
	PlanText   string     `json:"plan_text"`
	Components []string   `json:"components"`
	Steps      []string   `json:"steps"`
	Files      []PlanFile `json:"files"`
	Acceptance []string   `json:"acceptance"`
	Fallback   bool       `json:"fallback,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
