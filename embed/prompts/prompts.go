package prompts

import _ "embed"

// PlannerSystem is the system prompt for the planning stage.
//
//go:embed planner_system.md
var PlannerSystem string

// ImplementerSystem is the system prompt for the implement stage.
//
//go:embed implementer_system.md
var ImplementerSystem string
