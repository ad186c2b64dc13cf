// Package llm abstracts the generative-text collaborators behind the
// plan and implement stages. The pipeline depends only on Completer,
// so tests substitute deterministic fakes.
package llm

import "context"

// Completer produces text for a prompt under system instructions.
// Implementations must tolerate empty or garbled upstream responses by
// returning them as-is or as an error; they must never panic. Callers
// bound each invocation with a context deadline.
type Completer interface {
	Complete(ctx context.Context, prompt, system string) (string, error)
}
