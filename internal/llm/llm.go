// Package llm defines the single-shot language-model collaborator and
// its OpenAI-backed implementation.
//
// The engine treats completions as strictly best-effort: every call
// site has a static fallback value, and a failed or slow completion
// never blocks a workflow from reaching its terminal state.
package llm

import "context"

// Completer produces a text completion for a system/user prompt pair.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
