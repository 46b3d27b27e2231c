// Package llm defines the text-generation collaborator used by the
// generation and enhancement paths, plus an OpenAI-backed implementation.
// Provider failures are recoverable by contract: callers fall back to
// heuristics instead of failing the pipeline.
package llm

import "context"

// Client is the minimal generation surface the skill library needs. A nil
// Client is a valid configuration; every consumer carries a heuristic
// fallback.
type Client interface {
	// Generate returns free-form text for a prompt
	Generate(ctx context.Context, prompt string) (string, error)
	// GenerateJSON returns a structured response as a decoded JSON object
	GenerateJSON(ctx context.Context, prompt string) (map[string]interface{}, error)
}
