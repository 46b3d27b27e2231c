package generate

import (
	"context"

	"github.com/jingkaihe/skillkit/pkg/logger"
)

// DefaultMaxAttempts bounds the generate-validate-repair loop
const DefaultMaxAttempts = 3

// Stats records what the loop did
type Stats struct {
	Attempts         int       `json:"attempts"`
	IssuesPerAttempt [][]Issue `json:"issues_per_attempt,omitempty"`
}

// PipelineResult is the loop outcome. A draft that never validated is a
// result, not an error: Skill is nil, Accepted is false, and the per-attempt
// issues explain why.
type PipelineResult struct {
	Accepted   bool            `json:"accepted"`
	Skill      *GeneratedSkill `json:"-"`
	LastResult Result          `json:"last_result"`
	Stats      Stats           `json:"stats"`
}

// Pipeline drives generation attempts until a draft validates or the
// attempt budget runs out
type Pipeline struct {
	generator   *Generator
	maxAttempts int
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithMaxAttempts overrides the attempt budget; values below one are ignored
func WithMaxAttempts(n int) PipelineOption {
	return func(p *Pipeline) {
		if n >= 1 {
			p.maxAttempts = n
		}
	}
}

// NewPipeline creates a pipeline around a generator
func NewPipeline(generator *Generator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{generator: generator, maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes the loop. It returns an error only for spec or context
// problems; a draft that keeps failing validation comes back as a
// non-accepted result carrying the full issue trail.
func (p *Pipeline) Run(ctx context.Context, spec Spec) (*PipelineResult, error) {
	log := logger.G(ctx)
	result := &PipelineResult{}

	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Stats.Attempts = attempt

		draft, err := p.generator.Generate(ctx, spec)
		if err != nil {
			return nil, err
		}

		validation := Validate(draft)
		result.LastResult = validation
		result.Stats.IssuesPerAttempt = append(result.Stats.IssuesPerAttempt, validation.Issues)

		if validation.Valid() {
			result.Accepted = true
			result.Skill = draft
			return result, nil
		}

		log.WithField("attempt", attempt).
			WithField("errors", len(validation.Errors())).
			Info("draft rejected, repairing")
		spec.Guidance = validation.Guidance()
	}

	log.WithField("attempts", result.Stats.Attempts).Warn("no valid draft within the attempt budget")
	return result, nil
}
