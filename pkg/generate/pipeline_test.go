package generate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineAcceptsFirstValidDraft(t *testing.T) {
	p := NewPipeline(New(nil))
	result, err := p.Run(context.Background(), Spec{Title: "Quick Skill", Description: "does one thing"})
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	require.NotNil(t, result.Skill)
	assert.Equal(t, 1, result.Stats.Attempts)
}

func TestPipelineRepairsAfterRejection(t *testing.T) {
	// first payload is missing steps, second fixes it
	client := &fakeClient{payloads: []map[string]interface{}{
		{"name": "fixer", "description": "d", "domain": "general"},
		{"name": "fixer", "description": "d", "domain": "general", "steps": []interface{}{"do it"}},
	}}

	p := NewPipeline(New(client))
	result, err := p.Run(context.Background(), Spec{Title: "Fixer"})
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, 2, result.Stats.Attempts)
	require.Len(t, client.prompts, 2)
	assert.Contains(t, client.prompts[1], "previous draft was rejected")
	assert.Contains(t, client.prompts[1], "execution_steps")
}

func TestPipelineExhaustsBudgetWithoutError(t *testing.T) {
	// the model never supplies a description or steps and the spec has
	// neither, so every attempt is rejected and the budget burns down
	client := &fakeClient{payloads: []map[string]interface{}{
		{"name": "hopeless", "domain": "general"},
	}}

	p := NewPipeline(New(client), WithMaxAttempts(4))
	result, err := p.Run(context.Background(), Spec{Title: "Hopeless"})
	require.NoError(t, err, "validation failure is a result, not an error")

	assert.False(t, result.Accepted)
	assert.Nil(t, result.Skill)
	assert.Equal(t, 4, result.Stats.Attempts)
	assert.Len(t, result.Stats.IssuesPerAttempt, 4)
	assert.False(t, result.LastResult.Valid())
	assert.Equal(t, 4, client.calls)
}

func TestPipelineStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(New(nil))
	_, err := p.Run(ctx, Spec{Title: "Cancelled"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestPipelineInvalidSpec(t *testing.T) {
	p := NewPipeline(New(nil))
	_, err := p.Run(context.Background(), Spec{})
	require.Error(t, err)
}

func TestWithMaxAttemptsIgnoresNonPositive(t *testing.T) {
	p := NewPipeline(New(nil), WithMaxAttempts(0))
	assert.Equal(t, DefaultMaxAttempts, p.maxAttempts)
}
