package skills

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	doc := &SkillDoc{
		Name:        "deploy-helper",
		Title:       "Deploy Helper",
		Description: "Automates blue/green deploys",
		Domain:      DomainDevops,
		Tags:        []string{"deploy", "kubernetes"},
		Version:     "2.0.1",
		ToolDependencies: []string{
			"kubectl",
			"helm",
		},
		ExecutionSteps: []string{
			"Render the manifests",
			"Apply to the staging cluster",
			"Promote to production",
		},
	}
	doc.Body = ComposeBody(doc)

	data, err := Serialize(doc)
	require.NoError(t, err)

	parsed, err := Parse(data, "", "deploy-helper")
	require.NoError(t, err)

	assert.Equal(t, doc.Name, parsed.Name)
	assert.Equal(t, doc.Title, parsed.Title)
	assert.Equal(t, doc.Description, parsed.Description)
	assert.Equal(t, doc.Domain, parsed.Domain)
	assert.Equal(t, doc.Tags, parsed.Tags)
	assert.Equal(t, doc.Version, parsed.Version)
	assert.Equal(t, doc.ToolDependencies, parsed.ToolDependencies)
	assert.Equal(t, doc.ExecutionSteps, parsed.ExecutionSteps)
}

func TestSerializeDefaultsEmptyFields(t *testing.T) {
	doc := &SkillDoc{
		Name:        "bare",
		Description: "A bare skill",
		Body:        "# Bare\n",
	}

	data, err := Serialize(doc)
	require.NoError(t, err)

	parsed, err := Parse(data, "", "bare")
	require.NoError(t, err)
	assert.Equal(t, DomainGeneral, parsed.Domain)
	assert.Equal(t, DefaultVersion, parsed.Version)
	assert.Empty(t, parsed.Type)
}

func TestComposeBodySections(t *testing.T) {
	doc := &SkillDoc{
		Name:             "composed",
		Title:            "Composed Skill",
		Description:      "Built from structured fields",
		ToolDependencies: []string{"jq"},
		ExecutionSteps:   []string{"Do the thing"},
	}

	body := ComposeBody(doc)
	assert.Contains(t, body, "# Composed Skill")
	assert.Contains(t, body, "## Tools")
	assert.Contains(t, body, "- jq")
	assert.Contains(t, body, "## Execution Steps")
	assert.Contains(t, body, "1. Do the thing")
}
