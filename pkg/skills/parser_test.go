package skills

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFullManifest(t *testing.T) {
	content := `---
name: log-analyzer
description: Analyze log files for error patterns
domain: devops
version: 1.2.0
tags:
  - logs
  - debugging
---

# Log Analyzer

Finds recurring error patterns in service logs.

## Tools

- grep
- awk

## Execution Steps

1. Collect the log files
2. Extract error lines
3. Group by signature
`

	doc, err := Parse([]byte(content), "/tmp/log-analyzer/SKILL.md", "log-analyzer")
	require.NoError(t, err)

	assert.Equal(t, "log-analyzer", doc.Name)
	assert.Equal(t, "Log Analyzer", doc.Title)
	assert.Equal(t, "Analyze log files for error patterns", doc.Description)
	assert.Equal(t, DomainDevops, doc.Domain)
	assert.Equal(t, "1.2.0", doc.Version)
	assert.Equal(t, []string{"logs", "debugging"}, doc.Tags)
	assert.Equal(t, []string{"grep", "awk"}, doc.ToolDependencies)
	assert.Equal(t, []string{
		"Collect the log files",
		"Extract error lines",
		"Group by signature",
	}, doc.ExecutionSteps)
	assert.NotContains(t, doc.Body, "---\nname:")
	assert.Contains(t, doc.Body, "# Log Analyzer")
}

func TestParseBogusDomainCoercesToGeneral(t *testing.T) {
	content := `---
name: weird
description: A skill with an unknown domain
domain: bogus-value
---

# Weird
`
	doc, err := Parse([]byte(content), "", "weird")
	require.NoError(t, err)
	assert.Equal(t, DomainGeneral, doc.Domain)
}

func TestParseNoFrontmatter(t *testing.T) {
	content := `# Release Checklist

Walks through a service release.

1. Tag the commit
2. Build artifacts
`
	doc, err := Parse([]byte(content), "", "release-checklist")
	require.NoError(t, err)

	assert.Equal(t, "release-checklist", doc.Name, "name falls back to directory name")
	assert.Equal(t, "Release Checklist", doc.Title)
	assert.Equal(t, "Walks through a service release.", doc.Description)
	assert.Equal(t, DomainGeneral, doc.Domain)
	assert.Equal(t, DefaultVersion, doc.Version)
	assert.Equal(t, []string{"Tag the commit", "Build artifacts"}, doc.ExecutionSteps)
	assert.Empty(t, doc.ToolDependencies)
}

func TestParseTagsAsCommaString(t *testing.T) {
	content := `---
name: tagged
description: desc
tags: one, two , three
---

body
`
	doc, err := Parse([]byte(content), "", "tagged")
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, doc.Tags)
}

func TestParseStepsFallbackToFirstOrderedList(t *testing.T) {
	content := `# No Section Headings

Intro text.

1) First step
2) Second step

Trailing text.
`
	doc, err := Parse([]byte(content), "", "no-sections")
	require.NoError(t, err)
	assert.Equal(t, []string{"First step", "Second step"}, doc.ExecutionSteps)
}

func TestParseFileUnreadablePath(t *testing.T) {
	_, err := ParseFile("/non/existent/SKILL.md", "ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/non/existent/SKILL.md")
}

func TestParseFileReadsFromDisk(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "SKILL.md")
	content := `---
name: disk-skill
description: Loaded from disk
---

# Disk Skill
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	doc, err := ParseFile(path, "disk-skill")
	require.NoError(t, err)
	assert.Equal(t, "disk-skill", doc.Name)
	assert.Equal(t, "Loaded from disk", doc.Description)
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		input string
		want  Domain
	}{
		{"coding", DomainCoding},
		{"devops", DomainDevops},
		{"", DomainGeneral},
		{"bogus-value", DomainGeneral},
		{"General", DomainGeneral},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDomain(tt.input))
		})
	}
}

func TestStripFrontmatter(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "with frontmatter",
			input:    "---\nname: x\n---\n\n# Body\n",
			expected: "# Body\n",
		},
		{
			name:     "no frontmatter",
			input:    "# Body only\n",
			expected: "# Body only\n",
		},
		{
			name:     "unterminated frontmatter",
			input:    "---\nname: x\n# never closed",
			expected: "---\nname: x\n# never closed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stripFrontmatter(tt.input))
		})
	}
}
