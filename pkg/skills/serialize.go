package skills

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// frontmatter is the YAML shape written at the top of SKILL.md
type frontmatter struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Domain      string   `yaml:"domain"`
	Version     string   `yaml:"version"`
	Type        string   `yaml:"type,omitempty"`
	Tags        []string `yaml:"tags,omitempty"`
}

// Serialize renders a SkillDoc back into manifest file content. Parse and
// Serialize round-trip: parsing the output yields a doc with identical
// frontmatter fields and body.
func Serialize(doc *SkillDoc) ([]byte, error) {
	fm := frontmatter{
		Name:        doc.Name,
		Description: doc.Description,
		Domain:      string(doc.Domain),
		Version:     doc.Version,
		Type:        doc.Type,
		Tags:        doc.Tags,
	}
	if fm.Domain == "" {
		fm.Domain = string(DomainGeneral)
	}
	if fm.Version == "" {
		fm.Version = DefaultVersion
	}

	head, err := yaml.Marshal(&fm)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal frontmatter")
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n")
	b.WriteString(strings.TrimLeft(doc.Body, "\n"))
	if !strings.HasSuffix(doc.Body, "\n") {
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// ComposeBody builds a conventional manifest body from structured fields.
// Used when synthesizing a skill that has no authored markdown yet.
func ComposeBody(doc *SkillDoc) string {
	var b strings.Builder

	title := doc.Title
	if title == "" {
		title = doc.Name
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if doc.Description != "" {
		fmt.Fprintf(&b, "%s\n\n", doc.Description)
	}

	if len(doc.ToolDependencies) > 0 {
		b.WriteString("## Tools\n\n")
		for _, tool := range doc.ToolDependencies {
			fmt.Fprintf(&b, "- %s\n", tool)
		}
		b.WriteString("\n")
	}

	if len(doc.ExecutionSteps) > 0 {
		b.WriteString("## Execution Steps\n\n")
		for i, step := range doc.ExecutionSteps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}

	return b.String()
}
