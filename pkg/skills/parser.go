package skills

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
)

var orderedItemRE = regexp.MustCompile(`^\s*\d+[.)]\s+(.*)$`)

// ParseFile reads and parses a SKILL.md manifest. dirName is the skill's
// directory name and serves as the fallback for a missing name field.
// The only hard failure is an unreadable path; missing optional fields
// never produce an error.
func ParseFile(path, dirName string) (*SkillDoc, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read manifest %s", path)
	}
	return Parse(content, path, dirName)
}

// Parse parses raw manifest content into a SkillDoc
func Parse(content []byte, path, dirName string) (*SkillDoc, error) {
	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
	)

	var buf bytes.Buffer
	pctx := parser.NewContext()
	if err := md.Convert(content, &buf, parser.WithContext(pctx)); err != nil {
		return nil, errors.Wrapf(err, "failed to parse manifest %s", path)
	}

	doc := &SkillDoc{
		Name:    dirName,
		Domain:  DomainGeneral,
		Version: DefaultVersion,
		Body:    stripFrontmatter(string(content)),
	}

	if metaData := meta.Get(pctx); metaData != nil {
		if name, ok := metaData["name"].(string); ok && name != "" {
			doc.Name = name
		}
		if desc, ok := metaData["description"].(string); ok {
			doc.Description = desc
		}
		if domain, ok := metaData["domain"].(string); ok {
			doc.Domain = NormalizeDomain(domain)
		}
		if version, ok := metaData["version"].(string); ok && version != "" {
			doc.Version = version
		}
		if typ, ok := metaData["type"].(string); ok {
			doc.Type = typ
		}
		doc.Tags = metaStringSlice(metaData["tags"])
	}

	doc.Title = firstHeading(doc.Body)
	if doc.Description == "" {
		doc.Description = deriveDescription(doc.Body)
	}
	doc.ToolDependencies = bulletSection(doc.Body, "Tools")
	doc.ExecutionSteps = orderedSection(doc.Body, "Execution Steps")

	return doc, nil
}

// metaStringSlice converts a frontmatter value to a string slice. Tags may
// be a YAML list or a comma-separated scalar.
func metaStringSlice(v interface{}) []string {
	switch val := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	default:
		return nil
	}
}

// stripFrontmatter removes the leading YAML frontmatter block, if any
func stripFrontmatter(content string) string {
	if !strings.HasPrefix(content, "---") {
		return content
	}

	lines := strings.Split(content, "\n")
	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			end = i
			break
		}
	}
	if end == -1 {
		return content
	}
	return strings.TrimLeft(strings.Join(lines[end+1:], "\n"), "\n")
}

// firstHeading returns the text of the first markdown heading in body
func firstHeading(body string) string {
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			return strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
		}
	}
	return ""
}

// deriveDescription extracts a description from the first heading block:
// the first non-empty, non-heading line following the first heading, or the
// heading text itself when the body has nothing else.
func deriveDescription(body string) string {
	heading := ""
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "#") {
			if heading == "" {
				heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
				continue
			}
			break
		}
		if heading != "" {
			return trimmed
		}
		return trimmed
	}
	return heading
}

// bulletSection collects bullet list items under the named "## <title>"
// section, stopping at the next heading
func bulletSection(body, title string) []string {
	var items []string
	inSection := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			inSection = strings.EqualFold(heading, title)
			continue
		}
		if !inSection {
			continue
		}
		if strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") {
			if item := strings.TrimSpace(trimmed[2:]); item != "" {
				items = append(items, item)
			}
		}
	}
	return items
}

// orderedSection collects ordered-list items under the named section. When
// the section heading is absent it falls back to the first ordered list in
// the body, so manifests without an explicit "## Execution Steps" heading
// still yield steps.
func orderedSection(body, title string) []string {
	var inNamed []string
	inSection := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			heading := strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			if inSection {
				break
			}
			inSection = strings.EqualFold(heading, title)
			continue
		}
		if !inSection {
			continue
		}
		if m := orderedItemRE.FindStringSubmatch(line); m != nil {
			inNamed = append(inNamed, strings.TrimSpace(m[1]))
		}
	}
	if len(inNamed) > 0 {
		return inNamed
	}
	return firstOrderedList(body)
}

// firstOrderedList returns the first contiguous ordered list in body
func firstOrderedList(body string) []string {
	var items []string
	for _, line := range strings.Split(body, "\n") {
		if m := orderedItemRE.FindStringSubmatch(line); m != nil {
			items = append(items, strings.TrimSpace(m[1]))
			continue
		}
		if len(items) > 0 && strings.TrimSpace(line) != "" {
			break
		}
	}
	return items
}

// SkillPath returns the manifest path for a skill directory
func SkillPath(root, name string) string {
	return filepath.Join(root, name, SkillFileName)
}
