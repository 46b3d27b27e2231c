package generate

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jingkaihe/skillkit/pkg/skills"
)

// Severity classifies a validation issue
type Severity string

// Issue severities. Only errors block acceptance; warnings ride along.
const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one structural problem found in a draft
type Issue struct {
	Severity Severity `json:"severity"`
	Field    string   `json:"field"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Field, i.Message)
}

// Result holds the outcome of validating one draft
type Result struct {
	Issues []Issue `json:"issues,omitempty"`
}

// Valid reports whether the draft is acceptable, i.e. has no errors
func (r Result) Valid() bool {
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Errors returns only the blocking issues
func (r Result) Errors() []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == SeverityError {
			out = append(out, issue)
		}
	}
	return out
}

// Guidance renders blocking issues as repair feedback for the next attempt
func (r Result) Guidance() string {
	var lines []string
	for _, issue := range r.Errors() {
		lines = append(lines, fmt.Sprintf("- %s: %s", issue.Field, issue.Message))
	}
	return strings.Join(lines, "\n")
}

var nameSlugRE = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Validate checks a draft against the library's structural rules
func Validate(gen *GeneratedSkill) Result {
	var r Result
	if gen == nil || gen.Doc == nil {
		r.Issues = append(r.Issues, Issue{SeverityError, "doc", "draft is empty"})
		return r
	}
	doc := gen.Doc

	switch {
	case doc.Name == "":
		r.Issues = append(r.Issues, Issue{SeverityError, "name", "name is required"})
	case !nameSlugRE.MatchString(doc.Name):
		r.Issues = append(r.Issues, Issue{SeverityError, "name", fmt.Sprintf("%q is not a lowercase slug", doc.Name)})
	}

	if !skills.ValidDomain(doc.Domain) {
		r.Issues = append(r.Issues, Issue{SeverityError, "domain", fmt.Sprintf("%q is not a known domain", doc.Domain)})
	}
	if strings.TrimSpace(doc.Description) == "" {
		r.Issues = append(r.Issues, Issue{SeverityError, "description", "description is required"})
	}
	if len(doc.ExecutionSteps) == 0 {
		r.Issues = append(r.Issues, Issue{SeverityError, "execution_steps", "at least one execution step is required"})
	}
	for i, step := range doc.ExecutionSteps {
		if strings.TrimSpace(step) == "" {
			r.Issues = append(r.Issues, Issue{SeverityError, "execution_steps", fmt.Sprintf("step %d is blank", i+1)})
		}
	}
	if doc.Title == "" {
		r.Issues = append(r.Issues, Issue{SeverityWarning, "title", "title is empty, the name will be used"})
	}
	if len(doc.Tags) == 0 {
		r.Issues = append(r.Issues, Issue{SeverityWarning, "tags", "no tags, the skill will be harder to find"})
	}

	for _, script := range gen.Scripts {
		r.Issues = append(r.Issues, validateScript(script)...)
	}
	return r
}

func validateScript(script skills.ScriptDef) []Issue {
	var issues []Issue
	field := "scripts[" + script.Path + "]"

	cleaned := filepath.ToSlash(filepath.Clean(script.Path))
	switch {
	case script.Path == "":
		issues = append(issues, Issue{SeverityError, "scripts", "script path is empty"})
		return issues
	case filepath.IsAbs(script.Path):
		issues = append(issues, Issue{SeverityError, field, "script path must be relative"})
	case strings.HasPrefix(cleaned, ".."):
		issues = append(issues, Issue{SeverityError, field, "script path escapes the skill directory"})
	case !strings.HasPrefix(cleaned, skills.ScriptsDir+"/"):
		issues = append(issues, Issue{SeverityWarning, field, "script lives outside " + skills.ScriptsDir + "/"})
	}

	if strings.TrimSpace(script.Content) == "" {
		issues = append(issues, Issue{SeverityError, field, "script is empty"})
	}
	return issues
}
