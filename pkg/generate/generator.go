// Package generate turns a skill specification into a draft manifest and
// scripts, validates the draft against the library's structural rules, and
// drives the generate-validate-repair loop. Nothing in this package touches
// the skills root; persisting an accepted draft is the caller's job.
package generate

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/llm"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

// Spec describes the skill to generate
type Spec struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Domain         string   `json:"domain,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Tools          []string `json:"tools,omitempty"`
	ExecutionSteps []string `json:"execution_steps,omitempty"`
	// Scripts are caller-supplied script files carried into the draft
	Scripts []skills.ScriptDef `json:"scripts,omitempty"`
	// Context carries free-form background, e.g. a conversation summary
	Context string `json:"context,omitempty"`
	// Guidance carries repair feedback from a previous validation round
	Guidance string `json:"guidance,omitempty"`
}

// GeneratedSkill is an in-memory draft, never written to disk here
type GeneratedSkill struct {
	Doc     *skills.SkillDoc
	Scripts []skills.ScriptDef
}

// Generator produces skill drafts, preferring the model and falling back
// to a deterministic template when no model is configured or it fails
type Generator struct {
	client llm.Client
}

// New creates a generator. A nil client selects the template path.
func New(client llm.Client) *Generator {
	return &Generator{client: client}
}

// Generate produces a draft for the spec
func (g *Generator) Generate(ctx context.Context, spec Spec) (*GeneratedSkill, error) {
	if spec.Title == "" && spec.Description == "" {
		return nil, errors.New("spec needs at least a title or a description")
	}

	if g.client != nil {
		draft, err := g.fromModel(ctx, spec)
		if err == nil {
			return draft, nil
		}
		if ctx.Err() != nil {
			return nil, err
		}
		logger.G(ctx).WithError(err).Warn("model generation failed, using template fallback")
	}
	return g.fromTemplate(spec), nil
}

// modelPayload is the JSON shape the model is asked to produce
type modelPayload struct {
	Name        string   `mapstructure:"name"`
	Title       string   `mapstructure:"title"`
	Description string   `mapstructure:"description"`
	Domain      string   `mapstructure:"domain"`
	Tags        []string `mapstructure:"tags"`
	Tools       []string `mapstructure:"tools"`
	Steps       []string `mapstructure:"steps"`
	Scripts     []struct {
		Path    string `mapstructure:"path"`
		Content string `mapstructure:"content"`
	} `mapstructure:"scripts"`
}

func (g *Generator) fromModel(ctx context.Context, spec Spec) (*GeneratedSkill, error) {
	raw, err := g.client.GenerateJSON(ctx, buildPrompt(spec))
	if err != nil {
		return nil, err
	}

	var payload modelPayload
	if err := mapstructure.Decode(raw, &payload); err != nil {
		return nil, errors.Wrap(err, "model payload has unexpected shape")
	}

	doc := &skills.SkillDoc{
		Name:             firstNonEmpty(Slugify(payload.Name), Slugify(spec.Title), Slugify(payload.Title)),
		Title:            firstNonEmpty(payload.Title, spec.Title),
		Description:      firstNonEmpty(payload.Description, spec.Description),
		Domain:           skills.NormalizeDomain(firstNonEmpty(payload.Domain, spec.Domain)),
		Tags:             mergeUnique(spec.Tags, payload.Tags),
		ToolDependencies: mergeUnique(spec.Tools, payload.Tools),
		ExecutionSteps:   payload.Steps,
		Version:          skills.DefaultVersion,
	}
	if len(doc.ExecutionSteps) == 0 {
		doc.ExecutionSteps = spec.ExecutionSteps
	}
	doc.Body = skills.ComposeBody(doc)

	scripts := append([]skills.ScriptDef(nil), spec.Scripts...)
	for _, s := range payload.Scripts {
		scripts = append(scripts, skills.ScriptDef{
			Path:       s.Path,
			Content:    s.Content,
			Executable: strings.HasSuffix(s.Path, ".sh"),
		})
	}
	return &GeneratedSkill{Doc: doc, Scripts: scripts}, nil
}

// fromTemplate builds a minimal valid draft directly from the spec
func (g *Generator) fromTemplate(spec Spec) *GeneratedSkill {
	doc := &skills.SkillDoc{
		Name:             firstNonEmpty(Slugify(spec.Title), Slugify(spec.Description)),
		Title:            firstNonEmpty(spec.Title, spec.Description),
		Description:      firstNonEmpty(spec.Description, spec.Title),
		Domain:           skills.NormalizeDomain(spec.Domain),
		Tags:             append([]string(nil), spec.Tags...),
		ToolDependencies: append([]string(nil), spec.Tools...),
		ExecutionSteps:   append([]string(nil), spec.ExecutionSteps...),
		Version:          skills.DefaultVersion,
	}
	if len(doc.ExecutionSteps) == 0 {
		doc.ExecutionSteps = []string{
			fmt.Sprintf("Review the task: %s", doc.Description),
			"Apply the relevant tools step by step",
			"Verify the outcome before finishing",
		}
	}
	doc.Body = skills.ComposeBody(doc)
	return &GeneratedSkill{Doc: doc, Scripts: append([]skills.ScriptDef(nil), spec.Scripts...)}
}

func buildPrompt(spec Spec) string {
	var b strings.Builder
	b.WriteString("Design an agent skill as a JSON object with keys: name, title, description, domain, tags, tools, steps, scripts.\n")
	b.WriteString("name is a lowercase slug. domain is one of: ")
	for i, d := range skills.Domains() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(d))
	}
	b.WriteString(".\nsteps is an ordered list of concrete actions. scripts entries have path and content; paths are relative, under scripts/.\n\n")

	fmt.Fprintf(&b, "Title: %s\nDescription: %s\n", spec.Title, spec.Description)
	if spec.Domain != "" {
		fmt.Fprintf(&b, "Domain: %s\n", spec.Domain)
	}
	if len(spec.Tools) > 0 {
		fmt.Fprintf(&b, "Tools available: %s\n", strings.Join(spec.Tools, ", "))
	}
	if spec.Context != "" {
		fmt.Fprintf(&b, "\nBackground:\n%s\n", spec.Context)
	}
	if spec.Guidance != "" {
		fmt.Fprintf(&b, "\nThe previous draft was rejected. Fix these problems:\n%s\n", spec.Guidance)
	}
	return b.String()
}

var (
	slugInvalidRE  = regexp.MustCompile(`[^a-z0-9]+`)
	slugCollapseRE = regexp.MustCompile(`-{2,}`)
)

// Slugify reduces free text to a directory-safe skill name
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = slugInvalidRE.ReplaceAllString(s, "-")
	s = slugCollapseRE.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func mergeUnique(lists ...[]string) []string {
	seen := map[string]bool{}
	var out []string
	for _, list := range lists {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" || seen[strings.ToLower(v)] {
				continue
			}
			seen[strings.ToLower(v)] = true
			out = append(out, v)
		}
	}
	return out
}
