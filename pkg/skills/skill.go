// Package skills defines the core data model for the skill library: a skill
// is a named directory containing a SKILL.md manifest with YAML frontmatter,
// optional scripts and reference files, and an append-only version history
// under versions/.
package skills

import "sort"

// Well-known names inside a skill directory
const (
	SkillFileName = "SKILL.md"
	ScriptsDir    = "scripts"
	ReferencesDir = "references"
	VersionsDir   = "versions"
)

// DefaultVersion is assigned to manifests that carry no version field
const DefaultVersion = "1.0.0"

// Domain categorizes a skill. The set is closed; unrecognized values are
// coerced to DomainGeneral rather than rejected.
type Domain string

// Skill domains
const (
	DomainGeneral       Domain = "general"
	DomainCoding        Domain = "coding"
	DomainWriting       Domain = "writing"
	DomainResearch      Domain = "research"
	DomainData          Domain = "data"
	DomainDevops        Domain = "devops"
	DomainTesting       Domain = "testing"
	DomainDocumentation Domain = "documentation"
)

var knownDomains = map[Domain]struct{}{
	DomainGeneral:       {},
	DomainCoding:        {},
	DomainWriting:       {},
	DomainResearch:      {},
	DomainData:          {},
	DomainDevops:        {},
	DomainTesting:       {},
	DomainDocumentation: {},
}

// ValidDomain reports whether d is a member of the closed domain set
func ValidDomain(d Domain) bool {
	_, ok := knownDomains[d]
	return ok
}

// NormalizeDomain coerces an arbitrary string to a known domain,
// defaulting to DomainGeneral for empty or unrecognized input
func NormalizeDomain(s string) Domain {
	d := Domain(s)
	if ValidDomain(d) {
		return d
	}
	return DomainGeneral
}

// Domains returns the closed domain set in stable order
func Domains() []Domain {
	out := make([]Domain, 0, len(knownDomains))
	for d := range knownDomains {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SkillDoc is a parsed skill manifest. Instances are immutable by
// convention: edits produce a new SkillDoc rather than mutating in place.
type SkillDoc struct {
	Name             string
	Title            string
	Description      string
	Domain           Domain
	Tags             []string
	ToolDependencies []string
	ExecutionSteps   []string
	Version          string
	Type             string // "meta" for bundled template skills, empty otherwise
	Body             string // markdown body without frontmatter
}

// ScriptDef describes a script file that belongs to a skill. Paths are
// relative to the skill directory (conventionally under scripts/).
type ScriptDef struct {
	Path       string
	Content    string
	Executable bool
}
