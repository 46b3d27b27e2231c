package manager

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/conversation"
	"github.com/jingkaihe/skillkit/pkg/generate"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/skills"
)

// Action is the enhancer's routing decision for a conversation
type Action string

// Enhancer actions
const (
	// ActionSkip means the conversation is not worth a skill
	ActionSkip Action = "skip"
	// ActionCreate means a new skill should be generated
	ActionCreate Action = "create"
	// ActionEnhance means an existing skill should absorb the workflow
	ActionEnhance Action = "enhance"
)

// DefaultMinTurns is the minimum conversation length worth considering
const DefaultMinTurns = 4

// Decision explains how a conversation was routed
type Decision struct {
	Action Action  `json:"action"`
	Target string  `json:"target,omitempty"`
	Score  float64 `json:"score,omitempty"`
	Reason string  `json:"reason"`
}

// EnhanceResult is the outcome of processing one transcript
type EnhanceResult struct {
	Decision  Decision       `json:"decision"`
	SkillName string         `json:"skill_name,omitempty"`
	Accepted  bool           `json:"accepted"`
	Stats     generate.Stats `json:"stats"`
}

// Enhancer turns agent conversations into new or improved skills
type Enhancer struct {
	manager  *Manager
	minTurns int
}

// NewEnhancer creates an enhancer over a manager
func NewEnhancer(m *Manager) *Enhancer {
	return &Enhancer{manager: m, minTurns: DefaultMinTurns}
}

// Decide routes a conversation summary to skip, create or enhance. The
// model refines the routing when configured; the heuristic is authoritative
// when it is not, or when the model fails.
func (e *Enhancer) Decide(ctx context.Context, summary conversation.Summary) (Decision, error) {
	if summary.Turns < e.minTurns {
		return Decision{Action: ActionSkip, Reason: fmt.Sprintf("conversation too short (%d turns)", summary.Turns)}, nil
	}
	if summary.ToolCalls == 0 {
		return Decision{Action: ActionSkip, Reason: "no tool usage, nothing to codify"}, nil
	}

	heuristic, err := e.decideBySimilarity(ctx, summary)
	if err != nil {
		return Decision{}, err
	}

	if e.manager.LLM != nil {
		refined, err := e.decideWithModel(ctx, summary, heuristic)
		if err == nil {
			return refined, nil
		}
		logger.G(ctx).WithError(err).Warn("model routing failed, using heuristic decision")
	}
	return heuristic, nil
}

// decideBySimilarity scores the conversation against installed skills and
// routes to enhance when something close enough already exists
func (e *Enhancer) decideBySimilarity(ctx context.Context, summary conversation.Summary) (Decision, error) {
	entries, err := e.manager.Metadata.ListForSimilarity(ctx)
	if err != nil {
		return Decision{}, errors.Wrap(err, "failed to list skills for similarity")
	}

	desc := summary.Topic
	tools := toolNames(summary)
	best := Decision{Action: ActionCreate, Reason: "no similar skill installed"}
	for _, entry := range entries {
		score := e.manager.Merger.Score(desc, tools, entry)
		if score > best.Score {
			best.Score = score
			best.Target = entry.Name
		}
	}

	if best.Score >= e.manager.Merger.Threshold() {
		best.Action = ActionEnhance
		best.Reason = fmt.Sprintf("close match with installed skill %q", best.Target)
	} else {
		best.Target = ""
	}
	return best, nil
}

// modelDecision is the JSON shape the routing prompt asks for
type modelDecision struct {
	Action string `mapstructure:"action"`
	Target string `mapstructure:"target"`
	Reason string `mapstructure:"reason"`
}

func (e *Enhancer) decideWithModel(ctx context.Context, summary conversation.Summary, heuristic Decision) (Decision, error) {
	prompt := fmt.Sprintf(
		"Decide whether this agent conversation is worth turning into a reusable skill.\n"+
			"Respond with a JSON object {\"action\": \"skip\"|\"create\"|\"enhance\", \"target\": \"\", \"reason\": \"\"}.\n"+
			"Use enhance only when an installed skill listed below clearly covers the same workflow.\n\n"+
			"Topic: %s\nTurns: %d, tool calls: %d, errors: %d (recovered: %d)\nTools used: %s\n"+
			"Closest installed skill: %q (score %.2f)\n",
		summary.Topic, summary.Turns, summary.ToolCalls, summary.ErrorResults, summary.RecoveredErrors,
		strings.Join(toolNames(summary), ", "), heuristic.Target, heuristic.Score)

	raw, err := e.manager.LLM.GenerateJSON(ctx, prompt)
	if err != nil {
		return Decision{}, err
	}
	var md modelDecision
	if err := mapstructure.Decode(raw, &md); err != nil {
		return Decision{}, errors.Wrap(err, "routing payload has unexpected shape")
	}

	switch Action(md.Action) {
	case ActionSkip:
		return Decision{Action: ActionSkip, Reason: md.Reason}, nil
	case ActionEnhance:
		// the model may only pick targets that actually exist
		if md.Target != "" && e.skillExists(md.Target) {
			return Decision{Action: ActionEnhance, Target: md.Target, Score: heuristic.Score, Reason: md.Reason}, nil
		}
		return heuristic, nil
	case ActionCreate:
		return Decision{Action: ActionCreate, Reason: md.Reason}, nil
	default:
		return Decision{}, errors.Errorf("model returned unknown action %q", md.Action)
	}
}

// Run processes a transcript end to end: read, route, generate, persist.
// A skipped conversation and an exhausted generation budget are both
// results, not errors.
func (e *Enhancer) Run(ctx context.Context, transcriptPath string) (*EnhanceResult, error) {
	turns, err := conversation.ReadFile(ctx, transcriptPath)
	if err != nil {
		return nil, err
	}
	summary := conversation.Summarize(turns)

	decision, err := e.Decide(ctx, summary)
	if err != nil {
		return nil, err
	}
	result := &EnhanceResult{Decision: decision}
	if decision.Action == ActionSkip {
		return result, nil
	}

	spec := e.specFromSummary(summary, decision)
	pipelineResult, err := e.manager.Pipeline.Run(ctx, spec)
	if err != nil {
		return nil, err
	}
	result.Stats = pipelineResult.Stats
	if !pipelineResult.Accepted {
		return result, nil
	}

	draft := pipelineResult.Skill
	if decision.Action == ActionEnhance {
		// snapshot before the in-place edit so the change is reversible
		if _, err := e.manager.Versions.Snapshot(ctx, decision.Target); err != nil {
			return nil, errors.Wrapf(err, "failed to snapshot %s before enhancement", decision.Target)
		}
		if err := e.foldIntoExisting(decision.Target, draft); err != nil {
			return nil, err
		}
	}

	if err := e.manager.PersistGenerated(ctx, draft); err != nil {
		return nil, err
	}
	result.Accepted = true
	result.SkillName = draft.Doc.Name
	return result, nil
}

// specFromSummary turns the conversation summary into a generation spec
func (e *Enhancer) specFromSummary(summary conversation.Summary, decision Decision) generate.Spec {
	title := summary.Topic
	if title == "" {
		title = "captured workflow"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Conversation summary: %d turns, %d tool calls.\n", summary.Turns, summary.ToolCalls)
	if summary.ErrorResults > 0 {
		fmt.Fprintf(&b, "%d tool failures, %d recovered; fold the recovery steps into the skill.\n",
			summary.ErrorResults, summary.RecoveredErrors)
	}
	for _, tool := range toolNames(summary) {
		fmt.Fprintf(&b, "- used %s %d times\n", tool, summary.ToolUsage[tool])
	}

	spec := generate.Spec{
		Title:       title,
		Description: fmt.Sprintf("reusable workflow for: %s", title),
		Tools:       toolNames(summary),
		Context:     b.String(),
	}
	if decision.Action == ActionEnhance {
		if doc, err := skills.ParseFile(skills.SkillPath(e.manager.root, decision.Target), decision.Target); err == nil {
			spec.Title = doc.Title
			spec.Description = doc.Description
			spec.Domain = string(doc.Domain)
			spec.Context += "\nExisting skill to improve:\n" + doc.Body
		}
	}
	return spec
}

// foldIntoExisting rewrites the draft as an augmentation of the target
// skill: the draft keeps the target's identity and absorbs its steps,
// tools and tags so nothing already recorded is lost
func (e *Enhancer) foldIntoExisting(target string, draft *generate.GeneratedSkill) error {
	existing, err := skills.ParseFile(skills.SkillPath(e.manager.root, target), target)
	if err != nil {
		return errors.Wrapf(err, "failed to read skill %s for enhancement", target)
	}

	doc := draft.Doc
	doc.Name = target
	if doc.Title == "" {
		doc.Title = existing.Title
	}
	doc.Domain = existing.Domain
	doc.Version = existing.Version
	doc.ExecutionSteps = appendMissingStrings(existing.ExecutionSteps, doc.ExecutionSteps)
	doc.ToolDependencies = appendMissingStrings(existing.ToolDependencies, doc.ToolDependencies)
	doc.Tags = appendMissingStrings(existing.Tags, doc.Tags)
	doc.Body = skills.ComposeBody(doc)
	return nil
}

func (e *Enhancer) skillExists(name string) bool {
	_, err := skills.ParseFile(skills.SkillPath(e.manager.root, name), name)
	return err == nil
}

func toolNames(summary conversation.Summary) []string {
	names := make([]string, 0, len(summary.ToolUsage))
	for name := range summary.ToolUsage {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func appendMissingStrings(base, extra []string) []string {
	seen := map[string]bool{}
	for _, v := range base {
		seen[strings.ToLower(strings.TrimSpace(v))] = true
	}
	out := append([]string(nil), base...)
	for _, v := range extra {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
