// Package merge detects near-duplicate skills and merges one into another
// on explicit request, preserving both version histories. Detection only
// surfaces candidates; nothing in the library ever merges silently.
package merge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/index"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/metadata"
	"github.com/jingkaihe/skillkit/pkg/osutil"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/versions"
)

// DefaultSimilarityThreshold flags a pair as merge candidates. The
// threshold is a tunable heuristic, not a contract; callers override it
// via configuration.
const DefaultSimilarityThreshold = 0.5

// SimilarInfo describes a detected pair of skills: a similarity score or
// an explicit conflict (identical name), and the proposed direction
type SimilarInfo struct {
	A        string  `json:"a"`
	B        string  `json:"b"`
	Score    float64 `json:"score"`
	Conflict bool    `json:"conflict"`
	Reason   string  `json:"reason"`
}

// Merger computes similarity between skills and performs explicit merges
type Merger struct {
	root      string
	indexer   *index.Indexer
	meta      *metadata.Service
	versions  *versions.Manager
	threshold float64
}

// New creates a merger. threshold <= 0 selects the default.
func New(root string, indexer *index.Indexer, meta *metadata.Service, vm *versions.Manager, threshold float64) *Merger {
	if threshold <= 0 {
		threshold = DefaultSimilarityThreshold
	}
	return &Merger{
		root:      root,
		indexer:   indexer,
		meta:      meta,
		versions:  vm,
		threshold: threshold,
	}
}

// Threshold returns the configured similarity threshold
func (m *Merger) Threshold() float64 {
	return m.threshold
}

// Compare scores a pair of skills. Identical names are always a conflict
// requiring merge-or-reject; high description/tag overlap yields a
// similarity candidate for a human or LLM-assisted decision.
func (m *Merger) Compare(a, b metadata.SimilarityEntry) SimilarInfo {
	if a.Name == b.Name {
		return SimilarInfo{
			A:        a.Name,
			B:        b.Name,
			Score:    1.0,
			Conflict: true,
			Reason:   "identical name",
		}
	}

	descScore := jaccard(tokens(a.Description), tokens(b.Description))
	tagScore := jaccard(lowerSet(a.Tags), lowerSet(b.Tags))
	toolScore := jaccard(lowerSet(a.Tools), lowerSet(b.Tools))
	score := 0.5*descScore + 0.3*tagScore + 0.2*toolScore

	return SimilarInfo{
		A:      a.Name,
		B:      b.Name,
		Score:  score,
		Reason: fmt.Sprintf("description %.2f, tags %.2f, tools %.2f", descScore, tagScore, toolScore),
	}
}

// Score computes how closely a free-form description plus tool list
// matches an installed skill. Shared with the enhancer's targeting logic.
func (m *Merger) Score(description string, tools []string, against metadata.SimilarityEntry) float64 {
	descScore := jaccard(tokens(description), tokens(against.Description+" "+against.Name))
	toolScore := jaccard(lowerSet(tools), lowerSet(against.Tools))
	return 0.6*descScore + 0.4*toolScore
}

// FindSimilar returns every pair of skills at or above the threshold,
// highest score first. Conflicts (duplicate names cannot occur on one
// filesystem, but imported candidates can carry them) sort before
// similarity candidates.
func (m *Merger) FindSimilar(ctx context.Context) ([]SimilarInfo, error) {
	entries, err := m.meta.ListForSimilarity(ctx)
	if err != nil {
		return nil, err
	}

	var out []SimilarInfo
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			info := m.Compare(entries[i], entries[j])
			if info.Conflict || info.Score >= m.threshold {
				out = append(out, info)
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Conflict != out[j].Conflict {
			return out[i].Conflict
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

// Merge folds secondary into primary: both are snapshotted first, the
// secondary's distinguishing steps, tools and tags are appended to the
// primary's manifest, its version history is carried over into the
// primary's history namespace, and the secondary directory is removed.
func (m *Merger) Merge(ctx context.Context, primary, secondary string) error {
	return m.MergeFrom(ctx, primary, secondary, secondary)
}

// MergeFrom is Merge with an explicit origin label for the adopted history
// snapshots. Imports stage an incoming skill under a temporary directory
// name; labelling with the original package name keeps staging internals
// out of durable version identifiers.
func (m *Merger) MergeFrom(ctx context.Context, primary, secondary, origin string) error {
	log := logger.G(ctx).WithField("primary", primary).WithField("secondary", secondary)
	if primary == secondary {
		return errors.New("cannot merge a skill into itself")
	}

	if _, err := m.versions.Snapshot(ctx, primary); err != nil {
		return errors.Wrap(err, "failed to snapshot primary before merge")
	}
	secondarySnap, err := m.versions.Snapshot(ctx, secondary)
	if err != nil {
		return errors.Wrap(err, "failed to snapshot secondary before merge")
	}

	primaryDoc, err := skills.ParseFile(skills.SkillPath(m.root, primary), primary)
	if err != nil {
		return err
	}
	secondaryDoc, err := skills.ParseFile(skills.SkillPath(m.root, secondary), secondary)
	if err != nil {
		return err
	}

	merged := mergeDocs(primaryDoc, secondaryDoc)
	data, err := skills.Serialize(merged)
	if err != nil {
		return err
	}
	if err := os.WriteFile(skills.SkillPath(m.root, primary), data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write merged manifest for %s", primary)
	}

	if err := m.adoptHistory(primary, secondary, origin); err != nil {
		return err
	}
	if err := m.adoptScripts(primary, secondary); err != nil {
		return err
	}

	// the secondary's own pre-merge snapshot travelled with its history
	log.WithField("secondary_snapshot", secondarySnap.Version).Debug("merged skill histories")

	if err := os.RemoveAll(filepath.Join(m.root, secondary)); err != nil {
		return errors.Wrapf(err, "failed to remove merged skill %s", secondary)
	}

	if err := m.indexer.UpdateSkill(ctx, primary); err != nil {
		log.WithError(err).Warn("failed to refresh primary index entry after merge")
	}
	if err := m.indexer.UpdateSkill(ctx, secondary); err != nil {
		log.WithError(err).Warn("failed to drop secondary index entry after merge")
	}

	log.Info("merged skill")
	return nil
}

// mergeDocs produces a new doc with the secondary's distinguishing steps,
// tools and tags appended to the primary's
func mergeDocs(primary, secondary *skills.SkillDoc) *skills.SkillDoc {
	merged := *primary
	merged.ExecutionSteps = appendMissing(primary.ExecutionSteps, secondary.ExecutionSteps)
	merged.ToolDependencies = appendMissing(primary.ToolDependencies, secondary.ToolDependencies)
	merged.Tags = appendMissing(primary.Tags, secondary.Tags)

	// regenerate the body when structured content changed, so the manifest
	// sections stay consistent with the parsed fields
	if len(merged.ExecutionSteps) != len(primary.ExecutionSteps) ||
		len(merged.ToolDependencies) != len(primary.ToolDependencies) {
		merged.Body = skills.ComposeBody(&merged)
	}
	return &merged
}

// adoptHistory copies the secondary's version snapshots into the primary's
// history namespace, suffixed with their origin to avoid identifier
// collisions while keeping lexicographic order
func (m *Merger) adoptHistory(primary, secondary, origin string) error {
	secondaryVersions, err := m.versions.List(secondary)
	if err != nil {
		return err
	}

	primaryVersionsDir := filepath.Join(m.root, primary, skills.VersionsDir)
	for _, v := range secondaryVersions {
		dest := filepath.Join(primaryVersionsDir, fmt.Sprintf("%s-from-%s", v.Version, origin))
		if err := osutil.CopyDir(v.DirPath, dest); err != nil {
			return errors.Wrapf(err, "failed to adopt version %s of %s", v.Version, secondary)
		}
	}
	return nil
}

// adoptScripts carries over secondary scripts whose names do not collide
// with the primary's
func (m *Merger) adoptScripts(primary, secondary string) error {
	secondaryScripts := filepath.Join(m.root, secondary, skills.ScriptsDir)
	dirEntries, err := os.ReadDir(secondaryScripts)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "failed to read scripts of %s", secondary)
	}

	primaryScripts := filepath.Join(m.root, primary, skills.ScriptsDir)
	for _, de := range dirEntries {
		dest := filepath.Join(primaryScripts, de.Name())
		if _, err := os.Stat(dest); err == nil {
			continue
		}
		src := filepath.Join(secondaryScripts, de.Name())
		if de.IsDir() {
			err = osutil.CopyDir(src, dest)
		} else {
			err = osutil.CopyFile(src, dest)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

var tokenRE = regexp.MustCompile(`[a-z0-9]+`)

// tokens lowercases and splits text into a set of word tokens
func tokens(text string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, tok := range tokenRE.FindAllString(strings.ToLower(text), -1) {
		out[tok] = struct{}{}
	}
	return out
}

func lowerSet(items []string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, item := range items {
		if item = strings.ToLower(strings.TrimSpace(item)); item != "" {
			out[item] = struct{}{}
		}
	}
	return out
}

// jaccard computes intersection over union; two empty sets score zero
func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if _, ok := b[tok]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func appendMissing(base, extra []string) []string {
	out := append([]string(nil), base...)
	seen := lowerSet(base)
	for _, item := range extra {
		if _, ok := seen[strings.ToLower(item)]; !ok {
			out = append(out, item)
		}
	}
	return out
}
