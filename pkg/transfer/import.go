package transfer

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/index"
	"github.com/jingkaihe/skillkit/pkg/logger"
	"github.com/jingkaihe/skillkit/pkg/merge"
	"github.com/jingkaihe/skillkit/pkg/osutil"
	"github.com/jingkaihe/skillkit/pkg/skills"
	"github.com/jingkaihe/skillkit/pkg/versions"
)

// DefaultImportTimeout bounds an import when the caller supplies none
const DefaultImportTimeout = 30 * time.Second

// ImportOptions controls conflict resolution and the operation budget
type ImportOptions struct {
	// Overwrite replaces an existing skill of the same name after
	// snapshotting it. Without Overwrite or MergeInto a collision is
	// reported and the existing skill left unmodified.
	Overwrite bool
	// MergeInto routes a colliding import through the merger into the
	// named existing skill
	MergeInto string
	// Timeout bounds the whole import; zero selects DefaultImportTimeout
	Timeout time.Duration
}

// ImportResult reports the outcome of an import
type ImportResult struct {
	Imported          bool     `json:"imported"`
	SkillName         string   `json:"skill_name"`
	ConflictsResolved []string `json:"conflicts_resolved,omitempty"`
	Errors            error    `json:"-"`
}

// Importer restores exported skill packages into a skills root
type Importer struct {
	root     string
	indexer  *index.Indexer
	versions *versions.Manager
	merger   *merge.Merger
}

// NewImporter creates an importer sharing the library's indexer, version
// manager and merger
func NewImporter(root string, indexer *index.Indexer, vm *versions.Manager, merger *merge.Merger) *Importer {
	return &Importer{root: root, indexer: indexer, versions: vm, merger: merger}
}

// Import restores a skill package from r. The archive is extracted into a
// hidden staging directory and renamed into the live tree only on full
// success; on timeout or error the skills root is left in its
// pre-operation state.
func (im *Importer) Import(ctx context.Context, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultImportTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result := &ImportResult{}

	stagingDir := filepath.Join(im.root, ".staging-"+uuid.NewString())
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create staging directory %s", stagingDir)
	}
	defer os.RemoveAll(stagingDir)

	name, err := im.extract(ctx, r, stagingDir)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Errorf("import timed out after %s, no changes applied", timeout)
		}
		return nil, err
	}
	result.SkillName = name

	// the staged content must at least carry a parseable manifest
	stagedSkill := filepath.Join(stagingDir, name)
	if _, err := skills.ParseFile(filepath.Join(stagedSkill, skills.SkillFileName), name); err != nil {
		return nil, errors.Wrapf(err, "package for %q has no usable manifest", name)
	}

	liveDir := filepath.Join(im.root, name)
	_, statErr := os.Stat(liveDir)
	exists := statErr == nil

	switch {
	case !exists:
		if err := os.Rename(stagedSkill, liveDir); err != nil {
			return nil, errors.Wrapf(err, "failed to move imported skill into place at %s", liveDir)
		}
		result.Imported = true

	case opts.Overwrite:
		if _, err := im.versions.Snapshot(ctx, name); err != nil {
			return nil, errors.Wrap(err, "failed to snapshot existing skill before overwrite")
		}
		// carry the existing history into the replacement; copied rather
		// than moved so a failure below cannot lose it
		if err := copyHistory(liveDir, stagedSkill); err != nil {
			return nil, err
		}
		if err := swapIn(liveDir, stagedSkill, filepath.Join(stagingDir, "replaced")); err != nil {
			return nil, err
		}
		result.Imported = true
		result.ConflictsResolved = append(result.ConflictsResolved, name)

	case opts.MergeInto != "":
		tempName := name + "-import-" + uuid.NewString()[:8]
		tempDir := filepath.Join(im.root, tempName)
		if err := os.Rename(stagedSkill, tempDir); err != nil {
			return nil, errors.Wrapf(err, "failed to stage import for merge at %s", tempDir)
		}
		if err := im.merger.MergeFrom(ctx, opts.MergeInto, tempName, name); err != nil {
			os.RemoveAll(tempDir)
			return nil, errors.Wrapf(err, "failed to merge imported skill into %s", opts.MergeInto)
		}
		result.Imported = true
		result.SkillName = opts.MergeInto
		result.ConflictsResolved = append(result.ConflictsResolved, name)

	default:
		result.Errors = multierror.Append(result.Errors,
			errors.Errorf("skill %q already exists; pass overwrite or a merge target", name))
		logger.G(ctx).WithField("skill", name).Warn("import skipped due to name conflict")
		return result, nil
	}

	if err := im.indexer.UpdateSkill(ctx, result.SkillName); err != nil {
		logger.G(ctx).WithError(err).WithField("skill", result.SkillName).Warn("failed to refresh index after import")
	}
	return result, nil
}

// extract unpacks the archive into dir and returns the top-level skill
// name. Entries escaping the staging directory are rejected.
func (im *Importer) extract(ctx context.Context, r io.Reader, dir string) (string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", errors.Wrap(err, "failed to read package")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	name := ""
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "failed to read package entry")
		}

		cleaned := filepath.ToSlash(filepath.Clean(hdr.Name))
		if cleaned == "." || strings.HasPrefix(cleaned, "..") || filepath.IsAbs(cleaned) {
			return "", errors.Errorf("package entry %q escapes the staging directory", hdr.Name)
		}
		if name == "" {
			name, _, _ = strings.Cut(cleaned, "/")
		}

		dest := filepath.Join(dir, cleaned)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return "", errors.Wrapf(err, "failed to create %s", dest)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return "", errors.Wrapf(err, "failed to create directory for %s", dest)
			}
			f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, os.FileMode(hdr.Mode).Perm())
			if err != nil {
				return "", errors.Wrapf(err, "failed to create %s", dest)
			}
			if _, err := io.Copy(f, tr); err != nil {
				f.Close()
				return "", errors.Wrapf(err, "failed to extract %s", dest)
			}
			f.Close()
		default:
			// symlinks and special files are not part of the package format
			continue
		}
	}

	if name == "" {
		return "", errors.New("package is empty")
	}
	return name, nil
}

// swapIn replaces liveDir with stagedSkill. The existing skill is renamed
// aside rather than deleted, so a failed rename-in restores it and the
// pre-operation state survives every branch; the backup is removed with
// the staging directory once the swap has succeeded.
func swapIn(liveDir, stagedSkill, backupDir string) error {
	if err := os.Rename(liveDir, backupDir); err != nil {
		return errors.Wrapf(err, "failed to set aside existing skill at %s", liveDir)
	}
	if err := os.Rename(stagedSkill, liveDir); err != nil {
		if restoreErr := os.Rename(backupDir, liveDir); restoreErr != nil {
			return errors.Wrapf(err, "failed to move imported skill into place at %s (restore also failed: %v)", liveDir, restoreErr)
		}
		return errors.Wrapf(err, "failed to move imported skill into place at %s", liveDir)
	}
	return nil
}

// copyHistory copies the live skill's versions/ into the staged
// replacement so overwrite imports keep the full history
func copyHistory(liveDir, stagedDir string) error {
	liveVersions := filepath.Join(liveDir, skills.VersionsDir)
	if _, err := os.Stat(liveVersions); os.IsNotExist(err) {
		return nil
	}

	stagedVersions := filepath.Join(stagedDir, skills.VersionsDir)
	dirEntries, err := os.ReadDir(liveVersions)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", liveVersions)
	}
	for _, de := range dirEntries {
		if !de.IsDir() {
			continue
		}
		src := filepath.Join(liveVersions, de.Name())
		dst := filepath.Join(stagedVersions, de.Name())
		if _, err := os.Stat(dst); err == nil {
			continue // the package already carries this snapshot
		}
		if err := osutil.CopyDir(src, dst); err != nil {
			return errors.Wrapf(err, "failed to carry over version %s", de.Name())
		}
	}
	return nil
}
