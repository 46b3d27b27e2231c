// Package transfer packages a skill's full state (manifest, scripts,
// references and version history) into a portable tar.gz archive and
// restores it elsewhere. Imports are staged outside the live tree and
// renamed in only on full success, so a timeout or failure never leaves a
// partially written skill.
package transfer

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/pkg/errors"

	"github.com/jingkaihe/skillkit/pkg/logger"
)

// ExportOption configures an export
type ExportOption func(*exportConfig)

type exportConfig struct {
	excludes []string
}

// WithExcludes skips files whose skill-relative path matches any of the
// given doublestar patterns (e.g. "versions/**" to drop history, or
// "**/*.pyc")
func WithExcludes(patterns ...string) ExportOption {
	return func(c *exportConfig) {
		c.excludes = append(c.excludes, patterns...)
	}
}

// Export writes a tar.gz archive of the skill to w. The archive contains
// a single top-level directory named after the skill, mirroring its live
// layout.
func Export(ctx context.Context, root, name string, w io.Writer, opts ...ExportOption) error {
	cfg := exportConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	skillDir := filepath.Join(root, name)
	if info, err := os.Stat(skillDir); err != nil || !info.IsDir() {
		return errors.Errorf("skill %q not found at %s", name, skillDir)
	}

	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(skillDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(skillDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		for _, pattern := range cfg.excludes {
			if ok, _ := doublestar.Match(pattern, rel); ok {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = name + "/" + rel
		if d.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(tw, f)
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "failed to export skill %s", name)
	}

	if err := tw.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize archive")
	}
	if err := gz.Close(); err != nil {
		return errors.Wrap(err, "failed to finalize compression")
	}

	logger.G(ctx).WithField("skill", name).Debug("exported skill package")
	return nil
}

// PackageName inspects an archive stream and returns the top-level skill
// directory name without extracting
func PackageName(r io.Reader) (string, error) {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return "", errors.Wrap(err, "failed to read package")
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	hdr, err := tr.Next()
	if err != nil {
		return "", errors.Wrap(err, "failed to read package header")
	}
	name, _, _ := strings.Cut(filepath.ToSlash(hdr.Name), "/")
	if name == "" || name == "." || name == ".." {
		return "", errors.Errorf("package has invalid top-level entry %q", hdr.Name)
	}
	return name, nil
}
