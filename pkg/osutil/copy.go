// Package osutil provides filesystem helpers shared by the snapshot,
// merge and transfer paths. All copies preserve file modes so executable
// scripts stay executable.
package osutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// CopyFile copies a regular file, preserving its permission bits
func CopyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", src)
	}

	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", dst)
	}
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return errors.Wrapf(err, "failed to copy %s", src)
	}
	return nil
}

// CopyDir deep-copies src into dst
func CopyDir(src, dst string) error {
	return CopyDirSkip(src, dst, "")
}

// CopyDirSkip deep-copies src into dst, omitting the named top-level
// entry. Used to keep a skill's versions/ directory out of its own
// snapshots.
func CopyDirSkip(src, dst, skipTopLevel string) error {
	srcEntries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "failed to read directory %s", src)
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dst)
	}

	for _, de := range srcEntries {
		if skipTopLevel != "" && de.Name() == skipTopLevel {
			continue
		}
		srcPath := filepath.Join(src, de.Name())
		dstPath := filepath.Join(dst, de.Name())
		if de.IsDir() {
			if err := CopyDirSkip(srcPath, dstPath, ""); err != nil {
				return err
			}
			continue
		}
		if err := CopyFile(srcPath, dstPath); err != nil {
			return err
		}
	}
	return nil
}
