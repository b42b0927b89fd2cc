// Copyright 2016 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package fs provides the filesystem primitives the build cache and
// directory lock rely on: atomic-ish renames with a cross-device fallback,
// recursive copy, and directory classification. Trimmed to the operations
// this core exercises (cache checkout/store, dirlock target preparation);
// the Windows long-path and case-insensitive-prefix handling this package
// carried upstream served cmd/dep's cross-platform vendor tree and has no
// caller here.
package fs

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
)

// RenameWithFallback attempts to rename a file or directory, but falls back
// to copying in the event of a cross-device link error. If the fallback
// copy succeeds, src is still removed, emulating normal rename behavior.
func RenameWithFallback(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return errors.Wrapf(err, "cannot stat %s", src)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	terr, ok := err.(*os.LinkError)
	if !ok || terr.Err != syscall.EXDEV {
		return errors.Wrapf(err, "cannot rename %s to %s", src, dst)
	}
	return renameByCopy(src, dst)
}

func renameByCopy(src, dst string) error {
	var cerr error
	if dir, _ := IsDir(src); dir {
		cerr = CopyDir(src, dst)
	} else {
		cerr = copyFile(src, dst)
	}
	if cerr != nil {
		return errors.Wrapf(cerr, "rename fallback failed: cannot rename %s to %s", src, dst)
	}
	return errors.Wrapf(os.RemoveAll(src), "cannot delete %s", src)
}

// CopyDir recursively copies the directory tree rooted at src to dst. dst
// must not already exist.
func CopyDir(src, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	fi, err := os.Lstat(src)
	if err != nil {
		return err
	}
	if !fi.IsDir() {
		return errors.Errorf("%s is not a directory", src)
	}

	if _, err := os.Stat(dst); err == nil {
		return errors.Errorf("destination %s already exists", dst)
	} else if !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(dst, fi.Mode()); err != nil {
		return errors.Wrapf(err, "cannot mkdir %s", dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "cannot read directory %s", src)
	}

	for _, entry := range entries {
		srcPath := filepath.Join(src, entry.Name())
		dstPath := filepath.Join(dst, entry.Name())
		if entry.IsDir() {
			if err := CopyDir(srcPath, dstPath); err != nil {
				return errors.Wrap(err, "copying directory failed")
			}
		} else if err := copyFile(srcPath, dstPath); err != nil {
			return errors.Wrap(err, "copying file failed")
		}
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	if sym, serr := IsSymlink(src); serr == nil && sym {
		resolved, rerr := os.Readlink(src)
		if rerr != nil {
			return rerr
		}
		return os.Symlink(resolved, dst)
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err = io.Copy(out, in); err != nil {
		return err
	}
	if err = out.Sync(); err != nil {
		return err
	}

	si, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, si.Mode())
}

// IsDir reports whether name exists and is a directory.
func IsDir(name string) (bool, error) {
	fi, err := os.Stat(name)
	if err != nil {
		return false, err
	}
	return fi.IsDir(), nil
}

// IsNonEmptyDir reports whether name is a directory containing at least one
// entry.
func IsNonEmptyDir(name string) (bool, error) {
	isDir, err := IsDir(name)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if !isDir {
		return false, nil
	}

	f, err := os.Open(name)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, err = f.Readdirnames(1)
	switch err {
	case io.EOF:
		return false, nil
	case nil:
		return true, nil
	default:
		return false, err
	}
}

// IsSymlink reports whether path is a symbolic link.
func IsSymlink(path string) (bool, error) {
	l, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	return l.Mode()&os.ModeSymlink == os.ModeSymlink, nil
}

// EnsureDir creates dir (and its parents) if it does not already exist.
func EnsureDir(dir string) error {
	return errors.Wrapf(os.MkdirAll(dir, 0o755), "cannot create directory %s", dir)
}

// ClearDir removes every entry inside dir, keeping dir itself. It lists
// dir's immediate entries with godirwalk.ReadDirents, which skips the
// per-entry FileInfo a plain os.ReadDir would pull, and removes each entry
// (with everything beneath it) via os.RemoveAll. A missing dir is not an
// error.
func ClearDir(dir string) error {
	entries, err := godirwalk.ReadDirents(dir, nil)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "cannot read directory %s", dir)
	}
	for _, e := range entries {
		if err := os.RemoveAll(filepath.Join(dir, e.Name())); err != nil {
			return errors.Wrapf(err, "cannot remove %s", e.Name())
		}
	}
	return nil
}

// SymlinkDir creates dst as a symlink to the directory src, used for
// directory-resolution (on-disk path) dependencies that need no copy.
func SymlinkDir(src, dst string) error {
	if runtime.GOOS == "windows" {
		return errors.Errorf("directory dependencies are not supported on windows")
	}
	return errors.Wrapf(os.Symlink(src, dst), "cannot symlink %s to %s", src, dst)
}
