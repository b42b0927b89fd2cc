// Package dirlock implements the scoped, exclusive-or-shared filesystem
// lock that makes concurrent invocations of the tool safe on a shared cache
// (spec.md §4.1). It is grounded on the original Rust core's
// util::lock::DirLock (acquired around OutputLayout's build/lib/bin
// directories and around Source checkouts in job.rs/resolution.rs), backed
// here by an OS advisory lock on a sentinel file inside the directory.
//
// The teacher vendors theckman/go-flock for this purpose, but that snapshot
// predates its RLock/TryRLock additions — it offers only an exclusive
// Lock/TryLock, which can't express the shared-read holds of Source and
// Binary alongside an OutputLayout's exclusive-write hold. gofrs/flock is the same family of library
// (an OS-advisory-lock wrapper, still in the teacher's dependency
// neighborhood) with both directions, so it takes over this concern.
package dirlock

import (
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/elba-build/elba/errkind"
	fsutil "github.com/elba-build/elba/internal/fs"
)

const sentinel = ".elba-lock"

// Mode selects exclusive (write) or shared (read) acquisition.
type Mode int

const (
	Exclusive Mode = iota
	Shared
)

// Lock is a scoped hold on a directory. The zero value is not valid; obtain
// one via Acquire. Release is idempotent.
type Lock struct {
	path string
	mode Mode
	fl   *flock.Flock
}

// Path returns the locked directory's path.
func (l *Lock) Path() string { return l.path }

// Acquire takes a non-blocking lock on dir in the given mode. It never
// blocks: if the lock is already held incompatibly, it returns a
// LockContention error immediately.
func Acquire(dir string, mode Mode) (*Lock, error) {
	fl := flock.New(filepath.Join(dir, sentinel))

	var ok bool
	var err error
	if mode == Exclusive {
		ok, err = fl.TryLock()
	} else {
		ok, err = fl.TryRLock()
	}
	if err != nil {
		return nil, errkind.Wrapf(err, errkind.LockContention, "cannot lock %s", dir)
	}
	if !ok {
		return nil, errkind.Newf(errkind.LockContention, "directory %s is locked by another process", dir)
	}
	return &Lock{path: dir, mode: mode, fl: fl}, nil
}

// AcquireBlocking takes a lock on dir, waiting for any incompatible holder
// to release. Used only where a caller explicitly opts into blocking
// acquisition (spec.md §4.1: "unless the caller explicitly requests a
// blocking acquire").
func AcquireBlocking(dir string, mode Mode) (*Lock, error) {
	fl := flock.New(filepath.Join(dir, sentinel))

	var err error
	if mode == Exclusive {
		err = fl.Lock()
	} else {
		err = fl.RLock()
	}
	if err != nil {
		return nil, errkind.Wrapf(err, errkind.LockContention, "cannot lock %s", dir)
	}
	return &Lock{path: dir, mode: mode, fl: fl}, nil
}

// ReplaceContents swaps this lock's directory to hold src's contents
// instead of whatever it held before, while l is held Exclusive. Every
// entry under l.path other than the lock sentinel is removed, then every
// entry of src is moved in; the sentinel file itself is never removed or
// recreated, so a Lock acquired on this path before, during, or after the
// swap always opens the same inode — no caller can ever observe a torn
// directory or race two independent locks that believe they exclude each
// other but don't (spec.md §4.1, §4.3's atomic store_build contract).
func (l *Lock) ReplaceContents(src string) error {
	entries, err := os.ReadDir(l.path)
	if err != nil {
		return errkind.Wrapf(err, errkind.IO, "cannot read %s", l.path)
	}
	for _, e := range entries {
		if e.Name() == sentinel {
			continue
		}
		if err := os.RemoveAll(filepath.Join(l.path, e.Name())); err != nil {
			return errkind.Wrapf(err, errkind.IO, "cannot clear stale entry %s", e.Name())
		}
	}

	srcEntries, err := os.ReadDir(src)
	if err != nil {
		return errkind.Wrapf(err, errkind.IO, "cannot read %s", src)
	}
	for _, e := range srcEntries {
		if e.Name() == sentinel {
			continue
		}
		from := filepath.Join(src, e.Name())
		to := filepath.Join(l.path, e.Name())
		if err := fsutil.RenameWithFallback(from, to); err != nil {
			return err
		}
	}
	return nil
}

// Release drops the lock. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return errkind.Wrapf(l.fl.Unlock(), errkind.IO, "cannot release lock on %s", l.path)
}
