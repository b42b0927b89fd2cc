package cache

import (
	"os"
	"path/filepath"

	"github.com/elba-build/elba/dirlock"
	fsutil "github.com/elba-build/elba/internal/fs"
)

const builtSentinel = "built-hash"

// OutputLayout is the build/, lib/, bin/ working-directory triple for one
// job in progress (spec.md §3). Each directory is held under an exclusive
// lock for the layout's lifetime.
type OutputLayout struct {
	Build, Lib, Bin string

	buildLock *dirlock.Lock
	libLock   *dirlock.Lock
	binLock   *dirlock.Lock
}

// OpenRootLayout returns the root package's persistent, in-tree
// OutputLayout: build/, lib/, bin/ directories directly under projectDir,
// rather than a namespaced cache entry (spec.md §4.5).
func OpenRootLayout(projectDir string) (*OutputLayout, error) {
	return newOutputLayout(projectDir)
}

func newOutputLayout(root string) (*OutputLayout, error) {
	ol := &OutputLayout{
		Build: filepath.Join(root, "build"),
		Lib:   filepath.Join(root, "lib"),
		Bin:   filepath.Join(root, "bin"),
	}
	for _, dir := range []string{ol.Build, ol.Lib, ol.Bin} {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, err
		}
	}

	var err error
	if ol.buildLock, err = dirlock.Acquire(ol.Build, dirlock.Exclusive); err != nil {
		return nil, err
	}
	if ol.libLock, err = dirlock.Acquire(ol.Lib, dirlock.Exclusive); err != nil {
		ol.buildLock.Release()
		return nil, err
	}
	if ol.binLock, err = dirlock.Acquire(ol.Bin, dirlock.Exclusive); err != nil {
		ol.buildLock.Release()
		ol.libLock.Release()
		return nil, err
	}
	return ol, nil
}

// Release drops every lock this layout holds.
func (ol *OutputLayout) Release() error {
	if ol == nil {
		return nil
	}
	errs := []error{ol.buildLock.Release(), ol.libLock.Release(), ol.binLock.Release()}
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// IsBuilt reports whether this layout's Lib directory already holds a
// completed build for hash, via a sentinel file stamped with the hash —
// used for the root package's persistent, in-tree OutputLayout across
// invocations (spec.md §4.5: "root layout already contains a completed
// build for this hash").
func (ol *OutputLayout) IsBuilt(hash BuildHash) bool {
	b, err := os.ReadFile(filepath.Join(ol.Lib, builtSentinel))
	if err != nil {
		return false
	}
	return string(b) == string(hash)
}

// MarkBuilt stamps this layout's Lib directory as holding a completed
// build for hash.
func (ol *OutputLayout) MarkBuilt(hash BuildHash) error {
	return os.WriteFile(filepath.Join(ol.Lib, builtSentinel), []byte(hash), 0o644)
}

// LibBinary wraps this layout's own Lib lock as a Binary, for the root
// package's in-tree build: root's lib/ is a persistent project directory
// rather than a cache entry, so it needs no separate checkout_build/
// store_build round trip, but still needs to present as a Binary to
// dependents.
func (ol *OutputLayout) LibBinary() *Binary {
	return &Binary{target: ol.libLock}
}
