package cache

import "github.com/elba-build/elba/dirlock"

// Binary is a handle to a locked, built artifact directory inside the
// cache (spec.md §3): an immutable "lib/" tree of compiler object files
// for as long as the handle lives.
type Binary struct {
	target *dirlock.Lock
}

// Path returns the directory holding the built artifacts.
func (b *Binary) Path() string { return b.target.Path() }

// Release drops the binary's lock. Safe to call more than once.
func (b *Binary) Release() error {
	if b == nil {
		return nil
	}
	return b.target.Release()
}
