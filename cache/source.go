package cache

import (
	"fmt"

	"github.com/elba-build/elba/dirlock"
	"github.com/elba-build/elba/manifest"
	"github.com/elba-build/elba/resolution"
)

// Source is a handle to a locked, checked-out source tree: its absolute
// path, parsed manifest, and a held shared lock on the cache directory it
// lives in (spec.md §3). Produced only by Cache.CheckoutSource.
type Source struct {
	Id      resolution.PackageId
	Version resolution.Version
	Path    string
	Meta    *manifest.Manifest

	lock *dirlock.Lock
}

// Summary returns this source's (PackageId, Version) pair.
func (s *Source) Summary() resolution.Summary {
	return resolution.NewSummary(s.Id, s.Version)
}

// Release drops the source's shared lock. Safe to call more than once.
func (s *Source) Release() error {
	if s == nil {
		return nil
	}
	return s.lock.Release()
}

// identityBytes renders the source-identity component of BuildHash
// (spec.md §4.2a): for Direct, the resolution string (URL + optional
// checksum fragment); for Index+version, the index URL, name, and
// version; for Root, the literal checked-out path.
func (s *Source) identityBytes() []byte {
	res := s.Id.Resolution
	switch {
	case res.IsRoot():
		return []byte("root:" + s.Path)
	default:
		if d, ok := res.Direct(); ok {
			return []byte("direct:" + d.String())
		}
		i, _ := res.Index()
		return []byte(fmt.Sprintf("index:%s:%s:%s", i.URL, s.Id.Name.String(), s.Version.String()))
	}
}
