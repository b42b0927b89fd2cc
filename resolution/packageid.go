package resolution

import (
	"strings"

	"github.com/elba-build/elba/errkind"
)

// PackageId names a package at a particular source: a group/name identity
// plus the Resolution it was fetched from. Two packages with the same Name
// but different Resolutions are different PackageIds — the graph can hold
// both at once (spec.md §3: packages are keyed by (name, resolution)).
type PackageId struct {
	Name       Name
	Resolution Resolution
}

// NewPackageId builds a PackageId.
func NewPackageId(n Name, r Resolution) PackageId {
	return PackageId{Name: n, Resolution: r}
}

func (p PackageId) String() string {
	return p.Name.String() + "@" + p.Resolution.String()
}

// ParsePackageId parses a "group/name@resolution" string, as found in
// lockfiles.
func ParsePackageId(s string) (PackageId, error) {
	name, res, ok := strings.Cut(s, "@")
	if !ok {
		return PackageId{}, errkind.Newf(errkind.InvalidLockfile, "invalid package id %q: missing '@'", s)
	}
	n, err := ParseName(name)
	if err != nil {
		return PackageId{}, err
	}
	r, err := ParseResolution(res)
	if err != nil {
		return PackageId{}, err
	}
	return NewPackageId(n, r), nil
}

// Equal compares two PackageIds by name and resolution.
func (p PackageId) Equal(o PackageId) bool {
	return p.Name == o.Name && p.Resolution.Equal(o.Resolution)
}
