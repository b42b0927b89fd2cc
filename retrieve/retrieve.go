// Package retrieve implements the Retriever (spec.md §4.4): it turns a
// solved Graph<Summary> into a Graph<Source> by checking every node out of
// the cache, and answers the solver's "best version" and "incompatibilities
// for this version" queries.
//
// Grounded directly on original_source's retrieve/mod.rs, whose Retriever
// struct, best(), and incompats() this package ports near-exactly. The
// widening scan in Incompats tests "Equal or Superset" with
// resolution.Constraint.Covers, which compares the canonical String() of
// resolution.Constraint's own interval Intersect against the narrower
// constraint; Masterminds/semver supplies only version parsing and
// ordering underneath.
package retrieve

import (
	"os"

	"github.com/elba-build/elba/cache"
	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/graph"
	"github.com/elba-build/elba/resolution"
)

// RootDep is a single dependency declared by the root package's manifest.
type RootDep struct {
	Id         resolution.PackageId
	Constraint resolution.Constraint
}

// Retriever retrieves packages using both an index and a prior lockfile,
// preferring the lockfile where possible.
type Retriever struct {
	cache    *cache.Cache
	root     resolution.Summary
	rootDeps []RootDep
	indices  Indices
	lockfile *graph.Graph[resolution.Summary]
	DefIndex resolution.IndexRes
}

// New constructs a Retriever. lockfile may be an empty graph if no prior
// lockfile exists.
func New(c *cache.Cache, root resolution.Summary, rootDeps []RootDep, indices Indices, lockfile *graph.Graph[resolution.Summary], defIndex resolution.IndexRes) *Retriever {
	return &Retriever{
		cache:    c,
		root:     root,
		rootDeps: rootDeps,
		indices:  indices,
		lockfile: lockfile,
		DefIndex: defIndex,
	}
}

// Root returns the root package's summary.
func (r *Retriever) Root() resolution.Summary { return r.root }

// CountVersions delegates to the backing index.
func (r *Retriever) CountVersions(pkg resolution.PackageId) int {
	return r.indices.CountVersions(pkg)
}

// RetrievePackages checks out every node of solve into the cache, in
// place, returning the equivalent graph of locked Source handles.
func (r *Retriever) RetrievePackages(solve *graph.Graph[resolution.Summary]) (*graph.Graph[*cache.Source], error) {
	return graph.Map(solve, func(_ graph.NodeIndex, sum resolution.Summary) (*cache.Source, error) {
		var loc resolution.DirectRes
		switch {
		case sum.Id.Resolution.IsRoot():
			wd, err := os.Getwd()
			if err != nil {
				return nil, errkind.Wrap(err, errkind.IO, "cannot determine working directory for root package")
			}
			loc = resolution.DirRes(wd)
		default:
			if d, ok := sum.Id.Resolution.Direct(); ok {
				loc = d
			} else {
				entry, ok := r.indices.Select(sum)
				if !ok {
					return nil, errkind.Newf(errkind.PackageNotFound, "no index entry for %s", sum)
				}
				loc = entry.Location
			}
		}

		v := sum.Version
		src, err := r.cache.CheckoutSource(sum.Id, loc, &v)
		if err != nil {
			return nil, errkind.Wrapf(err, errkind.PackageNotFound, "unable to retrieve package %s", sum)
		}
		return src, nil
	})
}

// Best chooses the best version of pkg satisfying con. If minimize is
// true, it prefers the smallest qualifying version; otherwise the
// greatest.
func (r *Retriever) Best(pkg resolution.PackageId, con resolution.Constraint, minimize bool) (resolution.Version, error) {
	if v, ok := r.bestFromLockfile(pkg, con); ok {
		return v, nil
	}

	if loc, ok := pkg.Resolution.Direct(); ok {
		src, err := r.cache.CheckoutSource(pkg, loc, nil)
		if err != nil {
			return resolution.Version{}, err
		}
		return src.Version, nil
	}

	if pkg.Resolution.IsRoot() {
		return r.root.Version, nil
	}

	entries, err := r.indices.Entries(pkg)
	if err != nil {
		return resolution.Version{}, err
	}

	var stable, pre []resolution.Version
	for _, e := range entries {
		if !con.Satisfies(e.Version) {
			continue
		}
		if e.Version.IsPrerelease() {
			pre = append(pre, e.Version)
		} else {
			stable = append(stable, e.Version)
		}
	}

	if pool := stable; len(pool) > 0 {
		return pickFromPool(pool, minimize), nil
	}
	if pool := pre; len(pool) > 0 {
		return pickFromPool(pool, minimize), nil
	}
	return resolution.Version{}, errkind.Newf(errkind.PackageNotFound, "no version of %s satisfies %s", pkg, con)
}

// pickFromPool assumes pool is in ascending index order (Indices.Entries'
// contract) and returns the greatest element, or the least if minimize.
func pickFromPool(pool []resolution.Version, minimize bool) resolution.Version {
	if minimize {
		return pool[0]
	}
	return pool[len(pool)-1]
}

func (r *Retriever) bestFromLockfile(pkg resolution.PackageId, con resolution.Constraint) (resolution.Version, bool) {
	idx, ok := r.lockfile.FindBy(func(s resolution.Summary) bool { return s.Id.Equal(pkg) })
	if !ok {
		return resolution.Version{}, false
	}
	v := r.lockfile.Node(idx).Version
	if !con.Satisfies(v) {
		return resolution.Version{}, false
	}

	var loc resolution.DirectRes
	if d, ok := pkg.Resolution.Direct(); ok {
		loc = d
	} else {
		entry, ok := r.indices.Select(resolution.NewSummary(pkg, v))
		if !ok {
			return resolution.Version{}, false
		}
		loc = entry.Location
	}

	src, err := r.cache.CheckoutSource(pkg, loc, &v)
	if err != nil {
		return resolution.Version{}, false
	}
	return src.Version, true
}

// Incompats returns the incompatibilities corresponding to sum's
// dependencies.
func (r *Retriever) Incompats(sum resolution.Summary) ([]Incompatibility, error) {
	if sum.Equal(r.root) {
		res := make([]Incompatibility, 0, len(r.rootDeps))
		for _, dep := range r.rootDeps {
			res = append(res, FromDep(sum, dep.Id, dep.Constraint.Complement()))
		}
		return res, nil
	}

	if loc, ok := sum.Id.Resolution.Direct(); ok {
		v := sum.Version
		src, err := r.cache.CheckoutSource(sum.Id, loc, &v)
		if err != nil {
			return nil, err
		}
		deps, err := src.Meta.Deps(r.DefIndex, false)
		if err != nil {
			return nil, err
		}
		res := make([]Incompatibility, 0, len(deps))
		for dep, con := range deps {
			res = append(res, FromDep(sum, dep, con.Complement()))
		}
		return res, nil
	}

	return r.indexIncompats(sum)
}

// indexIncompats implements the contiguous-range widening scan (spec.md
// §4.4): for each dependency declared at sum's version, it walks outward
// through the index's ordered version list on both sides, extending the
// range while the neighboring version's constraint on that dependency is
// equal to or a superset of sum's own constraint, and collapses the run
// into a single incompatibility.
func (r *Retriever) indexIncompats(sum resolution.Summary) ([]Incompatibility, error) {
	entries, err := r.indices.Entries(sum.Id)
	if err != nil {
		return nil, err
	}

	ix := -1
	for i, e := range entries {
		if e.Version.Equal(sum.Version) {
			ix = i
			break
		}
	}
	if ix < 0 {
		return nil, errkind.Newf(errkind.PackageNotFound, "%s not found in index", sum)
	}

	l := len(entries)
	startDeps := entries[ix].Entry.Dependencies

	var res []Incompatibility
	for _, dep := range startDeps {
		depPkg := resolution.NewPackageId(dep.Name, resolution.FromIndex(dep.Index))

		lix, rix := ix, ix
		for lix > 0 {
			candidate := lix - 1
			if !refines(entries[candidate], dep) {
				break
			}
			lix = candidate
		}
		for rix < l-1 {
			candidate := rix + 1
			if !refines(entries[candidate], dep) {
				break
			}
			rix = candidate
		}

		var pkgRange resolution.Constraint
		if lix == 0 && rix == l-1 {
			pkgRange = resolution.Any()
		} else {
			pkgRange = resolution.Between(entries[lix].Version, entries[rix].Version)
		}

		res = append(res, Incompatibility{
			Terms: map[resolution.PackageId]resolution.Constraint{
				sum.Id: pkgRange,
				depPkg: dep.Req.Complement(),
			},
			Cause: CauseDependency,
		})
	}
	return res, nil
}

// refines reports whether entry declares the same dependency name/index
// as dep, with a constraint that is equal to or a superset of dep.Req —
// the condition under which entry can be folded into dep's range.
func refines(entry VersionedEntry, dep IndexDependency) bool {
	for _, d := range entry.Entry.Dependencies {
		if d.Name != dep.Name || d.Index.URL != dep.Index.URL {
			continue
		}
		return d.Req.Covers(dep.Req)
	}
	return false
}
