package manifest

import (
	"github.com/pelletier/go-toml"

	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/graph"
	"github.com/elba-build/elba/resolution"
)

// LockfileToml is the on-disk TOML shape of a lockfile (spec.md §6): a
// flat, order-preserving set of (Summary, [Summary]) pairs. Grounded on
// original_source's package/lockfile.rs (LockfileToml/LockedPkg, and the
// Into/From conversions to/from Graph<Summary>).
type LockfileToml struct {
	Packages []LockedPkg `toml:"packages"`
}

// LockedPkg is one locked package entry: its own identity plus the
// identities of its direct dependencies.
type LockedPkg struct {
	Id           string             `toml:"id"`
	Version      string             `toml:"version"`
	Dependencies []SummaryToml      `toml:"dependencies"`
}

// SummaryToml is the wire shape of a Summary reference inside a
// LockedPkg's dependency list.
type SummaryToml struct {
	Id      string `toml:"id"`
	Version string `toml:"version"`
}

// ParseLockfile parses a lockfile's TOML text.
func ParseLockfile(raw string) (*LockfileToml, error) {
	var l LockfileToml
	if err := toml.Unmarshal([]byte(raw), &l); err != nil {
		return nil, errkind.Wrapf(err, errkind.InvalidLockfile, "invalid lockfile")
	}
	return &l, nil
}

// String renders the lockfile back to TOML text.
func (l *LockfileToml) String() (string, error) {
	b, err := toml.Marshal(*l)
	if err != nil {
		return "", errkind.Wrapf(err, errkind.InvalidLockfile, "cannot render lockfile")
	}
	return string(b), nil
}

func toSummaryToml(s resolution.Summary) SummaryToml {
	return SummaryToml{Id: s.Id.String(), Version: s.Version.String()}
}

func fromSummaryToml(t SummaryToml) (resolution.Summary, error) {
	id, err := resolution.ParsePackageId(t.Id)
	if err != nil {
		return resolution.Summary{}, err
	}
	v, err := resolution.ParseVersion(t.Version)
	if err != nil {
		return resolution.Summary{}, err
	}
	return resolution.NewSummary(id, v), nil
}

// FromGraph renders a Graph[Summary] into its lockfile TOML shape: every
// node reachable from the root (the node whose Resolution.IsRoot() is
// true) is emitted once, in subtree-traversal order, each with its direct
// children as dependency entries.
func FromGraph(g *graph.Graph[resolution.Summary]) (*LockfileToml, error) {
	root, ok := g.FindBy(func(s resolution.Summary) bool { return s.Id.Resolution.IsRoot() })
	if !ok {
		return nil, errkind.New(errkind.InvalidLockfile, "graph has no root package")
	}

	var packages []LockedPkg
	for _, idx := range g.SubTree(root) {
		sum := g.Node(idx)
		var deps []SummaryToml
		for _, c := range g.Children(idx) {
			deps = append(deps, toSummaryToml(g.Node(c)))
		}
		packages = append(packages, LockedPkg{
			Id:           sum.Id.String(),
			Version:      sum.Version.String(),
			Dependencies: deps,
		})
	}
	return &LockfileToml{Packages: packages}, nil
}

// ToGraph reconstructs a Graph[Summary] from a lockfile's TOML shape.
// Packages (and their dependency references) may appear in any order;
// nodes are introduced in first-seen order as LockedPkg/dependency entries
// are scanned, matching original_source's indexmap-based reconstruction.
func (l *LockfileToml) ToGraph() (*graph.Graph[resolution.Summary], error) {
	g := graph.New[resolution.Summary]()
	index := make(map[string]graph.NodeIndex)

	nodeFor := func(s resolution.Summary) graph.NodeIndex {
		key := s.Id.String() + "@" + s.Version.String()
		if idx, ok := index[key]; ok {
			return idx
		}
		idx := g.AddNode(s)
		index[key] = idx
		return idx
	}

	for _, pkg := range l.Packages {
		sum, err := fromSummaryToml(SummaryToml{Id: pkg.Id, Version: pkg.Version})
		if err != nil {
			return nil, err
		}
		nix := nodeFor(sum)

		for _, dep := range pkg.Dependencies {
			depSum, err := fromSummaryToml(dep)
			if err != nil {
				return nil, err
			}
			dnix := nodeFor(depSum)
			g.AddEdge(nix, dnix)
		}
	}
	return g, nil
}
