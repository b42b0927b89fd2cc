package retrieve

import (
	"sort"
	"strings"

	"github.com/elba-build/elba/resolution"
)

// IncompatibilityCause records why an Incompatibility was derived, for
// diagnostics when the solver reports a conflict.
type IncompatibilityCause int

const (
	// CauseDependency marks an incompatibility derived from a package's
	// declared dependency requirement.
	CauseDependency IncompatibilityCause = iota
)

// Incompatibility is a conjunction of terms that cannot all hold at once:
// a set of (package, constraint) pairs such that no valid selection may
// satisfy every one of them simultaneously.
type Incompatibility struct {
	Terms map[resolution.PackageId]resolution.Constraint
	Cause IncompatibilityCause
}

// FromDep builds the standard "depender requires dep" incompatibility:
// the depender's presence and the complement of its constraint on dep
// cannot both hold, i.e. whenever depender is selected, dep must satisfy
// the (non-complemented) constraint.
func FromDep(depender resolution.Summary, dep resolution.PackageId, negated resolution.Constraint) Incompatibility {
	return Incompatibility{
		Terms: map[resolution.PackageId]resolution.Constraint{
			depender.Id: resolution.Exact(depender.Version),
			dep:         negated,
		},
		Cause: CauseDependency,
	}
}

// String renders the incompatibility as a conjunction, sorted by package
// id for determinism.
func (ic Incompatibility) String() string {
	ids := make([]resolution.PackageId, 0, len(ic.Terms))
	for id := range ic.Terms {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id.String()+" "+ic.Terms[id].String())
	}
	return strings.Join(parts, " ∧ ")
}
