package resolution

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver"

	"github.com/elba-build/elba/errkind"
)

// Version is a semantic version with prerelease ordering, per spec.md §3.
// It wraps Masterminds/semver.Version (the teacher's vendored semver
// library) directly for parsing and ordering.
type Version struct {
	v *semver.Version
}

// ParseVersion parses a semver string.
func ParseVersion(s string) (Version, error) {
	v, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, errkind.Wrapf(err, errkind.InvalidManifest, "invalid version %q", s)
	}
	return Version{v: v}, nil
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// IsPrerelease reports whether the version carries a prerelease component.
func (v Version) IsPrerelease() bool { return v.v.Prerelease() != "" }

// LessThan compares two versions, prerelease-aware.
func (v Version) LessThan(o Version) bool { return v.v.LessThan(o.v) }

// Equal compares two versions for equality.
func (v Version) Equal(o Version) bool { return v.v.Equal(o.v) }

// Compare returns -1, 0, or 1.
func (v Version) Compare(o Version) int { return v.v.Compare(o.v) }

func (v Version) major() int64 { return v.v.Major() }
func (v Version) minor() int64 { return v.v.Minor() }
func (v Version) patch() int64 { return v.v.Patch() }

func version(major, minor, patch int64) Version {
	v, _ := semver.NewVersion(fmt.Sprintf("%d.%d.%d", major, minor, patch))
	return Version{v: v}
}

// Constraint is a set of admissible Versions, represented as a union of
// closed/half-open/open intervals. Intervals are kept in the order they were
// parsed or combined; empty intervals are dropped, but the rest are neither
// sorted nor merged.
//
// Masterminds/semver's own Constraint type (vendored by the teacher) covers
// admission-checking, intersection and union directly, but its variants
// (rangeConstraint, unionConstraint, the any/none singletons) are
// unexported, so a complement operator can't be implemented against it from
// outside the package — and this core needs one for incompatibility
// derivation (spec.md §4.4: "dep ∧ ¬constraint"). Constraint therefore
// parses the same operator grammar the vendored library accepts
// (comparison operators, ^, ~, "A - B" ranges, ",", "||") directly into an
// interval-union it owns end to end, using semver.Version only for the
// underlying per-version parsing and ordering. Exclusion terms ("!=") are
// not supported: no manifest in this domain's dependency grammar needs
// them, and the original Rust source's own Range/Interval type (which this
// mirrors) doesn't carry one either.
type Constraint struct {
	ranges []interval
}

type bound struct {
	v        Version
	inf      bool // true for -inf (if !upper) or +inf (if upper)
	inclusive bool
}

type interval struct {
	lo, hi bound
}

func negInf() bound              { return bound{inf: true} }
func posInf() bound              { return bound{inf: true} }
func atLeast(v Version) bound    { return bound{v: v, inclusive: true} }
func above(v Version) bound      { return bound{v: v, inclusive: false} }
func atMost(v Version) bound     { return bound{v: v, inclusive: true} }
func below(v Version) bound      { return bound{v: v, inclusive: false} }

func admitsLower(b bound, v Version) bool {
	if b.inf {
		return true
	}
	if b.inclusive {
		return !v.LessThan(b.v)
	}
	return b.v.LessThan(v)
}

func admitsUpper(b bound, v Version) bool {
	if b.inf {
		return true
	}
	if b.inclusive {
		return !b.v.LessThan(v)
	}
	return v.LessThan(b.v)
}

func (iv interval) admits(v Version) bool {
	return admitsLower(iv.lo, v) && admitsUpper(iv.hi, v)
}

func (iv interval) empty() bool {
	if iv.lo.inf || iv.hi.inf {
		return false
	}
	if iv.lo.v.LessThan(iv.hi.v) {
		return false
	}
	if iv.lo.v.Equal(iv.hi.v) {
		return !(iv.lo.inclusive && iv.hi.inclusive)
	}
	return true
}

func full() interval { return interval{lo: negInf(), hi: posInf()} }

// Any is the constraint admitting every version.
func Any() Constraint { return Constraint{ranges: []interval{full()}} }

// None is the constraint admitting no version.
func None() Constraint { return Constraint{} }

// Exact returns the constraint admitting only v.
func Exact(v Version) Constraint {
	return Constraint{ranges: []interval{{lo: atLeast(v), hi: atMost(v)}}}
}

// Between returns the constraint admitting the closed range [lo, hi],
// used by the index incompatibility scan to express a contiguous run of
// package versions.
func Between(lo, hi Version) Constraint {
	return Constraint{ranges: []interval{{lo: atLeast(lo), hi: atMost(hi)}}}
}

var rangeOpRe = regexp.MustCompile(`^(>=|<=|=>|=<|>|<|!=|\^|~>?|=)?\s*(.+)$`)

func parseTerm(s string) (interval, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return full(), nil
	}
	if strings.Contains(s, " - ") {
		parts := strings.SplitN(s, " - ", 2)
		lo, err := ParseVersion(strings.TrimSpace(parts[0]))
		if err != nil {
			return interval{}, err
		}
		hi, err := ParseVersion(strings.TrimSpace(parts[1]))
		if err != nil {
			return interval{}, err
		}
		return interval{lo: atLeast(lo), hi: atMost(hi)}, nil
	}

	m := rangeOpRe.FindStringSubmatch(s)
	if m == nil {
		return interval{}, errkind.Newf(errkind.InvalidManifest, "invalid constraint term %q", s)
	}
	op, rest := m[1], strings.TrimSpace(m[2])
	v, err := ParseVersion(rest)
	if err != nil {
		return interval{}, err
	}

	switch op {
	case "", "=":
		return interval{lo: atLeast(v), hi: atMost(v)}, nil
	case ">=", "=>":
		return interval{lo: atLeast(v), hi: posInf()}, nil
	case ">":
		return interval{lo: above(v), hi: posInf()}, nil
	case "<=", "=<":
		return interval{lo: negInf(), hi: atMost(v)}, nil
	case "<":
		return interval{lo: negInf(), hi: below(v)}, nil
	case "^":
		var upper Version
		switch {
		case v.major() > 0:
			upper = version(v.major()+1, 0, 0)
		case v.minor() > 0:
			upper = version(0, v.minor()+1, 0)
		default:
			upper = version(0, 0, v.patch()+1)
		}
		return interval{lo: atLeast(v), hi: below(upper)}, nil
	case "~", "~>":
		upper := version(v.major(), v.minor()+1, 0)
		return interval{lo: atLeast(v), hi: below(upper)}, nil
	case "!=":
		return interval{}, errkind.Newf(errkind.InvalidManifest, "!= constraints are not supported: %q", s)
	default:
		return interval{}, errkind.Newf(errkind.InvalidManifest, "invalid constraint operator in %q", s)
	}
}

// ParseConstraint parses a constraint string such as "^1.2", ">=1,<2", or
// "1.0 || 2.0".
func ParseConstraint(s string) (Constraint, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return Any(), nil
	}

	var ranges []interval
	for _, orClause := range strings.Split(s, "||") {
		clauseRanges := []interval{full()}
		for _, term := range strings.Split(orClause, ",") {
			iv, err := parseTerm(term)
			if err != nil {
				return Constraint{}, err
			}
			var next []interval
			for _, cr := range clauseRanges {
				if in, ok := intersectInterval(cr, iv); ok {
					next = append(next, in)
				}
			}
			clauseRanges = next
		}
		ranges = append(ranges, clauseRanges...)
	}
	return normalize(Constraint{ranges: ranges}), nil
}

func maxLower(a, b bound) bound {
	if a.inf {
		return b
	}
	if b.inf {
		return a
	}
	if a.v.LessThan(b.v) {
		return b
	}
	if b.v.LessThan(a.v) {
		return a
	}
	if !a.inclusive || !b.inclusive {
		return bound{v: a.v, inclusive: false}
	}
	return a
}

func minUpper(a, b bound) bound {
	if a.inf {
		return b
	}
	if b.inf {
		return a
	}
	if b.v.LessThan(a.v) {
		return b
	}
	if a.v.LessThan(b.v) {
		return a
	}
	if !a.inclusive || !b.inclusive {
		return bound{v: a.v, inclusive: false}
	}
	return a
}

func intersectInterval(a, b interval) (interval, bool) {
	out := interval{lo: maxLower(a.lo, b.lo), hi: minUpper(a.hi, b.hi)}
	if out.empty() {
		return interval{}, false
	}
	return out, true
}

func normalize(c Constraint) Constraint {
	var out []interval
	for _, r := range c.ranges {
		if !r.empty() {
			out = append(out, r)
		}
	}
	return Constraint{ranges: out}
}

func (c Constraint) String() string {
	if len(c.ranges) == 0 {
		return "<0.0.0"
	}
	parts := make([]string, 0, len(c.ranges))
	for _, r := range c.ranges {
		parts = append(parts, intervalString(r))
	}
	return strings.Join(parts, " || ")
}

func intervalString(iv interval) string {
	if iv.lo.inf && iv.hi.inf {
		return "*"
	}
	if !iv.lo.inf && !iv.hi.inf && iv.lo.v.Equal(iv.hi.v) && iv.lo.inclusive && iv.hi.inclusive {
		return "=" + iv.lo.v.String()
	}
	var parts []string
	if !iv.lo.inf {
		if iv.lo.inclusive {
			parts = append(parts, ">="+iv.lo.v.String())
		} else {
			parts = append(parts, ">"+iv.lo.v.String())
		}
	}
	if !iv.hi.inf {
		if iv.hi.inclusive {
			parts = append(parts, "<="+iv.hi.v.String())
		} else {
			parts = append(parts, "<"+iv.hi.v.String())
		}
	}
	return strings.Join(parts, ", ")
}

// Satisfies reports whether v is admitted by c.
func (c Constraint) Satisfies(v Version) bool {
	for _, r := range c.ranges {
		if r.admits(v) {
			return true
		}
	}
	return false
}

// Intersect computes the intersection of two constraints.
func (c Constraint) Intersect(o Constraint) Constraint {
	var out []interval
	for _, a := range c.ranges {
		for _, b := range o.ranges {
			if in, ok := intersectInterval(a, b); ok {
				out = append(out, in)
			}
		}
	}
	return normalize(Constraint{ranges: out})
}

// Union computes the union of two constraints.
func (c Constraint) Union(o Constraint) Constraint {
	return normalize(Constraint{ranges: append(append([]interval{}, c.ranges...), o.ranges...)})
}

// complementInterval returns the (up to two) disjoint intervals covering
// everything iv does not.
func complementInterval(iv interval) []interval {
	var out []interval
	if !iv.lo.inf {
		lo := interval{lo: negInf(), hi: bound{v: iv.lo.v, inclusive: !iv.lo.inclusive}}
		if !lo.empty() {
			out = append(out, lo)
		}
	}
	if !iv.hi.inf {
		hi := interval{lo: bound{v: iv.hi.v, inclusive: !iv.hi.inclusive}, hi: posInf()}
		if !hi.empty() {
			out = append(out, hi)
		}
	}
	return out
}

// Complement computes ¬c via De Morgan's laws: the complement of a union of
// intervals is the intersection of each interval's complement.
func (c Constraint) Complement() Constraint {
	acc := Any()
	for _, r := range c.ranges {
		comp := Constraint{ranges: complementInterval(r)}
		acc = acc.Intersect(comp)
	}
	return normalize(acc)
}

// Covers reports whether c is equal to, or a superset of, other — i.e.
// intersecting the two yields exactly other. Used by the incompatibility
// widening scan (retrieve.Retriever.Incompats) to test "declared constraint
// on d is Equal or Superset of sum's constraint on d".
func (c Constraint) Covers(other Constraint) bool {
	return c.Intersect(other).String() == other.String()
}
