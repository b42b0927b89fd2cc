// Package manifest (de)serializes project manifests and lockfiles, and
// maps their declared dependencies into the resolution package's types
// (spec.md §6, an external collaborator deliberately out of the CORE's
// scope — the core consumes the results, never the TOML). Grounded on the
// teacher's go-toml usage (toml.go, txn_writer.go: tree/struct-tagged TOML
// via pelletier/go-toml) and, for field shape and defaulting rules, on
// original_source's package/manifest.rs.
package manifest

import (
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml"

	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/resolution"
	"github.com/elba-build/elba/target"
)

// Manifest is a parsed project manifest.
type Manifest struct {
	Package        PackageInfo           `toml:"package"`
	Dependencies   map[string]DepReq     `toml:"dependencies"`
	DevDependencies map[string]DepReq    `toml:"dev_dependencies"`
	Targets        Targets               `toml:"targets"`
	Workspace      map[string]string     `toml:"workspace"`
}

// PackageInfo is the required [package] table.
type PackageInfo struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Authors     []string `toml:"authors"`
	Description string   `toml:"description"`
	License     string   `toml:"license"`
}

// ParseManifest parses a manifest from its TOML text, applying the
// "at least one of targets.lib or targets.bin" invariant (spec.md §6).
func ParseManifest(raw string) (*Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal([]byte(raw), &m); err != nil {
		return nil, errkind.Wrapf(err, errkind.InvalidManifest, "invalid manifest")
	}
	if m.Targets.Lib == nil && len(m.Targets.Bin) == 0 {
		return nil, errkind.New(errkind.InvalidManifest, "manifest must define at least one of targets.lib or targets.bin")
	}
	for _, b := range m.Targets.Bin {
		if err := checkSubpath(b.Path); err != nil {
			return nil, err
		}
	}
	for _, t := range m.Targets.Test {
		if err := checkSubpath(t.Path); err != nil {
			return nil, err
		}
	}
	if m.Targets.Lib != nil {
		if err := checkSubpath(m.Targets.Lib.Path); err != nil {
			return nil, err
		}
	}
	return &m, nil
}

// checkSubpath enforces that declared target paths don't escape the
// project root.
func checkSubpath(p string) error {
	if p == "" {
		return nil
	}
	clean := filepath.Clean(p)
	if clean == ".." || strings.HasPrefix(clean, "../") || filepath.IsAbs(clean) {
		return errkind.Newf(errkind.InvalidManifest, "target path %q escapes the project root", p)
	}
	return nil
}

// Name returns the package's parsed group/name identity.
func (m *Manifest) Name() (resolution.Name, error) { return resolution.ParseName(m.Package.Name) }

// Version returns the package's parsed version.
func (m *Manifest) Version() (resolution.Version, error) {
	return resolution.ParseVersion(m.Package.Version)
}

// Deps resolves the manifest's [dependencies] (and, if devDeps is true,
// [dev_dependencies]) into PackageId/Constraint pairs, using defIndex as
// the implicit registry for bare-constraint and {con} dependency entries.
func (m *Manifest) Deps(defIndex resolution.IndexRes, devDeps bool) (map[resolution.PackageId]resolution.Constraint, error) {
	out := make(map[resolution.PackageId]resolution.Constraint)
	add := func(deps map[string]DepReq) error {
		for n, dep := range deps {
			name, err := resolution.ParseName(n)
			if err != nil {
				return err
			}
			pid, c, err := dep.intoDep(defIndex, name)
			if err != nil {
				return err
			}
			out[pid] = c
		}
		return nil
	}
	if err := add(m.Dependencies); err != nil {
		return nil, err
	}
	if devDeps {
		if err := add(m.DevDependencies); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DepReq is a single dependency requirement, accepting any of the manifest
// grammar's forms: a bare constraint string, a {con, registry} table, a
// {path} table, or a {git, tag} table — mirroring the Rust source's
// untagged DepReq enum (package/manifest.rs).
type DepReq struct {
	Constraint string // set when this is a bare string or {con}
	Registry   string // set alongside Constraint for {con, registry}
	Path       string // set for {path}
	Git        string // set for {git}
	Tag        string // set alongside Git; defaults to "master"
}

// UnmarshalTOML implements go-toml's Unmarshaler, dispatching on whichever
// shape the decoded value takes.
func (d *DepReq) UnmarshalTOML(v interface{}) error {
	switch val := v.(type) {
	case string:
		d.Constraint = val
		return nil
	case map[string]interface{}:
		if path, ok := val["path"].(string); ok {
			d.Path = path
			return nil
		}
		if git, ok := val["git"].(string); ok {
			d.Git = git
			d.Tag = "master"
			if tag, ok := val["tag"].(string); ok {
				d.Tag = tag
			}
			return nil
		}
		if con, ok := val["con"].(string); ok {
			d.Constraint = con
			if reg, ok := val["registry"].(string); ok {
				d.Registry = reg
			}
			return nil
		}
		return errkind.Newf(errkind.InvalidManifest, "unrecognized dependency table %v", val)
	default:
		return errkind.Newf(errkind.InvalidManifest, "unrecognized dependency shape %T", v)
	}
}

func (d DepReq) intoDep(defIndex resolution.IndexRes, n resolution.Name) (resolution.PackageId, resolution.Constraint, error) {
	switch {
	case d.Path != "":
		res := resolution.DirRes("file://" + d.Path)
		return resolution.NewPackageId(n, resolution.FromDirect(res)), resolution.Any(), nil
	case d.Git != "":
		res := resolution.GitRes(d.Git, resolution.GitTag{Tag: d.Tag})
		return resolution.NewPackageId(n, resolution.FromDirect(res)), resolution.Any(), nil
	case d.Registry != "":
		c, err := resolution.ParseConstraint(d.Constraint)
		if err != nil {
			return resolution.PackageId{}, resolution.Constraint{}, err
		}
		idx, err := resolution.ParseIndexRes(d.Registry)
		if err != nil {
			return resolution.PackageId{}, resolution.Constraint{}, err
		}
		return resolution.NewPackageId(n, resolution.FromIndex(idx)), c, nil
	default:
		c, err := resolution.ParseConstraint(d.Constraint)
		if err != nil {
			return resolution.PackageId{}, resolution.Constraint{}, err
		}
		return resolution.NewPackageId(n, resolution.FromIndex(defIndex)), c, nil
	}
}

// Targets is the manifest's declared [targets] table. Distinct from
// target.Targets (the normalized, BuildHash-encodable selection the build
// core operates on): this is the raw declaration, including names, source
// subpaths, and per-target compiler options.
type Targets struct {
	Lib  *LibTarget  `toml:"lib"`
	Bin  []BinTarget `toml:"bin"`
	Test []TestTarget `toml:"test"`
}

// LibTarget declares the library target.
type LibTarget struct {
	Path      string   `toml:"path"`
	Mods      []string `toml:"mods"`
	IdrisOpts []string `toml:"idris_opts"`
}

// BinTarget declares an executable target.
type BinTarget struct {
	Name      string   `toml:"name"`
	Path      string   `toml:"path"`
	Main      string   `toml:"main"`
	IdrisOpts []string `toml:"idris_opts"`
}

// TestTarget declares a test binary target. Structurally identical to
// BinTarget, except that Name is optional (defaulted from Main, per
// ToBinTarget).
type TestTarget struct {
	Name      string   `toml:"name"`
	Path      string   `toml:"path"`
	Main      string   `toml:"main"`
	IdrisOpts []string `toml:"idris_opts"`
}

// ToBinTarget converts a TestTarget to the BinTarget shape the compiler
// contract operates on, synthesizing a name from Main when none was given.
func (t TestTarget) ToBinTarget() BinTarget {
	name := t.Name
	if name == "" {
		stem := strings.TrimSuffix(t.Main, ".idr")
		stem = strings.ReplaceAll(stem, "/", "_")
		stem = strings.ReplaceAll(stem, ".", "_")
		name = "tests-" + stem
	}
	return BinTarget{Name: name, Path: t.Path, Main: t.Main, IdrisOpts: t.IdrisOpts}
}

// AsTargetSelection converts the manifest's declared targets into a
// target.Targets selection for BuildHash purposes: [Lib] if declared, plus
// one Bin(i) per declared bin, one Test(i) per declared test.
func (t Targets) AsTargetSelection() target.Targets {
	var xs []target.Target
	if t.Lib != nil {
		xs = append(xs, target.LibTarget())
	}
	for i := range t.Bin {
		xs = append(xs, target.BinTarget(i))
	}
	for i := range t.Test {
		xs = append(xs, target.TestTarget(i))
	}
	return target.New(xs)
}
