package retrieve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/elba-build/elba/cache"
	"github.com/elba-build/elba/graph"
	"github.com/elba-build/elba/resolution"
)

func mustIndex(t *testing.T, s string) resolution.IndexRes {
	t.Helper()
	ix, err := resolution.ParseIndexRes(s)
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

func mustName(t *testing.T, s string) resolution.Name {
	t.Helper()
	n, err := resolution.ParseName(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func mustVer(t *testing.T, s string) resolution.Version {
	t.Helper()
	v, err := resolution.ParseVersion(s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func mustCon(t *testing.T, s string) resolution.Constraint {
	t.Helper()
	c, err := resolution.ParseConstraint(s)
	if err != nil {
		t.Fatal(err)
	}
	return c
}

// fakeIndices is a fixed in-memory Indices for testing, keyed by the
// package id's string form, with each entry's dependency requirements on a
// single "dep/one".
type fakeIndices struct {
	index resolution.IndexRes
	byPkg map[string][]VersionedEntry
}

func (f *fakeIndices) Select(sum resolution.Summary) (IndexEntry, bool) {
	for _, e := range f.byPkg[sum.Id.String()] {
		if e.Version.Equal(sum.Version) {
			return e.Entry, true
		}
	}
	return IndexEntry{}, false
}

func (f *fakeIndices) Entries(pkg resolution.PackageId) ([]VersionedEntry, error) {
	return f.byPkg[pkg.String()], nil
}

func (f *fakeIndices) CountVersions(pkg resolution.PackageId) int {
	return len(f.byPkg[pkg.String()])
}

func newTestCache(t *testing.T) *cache.Cache {
	t.Helper()
	c, err := cache.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestBestPrefersStableOverPrerelease(t *testing.T) {
	defIndex := mustIndex(t, "index+https://elba.io/index")
	pkgName := mustName(t, "some/pkg")
	pkgId := resolution.NewPackageId(pkgName, resolution.FromIndex(defIndex))

	entries := []VersionedEntry{
		{Version: mustVer(t, "1.0.0-alpha"), Entry: IndexEntry{}},
		{Version: mustVer(t, "1.0.0"), Entry: IndexEntry{}},
		{Version: mustVer(t, "1.1.0"), Entry: IndexEntry{}},
	}
	idx := &fakeIndices{index: defIndex, byPkg: map[string][]VersionedEntry{pkgId.String(): entries}}

	root := resolution.NewSummary(resolution.NewPackageId(mustName(t, "root/pkg"), resolution.Root()), mustVer(t, "0.1.0"))
	r := New(newTestCache(t), root, nil, idx, graph.New[resolution.Summary](), defIndex)

	got, err := r.Best(pkgId, mustCon(t, "*"), false)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "1.1.0" {
		t.Fatalf("expected greatest stable version 1.1.0, got %s", got)
	}

	got, err = r.Best(pkgId, mustCon(t, "*"), true)
	if err != nil {
		t.Fatal(err)
	}
	if got.String() != "1.0.0" {
		t.Fatalf("expected least stable version 1.0.0, got %s", got)
	}
}

func TestBestFailsWhenNothingSatisfies(t *testing.T) {
	defIndex := mustIndex(t, "index+https://elba.io/index")
	pkgId := resolution.NewPackageId(mustName(t, "some/pkg"), resolution.FromIndex(defIndex))
	idx := &fakeIndices{index: defIndex, byPkg: map[string][]VersionedEntry{}}

	root := resolution.NewSummary(resolution.NewPackageId(mustName(t, "root/pkg"), resolution.Root()), mustVer(t, "0.1.0"))
	r := New(newTestCache(t), root, nil, idx, graph.New[resolution.Summary](), defIndex)

	_, err := r.Best(pkgId, mustCon(t, "^1.0.0"), false)
	if err == nil {
		t.Fatal("expected PackageNotFound error")
	}
}

func TestIncompatsRootOnePerDep(t *testing.T) {
	defIndex := mustIndex(t, "index+https://elba.io/index")
	rootId := resolution.NewPackageId(mustName(t, "root/pkg"), resolution.Root())
	root := resolution.NewSummary(rootId, mustVer(t, "0.1.0"))
	depId := resolution.NewPackageId(mustName(t, "dep/one"), resolution.FromIndex(defIndex))

	r := New(newTestCache(t), root, []RootDep{{Id: depId, Constraint: mustCon(t, "^1.0.0")}}, &fakeIndices{}, graph.New[resolution.Summary](), defIndex)

	ics, err := r.Incompats(root)
	if err != nil {
		t.Fatal(err)
	}
	if len(ics) != 1 {
		t.Fatalf("expected 1 incompatibility, got %d", len(ics))
	}
	if _, ok := ics[0].Terms[rootId]; !ok {
		t.Fatalf("expected a term for the root package: %+v", ics[0])
	}
	if _, ok := ics[0].Terms[depId]; !ok {
		t.Fatalf("expected a term for the dependency: %+v", ics[0])
	}
}

func TestIncompatsWideningScanCollapsesContiguousRun(t *testing.T) {
	defIndex := mustIndex(t, "index+https://elba.io/index")
	pkgName := mustName(t, "some/pkg")
	pkgId := resolution.NewPackageId(pkgName, resolution.FromIndex(defIndex))
	depId := resolution.NewPackageId(mustName(t, "dep/one"), resolution.FromIndex(defIndex))

	mkEntry := func(con string) IndexEntry {
		return IndexEntry{Dependencies: []IndexDependency{
			{Name: depId.Name, Index: defIndex, Req: mustCon(t, con)},
		}}
	}

	// Versions 1.0.0-1.0.2 all declare the identical constraint on dep/one;
	// 1.0.3 narrows it, so the contiguous run stops there.
	entries := []VersionedEntry{
		{Version: mustVer(t, "1.0.0"), Entry: mkEntry("^1.0.0")},
		{Version: mustVer(t, "1.0.1"), Entry: mkEntry("^1.0.0")},
		{Version: mustVer(t, "1.0.2"), Entry: mkEntry("^1.0.0")},
		{Version: mustVer(t, "1.0.3"), Entry: mkEntry("^1.5.0")},
	}
	idx := &fakeIndices{index: defIndex, byPkg: map[string][]VersionedEntry{pkgId.String(): entries}}

	root := resolution.NewSummary(resolution.NewPackageId(mustName(t, "root/pkg"), resolution.Root()), mustVer(t, "0.1.0"))
	r := New(newTestCache(t), root, nil, idx, graph.New[resolution.Summary](), defIndex)

	sum := resolution.NewSummary(pkgId, mustVer(t, "1.0.1"))
	ics, err := r.Incompats(sum)
	if err != nil {
		t.Fatal(err)
	}
	if len(ics) != 1 {
		t.Fatalf("expected 1 collapsed incompatibility, got %d", len(ics))
	}
	rng, ok := ics[0].Terms[pkgId]
	if !ok {
		t.Fatalf("expected a range term for %s", pkgId)
	}
	if rng.Satisfies(mustVer(t, "1.0.3")) {
		t.Fatalf("widened range should stop before 1.0.3, got %s", rng)
	}
	if !rng.Satisfies(mustVer(t, "1.0.0")) || !rng.Satisfies(mustVer(t, "1.0.2")) {
		t.Fatalf("widened range should cover 1.0.0-1.0.2, got %s", rng)
	}
}

func TestRetrievePackagesChecksOutRoot(t *testing.T) {
	dir := t.TempDir()
	manifestBody := "[package]\nname = \"root/pkg\"\nversion = \"0.1.0\"\n\n[targets.lib]\npath = \"src\"\n"
	if err := os.WriteFile(filepath.Join(dir, "elba.toml"), []byte(manifestBody), 0o644); err != nil {
		t.Fatal(err)
	}

	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(oldWd)

	defIndex := mustIndex(t, "index+https://elba.io/index")
	rootId := resolution.NewPackageId(mustName(t, "root/pkg"), resolution.Root())
	root := resolution.NewSummary(rootId, mustVer(t, "0.1.0"))

	r := New(newTestCache(t), root, nil, &fakeIndices{}, graph.New[resolution.Summary](), defIndex)

	g := graph.New[resolution.Summary]()
	g.AddNode(root)

	out, err := r.RetrievePackages(g)
	if err != nil {
		t.Fatal(err)
	}
	if out.Len() != 1 {
		t.Fatalf("expected 1 node, got %d", out.Len())
	}
	src := out.Node(0)
	if src.Version.String() != "0.1.0" {
		t.Fatalf("unexpected checked-out version: %s", src.Version)
	}
}
