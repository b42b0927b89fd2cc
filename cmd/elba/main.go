// Command elba is a minimal CLI wrapper around the build core: it loads a
// project's manifest and lockfile, checks out every locked package into the
// cache, constructs the job graph, and runs the executor — a single
// "build" verb, deliberately thin (CLI breadth is an external concern,
// spec.md §1). Grounded on the teacher's cmd/dep package for overall shape
// (flag-driven context setup feeding a command's Run), using
// spf13/pflag in place of the teacher's stdlib flag package.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"

	"github.com/elba-build/elba/build"
	"github.com/elba-build/elba/buildlog"
	"github.com/elba-build/elba/cache"
	"github.com/elba-build/elba/compile"
	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/graph"
	"github.com/elba-build/elba/manifest"
	"github.com/elba-build/elba/resolution"
	"github.com/elba-build/elba/retrieve"
)

const (
	manifestName = "elba.toml"
	lockName     = "elba.lock"
)

func main() {
	var (
		projectDir = pflag.StringP("project", "p", ".", "project directory")
		cacheDir   = pflag.String("cache-dir", defaultCacheDir(), "content-addressed cache directory")
		workers    = pflag.IntP("workers", "j", 1, "maximum concurrent compile jobs")
		compiler   = pflag.String("compiler", "idris2", "compiler executable")
		indexURL   = pflag.String("index", "https://index.elba.build", "default package index URL")
	)
	pflag.Parse()

	logger := buildlog.New(os.Stdout)

	if err := runBuild(*projectDir, *cacheDir, *compiler, *indexURL, *workers, logger); err != nil {
		fmt.Fprintf(os.Stderr, "elba: %v\n", err)
		os.Exit(1)
	}
}

func defaultCacheDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".cache", "elba")
	}
	return ".elba-cache"
}

func runBuild(projectDir, cacheDir, compilerPath, indexURL string, workers int, logger *buildlog.Logger) error {
	absProject, err := filepath.Abs(projectDir)
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(filepath.Join(absProject, manifestName))
	if err != nil {
		return errkind.Wrapf(err, errkind.InvalidManifest, "cannot read %s", manifestName)
	}
	meta, err := manifest.ParseManifest(string(raw))
	if err != nil {
		return err
	}

	name, err := meta.Name()
	if err != nil {
		return err
	}
	version, err := meta.Version()
	if err != nil {
		return err
	}
	if !strings.HasPrefix(indexURL, "index+") {
		indexURL = "index+" + indexURL
	}
	defIndex, err := resolution.ParseIndexRes(indexURL)
	if err != nil {
		return err
	}

	rootId := resolution.NewPackageId(name, resolution.Root())
	rootSummary := resolution.NewSummary(rootId, version)

	deps, err := meta.Deps(defIndex, false)
	if err != nil {
		return err
	}
	rootDeps := make([]retrieve.RootDep, 0, len(deps))
	for id, con := range deps {
		rootDeps = append(rootDeps, retrieve.RootDep{Id: id, Constraint: con})
	}

	lockPath := filepath.Join(absProject, lockName)
	lockRaw, err := os.ReadFile(lockPath)
	if err != nil {
		return errkind.Wrapf(err, errkind.InvalidLockfile, "no %s: run the resolver and commit a lockfile before building", lockName)
	}
	lockToml, err := manifest.ParseLockfile(string(lockRaw))
	if err != nil {
		return err
	}
	solve, err := lockToml.ToGraph()
	if err != nil {
		return err
	}

	c, err := cache.New(cacheDir)
	if err != nil {
		return err
	}

	retriever := retrieve.New(c, rootSummary, rootDeps, noIndex{}, graph.New[resolution.Summary](), defIndex)
	sources, err := retriever.RetrievePackages(solve)
	if err != nil {
		return err
	}

	rootLayout, err := cache.OpenRootLayout(absProject)
	if err != nil {
		return err
	}
	defer rootLayout.Release()

	rootTargets := meta.Targets.AsTargetSelection()
	jobs, err := build.NewJobGraph(sources, rootTargets, rootLayout, c)
	if err != nil {
		return err
	}

	ex := &build.Executor{
		Cache:    c,
		Compiler: compile.Context{Compiler: compilerPath},
		Workers:  workers,
		Logger:   logger,
	}

	rootPaths, bins, err := ex.Exec(jobs, sources, rootLayout)
	if err != nil {
		return err
	}

	logger.Logf("built library: %s\n", rootLayout.Lib)
	for _, p := range rootPaths {
		logger.Logf("  dep: %s\n", p)
	}
	for _, b := range bins {
		logger.Logf("built binary: %s (%s)\n", b.Path, b.Summary)
	}
	return nil
}

// noIndex is a retrieve.Indices that serves no packages: this CLI resolves
// only root and Direct (git/tar/dir) dependencies from a checked-in
// lockfile, never consulting an index registry — a concrete Indices
// backend (HTTP-fetched index files) is an external collaborator outside
// this core's scope (spec.md §4.4).
type noIndex struct{}

func (noIndex) Select(sum resolution.Summary) (retrieve.IndexEntry, bool) {
	return retrieve.IndexEntry{}, false
}

func (noIndex) Entries(pkg resolution.PackageId) ([]retrieve.VersionedEntry, error) {
	return nil, errkind.Newf(errkind.NotImplemented, "no index configured for %s", pkg)
}

func (noIndex) CountVersions(pkg resolution.PackageId) int {
	return 0
}
