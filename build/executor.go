package build

import (
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/schollz/progressbar/v3"

	"github.com/elba-build/elba/buildlog"
	"github.com/elba-build/elba/cache"
	"github.com/elba-build/elba/compile"
	"github.com/elba-build/elba/errkind"
	fsutil "github.com/elba-build/elba/internal/fs"
	"github.com/elba-build/elba/graph"
	"github.com/elba-build/elba/target"
)

// BuiltBin is one compiled executable and the package that produced it.
type BuiltBin struct {
	Path    string
	Summary string
}

// Executor runs a job graph to completion: layered parallel dispatch on a
// bounded worker pool, compiling each Dirty job's targets and propagating
// Fresh/None state to its neighbors (spec.md §4.6).
type Executor struct {
	Cache    *cache.Cache
	Compiler compile.Context
	Workers  int
	Logger   *buildlog.Logger

	binsMu sync.Mutex
}

type jobResult struct {
	index  graph.NodeIndex
	binary *cache.Binary
	err    error
}

// Exec runs jobs to completion, using rootLayout (if non-nil) as the
// persistent output directory for node 0 instead of a scratch tmp/
// allocation. It returns the library paths of node 0's direct dependencies
// whose jobs are still Fresh when the build ends, and every built (binary
// path, summary) pair.
func (e *Executor) Exec(jobs *graph.Graph[*Job], solve *graph.Graph[*cache.Source], rootLayout *cache.OutputLayout) ([]string, []BuiltBin, error) {
	total := 0
	for _, idx := range jobs.Indices() {
		if jobs.Node(idx).Work.IsDirty() {
			total++
		}
	}

	var bar *progressbar.ProgressBar
	if total > 0 {
		bar = progressbar.NewOptions(total, progressbar.OptionSetDescription("building"))
	}

	queue := readyDirty(jobs)
	var bins []BuiltBin
	progressed := 0

	for len(queue) > 0 {
		results, err := e.runLayer(queue, jobs, solve, rootLayout, &bins)
		if err != nil {
			if bar != nil {
				bar.Exit()
			}
			return nil, nil, err
		}

		var nextQueue []graph.NodeIndex
		for _, res := range results {
			progressed++
			if bar != nil {
				_ = bar.Set(progressed)
			}

			job := jobs.Node(res.index)
			if res.binary != nil {
				job.Work = WorkFresh(res.binary)
			} else if job.Work.IsDirty() {
				job.Work = WorkNone()
			}

			for _, parent := range jobs.Parents(res.index) {
				if allFresh(jobs, parent) && jobs.Node(parent).Work.IsDirty() {
					nextQueue = append(nextQueue, parent)
				}
			}

			for _, child := range jobs.Children(res.index) {
				if allParentsFresh(jobs, child) {
					jobs.Node(child).Work = WorkNone()
				}
			}
		}
		queue = nextQueue
	}

	if rootLayout != nil {
		_ = fsutil.ClearDir(rootLayout.Build)
	}

	var rootPaths []string
	for _, child := range jobs.Children(0) {
		if b := jobs.Node(child).Work.Binary(); b != nil {
			rootPaths = append(rootPaths, b.Path())
		}
	}

	return rootPaths, bins, nil
}

func readyDirty(jobs *graph.Graph[*Job]) []graph.NodeIndex {
	var out []graph.NodeIndex
	for _, idx := range jobs.Indices() {
		if jobs.Node(idx).Work.IsDirty() && allFresh(jobs, idx) {
			out = append(out, idx)
		}
	}
	return out
}

func allFresh(jobs *graph.Graph[*Job], idx graph.NodeIndex) bool {
	for _, c := range jobs.Children(idx) {
		if !jobs.Node(c).Work.IsFresh() {
			return false
		}
	}
	return true
}

func allParentsFresh(jobs *graph.Graph[*Job], idx graph.NodeIndex) bool {
	for _, p := range jobs.Parents(idx) {
		if !jobs.Node(p).Work.IsFresh() {
			return false
		}
	}
	return true
}

// runLayer dispatches every job in queue concurrently, bounded by
// e.Workers, and waits for all of them to finish before returning — jobs
// within a layer never see each other's results, matching the cooperative
// layer-boundary scheduling model (spec.md §5).
func (e *Executor) runLayer(queue []graph.NodeIndex, jobs *graph.Graph[*Job], solve *graph.Graph[*cache.Source], rootLayout *cache.OutputLayout, bins *[]BuiltBin) ([]jobResult, error) {
	var g errgroup.Group
	g.SetLimit(e.workersOrDefault())

	results := make([]jobResult, len(queue))

	for i, idx := range queue {
		i, idx := i, idx
		job := jobs.Node(idx)
		if !job.Work.IsDirty() {
			continue
		}
		source, hash := job.Work.source, job.Work.hash

		deps := make([]*cache.Binary, 0, len(solve.Children(idx)))
		for _, c := range solve.Children(idx) {
			if b := jobs.Node(c).Work.Binary(); b != nil {
				deps = append(deps, b)
			}
		}

		if e.Logger != nil {
			e.Logger.BuildStart(source.Summary().String(), shortHash(hash))
		}

		g.Go(func() error {
			binary, err := e.runJob(idx, job, source, hash, deps, rootLayout, bins)
			if err != nil {
				if e.Logger != nil {
					e.Logger.BuildError(source.Summary().String(), err)
				}
				return err
			}
			results[i] = jobResult{index: idx, binary: binary}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, errkind.Newf(errkind.CompileFailed, "one or more packages couldn't be built: %v", err)
	}
	return results, nil
}

func (e *Executor) workersOrDefault() int {
	if e.Workers < 1 {
		return 1
	}
	return e.Workers
}

func shortHash(h cache.BuildHash) string {
	s := h.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// runJob executes every target of a single Dirty job in order, returning
// the built library Binary if a Lib target was present.
func (e *Executor) runJob(idx graph.NodeIndex, job *Job, source *cache.Source, hash cache.BuildHash, deps []*cache.Binary, rootLayout *cache.OutputLayout, bins *[]BuiltBin) (*cache.Binary, error) {
	var layout *cache.OutputLayout
	if idx == 0 && rootLayout != nil {
		layout = rootLayout
	} else {
		tmp, err := e.Cache.CheckoutTmp(hash)
		if err != nil {
			return nil, err
		}
		defer tmp.Release()
		layout = tmp
	}

	var out *cache.Binary

	for _, t := range job.Targets.Slice() {
		switch t.Kind {
		case target.Lib:
			if err := compile.Lib(e.Compiler, source, deps, layout.Build, layout.Lib); err != nil {
				return nil, err
			}
			if idx != 0 {
				b, err := e.Cache.StoreBuild(layout.Lib, hash)
				if err != nil {
					return nil, err
				}
				out = b
			} else {
				if err := layout.MarkBuilt(hash); err != nil {
					return nil, err
				}
				out = layout.LibBinary()
			}

		case target.Bin:
			bt := source.Meta.Targets.Bin[t.Index]
			path, err := compile.Bin(e.Compiler, source, bt, deps, layout.Build, layout.Bin)
			if err != nil {
				return nil, err
			}
			e.binsMu.Lock()
			*bins = append(*bins, BuiltBin{Path: path, Summary: source.Summary().String()})
			e.binsMu.Unlock()

		case target.Test:
			tt := source.Meta.Targets.Test[t.Index]
			testDeps := append(append([]*cache.Binary(nil), deps...), layout.LibBinary())
			if _, err := compile.Bin(e.Compiler, source, tt.ToBinTarget(), testDeps, layout.Build, layout.Bin); err != nil {
				return nil, err
			}

		case target.Doc:
			return nil, errkind.New(errkind.NotImplemented, "doc target is not implemented")
		}
	}

	return out, nil
}
