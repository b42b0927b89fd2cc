package compile

import (
	"os"
	"path/filepath"
	"strings"

	fsutil "github.com/elba-build/elba/internal/fs"

	"github.com/elba-build/elba/cache"
	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/manifest"
)

// Lib typechecks source's declared library target and moves its build
// artifacts into layout.Lib, ready for cache.Cache.StoreBuild or a root
// in-tree layout.
func Lib(cx Context, source *cache.Source, deps []*cache.Binary, buildDir, libDir string) error {
	libTarget := source.Meta.Targets.Lib
	if libTarget == nil {
		return errkind.Newf(errkind.InvalidManifest, "package %s has no lib target", source.Id)
	}

	if err := fsutil.ClearDir(libDir); err != nil {
		return err
	}

	srcPath := filepath.Join(source.Path, libTarget.Path)
	targets := make([]string, 0, len(libTarget.Mods))
	for _, mod := range libTarget.Mods {
		rel := strings.ReplaceAll(mod, ".", string(filepath.Separator))
		targets = append(targets, rel+".idr")
	}

	invocation := CompileInvocation{
		Src:     srcPath,
		Deps:    deps,
		Targets: targets,
		Build:   buildDir,
	}
	if err := invocation.Exec(cx); err != nil {
		return err
	}

	for _, t := range targets {
		artifact := withExt(t, ".ibc")
		from := filepath.Join(buildDir, artifact)
		to := filepath.Join(libDir, artifact)
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return err
		}
		if err := fsutil.RenameWithFallback(from, to); err != nil {
			return errkind.Wrapf(err, errkind.IO, "cannot move built artifact %s into lib/", artifact)
		}
	}
	return nil
}

// Bin compiles and codegens a single Bin or Test target, returning the
// resulting executable's path.
func Bin(cx Context, source *cache.Source, bt manifest.BinTarget, deps []*cache.Binary, buildDir, binDir string) (string, error) {
	targetPath := withExt(filepath.Join(source.Path, bt.Main), ".idr")
	srcPath := filepath.Dir(targetPath)
	relTarget := filepath.Base(targetPath)

	invocation := CompileInvocation{
		Src:     srcPath,
		Deps:    deps,
		Targets: []string{relTarget},
		Build:   buildDir,
	}
	if err := invocation.Exec(cx); err != nil {
		return "", err
	}

	binaryObj := filepath.Join(buildDir, withExt(relTarget, ".ibc"))
	codegen := CodegenInvocation{
		Binary:   binaryObj,
		Output:   bt.Name,
		BuildDir: buildDir,
		BinDir:   binDir,
	}
	return codegen.Exec(cx)
}

func withExt(p, ext string) string {
	return strings.TrimSuffix(p, filepath.Ext(p)) + ext
}
