package compile

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/elba-build/elba/cache"
	"github.com/elba-build/elba/manifest"
	"github.com/elba-build/elba/resolution"
)

// fakeCompiler writes a tiny shell script that, given --build <dir> and a
// list of target .idr files, drops a matching .ibc artifact per target
// (simulating a successful typecheck) and, given -o <out> <binary>, writes
// an "executable" file at <out>.
func fakeCompiler(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler script is a shell script")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "fakec")
	script := `#!/bin/sh
build=""
out=""
bin=""
targets=""
while [ $# -gt 0 ]; do
  case "$1" in
    --build) build="$2"; shift 2;;
    -i) shift 2;;
    -o) out="$2"; bin="$3"; shift 3;;
    *) targets="$targets $1"; shift;;
  esac
done
if [ -n "$out" ]; then
  printf 'exe' > "$out"
  exit 0
fi
for t in $targets; do
  ibc="$build/$(echo "$t" | sed 's/\.idr$/.ibc/')"
  mkdir -p "$(dirname "$ibc")"
  printf 'ibc' > "$ibc"
done
exit 0
`
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLibCompilesAndMovesArtifacts(t *testing.T) {
	compiler := fakeCompiler(t)

	root := t.TempDir()
	srcDir := filepath.Join(root, "src")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "Main.idr"), []byte("module Main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := &manifest.Manifest{
		Package: manifest.PackageInfo{Name: "a/b", Version: "0.1.0"},
		Targets: manifest.Targets{Lib: &manifest.LibTarget{Path: "src", Mods: []string{"Main"}}},
	}

	src := &cache.Source{
		Id:      resolution.NewPackageId(mustName(t, "a/b"), resolution.Root()),
		Version: mustVer(t, "0.1.0"),
		Path:    root,
		Meta:    m,
	}

	buildDir := filepath.Join(root, "build")
	libDir := filepath.Join(root, "lib")

	cx := Context{Compiler: compiler}
	if err := Lib(cx, src, nil, buildDir, libDir); err != nil {
		t.Fatalf("Lib: %v", err)
	}

	if _, err := os.Stat(filepath.Join(libDir, "Main.ibc")); err != nil {
		t.Fatalf("expected Main.ibc in lib/: %v", err)
	}
}

func TestBinCodegenProducesExecutable(t *testing.T) {
	compiler := fakeCompiler(t)

	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "Main.idr"), []byte("module Main\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	m := &manifest.Manifest{
		Package: manifest.PackageInfo{Name: "a/b", Version: "0.1.0"},
		Targets: manifest.Targets{Bin: []manifest.BinTarget{{Name: "mybin", Main: "Main"}}},
	}
	src := &cache.Source{
		Id:      resolution.NewPackageId(mustName(t, "a/b"), resolution.Root()),
		Version: mustVer(t, "0.1.0"),
		Path:    root,
		Meta:    m,
	}

	buildDir := filepath.Join(root, "build")
	binDir := filepath.Join(root, "bin")

	cx := Context{Compiler: compiler}
	path, err := Bin(cx, src, m.Targets.Bin[0], nil, buildDir, binDir)
	if err != nil {
		t.Fatalf("Bin: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected executable at %s: %v", path, err)
	}
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
