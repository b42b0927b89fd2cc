// Package compile implements the Compile Invocation external contract
// (spec.md §4.7): the opaque boundary between the build core and whatever
// compiler toolchain actually turns source files into library/codegen
// artifacts. The core never link into a compiler; it shells out to one and
// interprets its exit code.
//
// Grounded on original_source's build/mod.rs (compile_lib/compile_bin:
// module-name-to-path mapping, build/->lib/ renaming, codegen glob
// discovery) and invoke.rs's CompileInvocation/CodegenInvocation contract,
// using os/exec and path/filepath.Glob: the contract is "run an opaque
// subprocess and glob its output", which the standard library already
// expresses directly — no third-party process-runner or glob library
// appears anywhere in the retrieved pack to justify reaching past it.
package compile

import (
	"os"
	"os/exec"
	"path/filepath"

	"github.com/elba-build/elba/errkind"
)

// Context carries the toolchain configuration the core needs to invoke a
// compiler: the executable name/path and any flags to forward on every
// invocation (include-path flags for dependencies are appended per-call).
type Context struct {
	Compiler     string
	CompilerArgs []string
	CodegenArgs  []string
}

// DefaultContext returns a Context invoking "idris2" with no extra flags,
// the toolchain original_source targets.
func DefaultContext() Context {
	return Context{Compiler: "idris2"}
}

// runCapture runs name with args in dir, returning a CompileFailed error
// (with combined stdout/stderr attached) on nonzero exit.
func runCapture(dir, name string, args []string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return errkind.Wrapf(err, errkind.CompileFailed, "%s %v failed:\n%s", name, args, out)
	}
	return nil
}

func ensureDir(p string) error {
	return os.MkdirAll(p, 0o755)
}

func glob1(pattern string) (string, bool) {
	matches, err := filepath.Glob(pattern)
	if err != nil || len(matches) == 0 {
		return "", false
	}
	return matches[0], true
}
