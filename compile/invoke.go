package compile

import (
	"path/filepath"

	"github.com/elba-build/elba/cache"
	"github.com/elba-build/elba/errkind"
)

// CompileInvocation typechecks (and builds object code for) a set of
// source-relative target files, using deps for include paths, writing
// artifacts under build.
type CompileInvocation struct {
	Src     string
	Deps    []*cache.Binary
	Targets []string
	Build   string
}

// Exec runs the compiler over this invocation's targets.
func (ci CompileInvocation) Exec(cx Context) error {
	if err := ensureDir(ci.Build); err != nil {
		return err
	}

	args := append([]string(nil), cx.CompilerArgs...)
	for _, d := range ci.Deps {
		args = append(args, "-i", d.Path())
	}
	args = append(args, "--build", ci.Build)
	args = append(args, ci.Targets...)

	return runCapture(ci.Src, cx.Compiler, args)
}

// CodegenInvocation produces an executable from a compiled binary object,
// via layout.Bin.
type CodegenInvocation struct {
	Binary     string
	Output     string
	BuildDir   string
	BinDir     string
	IsArtifact bool
}

// Exec runs codegen, then locates and returns the produced executable's
// path by globbing BinDir for Output* (Output itself, or Output followed by
// any extension).
func (cgi CodegenInvocation) Exec(cx Context) (string, error) {
	if err := ensureDir(cgi.BinDir); err != nil {
		return "", err
	}

	args := append([]string(nil), cx.CodegenArgs...)
	args = append(args, "-o", filepath.Join(cgi.BinDir, cgi.Output), cgi.Binary)

	if err := runCapture(cgi.BuildDir, cx.Compiler, args); err != nil {
		return "", err
	}

	path, ok := glob1(filepath.Join(cgi.BinDir, cgi.Output+"*"))
	if !ok {
		return "", errkind.Newf(errkind.CompileFailed, "codegen for %s produced no output under %s", cgi.Output, cgi.BinDir)
	}
	return path, nil
}
