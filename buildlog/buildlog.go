// Package buildlog adapts the teacher's minimal io.Writer-backed logger
// (golang-dep's log/logger.go) into the build core's status reporter:
// colorized "[bld]"/"[err]" lines for job starts and failures, in place of
// original_source's console::style-driven output.
package buildlog

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Logger is a minimal wrapper around an io.Writer, kept close to the
// teacher's Logger (Logln/Logf) and extended with the two status lines
// the Executor emits.
type Logger struct {
	io.Writer
}

// New returns a new logger which writes to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string.
func (l *Logger) Logf(f string, args ...interface{}) {
	fmt.Fprintf(l, f, args...)
}

var (
	bldTag = color.New(color.FgBlue).Sprint("[bld]")
	errTag = color.New(color.FgRed, color.Bold).Sprint("[err]")
)

// BuildStart logs that a job for summary has begun, with its BuildHash
// prefix for cross-referencing against the cache on disk.
func (l *Logger) BuildStart(summary, hashPrefix string) {
	fmt.Fprintf(l, "%7s %s [%s..]\n", bldTag, summary, hashPrefix)
}

// BuildError logs a job failure.
func (l *Logger) BuildError(summary string, err error) {
	fmt.Fprintf(l, "%7s couldn't build package %s\n%s\n", errTag, summary, err)
}
