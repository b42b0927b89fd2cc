package buildlog

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestBuildStartIncludesSummaryAndHash(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.BuildStart("root/pkg 0.1.0", "deadbeef")

	out := buf.String()
	if !strings.Contains(out, "root/pkg 0.1.0") || !strings.Contains(out, "deadbeef") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestBuildErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.BuildError("root/pkg 0.1.0", errors.New("compile exploded"))

	out := buf.String()
	if !strings.Contains(out, "root/pkg 0.1.0") || !strings.Contains(out, "compile exploded") {
		t.Fatalf("unexpected output: %q", out)
	}
}

func TestLogfAndLogln(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf)
	l.Logln("hello", "world")
	l.Logf("n=%d\n", 3)

	out := buf.String()
	if !strings.Contains(out, "hello world") || !strings.Contains(out, "n=3") {
		t.Fatalf("unexpected output: %q", out)
	}
}
