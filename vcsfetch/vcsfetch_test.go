package vcsfetch

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/elba-build/elba/resolution"
)

// requireGit skips the test if the git binary isn't available in this
// environment.
func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

func initBareCommit(t *testing.T, dir string) string {
	t.Helper()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=elba-test", "GIT_AUTHOR_EMAIL=test@elba.build",
			"GIT_COMMITTER_NAME=elba-test", "GIT_COMMITTER_EMAIL=test@elba.build",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}

	run("init")
	if err := os.WriteFile(filepath.Join(dir, "pkg.ipkg"), []byte("package tiny\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	run("add", ".")
	run("commit", "-m", "initial")
	run("tag", "v1.0.0")

	out, err := exec.Command("git", "-C", dir, "rev-parse", "HEAD").Output()
	if err != nil {
		t.Fatal(err)
	}
	return string(out[:len(out)-1])
}

func TestCheckoutClonesAndChecksOutTag(t *testing.T) {
	requireGit(t)

	origin := t.TempDir()
	commit := initBareCommit(t, origin)

	dest := filepath.Join(t.TempDir(), "checkout")
	tag := resolution.GitTag{Commit: commit, Tag: "v1.0.0"}

	if err := Checkout(origin, tag, dest); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dest, "pkg.ipkg")); err != nil {
		t.Fatalf("expected checked-out file: %v", err)
	}
}

func TestCheckoutRejectsEmptyTag(t *testing.T) {
	requireGit(t)

	origin := t.TempDir()
	initBareCommit(t, origin)

	dest := filepath.Join(t.TempDir(), "checkout")
	err := Checkout(origin, resolution.GitTag{}, dest)
	if err == nil {
		t.Fatal("expected error for empty tag")
	}
}
