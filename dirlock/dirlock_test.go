package dirlock

import "testing"

func TestExclusiveExcludesExclusive(t *testing.T) {
	dir := t.TempDir()
	l1, err := Acquire(dir, Exclusive)
	if err != nil {
		t.Fatal(err)
	}
	defer l1.Release()

	if _, err := Acquire(dir, Exclusive); err == nil {
		t.Fatalf("expected second exclusive acquire to fail")
	}
}

func TestSharedAllowsMultipleReaders(t *testing.T) {
	dir := t.TempDir()
	l1, err := Acquire(dir, Shared)
	if err != nil {
		t.Fatal(err)
	}
	defer l1.Release()

	l2, err := Acquire(dir, Shared)
	if err != nil {
		t.Fatalf("expected second shared acquire to succeed: %v", err)
	}
	defer l2.Release()
}

func TestReleaseThenReacquire(t *testing.T) {
	dir := t.TempDir()
	l1, err := Acquire(dir, Exclusive)
	if err != nil {
		t.Fatal(err)
	}
	if err := l1.Release(); err != nil {
		t.Fatal(err)
	}

	l2, err := Acquire(dir, Exclusive)
	if err != nil {
		t.Fatalf("expected re-acquire after release to succeed: %v", err)
	}
	defer l2.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	l1, err := Acquire(dir, Exclusive)
	if err != nil {
		t.Fatal(err)
	}
	if err := l1.Release(); err != nil {
		t.Fatal(err)
	}
	if err := l1.Release(); err != nil {
		t.Fatalf("second release should be a no-op, got %v", err)
	}
}
