package cache

import (
	"archive/tar"
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/pgzip"

	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/resolution"
)

// writeTarGz builds a single-entry gzip'd tarball on disk and returns its
// path, for exercising fetchTar's download+checksum+extract path without a
// network fetch.
func writeTarGz(t *testing.T, entryName, entryBody string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "pkg.tar.gz")

	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	hdr := &tar.Header{Name: entryName, Mode: 0o644, Size: int64(len(entryBody))}
	if err := tw.WriteHeader(hdr); err != nil {
		t.Fatal(err)
	}
	if _, err := tw.Write([]byte(entryBody)); err != nil {
		t.Fatal(err)
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFetchTarChecksumMismatch(t *testing.T) {
	tarPath := writeTarGz(t, "elba.toml", "[package]\nname = \"a/a\"\nversion = \"1.0.0\"\n")

	bad := &resolution.Checksum{Algorithm: "sha256", Hash: "0000000000000000000000000000000000000000000000000000000000000000"}
	loc := resolution.TarRes("file://"+tarPath, bad)

	dir := t.TempDir()
	err := fetchTar(loc, dir)
	if err == nil {
		t.Fatal("expected checksum mismatch error")
	}
	if !errkind.Is(err, errkind.ChecksumMismatch) {
		t.Fatalf("expected ChecksumMismatch kind, got %v", err)
	}
}

func TestFetchTarExtractsOnChecksumMatch(t *testing.T) {
	body := "[package]\nname = \"a/a\"\nversion = \"1.0.0\"\n"
	tarPath := writeTarGz(t, "elba.toml", body)

	raw, err := os.ReadFile(tarPath)
	if err != nil {
		t.Fatal(err)
	}
	digest := sha256.Sum256(raw)
	sum := hex.EncodeToString(digest[:])
	loc := resolution.TarRes("file://"+tarPath, &resolution.Checksum{Algorithm: "sha256", Hash: sum})

	dir := t.TempDir()
	if err := fetchTar(loc, dir); err != nil {
		t.Fatalf("fetchTar: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dir, "elba.toml"))
	if err != nil {
		t.Fatalf("extracted file missing: %v", err)
	}
	if string(got) != body {
		t.Fatalf("extracted content = %q, want %q", got, body)
	}
}

func TestStoreBuildCheckoutBuildRoundTrip(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	libDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(libDir, "Main.ibc"), []byte("ibc"), 0o644); err != nil {
		t.Fatal(err)
	}

	hash := BuildHash("deadbeef")

	if b, err := c.CheckoutBuild(hash); err != nil || b != nil {
		t.Fatalf("expected no build in cold cache, got %v, %v", b, err)
	}

	stored, err := c.StoreBuild(libDir, hash)
	if err != nil {
		t.Fatalf("StoreBuild: %v", err)
	}
	defer stored.Release()

	if _, err := os.Stat(filepath.Join(stored.Path(), "Main.ibc")); err != nil {
		t.Fatalf("stored artifact missing: %v", err)
	}

	checked, err := c.CheckoutBuild(hash)
	if err != nil {
		t.Fatalf("CheckoutBuild: %v", err)
	}
	if checked == nil {
		t.Fatal("expected CheckoutBuild to find the stored build")
	}
	defer checked.Release()

	got, err := os.ReadFile(filepath.Join(checked.Path(), "Main.ibc"))
	if err != nil || string(got) != "ibc" {
		t.Fatalf("roundtripped artifact = %q, %v", got, err)
	}
}

func TestStoreBuildReplacesStaleBuildWithoutLosingLockIdentity(t *testing.T) {
	c, err := New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	hash := BuildHash("stale-hash")

	firstLib := t.TempDir()
	if err := os.WriteFile(filepath.Join(firstLib, "Old.ibc"), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	first, err := c.StoreBuild(firstLib, hash)
	if err != nil {
		t.Fatalf("first StoreBuild: %v", err)
	}
	first.Release()

	secondLib := t.TempDir()
	if err := os.WriteFile(filepath.Join(secondLib, "New.ibc"), []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	second, err := c.StoreBuild(secondLib, hash)
	if err != nil {
		t.Fatalf("second StoreBuild: %v", err)
	}
	defer second.Release()

	if _, err := os.Stat(filepath.Join(second.Path(), "Old.ibc")); err == nil {
		t.Fatal("expected stale artifact from the first build to be gone")
	}
	if _, err := os.Stat(filepath.Join(second.Path(), "New.ibc")); err != nil {
		t.Fatalf("expected new artifact present: %v", err)
	}

	checked, err := c.CheckoutBuild(hash)
	if err != nil || checked == nil {
		t.Fatalf("expected CheckoutBuild to still see the (replaced) build: %v, %v", checked, err)
	}
	checked.Release()
}
