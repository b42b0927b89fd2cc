// Package cache implements the content-addressed build cache (spec.md
// §4.3): namespaced source/build/tmp directories, the checkout/store
// protocol, and the BuildHash fingerprint that addresses built artifacts.
// Grounded on original_source's package/resolution.rs (DirectRes::retrieve:
// http/https/file tar + GzDecoder + tar unpack with checksum verification,
// dir symlinking) and build/job.rs (checkout_tmp/store_build call sites),
// using the teacher's dependency family for the concerns involved:
// klauspost/pgzip for the gzip stream (parallel gzip, same family as the
// tar-centric retrieval other pack repos use), stdlib archive/tar and
// crypto/sha256, and this module's own dirlock/internal/fs packages for
// locking and filesystem primitives.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"
	"archive/tar"

	"github.com/elba-build/elba/dirlock"
	fsutil "github.com/elba-build/elba/internal/fs"
	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/manifest"
	"github.com/elba-build/elba/resolution"
	"github.com/elba-build/elba/vcsfetch"
)

// Cache owns the on-disk content-addressed store, rooted at Root.
type Cache struct {
	Root string
}

// New returns a Cache rooted at dir, creating its namespaced
// subdirectories (src/, build/, tmp/) if absent.
func New(dir string) (*Cache, error) {
	c := &Cache{Root: dir}
	for _, sub := range []string{"src", "build", "tmp"} {
		if err := fsutil.EnsureDir(filepath.Join(dir, sub)); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Cache) srcDir(fingerprint string) string   { return filepath.Join(c.Root, "src", fingerprint) }
func (c *Cache) buildDir(hash BuildHash) string      { return filepath.Join(c.Root, "build", string(hash)) }

// sourceFingerprint names the src/ subdirectory for a DirectRes: stable
// across runs, distinct per git commit / tarball checksum / local path, as
// required by spec.md §4.3.
func sourceFingerprint(loc resolution.DirectRes) string {
	sum := sha256.Sum256([]byte(loc.String()))
	return hex.EncodeToString(sum[:])
}

// CheckoutSource ensures the package's source exists under src/..., fetching
// it if absent, and returns a Source holding a shared lock. If version is
// non-nil, the checked-out manifest's version must equal it.
func (c *Cache) CheckoutSource(id resolution.PackageId, loc resolution.DirectRes, version *resolution.Version) (*Source, error) {
	if id.Resolution.IsRoot() {
		return c.checkoutRoot(id, loc.URL)
	}

	dir := c.srcDir(sourceFingerprint(loc))
	if present, _ := fsutil.IsNonEmptyDir(dir); !present {
		if err := fsutil.EnsureDir(dir); err != nil {
			return nil, err
		}
		if err := fetchDirect(loc, dir); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}

	lock, err := dirlock.Acquire(dir, dirlock.Shared)
	if err != nil {
		return nil, err
	}

	src, err := loadSource(id, dir, lock)
	if err != nil {
		lock.Release()
		return nil, err
	}
	if version != nil && !src.Version.Equal(*version) {
		lock.Release()
		return nil, errkind.Newf(errkind.InvalidManifest, "checked out %s but manifest declares version %s", version, src.Version)
	}
	return src, nil
}

func (c *Cache) checkoutRoot(id resolution.PackageId, path string) (*Source, error) {
	lock, err := dirlock.Acquire(path, dirlock.Shared)
	if err != nil {
		return nil, err
	}
	src, err := loadSource(id, path, lock)
	if err != nil {
		lock.Release()
		return nil, err
	}
	return src, nil
}

func loadSource(id resolution.PackageId, dir string, lock *dirlock.Lock) (*Source, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "elba.toml"))
	if err != nil {
		return nil, errkind.Wrapf(err, errkind.InvalidManifest, "cannot read manifest in %s", dir)
	}
	m, err := manifest.ParseManifest(string(raw))
	if err != nil {
		return nil, err
	}
	v, err := m.Version()
	if err != nil {
		return nil, err
	}
	return &Source{Id: id, Version: v, Path: dir, Meta: m, lock: lock}, nil
}

// fetchDirect materializes loc's content into dir: tarball download +
// checksum + extraction, directory symlink, or git checkout.
func fetchDirect(loc resolution.DirectRes, dir string) error {
	switch {
	case loc.IsTar():
		return fetchTar(loc, dir)
	case loc.IsDir():
		path := loc.URL
		if len(path) >= 7 && path[:7] == "file://" {
			path = path[7:]
		}
		if err := os.Remove(dir); err != nil {
			return err
		}
		return fsutil.SymlinkDir(path, dir)
	case loc.IsGit():
		return vcsfetch.Checkout(loc.Repo, loc.Tag, dir)
	default:
		return errkind.New(errkind.InvalidSourceURL, "source resolution has no retrievable kind")
	}
}

func fetchTar(loc resolution.DirectRes, dir string) error {
	body, err := openTarStream(loc.URL)
	if err != nil {
		return errkind.Wrapf(err, errkind.CannotDownload, "cannot fetch %s", loc.URL)
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return errkind.Wrapf(err, errkind.CannotDownload, "cannot read %s", loc.URL)
	}

	if loc.Sum != nil {
		digest := sha256.Sum256(raw)
		got := hex.EncodeToString(digest[:])
		if got != loc.Sum.Hash {
			return errkind.Newf(errkind.ChecksumMismatch, "checksum mismatch for %s: expected %s, got %s", loc.URL, loc.Sum.Hash, got)
		}
	}

	gz, err := pgzip.NewReader(newByteReader(raw))
	if err != nil {
		return errkind.Wrapf(err, errkind.CannotDownload, "not a gzip stream: %s", loc.URL)
	}
	defer gz.Close()

	return extractTar(gz, dir)
}

func openTarStream(url string) (io.ReadCloser, error) {
	if len(url) >= 7 && url[:7] == "file://" {
		f, err := os.Open(url[7:])
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	resp, err := http.Get(url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %s fetching %s", resp.Status, url)
	}
	return resp.Body, nil
}

func extractTar(r io.Reader, dir string) error {
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errkind.Wrapf(err, errkind.CannotDownload, "corrupt tar stream")
		}

		target := filepath.Join(dir, hdr.Name)
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(hdr.Mode)); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return err
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(hdr.Mode))
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
		}
	}
}

// CheckoutBuild returns a held Binary if build/<hash>/ exists and is
// complete, else nil with no error. Never blocks other readers.
func (c *Cache) CheckoutBuild(hash BuildHash) (*Binary, error) {
	dir := c.buildDir(hash)
	if _, err := os.Stat(filepath.Join(dir, builtSentinel)); err != nil {
		return nil, nil
	}
	lock, err := dirlock.Acquire(dir, dirlock.Shared)
	if err != nil {
		return nil, nil
	}
	return &Binary{target: lock}, nil
}

// CheckoutTmp allocates a fresh tmp/<hash>-<nonce>/ scratch OutputLayout.
func (c *Cache) CheckoutTmp(hash BuildHash) (*OutputLayout, error) {
	nonce := hex.EncodeToString(randBytes(8))
	dir := filepath.Join(c.Root, "tmp", string(hash)+"-"+nonce)
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, err
	}
	return newOutputLayout(dir)
}

// StoreBuild moves libDir's built artifacts into build/<hash>/ under an
// exclusive hold on the destination, writes the completion sentinel, and
// returns a Binary holding a shared lock. The exclusive hold (taken
// blocking, since this is the one sanctioned blocking-acquire site per
// dirlock's own contract) serializes concurrent StoreBuild calls for the
// same hash and excludes CheckoutBuild's shared readers for the swap's
// duration; the destination's own lock sentinel is never removed or
// recreated during the swap (dirlock.Lock.ReplaceContents), so no caller
// ever observes a torn directory or a lock that silently stopped
// excluding anything.
func (c *Cache) StoreBuild(libDir string, hash BuildHash) (*Binary, error) {
	dest := c.buildDir(hash)
	if err := fsutil.EnsureDir(dest); err != nil {
		return nil, err
	}

	lock, err := dirlock.AcquireBlocking(dest, dirlock.Exclusive)
	if err != nil {
		return nil, errkind.Wrapf(err, errkind.LockContention, "cannot lock build dir for %s", hash)
	}

	if err := lock.ReplaceContents(libDir); err != nil {
		lock.Release()
		return nil, errkind.Wrapf(err, errkind.IO, "cannot store build %s", hash)
	}
	if err := os.WriteFile(filepath.Join(dest, builtSentinel), []byte(hash), 0o644); err != nil {
		lock.Release()
		return nil, errkind.Wrapf(err, errkind.IO, "cannot stamp build sentinel for %s", hash)
	}
	if err := lock.Release(); err != nil {
		return nil, err
	}

	shared, err := dirlock.AcquireBlocking(dest, dirlock.Shared)
	if err != nil {
		return nil, err
	}
	return &Binary{target: shared}, nil
}
