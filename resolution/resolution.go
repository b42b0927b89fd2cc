package resolution

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/elba-build/elba/errkind"
)

// Checksum is a content hash attached to a tarball resolution, carried in
// the fragment of its source URL as "sha256:<hex>".
type Checksum struct {
	Algorithm string
	Hash      string
}

// ParseChecksum parses a "algo:hex" checksum string.
func ParseChecksum(s string) (Checksum, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Checksum{}, errkind.Newf(errkind.InvalidSourceURL, "invalid checksum %q", s)
	}
	return Checksum{Algorithm: parts[0], Hash: parts[1]}, nil
}

func (c Checksum) String() string { return c.Algorithm + ":" + c.Hash }

// GitTag identifies a git ref: either a symbolic tag/branch name or a
// resolved commit hash.
type GitTag struct {
	Commit string // non-empty if this names a resolved commit
	Tag    string // non-empty if this names a symbolic ref
}

func (t GitTag) String() string {
	if t.Commit != "" {
		return t.Commit
	}
	return t.Tag
}

// DirectRes is a package source with no indirection through an index: a git
// repository, a directory on disk, or a tarball.
type DirectRes struct {
	kind directResKind
	Repo string // Git
	Tag  GitTag // Git
	URL  string // Dir, Tar
	Sum  *Checksum // Tar, optional
}

type directResKind int

const (
	directGit directResKind = iota
	directDir
	directTar
)

// GitRes builds a DirectRes pointing at a git repository and ref.
func GitRes(repo string, tag GitTag) DirectRes {
	return DirectRes{kind: directGit, Repo: repo, Tag: tag}
}

// DirRes builds a DirectRes pointing at a directory on disk (as a file:// URL).
func DirRes(u string) DirectRes { return DirectRes{kind: directDir, URL: u} }

// TarRes builds a DirectRes pointing at a tarball, optionally checksummed.
func TarRes(u string, sum *Checksum) DirectRes {
	return DirectRes{kind: directTar, URL: u, Sum: sum}
}

// ParseDirectRes parses the "<kind>+<body>" grammar used for direct
// resolutions: "git+<repo>#<tag>", "dir+<file-url>", "tar+<url>[#sha256:<hex>]".
func ParseDirectRes(s string) (DirectRes, error) {
	parts := strings.SplitN(s, "+", 2)
	if len(parts) != 2 {
		return DirectRes{}, errkind.Newf(errkind.InvalidSourceURL, "invalid source url %q", s)
	}
	kind, body := parts[0], parts[1]

	switch kind {
	case "git":
		repo, tag, ok := strings.Cut(body, "#")
		if !ok || repo == "" || tag == "" {
			return DirectRes{}, errkind.Newf(errkind.InvalidSourceURL, "invalid git source url %q", s)
		}
		return GitRes(repo, GitTag{Tag: tag}), nil
	case "dir":
		u, err := url.Parse(body)
		if err != nil || u.Scheme != "file" {
			return DirectRes{}, errkind.Newf(errkind.InvalidSourceURL, "invalid dir source url %q", s)
		}
		return DirRes(body), nil
	case "tar":
		u, err := url.Parse(body)
		if err != nil {
			return DirectRes{}, errkind.Newf(errkind.InvalidSourceURL, "invalid tar source url %q", s)
		}
		switch u.Scheme {
		case "http", "https", "file":
		default:
			return DirectRes{}, errkind.Newf(errkind.InvalidSourceURL, "invalid tar source url scheme %q", u.Scheme)
		}
		var sum *Checksum
		if frag := u.Fragment; frag != "" {
			if c, err := ParseChecksum(frag); err == nil {
				sum = &c
			}
		}
		u.Fragment = ""
		return TarRes(u.String(), sum), nil
	default:
		return DirectRes{}, errkind.Newf(errkind.InvalidSourceURL, "unknown source url kind %q", kind)
	}
}

func (d DirectRes) String() string {
	switch d.kind {
	case directGit:
		return fmt.Sprintf("git+%s#%s", d.Repo, d.Tag.String())
	case directDir:
		return "dir+" + d.URL
	case directTar:
		if d.Sum != nil {
			return fmt.Sprintf("tar+%s#%s", d.URL, d.Sum.String())
		}
		return "tar+" + d.URL
	default:
		return ""
	}
}

// IsGit, IsDir, IsTar report the concrete kind of a DirectRes.
func (d DirectRes) IsGit() bool { return d.kind == directGit }
func (d DirectRes) IsDir() bool { return d.kind == directDir }
func (d DirectRes) IsTar() bool { return d.kind == directTar }

// IndexRes is a package index (registry) location.
type IndexRes struct {
	URL string
}

// ParseIndexRes parses an "index+<url>" string.
func ParseIndexRes(s string) (IndexRes, error) {
	kind, body, ok := strings.Cut(s, "+")
	if !ok || kind != "index" {
		return IndexRes{}, errkind.Newf(errkind.InvalidSourceURL, "invalid index url %q", s)
	}
	return IndexRes{URL: body}, nil
}

func (i IndexRes) String() string { return "index+" + i.URL }

// Resolution is where a package came from: a direct source, an index entry,
// or the synthetic root package of the build.
type Resolution struct {
	kind   resolutionKind
	direct DirectRes
	index  IndexRes
}

type resolutionKind int

const (
	resDirect resolutionKind = iota
	resIndex
	resRoot
)

func FromDirect(d DirectRes) Resolution { return Resolution{kind: resDirect, direct: d} }
func FromIndex(i IndexRes) Resolution   { return Resolution{kind: resIndex, index: i} }
func Root() Resolution                 { return Resolution{kind: resRoot} }

// ParseResolution parses a resolution string: "root", a direct-source
// string, or an index-source string.
func ParseResolution(s string) (Resolution, error) {
	if s == "root" {
		return Root(), nil
	}
	if d, err := ParseDirectRes(s); err == nil {
		return FromDirect(d), nil
	}
	i, err := ParseIndexRes(s)
	if err != nil {
		return Resolution{}, errkind.Newf(errkind.InvalidSourceURL, "invalid resolution %q", s)
	}
	return FromIndex(i), nil
}

func (r Resolution) String() string {
	switch r.kind {
	case resDirect:
		return r.direct.String()
	case resIndex:
		return r.index.String()
	case resRoot:
		return "root"
	default:
		return ""
	}
}

// IsRoot reports whether this is the synthetic root resolution.
func (r Resolution) IsRoot() bool { return r.kind == resRoot }

// Direct returns the underlying DirectRes and true, if this is a direct
// resolution.
func (r Resolution) Direct() (DirectRes, bool) { return r.direct, r.kind == resDirect }

// Index returns the underlying IndexRes and true, if this is an index
// resolution.
func (r Resolution) Index() (IndexRes, bool) { return r.index, r.kind == resIndex }

// Equal compares two resolutions by their canonical string form.
func (r Resolution) Equal(o Resolution) bool { return r.String() == o.String() }
