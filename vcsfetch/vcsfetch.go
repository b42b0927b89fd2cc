// Package vcsfetch implements git retrieval for DirectRes::Git sources, the
// one piece the original core deliberately left unimplemented (spec.md §9,
// open question a). It adopts a one-folder-per-(repo, tag) checkout: a full
// clone of the repository (no shallow or depth-limited clone), then a
// checkout of the requested ref. Each distinct (repo URL, ref) pair gets its
// own checkout directory,
// keyed by the cache's own source fingerprint — so concurrent elba
// invocations pulling different refs of the same repo never contend on a
// single working tree, at the cost of per-ref duplication on disk (see
// DESIGN.md open-question decisions).
//
// Grounded on the teacher's internal/gps/vcs_repo.go gitRepo.get/fetch/
// updateVersion (git clone, then checkout a ref), ported from raw
// os/exec'd git commands to Masterminds/vcs's Repo interface, which the
// teacher already depends on for the same purpose.
package vcsfetch

import (
	"github.com/Masterminds/vcs"

	"github.com/elba-build/elba/errkind"
	"github.com/elba-build/elba/resolution"
)

// Checkout clones repo into dir (if not already present) and checks out
// tag. dir must not exist or must already be a checkout of repo.
func Checkout(repo string, tag resolution.GitTag, dir string) error {
	r, err := vcs.NewGitRepo(repo, dir)
	if err != nil {
		return errkind.Wrapf(err, errkind.CannotDownload, "cannot prepare git repo %s", repo)
	}

	if !r.CheckLocal() {
		if err := r.Get(); err != nil {
			return errkind.Wrapf(err, errkind.CannotDownload, "cannot clone %s", repo)
		}
	}

	ref := tag.String()
	if ref == "" {
		return errkind.Newf(errkind.InvalidSourceURL, "git source %s has no ref", repo)
	}
	if err := r.UpdateVersion(ref); err != nil {
		return errkind.Wrapf(err, errkind.CannotDownload, "cannot check out %s at %s", repo, ref)
	}
	return nil
}
