package refhist

import (
	"context"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// ContainingTag returns the name of the lowest release tag whose history
// contains the commit: the release the change first shipped in. Returns the
// empty string when no tag contains it (the commit is only on the mainline
// tip); callers substitute the "mainline" sentinel.
func (h *History) ContainingTag(ctx context.Context, commitID string) (string, error) {
	if h.repo == nil {
		return "", fmt.Errorf("%w: reference history not initialized", domain.ErrHistory)
	}

	commit, err := h.repo.CommitObject(plumbing.NewHash(commitID))
	if err != nil {
		return "", fmt.Errorf("commit %s not in reference history: %w", shortID(commitID), err)
	}

	tags, err := h.repo.Tags()
	if err != nil {
		return "", fmt.Errorf("%w: failed to list tags: %w", domain.ErrHistory, err)
	}
	defer tags.Close()

	var (
		bestName    string
		bestVersion *semver.Version
	)
	err = tags.ForEach(func(ref *plumbing.Reference) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		name := ref.Name().Short()
		version, verr := parseKernelTag(name)
		if verr != nil {
			// Non-release tags (next-*, test tags) are not candidates.
			return nil
		}
		if bestVersion != nil && !version.LessThan(bestVersion) {
			return nil
		}

		tagCommit, terr := h.tagCommit(ref)
		if terr != nil {
			return nil
		}

		contains, cerr := commit.IsAncestor(tagCommit)
		if cerr != nil || !contains {
			return nil
		}

		bestName = name
		bestVersion = version
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: failed to scan tags: %w", domain.ErrHistory, err)
	}

	return bestName, nil
}

// tagCommit resolves a tag reference to its target commit, peeling annotated
// tags.
func (h *History) tagCommit(ref *plumbing.Reference) (*object.Commit, error) {
	if tag, err := h.repo.TagObject(ref.Hash()); err == nil {
		return tag.Commit()
	}
	return h.repo.CommitObject(ref.Hash())
}

// parseKernelTag normalizes a kernel release tag name to a comparable
// version: "v6.6" → 6.6.0, "v6.6-rc3" → 6.6.0-rc3, "v6.6.12" → 6.6.12.
func parseKernelTag(name string) (*semver.Version, error) {
	trimmed := strings.TrimPrefix(name, "v")

	// semver requires the prerelease part to follow the patch component;
	// kernel rc tags hang it off the minor ("6.6-rc3").
	if base, rc, found := strings.Cut(trimmed, "-rc"); found {
		if strings.Count(base, ".") == 1 {
			base += ".0"
		}
		trimmed = base + "-rc" + rc
	}

	v, err := semver.NewVersion(trimmed)
	if err != nil {
		return nil, fmt.Errorf("not a release tag: %s", name)
	}
	return v, nil
}
