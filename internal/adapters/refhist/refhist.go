// Package refhist provides the read-only reference-history adapter backed by
// an upstream kernel repository clone. It implements domain.ReferenceHistory
// using go-git/v5 for reads and hashicorp/go-getter for acquisition.
package refhist

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/hashicorp/go-getter"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// Logger defines the logging interface for the reference-history adapter.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// State is one position in the reference-history lifecycle.
type State int

// Lifecycle states. Ensure drives the machine
// Missing → Cloning → Present and
// Present → Fetching → Present | Corrupt → Recloning → Present.
const (
	StateMissing State = iota
	StateCloning
	StatePresent
	StateFetching
	StateCorrupt
	StateRecloning
)

// String returns the state name for logging.
func (s State) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateCloning:
		return "cloning"
	case StatePresent:
		return "present"
	case StateFetching:
		return "fetching"
	case StateCorrupt:
		return "corrupt"
	case StateRecloning:
		return "recloning"
	default:
		return "unknown"
	}
}

// History implements domain.ReferenceHistory over a local clone of the
// upstream repository.
type History struct {
	path     string
	cloneURL string
	repo     *gogit.Repository
	state    State
	logger   Logger
}

// New creates a History rooted at path. cloneURL may be empty, in which case
// the path must already contain a usable repository and no fetching is
// attempted (the local copy is treated as authoritative).
func New(path, cloneURL string, log Logger) *History {
	return &History{
		path:     path,
		cloneURL: cloneURL,
		state:    StateMissing,
		logger:   log,
	}
}

// State returns the current lifecycle state.
func (h *History) State() State {
	return h.state
}

// Ensure makes the reference history usable, driving the lifecycle machine.
// Returns ErrHistory when no usable copy can be produced.
func (h *History) Ensure(ctx context.Context) error {
	if _, err := os.Stat(h.path); os.IsNotExist(err) {
		h.state = StateMissing
		if err := h.clone(ctx, StateCloning); err != nil {
			return err
		}
	}

	repo, err := gogit.PlainOpen(h.path)
	if err != nil {
		h.transition(ctx, StateCorrupt)
		if err := h.reclone(ctx); err != nil {
			return err
		}
		repo, err = gogit.PlainOpen(h.path)
		if err != nil {
			return fmt.Errorf("%w: re-cloned repository still unreadable: %w", domain.ErrHistory, err)
		}
	}
	h.repo = repo
	h.transition(ctx, StatePresent)

	if h.cloneURL == "" {
		return nil
	}

	h.transition(ctx, StateFetching)
	err = repo.FetchContext(ctx, &gogit.FetchOptions{Tags: gogit.AllTags})
	if err == nil || err == gogit.NoErrAlreadyUpToDate {
		h.transition(ctx, StatePresent)
		return nil
	}

	// Fetch failure means the clone is stale or damaged: fall back to a
	// fresh clone rather than validating against partial history.
	h.logger.Warn(ctx, "fetch failed; re-cloning reference history", map[string]interface{}{
		"path":  h.path,
		"error": err.Error(),
	})
	h.transition(ctx, StateCorrupt)
	if err := h.reclone(ctx); err != nil {
		return err
	}

	repo, err = gogit.PlainOpen(h.path)
	if err != nil {
		return fmt.Errorf("%w: re-cloned repository unreadable: %w", domain.ErrHistory, err)
	}
	h.repo = repo
	h.transition(ctx, StatePresent)
	return nil
}

// clone fetches a fresh copy of the reference repository via go-getter.
func (h *History) clone(ctx context.Context, via State) error {
	if h.cloneURL == "" {
		return fmt.Errorf("%w: reference repository missing at %s and no clone URL configured",
			domain.ErrHistory, h.path)
	}

	h.transition(ctx, via)
	h.logger.Info(ctx, "cloning reference history", map[string]interface{}{
		"url":  h.cloneURL,
		"path": h.path,
	})

	client := &getter.Client{
		Ctx:  ctx,
		Src:  "git::" + h.cloneURL,
		Dst:  h.path,
		Mode: getter.ClientModeDir,
	}
	if err := client.Get(); err != nil {
		return fmt.Errorf("%w: clone of %s failed: %w", domain.ErrHistory, h.cloneURL, err)
	}
	return nil
}

// reclone moves the damaged copy aside and clones anew. The old copy is kept
// under a timestamp suffix for post-mortem inspection.
func (h *History) reclone(ctx context.Context) error {
	aside := fmt.Sprintf("%s.corrupt.%d", h.path, time.Now().Unix())
	if err := os.Rename(h.path, aside); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: could not move corrupt copy aside: %w", domain.ErrHistory, err)
	}
	return h.clone(ctx, StateRecloning)
}

// transition records a state change.
func (h *History) transition(ctx context.Context, next State) {
	if h.state == next {
		return
	}
	h.logger.Debug(ctx, "reference history state change", map[string]interface{}{
		"from": h.state.String(),
		"to":   next.String(),
	})
	h.state = next
}

// ExpandCommitID resolves an abbreviated identifier to its full 40-character
// form.
func (h *History) ExpandCommitID(ctx context.Context, abbrev string) (string, error) {
	if h.repo == nil {
		return "", fmt.Errorf("%w: reference history not initialized", domain.ErrHistory)
	}

	hash, err := h.repo.ResolveRevision(plumbing.Revision(abbrev))
	if err != nil {
		return "", fmt.Errorf("could not expand %q against reference history: %w", abbrev, err)
	}
	return hash.String(), nil
}

// Commit returns the full commit for the given identifier.
func (h *History) Commit(ctx context.Context, commitID string) (domain.Commit, error) {
	if h.repo == nil {
		return domain.Commit{}, fmt.Errorf("%w: reference history not initialized", domain.ErrHistory)
	}

	c, err := h.repo.CommitObject(plumbing.NewHash(commitID))
	if err != nil {
		return domain.Commit{}, fmt.Errorf("commit %s not in reference history: %w", shortID(commitID), err)
	}
	return toDomainCommit(c), nil
}

// CommitsMentioning returns commits across all refs whose message mentions
// the given short identifier, case-insensitively.
func (h *History) CommitsMentioning(ctx context.Context, shortRef string) ([]domain.Commit, error) {
	if h.repo == nil {
		return nil, fmt.Errorf("%w: reference history not initialized", domain.ErrHistory)
	}

	iter, err := h.repo.Log(&gogit.LogOptions{All: true})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to walk reference history: %w", domain.ErrHistory, err)
	}
	defer iter.Close()

	needle := strings.ToLower(shortRef)
	var matches []domain.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if strings.Contains(strings.ToLower(c.Message), needle) {
			matches = append(matches, toDomainCommit(c))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to walk reference history: %w", domain.ErrHistory, err)
	}

	h.logger.Debug(ctx, "searched reference history", map[string]interface{}{
		"needle":  shortRef,
		"matches": len(matches),
	})

	return matches, nil
}

// Close releases any resources held by the history.
func (h *History) Close() error {
	return nil
}

// toDomainCommit converts a go-git commit to the domain view.
func toDomainCommit(c *object.Commit) domain.Commit {
	subject, body, _ := strings.Cut(c.Message, "\n")
	return domain.Commit{
		ID:      c.Hash.String(),
		Subject: strings.TrimSpace(subject),
		Body:    strings.TrimPrefix(body, "\n"),
		Author:  fmt.Sprintf("%s <%s>", c.Author.Name, c.Author.Email),
		Date:    c.Author.When,
	}
}

// shortID abbreviates a commit identifier for messages.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
