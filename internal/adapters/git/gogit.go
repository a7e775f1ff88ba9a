// Package git provides adapters for interacting with local Git repositories.
// This package implements the domain.SourceRepository interface using
// go-git/v5 for reads and the git binary for tree mutation.
package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// Logger defines the logging interface for the git adapter.
// This interface enables dependency injection and testability.
type Logger interface {
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
}

// SourceTree implements domain.SourceRepository over the kernel tree under
// validation.
type SourceTree struct {
	repo   *gogit.Repository
	cli    *cliRunner
	path   string
	logger Logger
}

// NewSourceTree opens the working tree at path. Returns ErrHistory when the
// path is not a valid Git repository.
func NewSourceTree(path string, log Logger) (*SourceTree, error) {
	repo, err := gogit.PlainOpen(path)
	if err != nil {
		return nil, fmt.Errorf("%w: not a git repository: %s", domain.ErrHistory, path)
	}

	return &SourceTree{
		repo:   repo,
		cli:    &cliRunner{dir: path},
		path:   path,
		logger: log,
	}, nil
}

// Head returns the commit currently checked out.
func (s *SourceTree) Head(ctx context.Context) (domain.Commit, error) {
	head, err := s.repo.Head()
	if err != nil {
		return domain.Commit{}, fmt.Errorf("%w: failed to get HEAD: %w", domain.ErrHistory, err)
	}

	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return domain.Commit{}, fmt.Errorf("%w: failed to read HEAD commit: %w", domain.ErrHistory, err)
	}

	return toDomainCommit(commit), nil
}

// RecentCommits returns up to n ancestors of HEAD, newest first. Returns
// ErrInsufficientHistory when the tree has fewer than n commits.
func (s *SourceTree) RecentCommits(ctx context.Context, n int) ([]domain.Commit, error) {
	commits, err := s.walk(ctx, n)
	if err != nil {
		return nil, err
	}
	if len(commits) < n {
		return nil, fmt.Errorf("%w: requested %d, tree has %d", domain.ErrInsufficientHistory, n, len(commits))
	}

	s.logger.Debug(ctx, "walked recent commits", map[string]interface{}{
		"requested": n,
		"head":      commits[0].ID,
		"oldest":    commits[len(commits)-1].ID,
	})

	return commits, nil
}

// Log returns the one-line history of the tree, newest first.
func (s *SourceTree) Log(ctx context.Context) ([]domain.Commit, error) {
	return s.walk(ctx, 0)
}

// walk iterates the commit graph from HEAD in commit-time order, collecting
// up to limit commits (0 = unlimited).
func (s *SourceTree) walk(ctx context.Context, limit int) ([]domain.Commit, error) {
	head, err := s.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get HEAD: %w", domain.ErrHistory, err)
	}

	commit, err := s.repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get commit object for HEAD: %w", domain.ErrHistory, err)
	}

	var commits []domain.Commit
	iter := object.NewCommitIterCTime(commit, nil, nil)

	err = iter.ForEach(func(c *object.Commit) error {
		// Check context for cancellation
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if limit > 0 && len(commits) >= limit {
			return storer.ErrStop
		}
		commits = append(commits, toDomainCommit(c))
		return nil
	})

	// ErrStop is expected when we reach the limit
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, fmt.Errorf("%w: failed to walk commit history: %w", domain.ErrHistory, err)
	}

	return commits, nil
}

// FormatPatch renders one commit as a git-am-compatible mailbox patch.
func (s *SourceTree) FormatPatch(ctx context.Context, commitID string) (string, error) {
	out, err := s.cli.Run(ctx, "format-patch", "-1", "--stdout", commitID)
	if err != nil {
		return "", fmt.Errorf("%w: format-patch %s: %w", domain.ErrHistory, shortID(commitID), err)
	}
	return out, nil
}

// ResetHard moves the working tree to the given commit, discarding local
// state.
func (s *SourceTree) ResetHard(ctx context.Context, commitID string) error {
	out, err := s.cli.Run(ctx, "reset", "--hard", commitID)
	if err != nil {
		return fmt.Errorf("%w: reset --hard %s: %s", domain.ErrHistory, shortID(commitID), strings.TrimSpace(out))
	}
	return nil
}

// ApplyPatch applies a patch with a three-way merge. On conflict the
// in-progress apply is aborted so the tree is left at its pre-apply position,
// and ErrApplyConflict is returned.
func (s *SourceTree) ApplyPatch(ctx context.Context, patchPath, logPath string) error {
	_, err := s.cli.RunLogged(ctx, logPath, "am", "-3", patchPath)
	if err == nil {
		return nil
	}

	if out, abortErr := s.cli.RunLogged(ctx, logPath, "am", "--abort"); abortErr != nil {
		s.logger.Warn(ctx, "failed to abort in-progress apply", map[string]interface{}{
			"patch":  patchPath,
			"output": strings.TrimSpace(out),
		})
	}

	return fmt.Errorf("%w: %s (see %s)", domain.ErrApplyConflict, patchPath, logPath)
}

// Close releases any resources held by the repository.
// For go-git, this is a no-op as the repository doesn't hold persistent resources.
func (s *SourceTree) Close() error {
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
