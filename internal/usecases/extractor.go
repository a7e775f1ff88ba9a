package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// Logger defines the logging interface required by the use cases.
// This abstracts the logger dependency to avoid coupling to a specific implementation.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Extractor converts the most recent N commits of the source tree into
// ordered patch artifacts and rolls the tree back so they can be re-applied
// one at a time.
type Extractor struct {
	source domain.SourceRepository
	store  domain.PatchStore
	logger Logger
}

// NewExtractor creates an Extractor with the given dependencies.
func NewExtractor(source domain.SourceRepository, store domain.PatchStore, log Logger) *Extractor {
	return &Extractor{source: source, store: store, logger: log}
}

// Extract records HEAD as the rollback snapshot, emits n patch artifacts for
// HEAD~n..HEAD in oldest-first order, then resets the tree to HEAD~n.
// Returns ErrInsufficientHistory when the tree has fewer than n commits.
func (e *Extractor) Extract(ctx context.Context, n int) (domain.Snapshot, []domain.PatchArtifact, error) {
	head, err := e.source.Head(ctx)
	if err != nil {
		return domain.Snapshot{}, nil, err
	}

	commits, err := e.source.RecentCommits(ctx, n)
	if err != nil {
		return domain.Snapshot{}, nil, err
	}

	// Oldest first: later patches may depend on earlier ones, so emission
	// order is the re-apply order.
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}

	if err := e.store.Prepare(); err != nil {
		return domain.Snapshot{}, nil, err
	}

	snap := domain.Snapshot{CommitID: head.ID, TakenAt: time.Now().UTC()}
	if err := e.store.SaveSnapshot(snap); err != nil {
		return domain.Snapshot{}, nil, err
	}

	e.logger.Info(ctx, "extracting patch series", map[string]interface{}{
		"count":    n,
		"head":     head.ID,
		"rollback": fmt.Sprintf("HEAD~%d", n),
	})

	artifacts := make([]domain.PatchArtifact, 0, n)
	for i, commit := range commits {
		content, err := e.source.FormatPatch(ctx, commit.ID)
		if err != nil {
			return domain.Snapshot{}, nil, err
		}

		path, err := e.store.WritePatch(i+1, commit.Subject, content)
		if err != nil {
			return domain.Snapshot{}, nil, err
		}

		artifact := domain.PatchArtifact{
			Index:   i + 1,
			Path:    path,
			Subject: commit.Subject,
			Tags:    map[string]string{},
			Verdict: domain.VerdictUnprocessed,
		}
		if id, ok := parseUpstreamRef(commit.Body); ok {
			artifact.UpstreamCommitID = id
		}
		artifacts = append(artifacts, artifact)

		e.logger.Debug(ctx, "extracted patch", map[string]interface{}{
			"index":   i + 1,
			"subject": commit.Subject,
			"path":    path,
		})
	}

	if err := e.source.ResetHard(ctx, fmt.Sprintf("HEAD~%d", n)); err != nil {
		return domain.Snapshot{}, nil, err
	}

	return snap, artifacts, nil
}
