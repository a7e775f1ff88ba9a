package usecases

import (
	"context"
	"fmt"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// nopLogger discards all log output.
type nopLogger struct{}

func (nopLogger) Info(context.Context, string, map[string]interface{})         {}
func (nopLogger) Debug(context.Context, string, map[string]interface{})        {}
func (nopLogger) Warn(context.Context, string, map[string]interface{})         {}
func (nopLogger) Error(context.Context, string, error, map[string]interface{}) {}

// fakeSource implements domain.SourceRepository in memory.
type fakeSource struct {
	head    domain.Commit
	commits []domain.Commit // newest first
	history []domain.Commit // full log, newest first
	patches map[string]string

	resetTarget string
	applyErrs   map[string]error
	applied     []string
}

func (s *fakeSource) Head(context.Context) (domain.Commit, error) {
	return s.head, nil
}

func (s *fakeSource) RecentCommits(_ context.Context, n int) ([]domain.Commit, error) {
	if len(s.commits) < n {
		return nil, fmt.Errorf("%w: have %d, want %d", domain.ErrInsufficientHistory, len(s.commits), n)
	}
	out := make([]domain.Commit, n)
	copy(out, s.commits[:n])
	return out, nil
}

func (s *fakeSource) Log(context.Context) ([]domain.Commit, error) {
	if s.history != nil {
		return s.history, nil
	}
	return s.commits, nil
}

func (s *fakeSource) FormatPatch(_ context.Context, commitID string) (string, error) {
	content, ok := s.patches[commitID]
	if !ok {
		return "", fmt.Errorf("no patch for %s", commitID)
	}
	return content, nil
}

func (s *fakeSource) ResetHard(_ context.Context, commitID string) error {
	s.resetTarget = commitID
	return nil
}

func (s *fakeSource) ApplyPatch(_ context.Context, patchPath, _ string) error {
	if err := s.applyErrs[patchPath]; err != nil {
		return err
	}
	s.applied = append(s.applied, patchPath)
	return nil
}

func (s *fakeSource) Close() error { return nil }

// fakeStore implements domain.PatchStore in memory.
type fakeStore struct {
	files    map[string]string
	prepared bool
	snap     domain.Snapshot
	hasSnap  bool
	writes   []string
	rewrites []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{files: map[string]string{}}
}

func (s *fakeStore) Prepare() error {
	s.prepared = true
	return nil
}

func (s *fakeStore) WritePatch(index int, _, content string) (string, error) {
	path := fmt.Sprintf("patches/%04d.patch", index)
	s.files[path] = content
	s.writes = append(s.writes, path)
	return path, nil
}

func (s *fakeStore) ReadPatch(path string) (string, error) {
	content, ok := s.files[path]
	if !ok {
		return "", fmt.Errorf("no such patch: %s", path)
	}
	return content, nil
}

func (s *fakeStore) RewritePatch(path, content string) error {
	if _, ok := s.files[path]; !ok {
		return fmt.Errorf("no such patch: %s", path)
	}
	s.files[path] = content
	s.rewrites = append(s.rewrites, path)
	return nil
}

func (s *fakeStore) SaveSnapshot(snap domain.Snapshot) error {
	s.snap = snap
	s.hasSnap = true
	return nil
}

func (s *fakeStore) LoadSnapshot() (domain.Snapshot, error) {
	if !s.hasSnap {
		return domain.Snapshot{}, domain.ErrHistory
	}
	return s.snap, nil
}

// fakeHistory implements domain.ReferenceHistory in memory.
type fakeHistory struct {
	expansions map[string]string
	tags       map[string]string
	commits    map[string]domain.Commit
	mentions   map[string][]domain.Commit
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{
		expansions: map[string]string{},
		tags:       map[string]string{},
		commits:    map[string]domain.Commit{},
		mentions:   map[string][]domain.Commit{},
	}
}

func (h *fakeHistory) Ensure(context.Context) error { return nil }

func (h *fakeHistory) ExpandCommitID(_ context.Context, abbrev string) (string, error) {
	full, ok := h.expansions[abbrev]
	if !ok {
		return "", fmt.Errorf("%w: unknown identifier %s", domain.ErrHistory, abbrev)
	}
	return full, nil
}

func (h *fakeHistory) ContainingTag(_ context.Context, commitID string) (string, error) {
	return h.tags[commitID], nil
}

func (h *fakeHistory) Commit(_ context.Context, commitID string) (domain.Commit, error) {
	commit, ok := h.commits[commitID]
	if !ok {
		return domain.Commit{}, fmt.Errorf("%w: unknown commit %s", domain.ErrHistory, commitID)
	}
	return commit, nil
}

func (h *fakeHistory) CommitsMentioning(_ context.Context, shortID string) ([]domain.Commit, error) {
	return h.mentions[shortID], nil
}

func (h *fakeHistory) Close() error { return nil }

// fakeBuilder implements domain.Builder over scripted results. Build errors
// and symbol tables are consumed in call order; exhausted scripts repeat
// their last value.
type fakeBuilder struct {
	buildErrs  []error
	tables     []domain.SymbolTable
	buildCalls int
	tableCalls int
}

func (b *fakeBuilder) Build(context.Context, string) error {
	i := b.buildCalls
	b.buildCalls++
	if i >= len(b.buildErrs) {
		if len(b.buildErrs) == 0 {
			return nil
		}
		return b.buildErrs[len(b.buildErrs)-1]
	}
	return b.buildErrs[i]
}

func (b *fakeBuilder) SymbolTable(context.Context) (domain.SymbolTable, error) {
	i := b.tableCalls
	b.tableCalls++
	if len(b.tables) == 0 {
		return domain.SymbolTable{}, nil
	}
	if i >= len(b.tables) {
		i = len(b.tables) - 1
	}
	return b.tables[i], nil
}

// fakeStyle implements domain.StyleChecker with per-path results.
type fakeStyle struct {
	results map[string]domain.StyleResult
}

func (s *fakeStyle) Check(_ context.Context, patchPath, _ string) (domain.StyleResult, error) {
	return s.results[patchPath], nil
}

// symbols builds a symbol table from name/crc/module triples.
func symbols(entries ...domain.SymbolEntry) domain.SymbolTable {
	t := domain.SymbolTable{}
	for _, e := range entries {
		t[e.Name] = e
	}
	return t
}
