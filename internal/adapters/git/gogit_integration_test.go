// Package git provides adapters for interacting with local Git repositories.
package git

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// testLogger is a minimal logger for testing that doesn't output anything.
type testLogger struct{}

func (l *testLogger) Debug(_ context.Context, _ string, _ map[string]interface{}) {}
func (l *testLogger) Warn(_ context.Context, _ string, _ map[string]interface{})  {}

// setupTestRepo creates a temporary git repository with three commits.
func setupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test User")

	for i, subject := range []string{"first change", "second change", "third change"} {
		file := filepath.Join(dir, "file.txt")
		require.NoError(t, os.WriteFile(file, []byte(fmt.Sprintf("content %d\n", i)), 0o644))
		runGit(t, dir, "add", ".")
		// Distinct commit times keep the walk order deterministic.
		date := fmt.Sprintf("2026-08-0%dT10:00:00", i+1)
		commitAt(t, dir, subject, date)
	}

	return dir
}

// runGit executes a git command in the given directory.
func runGit(t *testing.T, dir string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %v failed: %v\nOutput: %s", args, err, output)
	}
}

// commitAt commits staged changes with fixed author and committer dates.
func commitAt(t *testing.T, dir, subject, date string) {
	t.Helper()
	cmd := exec.Command("git", "commit", "-m", subject)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE="+date,
		"GIT_COMMITTER_DATE="+date,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git commit failed: %v\nOutput: %s", err, output)
	}
}

func TestNewSourceTree_Success(t *testing.T) {
	repoPath := setupTestRepo(t)

	tree, err := NewSourceTree(repoPath, &testLogger{})
	require.NoError(t, err)
	require.NotNil(t, tree)
	assert.Equal(t, repoPath, tree.path)
	require.NoError(t, tree.Close())
}

func TestNewSourceTree_NotARepository(t *testing.T) {
	tree, err := NewSourceTree(t.TempDir(), &testLogger{})

	require.Error(t, err)
	assert.Nil(t, tree)
	assert.ErrorIs(t, err, domain.ErrHistory)
}

func TestSourceTree_Head(t *testing.T) {
	tree, err := NewSourceTree(setupTestRepo(t), &testLogger{})
	require.NoError(t, err)

	head, err := tree.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "third change", head.Subject)
	assert.Len(t, head.ID, 40)
	assert.Equal(t, "Test User <test@example.com>", head.Author)
}

func TestSourceTree_RecentCommits(t *testing.T) {
	tree, err := NewSourceTree(setupTestRepo(t), &testLogger{})
	require.NoError(t, err)

	commits, err := tree.RecentCommits(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "third change", commits[0].Subject)
	assert.Equal(t, "second change", commits[1].Subject)
}

func TestSourceTree_RecentCommits_Insufficient(t *testing.T) {
	tree, err := NewSourceTree(setupTestRepo(t), &testLogger{})
	require.NoError(t, err)

	_, err = tree.RecentCommits(context.Background(), 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientHistory)
}

func TestSourceTree_Log(t *testing.T) {
	tree, err := NewSourceTree(setupTestRepo(t), &testLogger{})
	require.NoError(t, err)

	commits, err := tree.Log(context.Background())
	require.NoError(t, err)
	require.Len(t, commits, 3)
	assert.Equal(t, "third change", commits[0].Subject)
	assert.Equal(t, "first change", commits[2].Subject)
}

func TestSourceTree_FormatPatch(t *testing.T) {
	tree, err := NewSourceTree(setupTestRepo(t), &testLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	head, err := tree.Head(ctx)
	require.NoError(t, err)

	patch, err := tree.FormatPatch(ctx, head.ID)
	require.NoError(t, err)
	assert.Contains(t, patch, "Subject: [PATCH] third change")
	assert.Contains(t, patch, "diff --git a/file.txt b/file.txt")
}

func TestSourceTree_ResetAndReapply(t *testing.T) {
	repoPath := setupTestRepo(t)
	tree, err := NewSourceTree(repoPath, &testLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	head, err := tree.Head(ctx)
	require.NoError(t, err)

	patch, err := tree.FormatPatch(ctx, head.ID)
	require.NoError(t, err)
	patchPath := filepath.Join(t.TempDir(), "0001.patch")
	require.NoError(t, os.WriteFile(patchPath, []byte(patch), 0o644))

	require.NoError(t, tree.ResetHard(ctx, "HEAD~1"))
	rolledBack, err := tree.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second change", rolledBack.Subject)

	logPath := filepath.Join(t.TempDir(), "apply.log")
	require.NoError(t, tree.ApplyPatch(ctx, patchPath, logPath))

	reapplied, err := tree.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, "third change", reapplied.Subject)

	logContent, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(logContent), "$ git am -3")
}

func TestSourceTree_ApplyPatch_Conflict(t *testing.T) {
	repoPath := setupTestRepo(t)
	tree, err := NewSourceTree(repoPath, &testLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	head, err := tree.Head(ctx)
	require.NoError(t, err)
	patch, err := tree.FormatPatch(ctx, head.ID)
	require.NoError(t, err)
	patchPath := filepath.Join(t.TempDir(), "0001.patch")
	require.NoError(t, os.WriteFile(patchPath, []byte(patch), 0o644))

	// Roll back, then move the file somewhere the patch can't merge with.
	require.NoError(t, tree.ResetHard(ctx, "HEAD~1"))
	require.NoError(t, os.WriteFile(filepath.Join(repoPath, "file.txt"), []byte("divergent local content\n"), 0o644))
	runGit(t, repoPath, "add", ".")
	commitAt(t, repoPath, "divergent change", "2026-08-04T10:00:00")

	err = tree.ApplyPatch(ctx, patchPath, filepath.Join(t.TempDir(), "apply.log"))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrApplyConflict)

	// The abort leaves the tree at its pre-apply position.
	current, err := tree.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, "divergent change", current.Subject)
}
