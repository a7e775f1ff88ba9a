package refhist

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// testLogger is a minimal logger for testing that doesn't output anything.
type testLogger struct{}

func (l *testLogger) Info(_ context.Context, _ string, _ map[string]interface{})  {}
func (l *testLogger) Debug(_ context.Context, _ string, _ map[string]interface{}) {}
func (l *testLogger) Warn(_ context.Context, _ string, _ map[string]interface{})  {}

// setupReferenceRepo builds a temporary repository shaped like an upstream
// history: a tagged release line plus one untagged tip commit that mentions
// an earlier change. Returns the repository path, the full identifier of the
// mentioned commit, and the full identifier of the tip.
func setupReferenceRepo(t *testing.T) (dir, fixed, tip string) {
	t.Helper()

	dir = t.TempDir()
	runGit(t, dir, "init")
	runGit(t, dir, "config", "user.email", "upstream@example.com")
	runGit(t, dir, "config", "user.name", "Upstream Dev")

	commit(t, dir, 0, "net: fix rx checksum handling\n\nThe rx path dropped the checksum flag.")
	fixed = headID(t, dir)
	runGit(t, dir, "tag", "v6.6-rc1")

	commit(t, dir, 1, "net: unrelated cleanup")
	runGit(t, dir, "tag", "-a", "v6.6", "-m", "Linux 6.6")
	runGit(t, dir, "tag", "next-20260101")

	commit(t, dir, 2, fmt.Sprintf("net: follow-up fix\n\nFixes: %s (\"net: fix rx checksum handling\")", fixed[:12]))
	tip = headID(t, dir)

	return dir, fixed, tip
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

// commit writes a distinct file and commits it with a fixed date so walk
// order stays deterministic.
func commit(t *testing.T, dir string, n int, message string) {
	t.Helper()
	file := filepath.Join(dir, fmt.Sprintf("file%d.txt", n))
	require.NoError(t, os.WriteFile(file, []byte(fmt.Sprintf("content %d\n", n)), 0o644))
	runGit(t, dir, "add", ".")

	cmd := exec.Command("git", "commit", "-m", message)
	cmd.Dir = dir
	date := fmt.Sprintf("2026-08-0%dT10:00:00", n+1)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE="+date,
		"GIT_COMMITTER_DATE="+date,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git commit failed: %v\nOutput: %s", err, output)
	}
}

// headID returns the full identifier of HEAD.
func headID(t *testing.T, dir string) string {
	t.Helper()
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = dir
	output, err := cmd.Output()
	require.NoError(t, err)
	return strings.TrimSpace(string(output))
}

// ensured opens the repository at path with fetching disabled.
func ensured(t *testing.T, path string) *History {
	t.Helper()
	h := New(path, "", &testLogger{})
	require.NoError(t, h.Ensure(context.Background()))
	require.Equal(t, StatePresent, h.State())
	return h
}

func TestEnsure_LocalCopyWithoutCloneURL(t *testing.T) {
	dir, _, _ := setupReferenceRepo(t)

	h := ensured(t, dir)
	defer h.Close()

	assert.Equal(t, StatePresent, h.State())
}

func TestEnsure_MissingWithoutCloneURL(t *testing.T) {
	h := New(filepath.Join(t.TempDir(), "absent"), "", &testLogger{})

	err := h.Ensure(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrHistory)
}

func TestExpandCommitID(t *testing.T) {
	dir, fixed, _ := setupReferenceRepo(t)
	h := ensured(t, dir)
	defer h.Close()

	full, err := h.ExpandCommitID(context.Background(), fixed[:12])
	require.NoError(t, err)
	assert.Equal(t, fixed, full)
}

func TestExpandCommitID_Unknown(t *testing.T) {
	dir, _, _ := setupReferenceRepo(t)
	h := ensured(t, dir)
	defer h.Close()

	_, err := h.ExpandCommitID(context.Background(), "deadbeefdead")
	assert.Error(t, err)
}

func TestCommit(t *testing.T) {
	dir, fixed, _ := setupReferenceRepo(t)
	h := ensured(t, dir)
	defer h.Close()

	c, err := h.Commit(context.Background(), fixed)
	require.NoError(t, err)
	assert.Equal(t, fixed, c.ID)
	assert.Equal(t, "net: fix rx checksum handling", c.Subject)
	assert.Contains(t, c.Body, "dropped the checksum flag")
	assert.Equal(t, "Upstream Dev <upstream@example.com>", c.Author)
}

func TestCommitsMentioning(t *testing.T) {
	dir, fixed, tip := setupReferenceRepo(t)
	h := ensured(t, dir)
	defer h.Close()

	matches, err := h.CommitsMentioning(context.Background(), fixed[:12])
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, tip, matches[0].ID)
}

func TestCommitsMentioning_CaseInsensitive(t *testing.T) {
	dir, fixed, _ := setupReferenceRepo(t)
	h := ensured(t, dir)
	defer h.Close()

	matches, err := h.CommitsMentioning(context.Background(), strings.ToUpper(fixed[:12]))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestContainingTag_LowestRelease(t *testing.T) {
	dir, fixed, _ := setupReferenceRepo(t)
	h := ensured(t, dir)
	defer h.Close()

	// Both v6.6-rc1 and v6.6 contain the commit; the rc shipped first.
	// The next-* tag also contains it but is not a release candidate.
	tag, err := h.ContainingTag(context.Background(), fixed)
	require.NoError(t, err)
	assert.Equal(t, "v6.6-rc1", tag)
}

func TestContainingTag_UntaggedTip(t *testing.T) {
	dir, _, tip := setupReferenceRepo(t)
	h := ensured(t, dir)
	defer h.Close()

	tag, err := h.ContainingTag(context.Background(), tip)
	require.NoError(t, err)
	assert.Empty(t, tag)
}

func TestParseKernelTag(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		want    string
		wantErr bool
	}{
		{name: "major release", tag: "v6.6", want: "6.6.0"},
		{name: "stable release", tag: "v6.6.12", want: "6.6.12"},
		{name: "release candidate", tag: "v6.6-rc3", want: "6.6.0-rc3"},
		{name: "next snapshot", tag: "next-20260101", wantErr: true},
		{name: "arbitrary tag", tag: "my-test-tag", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := parseKernelTag(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, v.String())
		})
	}
}
