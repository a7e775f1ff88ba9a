// Package domain defines the core business entities and interfaces for patch-precheck.
// This package contains no external dependencies and represents the innermost
// layer of the CLEAN architecture.
package domain

import (
	"context"
	"time"
)

// Commit is the minimal view of a version-control commit needed by the
// pipeline: identity, message parts, and authorship for patch composition.
type Commit struct {
	// ID is the full 40-character SHA.
	ID string

	// Subject is the first line of the commit message.
	Subject string

	// Body is the commit message without the subject line.
	Body string

	// Author is the author in "Name <email>" form.
	Author string

	// Date is the author date.
	Date time.Time
}

// SourceRepository is the kernel source tree under validation. Read
// operations never move the tree; Reset and Apply do.
type SourceRepository interface {
	// Head returns the commit currently checked out.
	Head(ctx context.Context) (Commit, error)

	// RecentCommits returns up to n first-parent ancestors of HEAD, newest
	// first. Returns ErrInsufficientHistory when fewer than n exist.
	RecentCommits(ctx context.Context, n int) ([]Commit, error)

	// Log returns the one-line log (SHA + subject) of the whole first-parent
	// history, newest first. Used by the dependency checker to decide whether
	// a fix has been applied locally.
	Log(ctx context.Context) ([]Commit, error)

	// FormatPatch renders one commit as a git-am-compatible mailbox patch.
	FormatPatch(ctx context.Context, commitID string) (string, error)

	// ResetHard moves the working tree to the given commit, discarding local
	// state.
	ResetHard(ctx context.Context, commitID string) error

	// ApplyPatch applies a patch file with a three-way merge. On conflict it
	// aborts the in-progress apply and returns ErrApplyConflict.
	ApplyPatch(ctx context.Context, patchPath, logPath string) error

	// Close releases any resources held by the repository.
	Close() error
}

// ReferenceHistory is the read-only upstream history used for identifier
// expansion, release-tag lookup, and dependency verification.
type ReferenceHistory interface {
	// Ensure makes the reference history usable: clone it when missing,
	// fetch when present, re-clone when corrupt. Returns ErrHistory when no
	// usable copy can be produced.
	Ensure(ctx context.Context) error

	// ExpandCommitID resolves an abbreviated (12-39 hex) identifier to its
	// full 40-character form.
	ExpandCommitID(ctx context.Context, abbrev string) (string, error)

	// ContainingTag returns the nearest release tag containing the commit,
	// or the empty string when the commit is only on the mainline tip.
	ContainingTag(ctx context.Context, commitID string) (string, error)

	// Commit returns the full commit for the given identifier.
	Commit(ctx context.Context, commitID string) (Commit, error)

	// CommitsMentioning returns commits whose message mentions the given
	// short identifier, across all refs.
	CommitsMentioning(ctx context.Context, shortID string) ([]Commit, error)

	// Close releases any resources held by the history.
	Close() error
}

// PatchStore manages the on-disk patch artifacts directory: ordinal-named
// patch files, the hidden pre-annotation backup subdirectory, and the
// rollback snapshot file.
type PatchStore interface {
	// Prepare creates a fresh artifacts directory, renaming any existing one
	// with a timestamp suffix. Never silently deletes prior artifacts.
	Prepare() error

	// WritePatch stores one patch under an ordinal-and-slug name and returns
	// its path.
	WritePatch(index int, subject, content string) (string, error)

	// ReadPatch returns the current content of a patch file.
	ReadPatch(path string) (string, error)

	// RewritePatch replaces a patch file's content in place, copying the
	// previous version to the hidden backup subdirectory first.
	RewritePatch(path, content string) error

	// SaveSnapshot persists the rollback snapshot for this run.
	SaveSnapshot(snap Snapshot) error

	// LoadSnapshot reads the persisted rollback snapshot.
	LoadSnapshot() (Snapshot, error)
}

// Builder drives the kernel build system for one iteration of the loop:
// clean the tree, select the configuration target, compile.
type Builder interface {
	// Build runs a full clean build, streaming output to logPath. A non-zero
	// toolchain exit is returned as ErrBuildFailure.
	Build(ctx context.Context, logPath string) error

	// SymbolTable loads the exported-symbol manifest produced by the most
	// recent build.
	SymbolTable(ctx context.Context) (SymbolTable, error)
}

// StyleResult summarizes one style-checker invocation.
type StyleResult struct {
	Errors   int
	Warnings int
}

// StyleChecker lints a single patch file.
type StyleChecker interface {
	// Check runs the style pass for one patch, streaming output to logPath.
	Check(ctx context.Context, patchPath, logPath string) (StyleResult, error)
}

// PatchClassifier decides whether a patch is an ABI-fix patch. The decision
// is a text heuristic today; it sits behind this interface so a stronger
// signal can replace it without touching the loop.
type PatchClassifier interface {
	IsAbiFix(subject, body string) bool
}

// ReportSink persists a finished run report.
type ReportSink interface {
	Write(ctx context.Context, report *RunReport) error
}
