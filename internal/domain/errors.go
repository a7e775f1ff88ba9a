// Package domain defines the core business entities and interfaces for patch-precheck.
package domain

import "errors"

// Error taxonomy for the validation pipeline. Each sentinel marks a distinct
// failure class so callers can map errors to exit behavior with errors.Is.
var (
	// ErrConfiguration indicates a missing or invalid required setting.
	// Detected pre-flight; the pipeline never starts.
	ErrConfiguration = errors.New("invalid or missing configuration")

	// ErrHistory indicates the rollback point or the reference history is
	// unusable (unreadable repository, failed clone, corrupt snapshot file).
	ErrHistory = errors.New("reference history unusable")

	// ErrInsufficientHistory indicates the source tree has fewer ancestor
	// commits than the requested patch count.
	ErrInsufficientHistory = errors.New("not enough commits in source tree")

	// ErrApplyConflict indicates a three-way merge apply failed. Fatal: the
	// tree state is ambiguous, so no further patches are attempted.
	ErrApplyConflict = errors.New("three-way patch apply failed")

	// ErrBuildFailure indicates the build toolchain exited non-zero.
	ErrBuildFailure = errors.New("kernel build failed")

	// ErrStyleViolation indicates the style checker reported errors (not
	// merely warnings).
	ErrStyleViolation = errors.New("style check reported errors")

	// ErrAbiRegression indicates exported symbols were lost or changed
	// without a following ABI-fix patch to justify it.
	ErrAbiRegression = errors.New("exported symbol table regression")

	// ErrDependencyGap indicates an upstream fix required by an applied
	// commit is missing from the local tree.
	ErrDependencyGap = errors.New("required upstream fix not applied")

	// ErrFormatViolation indicates a commit's provenance metadata is missing,
	// malformed, or its sign-off was inherited rather than newly added.
	ErrFormatViolation = errors.New("commit message format violation")
)
