// Package domain defines the core business entities and interfaces for patch-precheck.
package domain

import "time"

// Snapshot is an immutable reference to the source tree's position before
// patch extraction. It exists solely so an operator can restart the whole
// batch cleanly after a failure.
type Snapshot struct {
	// CommitID is the full 40-character SHA of HEAD at extraction time.
	CommitID string

	// TakenAt records when the snapshot was taken.
	TakenAt time.Time
}

// Verdict is the per-patch outcome assigned by the apply-build-test loop.
type Verdict int

// Verdict values, in lifecycle order.
const (
	VerdictUnprocessed Verdict = iota
	VerdictApplyFailed
	VerdictApplied
	VerdictBuildPassed
	VerdictBuildFailed
	VerdictStyleFailed
	VerdictAbiFailed
)

// String returns the human-readable verdict name used in reports and logs.
func (v Verdict) String() string {
	switch v {
	case VerdictUnprocessed:
		return "unprocessed"
	case VerdictApplyFailed:
		return "apply-failed"
	case VerdictApplied:
		return "applied"
	case VerdictBuildPassed:
		return "build-passed"
	case VerdictBuildFailed:
		return "build-failed"
	case VerdictStyleFailed:
		return "style-failed"
	case VerdictAbiFailed:
		return "abi-failed"
	default:
		return "unknown"
	}
}

// PatchArtifact is one extracted commit, materialized as a patch file.
// Artifacts are created by the Extractor in commit order (oldest first),
// mutated by the Annotator (tags) and the Pipeline (verdict), and never
// reordered: later patches may depend on earlier ones.
type PatchArtifact struct {
	// Index is the 1-based ordinal within the series.
	Index int

	// Path is the on-disk location of the patch file.
	Path string

	// Subject is the commit subject line.
	Subject string

	// UpstreamCommitID is the full 40-character upstream SHA parsed from the
	// commit body, or empty if the body carries no upstream reference.
	UpstreamCommitID string

	// Tags holds the provenance metadata fields inserted by the Annotator.
	Tags map[string]string

	// Verdict is the loop's outcome for this patch.
	Verdict Verdict

	// Reason explains a non-passing verdict (log path, failing symbol list).
	Reason string
}

// CheckOutcome classifies the result of a post-hoc checker (dependency,
// format) for a single commit.
type CheckOutcome int

// Checker outcomes.
const (
	CheckPassed CheckOutcome = iota
	CheckFailed
	CheckSkipped
)

// String returns the outcome name used in reports.
func (o CheckOutcome) String() string {
	switch o {
	case CheckPassed:
		return "pass"
	case CheckFailed:
		return "fail"
	case CheckSkipped:
		return "skip"
	default:
		return "unknown"
	}
}

// ReportEntry is one patch's (or checker's) line in the final run report.
type ReportEntry struct {
	Name   string
	Status string
	Reason string
}

// RunReport accumulates per-patch outcomes during a run. Entries are
// append-only; the report is persisted once the run finishes.
type RunReport struct {
	Entries   []ReportEntry
	Passed    int
	Failed    int
	Skipped   int
	Tolerated int
}

// AppendVerdict records one patch outcome and updates the aggregate counters.
func (r *RunReport) AppendVerdict(name string, verdict Verdict, reason string) {
	r.Entries = append(r.Entries, ReportEntry{Name: name, Status: verdict.String(), Reason: reason})
	switch verdict {
	case VerdictApplied, VerdictBuildPassed:
		r.Passed++
	case VerdictUnprocessed:
		r.Skipped++
	default:
		r.Failed++
	}
}

// AppendToleratedAbi records an ABI regression excused by a following
// ABI-fix patch. Recorded, but not a hard failure.
func (r *RunReport) AppendToleratedAbi(name, reason string) {
	r.Entries = append(r.Entries, ReportEntry{
		Name:   name,
		Status: VerdictAbiFailed.String() + " (tolerated)",
		Reason: reason,
	})
	r.Tolerated++
}

// AppendCheck records a post-hoc checker outcome.
func (r *RunReport) AppendCheck(name string, outcome CheckOutcome, reason string) {
	r.Entries = append(r.Entries, ReportEntry{Name: name, Status: outcome.String(), Reason: reason})
	switch outcome {
	case CheckPassed:
		r.Passed++
	case CheckSkipped:
		r.Skipped++
	default:
		r.Failed++
	}
}

// HardFailure reports whether any entry carries a failing outcome. Used to
// derive the process exit code; tolerated ABI regressions do not count.
func (r *RunReport) HardFailure() bool {
	return r.Failed > 0
}

// DefaultPatchCount is the number of commits extracted when NUM_PATCHES is
// not configured.
const DefaultPatchCount = 5
