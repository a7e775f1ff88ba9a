// Package report renders finished run reports as plain-text artifacts.
package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// ReportFileName is the report artifact written next to the patch files.
const ReportFileName = "report.txt"

// Writer renders a run report to an io.Writer, one line per entry plus an
// aggregate summary. The format is stable: operators grep it and CI jobs
// diff it between runs.
type Writer struct {
	out io.Writer
}

// NewWriter creates a Writer rendering to the given destination.
func NewWriter(out io.Writer) *Writer {
	return &Writer{out: out}
}

// Write renders the report.
func (w *Writer) Write(_ context.Context, r *domain.RunReport) error {
	for _, entry := range r.Entries {
		line := fmt.Sprintf("%-24s %s", entry.Status, entry.Name)
		if entry.Reason != "" {
			line += "  (" + entry.Reason + ")"
		}
		if _, err := fmt.Fprintln(w.out, line); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w.out, "\npassed %d, failed %d, skipped %d, tolerated %d\n",
		r.Passed, r.Failed, r.Skipped, r.Tolerated)
	return err
}

// FileWriter persists the report as <dir>/report.txt.
type FileWriter struct {
	dir string
}

// NewFileWriter creates a FileWriter targeting the given directory.
func NewFileWriter(dir string) *FileWriter {
	return &FileWriter{dir: dir}
}

// Write renders the report into the artifacts directory, replacing any
// report from an interrupted earlier run.
func (w *FileWriter) Write(ctx context.Context, r *domain.RunReport) error {
	path := filepath.Join(w.dir, ReportFileName)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}

	writeErr := NewWriter(f).Write(ctx, r)
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	return writeErr
}
