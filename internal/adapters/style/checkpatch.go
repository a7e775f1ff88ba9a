// Package style runs the kernel's checkpatch.pl against patch files.
// This package implements the domain.StyleChecker interface.
package style

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/kballard/go-shellquote"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// SuppressedCategories are checkpatch rule classes that do not apply to
// backported patches: the commit ids and file paths they complain about are
// inherited from upstream on purpose.
var SuppressedCategories = []string{
	"FILE_PATH_CHANGES",
	"GERRIT_CHANGE_ID",
	"GIT_COMMIT_ID",
	"UNKNOWN_COMMIT_ID",
}

// summaryPattern matches checkpatch's closing summary line:
//
//	total: 2 errors, 5 warnings, 120 lines checked
var summaryPattern = regexp.MustCompile(`total:\s+(\d+)\s+errors?,\s+(\d+)\s+warnings?`)

// Checkpatch implements domain.StyleChecker by invoking scripts/checkpatch.pl
// from the kernel tree under validation.
type Checkpatch struct {
	// TreeDir is the kernel tree root; the script ships inside it.
	TreeDir string
}

// Check runs checkpatch for one patch, streaming output to logPath and
// parsing the error/warning counts from its summary. A non-zero exit with a
// parsable summary is not itself a failure: the counts carry the verdict.
func (c *Checkpatch) Check(ctx context.Context, patchPath, logPath string) (domain.StyleResult, error) {
	script := filepath.Join(c.TreeDir, "scripts", "checkpatch.pl")

	args := []string{script, "--no-tree", "--ignore", joinCategories(SuppressedCategories), patchPath}
	cmd := exec.CommandContext(ctx, "perl", args...)
	cmd.Dir = c.TreeDir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	runErr := cmd.Run()

	if logPath != "" {
		entry := fmt.Sprintf("$ perl %s\n%s\n", shellquote.Join(args...), out.String())
		if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			_, _ = f.WriteString(entry)
			_ = f.Close()
		}
	}

	result, ok := ParseSummary(out.String())
	if !ok {
		if runErr != nil {
			return domain.StyleResult{}, fmt.Errorf("checkpatch did not produce a summary: %w", runErr)
		}
		return domain.StyleResult{}, fmt.Errorf("checkpatch did not produce a summary")
	}

	return result, nil
}

// ParseSummary extracts error and warning counts from checkpatch output.
func ParseSummary(output string) (domain.StyleResult, bool) {
	m := summaryPattern.FindStringSubmatch(output)
	if m == nil {
		return domain.StyleResult{}, false
	}

	errors, _ := strconv.Atoi(m[1])
	warnings, _ := strconv.Atoi(m[2])
	return domain.StyleResult{Errors: errors, Warnings: warnings}, true
}

// joinCategories renders the --ignore argument.
func joinCategories(categories []string) string {
	out := ""
	for i, c := range categories {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out
}
