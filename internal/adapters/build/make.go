// Package build drives the kernel build system for the validation loop.
// This package implements the domain.Builder interface by shelling out to
// make, which owns all build parallelism.
package build

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/kballard/go-shellquote"

	"github.com/precheck-ci/patch-precheck/internal/domain"
	"github.com/precheck-ci/patch-precheck/internal/kabi"
)

// Logger defines the logging interface for the build adapter.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
}

// symversFile is the exported-symbol manifest emitted by a modversions build.
const symversFile = "Module.symvers"

// MakeBuilder implements domain.Builder over a kernel source tree.
type MakeBuilder struct {
	// Dir is the kernel tree root.
	Dir string

	// Target is the configuration target selected before compiling.
	Target string

	// Threads is the -j value for the compile phase.
	Threads int

	// ExtraArgs is appended to the compile invocation.
	ExtraArgs []string

	// Logger records build progress.
	Logger Logger
}

// Build runs a full clean build: clean the tree, select the configuration
// target, compile. All output streams to logPath; a non-zero exit from any
// phase is returned as ErrBuildFailure pointing at that log.
func (b *MakeBuilder) Build(ctx context.Context, logPath string) error {
	phases := [][]string{
		{"clean"},
		{b.Target},
		append([]string{fmt.Sprintf("-j%d", b.Threads)}, b.ExtraArgs...),
	}

	for _, args := range phases {
		if err := b.runMake(ctx, logPath, args); err != nil {
			return err
		}
	}
	return nil
}

// SymbolTable loads the exported-symbol manifest produced by the most recent
// build.
func (b *MakeBuilder) SymbolTable(ctx context.Context) (domain.SymbolTable, error) {
	return kabi.LoadFile(filepath.Join(b.Dir, symversFile))
}

// runMake executes one make invocation, appending its command line and
// output to the log file.
func (b *MakeBuilder) runMake(ctx context.Context, logPath string, args []string) error {
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open build log: %w", err)
	}
	defer f.Close()

	fmt.Fprintf(f, "$ make %s\n", shellquote.Join(args...))

	b.Logger.Debug(ctx, "running make", map[string]interface{}{
		"dir":  b.Dir,
		"args": args,
	})

	cmd := exec.CommandContext(ctx, "make", args...)
	cmd.Dir = b.Dir
	cmd.Stdout = f
	cmd.Stderr = f

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: make %s (see %s)", domain.ErrBuildFailure, shellquote.Join(args...), logPath)
	}
	return nil
}
