// Package cmd provides the CLI commands for patch-precheck.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/precheck-ci/patch-precheck/internal/domain"
	"github.com/precheck-ci/patch-precheck/internal/usecases"
)

// Logger defines the logging interface used by the command.
type Logger interface {
	Info(ctx context.Context, msg string, fields map[string]interface{})
	Debug(ctx context.Context, msg string, fields map[string]interface{})
	Warn(ctx context.Context, msg string, fields map[string]interface{})
	Error(ctx context.Context, msg string, err error, fields map[string]interface{})
}

// Dependencies holds all injectable dependencies for the command.
// This enables testing by allowing mock implementations to be injected.
type Dependencies struct {
	// LoggerFactory creates a logger instance.
	LoggerFactory func() Logger

	// ConfigLoader loads application configuration.
	ConfigLoader func() (*AppConfig, error)

	// SourceRepoFactory opens the kernel source tree under validation.
	SourceRepoFactory func(path string, log Logger) (domain.SourceRepository, error)

	// HistoryFactory opens (or clones) the read-only reference history.
	HistoryFactory func(cfg *AppConfig, log Logger) (domain.ReferenceHistory, error)

	// PatchStoreFactory creates the on-disk patch artifacts store.
	PatchStoreFactory func(dir string) domain.PatchStore

	// BuilderFactory creates the kernel build driver.
	BuilderFactory func(cfg *AppConfig, log Logger) domain.Builder

	// StyleCheckerFactory creates the per-patch style checker.
	StyleCheckerFactory func(treePath string) domain.StyleChecker

	// ReportSinksFactory creates every sink the finished report is written
	// to. Sink failures are logged, never fatal.
	ReportSinksFactory func(cfg *AppConfig, log Logger) ([]domain.ReportSink, error)

	// Stdout is the writer for standard output.
	Stdout io.Writer

	// Stderr is the writer for standard error (for warnings/errors).
	Stderr io.Writer
}

// AppConfig holds application configuration loaded by ConfigLoader.
type AppConfig struct {
	// TreePath is the kernel source tree under validation.
	TreePath string

	// Signer is the submitter identity in "Name <email>" form.
	Signer string

	// Category is the patch category.
	Category string

	// BugzillaID is the tracking-issue identifier.
	BugzillaID string

	// PatchCount is the number of commits to extract and validate.
	PatchCount int

	// BuildThreads is the -j value handed to the build system.
	BuildThreads int

	// MakeTarget is the kernel configuration target.
	MakeTarget string

	// MakeExtraArgs carries operator-supplied extra make arguments.
	MakeExtraArgs []string

	// ReferenceRepo is the local path of the reference history;
	// ReferenceRepoURL is the clone source used when it is absent.
	ReferenceRepo    string
	ReferenceRepoURL string

	// ArtifactsDir holds patch files; LogsDir holds per-step logs.
	ArtifactsDir string
	LogsDir      string

	// Per-check enable flags.
	CheckDependency bool
	CheckStyle      bool
	CheckKabi       bool
	CheckFormat     bool

	// ReportHistory enables the run-history sink.
	ReportHistory bool

	// ClickHouseConfig is passed opaquely to the ReportSinksFactory.
	ClickHouseConfig any

	// LogLevel is the log level setting.
	LogLevel string

	// LogAppName is the application name for logging.
	LogAppName string
}

// Command-line flags.
var (
	numPatches int
	restore    bool
	verbose    bool
)

// defaultDeps holds the production dependencies.
// This is set by the production wiring in main or via SetDefaultDependencies.
var defaultDeps *Dependencies

// SetDefaultDependencies sets the default dependencies for production use.
// This should be called from main() before Execute().
func SetDefaultDependencies(deps *Dependencies) {
	defaultDeps = deps
}

// NewRootCmd creates the root command for patch-precheck.
func NewRootCmd() *cobra.Command {
	return NewRootCmdWithDeps(defaultDeps)
}

// NewRootCmdWithDeps creates the root command with explicit dependencies.
// This is the primary constructor that enables testing via dependency injection.
func NewRootCmdWithDeps(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "patch-precheck",
		Short: "Validate backported kernel patches before submission",
		Long: `patch-precheck validates the most recent commits of a kernel source
tree the same way the destination CI will: it extracts them as a patch
series, annotates each patch with the required provenance metadata, then
re-applies and builds them one at a time, comparing the exported-symbol
table after every build.

The run produces a patch directory ready for submission, per-step build
logs, and a report listing every patch's verdict. The process exits
non-zero when any patch hard-fails.

Examples:
  # Validate the configured number of patches
  patch-precheck

  # Validate exactly three patches
  patch-precheck -n 3

  # Put the tree back where the last run found it
  patch-precheck --restore

  # Enable verbose logging
  patch-precheck -v`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrecheck(cmd, deps)
		},
	}

	rootCmd.Flags().IntVarP(&numPatches, "num-patches", "n", 0,
		"Number of commits to validate (overrides NUM_PATCHES)")
	rootCmd.Flags().BoolVar(&restore, "restore", false,
		"Reset the tree to the snapshot taken before the last extraction, then exit")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable verbose/debug logging")

	return rootCmd
}

// runPrecheck executes the validation pipeline with injected dependencies.
func runPrecheck(cmd *cobra.Command, deps *Dependencies) error {
	if deps == nil {
		return errors.New("dependencies not configured")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	stderr := deps.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Set log level based on verbose flag (best-effort)
	if verbose {
		if err := os.Setenv("LOG_LEVEL", "debug"); err != nil {
			writeWarningf(stderr, "warning: could not set log level: %v\n", err)
		}
	}

	log := deps.LoggerFactory()

	cfg, err := deps.ConfigLoader()
	if err != nil {
		log.Error(ctx, "failed to load configuration", err, nil)
		return fmt.Errorf("configuration error: %w", err)
	}
	if numPatches > 0 {
		cfg.PatchCount = numPatches
	}

	log.Info(ctx, "starting patch-precheck", map[string]interface{}{
		"tree":        cfg.TreePath,
		"num_patches": cfg.PatchCount,
		"verbose":     verbose,
	})

	source, err := deps.SourceRepoFactory(cfg.TreePath, log)
	if err != nil {
		log.Error(ctx, "failed to open source tree", err, map[string]interface{}{
			"path": cfg.TreePath,
		})
		return fmt.Errorf("not a usable source tree: %s: %w", cfg.TreePath, err)
	}
	defer closeQuietly(ctx, log, "source tree", source.Close)

	patchStore := deps.PatchStoreFactory(cfg.ArtifactsDir)

	if restore {
		return runRestore(ctx, source, patchStore, log)
	}

	history, err := deps.HistoryFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "failed to open reference history", err, nil)
		return err
	}
	defer closeQuietly(ctx, log, "reference history", history.Close)

	if err := history.Ensure(ctx); err != nil {
		log.Error(ctx, "reference history unusable", err, map[string]interface{}{
			"path": cfg.ReferenceRepo,
		})
		return fmt.Errorf("reference history: %w", err)
	}

	classifier := usecases.KabiKeywordClassifier{}

	extractor := usecases.NewExtractor(source, patchStore, log)
	snapshot, artifacts, err := extractor.Extract(ctx, cfg.PatchCount)
	if err != nil {
		log.Error(ctx, "patch extraction failed", err, nil)
		if errors.Is(err, domain.ErrInsufficientHistory) {
			return fmt.Errorf("tree has fewer than %d commits", cfg.PatchCount)
		}
		return err
	}
	log.Info(ctx, "patches extracted", map[string]interface{}{
		"count":    len(artifacts),
		"snapshot": snapshot.CommitID,
	})

	annotator := usecases.NewAnnotator(patchStore, history, classifier, usecases.AnnotatorConfig{
		Signer:     cfg.Signer,
		Category:   cfg.Category,
		BugzillaID: cfg.BugzillaID,
	}, log)
	if err := annotator.Annotate(ctx, artifacts); err != nil {
		log.Error(ctx, "patch annotation failed", err, nil)
		return err
	}

	pipeline := usecases.NewPipeline(
		source,
		patchStore,
		deps.BuilderFactory(cfg, log),
		deps.StyleCheckerFactory(cfg.TreePath),
		classifier,
		usecases.PipelineConfig{
			LogsDir:    cfg.LogsDir,
			CheckStyle: cfg.CheckStyle,
			CheckKabi:  cfg.CheckKabi,
		},
		log,
	)

	report := &domain.RunReport{}
	runErr := pipeline.Run(ctx, artifacts, report)
	var checksErr error
	if runErr != nil {
		log.Error(ctx, "pipeline stopped", runErr, nil)
	} else {
		checksErr = runChecks(ctx, cfg, source, history, classifier, report, log)
	}

	writeReport(ctx, deps, cfg, report, log)

	if runErr != nil {
		return runErr
	}
	if checksErr != nil {
		return checksErr
	}
	if report.HardFailure() {
		return fmt.Errorf("run finished with %d failing entries", report.Failed)
	}

	log.Info(ctx, "precheck complete", map[string]interface{}{
		"passed":    report.Passed,
		"tolerated": report.Tolerated,
	})
	return nil
}

// runRestore resets the source tree to the snapshot the last extraction
// saved, giving the operator a clean restart after an aborted run.
func runRestore(ctx context.Context, source domain.SourceRepository, store domain.PatchStore, log Logger) error {
	snap, err := store.LoadSnapshot()
	if err != nil {
		log.Error(ctx, "no usable snapshot to restore", err, nil)
		return fmt.Errorf("restore: %w", err)
	}

	if err := source.ResetHard(ctx, snap.CommitID); err != nil {
		log.Error(ctx, "restore failed", err, map[string]interface{}{
			"commit": snap.CommitID,
		})
		return fmt.Errorf("restore to %s: %w", snap.CommitID, err)
	}

	log.Info(ctx, "tree restored to pre-extraction snapshot", map[string]interface{}{
		"commit":   snap.CommitID,
		"taken_at": snap.TakenAt,
	})
	return nil
}

// runChecks runs the post-apply checkers over the re-applied commits. The
// returned error, when non-nil, classifies the failure so the exit message
// names what went wrong.
func runChecks(
	ctx context.Context,
	cfg *AppConfig,
	source domain.SourceRepository,
	history domain.ReferenceHistory,
	classifier domain.PatchClassifier,
	report *domain.RunReport,
	log Logger,
) error {
	if !cfg.CheckDependency && !cfg.CheckFormat {
		return nil
	}

	commits, err := source.RecentCommits(ctx, cfg.PatchCount)
	if err != nil {
		log.Error(ctx, "could not read applied commits for checks", err, nil)
		report.AppendCheck("post-apply checks", domain.CheckFailed, err.Error())
		return err
	}

	var failures []error

	if cfg.CheckDependency {
		checker := usecases.NewDependencyChecker(source, history, log)
		aggregate, results, err := checker.Check(ctx, commits)
		appendCheckResults(report, "dependency", aggregate, results, err)
		if err == nil && aggregate == domain.CheckFailed {
			failures = append(failures, domain.ErrDependencyGap)
		}
	}
	if cfg.CheckFormat {
		checker := usecases.NewFormatChecker(history, classifier, cfg.Signer, log)
		aggregate, results, err := checker.Check(ctx, commits)
		appendCheckResults(report, "format", aggregate, results, err)
		if err == nil && aggregate == domain.CheckFailed {
			failures = append(failures, domain.ErrFormatViolation)
		}
	}

	return errors.Join(failures...)
}

// appendCheckResults folds one checker's outcome into the report. A checker
// that inspected nothing contributes a single skip entry so its absence is
// visible.
func appendCheckResults(report *domain.RunReport, name string, aggregate domain.CheckOutcome, results []usecases.CheckResult, err error) {
	if err != nil {
		report.AppendCheck(name, domain.CheckFailed, err.Error())
		return
	}
	if len(results) == 0 {
		report.AppendCheck(name, aggregate, "nothing to check")
		return
	}
	for _, result := range results {
		report.AppendCheck(result.Name, result.Outcome, result.Reason)
	}
}

// writeReport fans the finished report out to every configured sink.
// Sinks are advisory once the run itself is decided; failures are logged.
func writeReport(ctx context.Context, deps *Dependencies, cfg *AppConfig, report *domain.RunReport, log Logger) {
	sinks, err := deps.ReportSinksFactory(cfg, log)
	if err != nil {
		log.Error(ctx, "could not create report sinks", err, nil)
		return
	}
	for _, sink := range sinks {
		if err := sink.Write(ctx, report); err != nil {
			log.Error(ctx, "failed to write report", err, nil)
		}
	}
}

// closeQuietly closes a resource, logging (not returning) the error.
func closeQuietly(ctx context.Context, log Logger, name string, close func() error) {
	if err := close(); err != nil {
		log.Warn(ctx, "failed to close "+name, map[string]interface{}{
			"error": err.Error(),
		})
	}
}

// Execute runs the root command.
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// writeWarningf writes a warning message to the given writer.
// This is a best-effort operation; errors are intentionally ignored
// because there is no recovery action if stderr writes fail.
func writeWarningf(w io.Writer, format string, args ...any) {
	_, err := fmt.Fprintf(w, format, args...)
	if err != nil {
		return
	}
}
