package usecases

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/precheck-ci/patch-precheck/internal/domain"
	"github.com/precheck-ci/patch-precheck/internal/kabi"
)

// PipelineConfig carries the loop's tunable behavior.
type PipelineConfig struct {
	// LogsDir is where per-step log files are written.
	LogsDir string

	// CheckStyle enables the per-patch style pass.
	CheckStyle bool

	// CheckKabi enables the exported-symbol comparison after each build.
	CheckKabi bool
}

// Pipeline runs the apply-build-test loop over an ordered patch series.
//
// The loop is fail-fast: the first hard failure (apply conflict, style
// errors, build failure, unexcused ABI regression) stops processing and
// leaves later patches unprocessed. The single exception is an ABI
// regression immediately followed by an ABI-fix patch, which is tolerated;
// the regressed table then becomes the baseline for the following patch.
type Pipeline struct {
	source     domain.SourceRepository
	store      domain.PatchStore
	builder    domain.Builder
	style      domain.StyleChecker
	classifier domain.PatchClassifier
	cfg        PipelineConfig
	logger     Logger
}

// NewPipeline creates a Pipeline with the given dependencies.
func NewPipeline(
	source domain.SourceRepository,
	store domain.PatchStore,
	builder domain.Builder,
	style domain.StyleChecker,
	classifier domain.PatchClassifier,
	cfg PipelineConfig,
	log Logger,
) *Pipeline {
	return &Pipeline{
		source:     source,
		store:      store,
		builder:    builder,
		style:      style,
		classifier: classifier,
		cfg:        cfg,
		logger:     log,
	}
}

// Run processes the series in order, mutating each artifact's verdict and
// appending one report entry per patch. It returns a non-nil error on the
// first hard failure; remaining patches are recorded as unprocessed.
func (p *Pipeline) Run(ctx context.Context, artifacts []domain.PatchArtifact, report *domain.RunReport) error {
	if err := os.MkdirAll(p.cfg.LogsDir, 0o755); err != nil {
		return fmt.Errorf("create logs directory: %w", err)
	}

	baseline, err := p.baselineSymbols(ctx)
	if err != nil {
		return err
	}

	for i := range artifacts {
		art := &artifacts[i]

		p.logger.Info(ctx, "processing patch", map[string]interface{}{
			"index":   art.Index,
			"subject": art.Subject,
		})

		next, err := p.runOne(ctx, art, peekArtifact(artifacts, i), baseline)
		if err != nil {
			report.AppendVerdict(art.Subject, art.Verdict, art.Reason)
			p.recordUnprocessed(artifacts[i+1:], report)
			return err
		}

		baseline = next

		if art.Verdict == domain.VerdictAbiFailed {
			report.AppendToleratedAbi(art.Subject, art.Reason)
			continue
		}
		report.AppendVerdict(art.Subject, art.Verdict, art.Reason)
	}

	return nil
}

// baselineSymbols builds the unpatched tree and captures its symbol table.
// Skipped entirely when the ABI check is disabled.
func (p *Pipeline) baselineSymbols(ctx context.Context) (domain.SymbolTable, error) {
	if !p.cfg.CheckKabi {
		return nil, nil
	}

	logPath := p.logPath(0, "baseline-build")
	p.logger.Info(ctx, "building unpatched baseline", map[string]interface{}{"log": logPath})

	if err := p.builder.Build(ctx, logPath); err != nil {
		return nil, fmt.Errorf("baseline build: %w", err)
	}
	table, err := p.builder.SymbolTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("baseline symbol table: %w", err)
	}
	return table, nil
}

// runOne takes a single artifact through apply, style, build, and the ABI
// comparison. It returns the symbol table to use as the next baseline. A
// tolerated ABI regression sets VerdictAbiFailed without an error; the
// regressed candidate table still moves forward as the next baseline.
func (p *Pipeline) runOne(ctx context.Context, art, peek *domain.PatchArtifact, baseline domain.SymbolTable) (domain.SymbolTable, error) {
	applyLog := p.logPath(art.Index, "apply")
	if err := p.source.ApplyPatch(ctx, art.Path, applyLog); err != nil {
		art.Verdict = domain.VerdictApplyFailed
		art.Reason = fmt.Sprintf("apply failed, see %s", applyLog)
		return nil, fmt.Errorf("patch %d %q: %w", art.Index, art.Subject, err)
	}
	art.Verdict = domain.VerdictApplied

	if p.cfg.CheckStyle {
		if err := p.checkStyle(ctx, art); err != nil {
			return nil, err
		}
	}

	buildLog := p.logPath(art.Index, "build")
	if err := p.builder.Build(ctx, buildLog); err != nil {
		art.Verdict = domain.VerdictBuildFailed
		art.Reason = fmt.Sprintf("build failed, see %s", buildLog)
		return nil, fmt.Errorf("patch %d %q: %w", art.Index, art.Subject, err)
	}
	art.Verdict = domain.VerdictBuildPassed

	if !p.cfg.CheckKabi {
		return nil, nil
	}
	return p.checkSymbols(ctx, art, peek, baseline)
}

// checkStyle runs the style pass for one patch. Style errors are fatal;
// warnings are logged and recorded but do not stop the run.
func (p *Pipeline) checkStyle(ctx context.Context, art *domain.PatchArtifact) error {
	styleLog := p.logPath(art.Index, "checkpatch")
	result, err := p.style.Check(ctx, art.Path, styleLog)
	if err != nil {
		return fmt.Errorf("patch %d %q: style check: %w", art.Index, art.Subject, err)
	}

	if result.Errors > 0 {
		art.Verdict = domain.VerdictStyleFailed
		art.Reason = fmt.Sprintf("%d style errors, see %s", result.Errors, styleLog)
		return fmt.Errorf("patch %d %q: %d style errors: %w",
			art.Index, art.Subject, result.Errors, domain.ErrStyleViolation)
	}
	if result.Warnings > 0 {
		p.logger.Warn(ctx, "style warnings", map[string]interface{}{
			"index":    art.Index,
			"warnings": result.Warnings,
			"log":      styleLog,
		})
	}
	return nil
}

// checkSymbols compares the post-build symbol table against the baseline.
func (p *Pipeline) checkSymbols(ctx context.Context, art, peek *domain.PatchArtifact, baseline domain.SymbolTable) (domain.SymbolTable, error) {
	candidate, err := p.builder.SymbolTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("patch %d %q: symbol table: %w", art.Index, art.Subject, err)
	}

	cmp := kabi.Compare(baseline, candidate)

	if len(cmp.Moved) > 0 {
		p.logger.Warn(ctx, "exported symbols moved between modules", map[string]interface{}{
			"index":   art.Index,
			"symbols": strings.Join(cmp.Moved, " "),
		})
	}

	if !cmp.Broken() {
		return candidate, nil
	}

	reason := describeRegression(cmp)

	if peek != nil && p.peekIsAbiFix(ctx, peek) {
		p.logger.Warn(ctx, "ABI regression tolerated, next patch is an ABI fix", map[string]interface{}{
			"index":  art.Index,
			"next":   peek.Subject,
			"reason": reason,
		})
		art.Verdict = domain.VerdictAbiFailed
		art.Reason = reason
		return candidate, nil
	}

	art.Verdict = domain.VerdictAbiFailed
	art.Reason = reason
	return nil, fmt.Errorf("patch %d %q: %s: %w", art.Index, art.Subject, reason, domain.ErrAbiRegression)
}

// describeRegression renders a symbol comparison failure for reports.
func describeRegression(cmp domain.ComparisonResult) string {
	var parts []string
	if len(cmp.Changed) > 0 {
		parts = append(parts, "changed: "+strings.Join(cmp.Changed, " "))
	}
	if len(cmp.Lost) > 0 {
		parts = append(parts, "lost: "+strings.Join(cmp.Lost, " "))
	}
	return "ABI regression (" + strings.Join(parts, "; ") + ")"
}

// peekIsAbiFix classifies the following patch by re-reading its body from
// the store, since the artifact itself only carries the subject.
func (p *Pipeline) peekIsAbiFix(ctx context.Context, peek *domain.PatchArtifact) bool {
	content, err := p.store.ReadPatch(peek.Path)
	if err != nil {
		p.logger.Warn(ctx, "could not read next patch for classification", map[string]interface{}{
			"path":  peek.Path,
			"error": err.Error(),
		})
		return false
	}
	_, body, _ := splitMailbox(content)
	return p.classifier.IsAbiFix(peek.Subject, body)
}

// recordUnprocessed appends skip entries for patches the loop never reached.
func (p *Pipeline) recordUnprocessed(rest []domain.PatchArtifact, report *domain.RunReport) {
	for i := range rest {
		report.AppendVerdict(rest[i].Subject, domain.VerdictUnprocessed, "earlier patch failed")
	}
}

func (p *Pipeline) logPath(index int, step string) string {
	return filepath.Join(p.cfg.LogsDir, fmt.Sprintf("%04d_%s.log", index, step))
}

// peekArtifact returns the artifact after position i, or nil at the end.
func peekArtifact(artifacts []domain.PatchArtifact, i int) *domain.PatchArtifact {
	if i+1 < len(artifacts) {
		return &artifacts[i+1]
	}
	return nil
}
