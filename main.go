// Package main is the entry point for the patch-precheck CLI application.
// patch-precheck validates the most recent commits of a kernel source tree
// before submission: it extracts them as an annotated patch series, then
// re-applies and builds each one, watching the exported-symbol table.
package main

import (
	"context"
	"os"

	ch "github.com/MyCarrier-DevOps/goLibMyCarrier/clickhouse"
	"github.com/MyCarrier-DevOps/goLibMyCarrier/logger"

	"github.com/precheck-ci/patch-precheck/cmd"
	"github.com/precheck-ci/patch-precheck/internal/adapters/build"
	"github.com/precheck-ci/patch-precheck/internal/adapters/git"
	logadapter "github.com/precheck-ci/patch-precheck/internal/adapters/logger"
	"github.com/precheck-ci/patch-precheck/internal/adapters/patchstore"
	"github.com/precheck-ci/patch-precheck/internal/adapters/refhist"
	"github.com/precheck-ci/patch-precheck/internal/adapters/report"
	"github.com/precheck-ci/patch-precheck/internal/adapters/store"
	"github.com/precheck-ci/patch-precheck/internal/adapters/style"
	"github.com/precheck-ci/patch-precheck/internal/domain"
	"github.com/precheck-ci/patch-precheck/internal/infrastructure/config"
)

// historyDatabase is the ClickHouse database holding run summaries.
const historyDatabase = "ci"

func main() {
	// Create a single shared logger instance for the application
	zapLog := logger.NewZapLoggerFromConfig()
	adapter := logadapter.NewZapAdapter(zapLog)

	// Wire up production dependencies
	deps := &cmd.Dependencies{
		LoggerFactory: func() cmd.Logger {
			return adapter
		},

		ConfigLoader: func() (*cmd.AppConfig, error) {
			cfg, err := config.Load()
			if err != nil {
				return nil, err
			}
			return &cmd.AppConfig{
				TreePath:         cfg.TreePath,
				Signer:           cfg.Signer(),
				Category:         cfg.Category,
				BugzillaID:       cfg.BugzillaID,
				PatchCount:       cfg.PatchCount,
				BuildThreads:     cfg.BuildThreads,
				MakeTarget:       cfg.MakeTarget,
				MakeExtraArgs:    cfg.MakeExtraArgs,
				ReferenceRepo:    cfg.ReferenceRepo,
				ReferenceRepoURL: cfg.ReferenceRepoURL,
				ArtifactsDir:     cfg.ArtifactsDir,
				LogsDir:          cfg.LogsDir,
				CheckDependency:  cfg.CheckDependency,
				CheckStyle:       cfg.CheckStyle,
				CheckKabi:        cfg.CheckKabi,
				CheckFormat:      cfg.CheckFormat,
				ReportHistory:    cfg.ReportHistory,
				ClickHouseConfig: cfg.ClickHouse,
				LogLevel:         cfg.LogLevel,
				LogAppName:       cfg.LogAppName,
			}, nil
		},

		SourceRepoFactory: func(path string, _ cmd.Logger) (domain.SourceRepository, error) {
			return git.NewSourceTree(path, adapter.With(map[string]any{"component": "source"}))
		},

		HistoryFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) (domain.ReferenceHistory, error) {
			log := adapter.With(map[string]any{"component": "refhist"})
			return refhist.New(cfg.ReferenceRepo, cfg.ReferenceRepoURL, log), nil
		},

		PatchStoreFactory: func(dir string) domain.PatchStore {
			return patchstore.New(dir)
		},

		BuilderFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) domain.Builder {
			return &build.MakeBuilder{
				Dir:       cfg.TreePath,
				Target:    cfg.MakeTarget,
				Threads:   cfg.BuildThreads,
				ExtraArgs: cfg.MakeExtraArgs,
				Logger:    adapter.With(map[string]any{"component": "build"}),
			}
		},

		StyleCheckerFactory: func(treePath string) domain.StyleChecker {
			return &style.Checkpatch{TreeDir: treePath}
		},

		ReportSinksFactory: func(cfg *cmd.AppConfig, _ cmd.Logger) ([]domain.ReportSink, error) {
			sinks := []domain.ReportSink{
				report.NewWriter(os.Stdout),
				report.NewFileWriter(cfg.ArtifactsDir),
			}
			if cfg.ReportHistory {
				sink, err := newHistorySink(cfg)
				if err != nil {
					return nil, err
				}
				sinks = append(sinks, sink)
			}
			return sinks, nil
		},

		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	cmd.SetDefaultDependencies(deps)
	cmd.Execute()
}

// newHistorySink connects the optional ClickHouse run-history sink.
func newHistorySink(cfg *cmd.AppConfig) (domain.ReportSink, error) {
	chConfig, ok := cfg.ClickHouseConfig.(*ch.ClickhouseConfig)
	if !ok {
		return nil, newConfigTypeError("*ch.ClickhouseConfig")
	}

	sess, err := ch.NewClickhouseSession(chConfig, context.Background())
	if err != nil {
		return nil, err
	}
	return store.NewClickHouseSink(sess.Conn(), historyDatabase, cfg.TreePath), nil
}

func newConfigTypeError(expected string) error {
	return &configTypeError{expected: expected}
}

// configTypeError is returned when configuration type assertion fails.
type configTypeError struct {
	expected string
}

func (e *configTypeError) Error() string {
	return "invalid configuration type: expected " + e.expected
}
