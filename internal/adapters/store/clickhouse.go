// Package store provides the optional run-history backend.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/precheck-ci/patch-precheck/internal/domain"
)

// Conn is the subset of the ClickHouse driver connection the sink uses.
// The production connection comes from goLibMyCarrier's clickhouse session
// helper; tests substitute a fake.
type Conn interface {
	Exec(ctx context.Context, query string, args ...any) error
	Close() error
}

// ClickHouseSink records one summary row per finished run. Run history is
// advisory: failures here must never fail the pipeline, so the caller logs
// Write errors and moves on.
type ClickHouseSink struct {
	conn     Conn
	database string
	tree     string
	now      func() time.Time
}

// NewClickHouseSink creates a sink writing to <database>.precheck_runs.
// tree identifies the source tree the run validated.
func NewClickHouseSink(conn Conn, database, tree string) *ClickHouseSink {
	return &ClickHouseSink{
		conn:     conn,
		database: database,
		tree:     tree,
		now:      time.Now,
	}
}

// Write inserts the run summary row.
func (s *ClickHouseSink) Write(ctx context.Context, r *domain.RunReport) error {
	query := fmt.Sprintf(
		"INSERT INTO %s.precheck_runs (ts, tree, passed, failed, skipped, tolerated, hard_failure) VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.database,
	)
	err := s.conn.Exec(ctx, query,
		s.now().UTC(), s.tree, r.Passed, r.Failed, r.Skipped, r.Tolerated, r.HardFailure())
	if err != nil {
		return fmt.Errorf("insert run summary: %w", err)
	}
	return nil
}

// Close releases the underlying connection.
func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
