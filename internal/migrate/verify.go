// Package migrate verifies and applies the SQL migrations the pipeline
// renders. Verification runs against an in-memory SQLite database; applying
// targets PostgreSQL.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/taxatlas/taxatlas/internal/render"
)

var migrationTables = []string{"tax_rates", "tax_brackets", "tax_thresholds", "tax_deadlines"}

// DryRunReport summarizes a verification pass.
type DryRunReport struct {
	Name         string
	RowsInserted int
	UpStatements int
}

// DryRun proves a migration is reversible: it applies Up against a fresh
// in-memory database, counts the inserted rows, applies Down, and requires
// that every table the migration created is gone again.
func DryRun(ctx context.Context, mig render.Migration, logger *slog.Logger) (*DryRunReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	defer func() { _ = db.Close() }()

	upStmts := render.SplitStatements(mig.Up)
	for _, stmt := range upStmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("up statement failed: %w\n%s", err, stmt)
		}
	}

	rows := 0
	for _, table := range migrationTables {
		n, err := countRows(ctx, db, table)
		if err != nil {
			return nil, fmt.Errorf("count %s after up: %w", table, err)
		}
		rows += n
	}

	for _, stmt := range render.SplitStatements(mig.Down) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("down statement failed: %w\n%s", err, stmt)
		}
	}

	for _, table := range migrationTables {
		exists, err := tableExists(ctx, db, table)
		if err != nil {
			return nil, fmt.Errorf("check %s after down: %w", table, err)
		}
		if exists {
			return nil, fmt.Errorf("down did not remove table %s", table)
		}
	}

	logger.Info("migrate.dry_run.ok",
		"migration", mig.Name,
		"rows", rows,
		"statements", len(upStmts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &DryRunReport{Name: mig.Name, RowsInserted: rows, UpStatements: len(upStmts)}, nil
}

func countRows(ctx context.Context, db *sql.DB, table string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
	return n, err
}

func tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	var n int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	return n > 0, err
}
