package migrate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/taxatlas/taxatlas/internal/render"
)

// Direction selects which half of a migration to run.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Apply runs one half of a migration against PostgreSQL inside a single
// transaction, so a failing statement rolls the whole migration back.
func Apply(ctx context.Context, dsn string, mig render.Migration, dir Direction, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	script := mig.Up
	if dir == DirectionDown {
		script = mig.Down
	}

	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer func() { _ = conn.Close(ctx) }()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	stmts := render.SplitStatements(script)
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %s %s failed: %w\n%s", mig.Name, dir, err, stmt)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", mig.Name, err)
	}

	logger.Info("migrate.apply.ok",
		"migration", mig.Name,
		"direction", string(dir),
		"statements", len(stmts),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}
