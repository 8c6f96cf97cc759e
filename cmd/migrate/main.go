// Command migrate verifies or applies a rendered SQL migration.
//
// The input is the .sql artifact the pipeline renders, containing the
// "-- up" and "-- down" sections.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/taxatlas/taxatlas/internal/migrate"
	"github.com/taxatlas/taxatlas/internal/render"
)

func main() {
	_ = godotenv.Load()

	var (
		input  = flag.String("input", "", "path to a rendered migration .sql file")
		dryRun = flag.Bool("dry-run", false, "verify the migration against in-memory SQLite and exit")
		down   = flag.Bool("down", false, "apply the down half instead of up")
		dsn    = flag.String("dsn", os.Getenv("DATABASE_URL"), "postgres connection string")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: migrate -input br_tax_rules_abc123.sql [-dry-run | -dsn postgres://...]")
		os.Exit(2)
	}

	script, err := os.ReadFile(*input)
	if err != nil {
		fatal(err)
	}
	mig, err := parseMigration(*input, string(script))
	if err != nil {
		fatal(err)
	}

	ctx := context.Background()
	if *dryRun {
		report, err := migrate.DryRun(ctx, mig, logger)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("ok: %s inserts %d rows over %d statements and reverses cleanly\n",
			report.Name, report.RowsInserted, report.UpStatements)
		return
	}

	if *dsn == "" {
		fatal(fmt.Errorf("a postgres -dsn (or DATABASE_URL) is required unless -dry-run is set"))
	}
	dir := migrate.DirectionUp
	if *down {
		dir = migrate.DirectionDown
	}
	if err := migrate.Apply(ctx, *dsn, mig, dir, logger); err != nil {
		fatal(err)
	}
	fmt.Printf("applied %s (%s)\n", mig.Name, dir)
}

// parseMigration splits a rendered .sql artifact back into its up and down
// scripts using the section markers the renderer emits.
func parseMigration(path, script string) (render.Migration, error) {
	const upMarker, downMarker = "-- up\n", "\n-- down\n"
	upIdx := strings.Index(script, upMarker)
	downIdx := strings.Index(script, downMarker)
	if upIdx < 0 || downIdx < 0 || downIdx < upIdx {
		return render.Migration{}, fmt.Errorf("%s is not a rendered migration: missing up/down markers", path)
	}
	name := strings.TrimSuffix(filepath.Base(path), ".sql")
	return render.Migration{
		Name: name,
		Up:   script[upIdx+len(upMarker) : downIdx],
		Down: script[downIdx+len(downMarker):],
	}, nil
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "migrate:", err)
	os.Exit(1)
}
