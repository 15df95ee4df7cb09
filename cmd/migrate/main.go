// Утилита управления схемой БД: migrate [flags] up|down|status.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/boxoffice/internal/storage/postgres"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	var (
		dsn     = fs.String("dsn", "", "PostgreSQL DSN (default: BOXOFFICE_POSTGRES_DSN)")
		steps   = fs.Int("steps", 0, "how many migrations to apply or roll back (0 = all for up, 1 for down)")
		timeout = fs.Duration("timeout", 30*time.Second, "overall deadline")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	command := strings.ToLower(fs.Arg(0))
	switch command {
	case "up", "down", "status":
	case "":
		return fmt.Errorf("command is required: up, down or status")
	default:
		return fmt.Errorf("unknown command %q: use up, down or status", fs.Arg(0))
	}

	target := strings.TrimSpace(*dsn)
	if target == "" {
		target = strings.TrimSpace(os.Getenv("BOXOFFICE_POSTGRES_DSN"))
	}
	if target == "" {
		return fmt.Errorf("no DSN: pass -dsn or set BOXOFFICE_POSTGRES_DSN")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	store, err := postgres.Open(ctx, target)
	if err != nil {
		return fmt.Errorf("open postgres: %w", err)
	}
	defer store.Close()

	switch command {
	case "up":
		if err := store.MigrateUp(ctx, *steps); err != nil {
			return fmt.Errorf("migrate up: %w", err)
		}
	case "down":
		if err := store.MigrateDown(ctx, *steps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
	}

	version, count, err := store.MigrationStatus(ctx)
	if err != nil {
		return fmt.Errorf("read status: %w", err)
	}
	fmt.Fprintf(out, "%s done: schema version %d, %d migrations applied\n", command, version, count)
	return nil
}
