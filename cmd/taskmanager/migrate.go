package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"text/tabwriter"

	"github.com/phrazzld/taskmanager/internal/config"
	"github.com/phrazzld/taskmanager/internal/platform/migrations"
)

// runMigrate implements "taskmanager migrate up|down|status".
func runMigrate(ctx context.Context, cfg *config.Config, log *slog.Logger, args []string, out io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: taskmanager migrate up|down|status")
	}

	dbCfg := cfg.Database
	dbCfg.AutoMigrate = false
	db, dialect, err := openDatabase(ctx, dbCfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	runner, err := migrations.NewRunner(db, dialect, log, true)
	if err != nil {
		return err
	}

	switch args[0] {
	case "up":
		n, err := runner.Up(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "applied %d migration(s)\n", n)
	case "down":
		if err := runner.Down(ctx); err != nil {
			return err
		}
		fmt.Fprintln(out, "rolled back one migration")
	case "status":
		statuses, err := runner.Status(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "VERSION\tSTATE\tSOURCE")
		for _, s := range statuses {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Source.Version, s.State, s.Source.Path)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown migrate command %q", args[0])
	}
	return nil
}
