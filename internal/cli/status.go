package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openstatushq/pulse/internal/infra/retry"
	"github.com/openstatushq/pulse/internal/infra/storage"
	"github.com/openstatushq/pulse/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the latest check result of every monitor",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := setup()
	if cfg.Database.URL == "" {
		slog.Error("status needs database.url; results are not persisted in memory mode")
		os.Exit(1)
	}

	ctx := context.Background()
	exec := retry.New(cfg.Retry.Storage,
		retry.WithName("storage"),
		retry.WithClassifier(postgres.Classify),
	)
	db, err := postgres.NewDB(ctx, cfg.Database, exec)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	store := postgres.NewStore(db)
	monitors, err := store.Monitors.List(ctx, false)
	if err != nil {
		slog.Error("Failed to list monitors", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "MONITOR\tKIND\tSTATUS\tLATENCY\tATTEMPTS\tCHECKED")

	for _, m := range monitors {
		res, err := store.Checks.Latest(ctx, m.ID)
		if errors.Is(err, storage.ErrNotFound) {
			_, _ = fmt.Fprintf(w, "%s\t%s\t-\t-\t-\tnever\n", m.ID, m.Kind)
			continue
		}
		if err != nil {
			slog.Warn("Failed to load latest result", "monitor", m.ID, "error", err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\n",
			m.ID, m.Kind, res.Status, res.Latency.Round(time.Millisecond),
			res.Attempts, res.CheckedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
