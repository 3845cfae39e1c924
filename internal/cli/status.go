package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/searchrelay/internal/infra/storage/postgres"
)

var statusSince time.Duration

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show search and provider usage from the audit trail",
	Run:   runStatus,
}

func init() {
	statusCmd.Flags().DurationVar(&statusSince, "since", 24*time.Hour, "window to summarize")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("Status needs database.url to read the audit trail")
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewSearchRepo(db)
	since := time.Now().Add(-statusSince)

	sum, err := repo.Summary(ctx, since)
	if err != nil {
		slog.Error("Failed to summarize searches", "error", err)
		os.Exit(1)
	}
	usage, err := repo.Usage(ctx, since)
	if err != nil {
		slog.Error("Failed to query provider usage", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Searches since %s: %d (succeeded %d, cached %d, avg %s)\n\n",
		since.Format(time.RFC3339), sum.Total, sum.Succeeded, sum.Cached, sum.AvgTime)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROVIDER\tATTEMPTS\tSERVED\tFAILED")
	for _, u := range usage {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%d\n", u.Provider, u.Attempts, u.Served, u.Failed())
	}
	_ = w.Flush()
}
