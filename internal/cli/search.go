package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/searchrelay/internal/control"
	"github.com/vietddude/searchrelay/internal/core/domain"
)

var searchOpts struct {
	num      int
	country  string
	language string
	location string
	device   string
	safe     bool
	asJSON   bool
	timeout  time.Duration
}

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Run one search through the configured providers",
	Args:  cobra.MinimumNArgs(1),
	Run:   runSearch,
}

func init() {
	f := searchCmd.Flags()
	f.IntVarP(&searchOpts.num, "num", "n", 10, "number of results")
	f.StringVar(&searchOpts.country, "country", "", "country code, e.g. us")
	f.StringVar(&searchOpts.language, "language", "", "language code, e.g. en")
	f.StringVar(&searchOpts.location, "location", "", "free-form location")
	f.StringVar(&searchOpts.device, "device", "", "desktop or mobile")
	f.BoolVar(&searchOpts.safe, "safe", false, "enable safe search")
	f.BoolVar(&searchOpts.asJSON, "json", false, "print the normalized response as JSON")
	f.DurationVar(&searchOpts.timeout, "timeout", 60*time.Second, "overall search timeout")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), searchOpts.timeout)
	defer cancel()

	rc := control.ConfigFrom(cfg)
	rc.Port = 0
	app, err := control.NewRelay(ctx, rc)
	if err != nil {
		slog.Error("Failed to initialize Relay", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = app.Stop(context.Background())
	}()

	resp, err := app.System().Search(ctx, domain.SearchOptions{
		Query:        strings.Join(args, " "),
		Location:     searchOpts.location,
		Language:     searchOpts.language,
		Country:      searchOpts.country,
		Device:       domain.Device(searchOpts.device),
		ResultsCount: searchOpts.num,
		SafeSearch:   searchOpts.safe,
	})
	if err != nil {
		slog.Error("Search failed", "error", err)
		os.Exit(1)
	}

	if searchOpts.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(resp)
		return
	}
	printResults(resp)
}

func printResults(resp *domain.SearchResponse) {
	fmt.Printf("Provider: %s  Results: %d of ~%d  Time: %s\n\n",
		resp.Provider, len(resp.Results), resp.TotalResults, resp.SearchTime.Round(time.Millisecond))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "#\tDOMAIN\tTITLE")
	for _, r := range resp.Results {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\n", r.Position, r.Domain, r.Title)
	}
	_ = w.Flush()

	if len(resp.RelatedQueries) > 0 {
		fmt.Printf("\nRelated: %s\n", strings.Join(resp.RelatedQueries, ", "))
	}
}
