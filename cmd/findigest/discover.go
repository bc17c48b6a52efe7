package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/findigest/internal/health"
	"github.com/deusflow/findigest/internal/logger"
	"github.com/deusflow/findigest/internal/rss"
)

func discoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Try candidate feed URLs of known publications and list the live ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			catalog, _ := cmd.Flags().GetString("catalog")
			out, _ := cmd.Flags().GetString("out")

			pubs, err := health.LoadCatalog(catalog)
			if err != nil {
				return fmt.Errorf("load catalog: %w", err)
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			checker := health.NewChecker(rss.NewFetcher(cfg.FeedTimeout), 0, cfg.FetchWorkers)
			return runDiscovery(ctx, checker, pubs, out, os.Stdout)
		},
	}
	cmd.Flags().Bool("debug", false, "Debug logging")
	cmd.Flags().String("catalog", "publications.yaml", "Publications and their candidate feed paths")
	cmd.Flags().String("out", "feeds_discovered.txt", "Where to write discovered feeds")
	return cmd
}

func runDiscovery(ctx context.Context, checker *health.Checker, pubs []health.Publication, out string, w io.Writer) error {
	candidates := health.Candidates(pubs)
	fmt.Fprintf(w, "Testing %d potential feed URLs...\n\n", len(candidates))

	ds := checker.Discover(ctx, candidates)
	found := 0
	for _, d := range ds {
		switch {
		case d.Found():
			found++
			fmt.Fprintf(w, "✅ %s: %d entries, %d recent (7d)\n", d.Source.Name, d.Entries, d.Recent)
		case d.Status == health.Stale:
			fmt.Fprintf(w, "⚠️  %s: %d entries, 0 recent (7d)\n", d.Source.Name, d.Entries)
		case d.Status == health.Timeout:
			fmt.Fprintf(w, "⏱️  %s: timeout\n", d.Source.Name)
		case d.Err != nil:
			fmt.Fprintf(w, "❌ %s: %v\n", d.Source.Name, d.Err)
		default:
			fmt.Fprintf(w, "❌ %s: no entries\n", d.Source.Name)
		}
	}
	fmt.Fprintf(w, "\nWorking feeds discovered: %d\nBroken or inactive: %d\n", found, len(ds)-found)

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	defer f.Close()
	if err := health.WriteDiscovered(f, ds, time.Now()); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger.Info("discovered feeds written", "path", out, "found", found)

	fmt.Fprintln(w, "\nTop feeds by activity:")
	for i, d := range health.Busiest(ds, health.TopFeeds) {
		fmt.Fprintf(w, "%d. %s - %s: %d recent articles\n", i+1, d.Publication, d.Feed, d.Recent)
	}
	return nil
}
