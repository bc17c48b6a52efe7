package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/deusflow/findigest/internal/app"
	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/gemini"
	"github.com/deusflow/findigest/internal/health"
	"github.com/deusflow/findigest/internal/logger"
	"github.com/deusflow/findigest/internal/metrics"
	"github.com/deusflow/findigest/internal/newsapi"
	"github.com/deusflow/findigest/internal/rss"
	"github.com/deusflow/findigest/internal/telegram"
)

func main() {
	root := &cobra.Command{
		Use:           "findigest",
		Short:         "findigest: financial news digest for Telegram",
		Long:          "Polls financial RSS feeds, keeps fresh keyword matches, and sends a topic-grouped digest to Telegram.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	run := runCmd()
	root.RunE = run.RunE
	root.Flags().AddFlagSet(run.Flags())

	root.AddCommand(run, checkCmd(), discoverCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig applies the shared flags on top of the environment.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if cmd.Flags().Changed("feeds") {
		cfg.FeedsPath, _ = cmd.Flags().GetString("feeds")
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug, _ = cmd.Flags().GetBool("debug")
	}
	logger.Init(cfg.Debug)
	return cfg, nil
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fetch feeds, build the digest and deliver it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dry-run") {
				cfg.DryRun, _ = cmd.Flags().GetBool("dry-run")
			}
			if cmd.Flags().Changed("mode") {
				cfg.DigestMode, _ = cmd.Flags().GetString("mode")
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
				go startMonitoringServer(os.Getenv("MONITORING_PORT"))
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDigest(ctx, cfg)
		},
	}
	cmd.Flags().String("feeds", "", "Feed list file (overrides FEEDS_FILE)")
	cmd.Flags().Bool("debug", false, "Debug logging")
	cmd.Flags().Bool("dry-run", false, "Print the digest instead of sending it")
	cmd.Flags().String("mode", "", "Grouping: topic or source (overrides DIGEST_MODE)")
	return cmd
}

func runDigest(ctx context.Context, cfg *config.Config) error {
	inputs, err := config.LoadInputs(cfg)
	if err != nil {
		metrics.Global.SetError(err.Error())
		return err
	}

	deps := app.Deps{Out: os.Stdout}
	if c := newsapi.New(cfg.NewsAPIKey, "", inputs.Keywords, cfg.Lookback); c != nil {
		deps.NewsAPI = c
	}
	if cfg.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			logger.Warn("market brief disabled", "error", err)
		} else {
			defer client.Close()
			deps.Briefer = client
		}
	}

	res, err := app.Run(ctx, cfg, inputs, deps)
	switch {
	case errors.Is(err, telegram.ErrNoToken), errors.Is(err, app.ErrNoRecipients):
		// only delivery depends on these; show what would have been sent
		logger.Error("delivery skipped", "error", err)
		app.PrintDigest(os.Stdout, res.Messages)
		return nil
	case err != nil:
		return err
	}
	return nil
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate every configured feed and write a cleaned feed list",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			feeds, err := config.LoadFeeds(cfg.FeedsPath)
			if err != nil {
				return err
			}
			window, _ := cmd.Flags().GetDuration("window")
			out, _ := cmd.Flags().GetString("out")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			results := health.NewChecker(rss.NewFetcher(cfg.FeedTimeout), window, cfg.FetchWorkers).Check(ctx, feeds)
			printHealth(results)

			if out == "" {
				return nil
			}
			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("create %s: %w", out, err)
			}
			defer f.Close()
			if err := health.WriteCleaned(f, results, time.Now()); err != nil {
				return fmt.Errorf("write %s: %w", out, err)
			}
			logger.Info("cleaned feed list written", "path", out, "working", health.Summary(results)[health.Working])
			return nil
		},
	}
	cmd.Flags().String("feeds", "", "Feed list file (overrides FEEDS_FILE)")
	cmd.Flags().Bool("debug", false, "Debug logging")
	cmd.Flags().Duration("window", health.DefaultWindow, "A feed is stale when none of its latest entries is this recent")
	cmd.Flags().String("out", "feeds_cleaned.txt", "Where to write working feeds (empty to skip)")
	return cmd
}

func printHealth(results []health.Result) {
	icons := map[health.Status]string{
		health.Working: "✅",
		health.Stale:   "⚠️ ",
		health.Timeout: "⏱️ ",
		health.Broken:  "❌",
	}
	for i, r := range results {
		line := fmt.Sprintf("[%d/%d] %s %-8s %s", i+1, len(results), icons[r.Status], r.Status, r.Source.Name)
		switch {
		case r.Err != nil:
			line += fmt.Sprintf(" (%v)", r.Err)
		case r.Status == health.Working || r.Status == health.Stale:
			line += fmt.Sprintf(" (%d entries, %d recent)", r.Entries, r.Recent)
		}
		fmt.Println(line)
	}

	summary := health.Summary(results)
	fmt.Printf("\nTotal: %d  Working: %d  Stale: %d  Timeout: %d  Broken: %d\n",
		len(results), summary[health.Working], summary[health.Stale], summary[health.Timeout], summary[health.Broken])
}
