// Package app runs one digest: fetch, classify, collect, format and deliver.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/digest"
	"github.com/deusflow/findigest/internal/logger"
	"github.com/deusflow/findigest/internal/metrics"
	"github.com/deusflow/findigest/internal/news"
	"github.com/deusflow/findigest/internal/newsapi"
	"github.com/deusflow/findigest/internal/ratelimit"
	"github.com/deusflow/findigest/internal/retry"
	"github.com/deusflow/findigest/internal/rss"
	"github.com/deusflow/findigest/internal/telegram"
)

// ErrNoRecipients means the digest was built but nobody was configured to get it.
var ErrNoRecipients = errors.New("no recipients configured")

// Briefer produces the optional leading market brief.
type Briefer interface {
	Brief(ctx context.Context, articles []news.Article, now time.Time, limit int) (string, error)
}

// Deps are the collaborators of a run. Nil fields fall back to the production
// implementation, or are skipped when optional.
type Deps struct {
	Fetcher rss.EntrySource // default rss.NewFetcher(cfg.FeedTimeout)
	NewsAPI rss.EntrySource // optional extra source
	Briefer Briefer         // optional
	Sender  telegram.Sender // default Bot API client from cfg
	Metrics *metrics.Metrics
	Now     func() time.Time
	Out     io.Writer // dry-run output
}

type Result struct {
	RunID    string
	Articles []news.Article
	Messages []digest.Message // brief first when present
	Dropped  int              // admitted but not rendered: cut by MaxPerSection or link too long
	Report   telegram.Report
	Sources  []metrics.SourceStats
}

// Run executes the pipeline once. Fatal configuration problems are reported by
// config.LoadInputs before Run is called; here a missing token or recipient list
// only skips delivery and is returned as telegram.ErrNoToken or ErrNoRecipients
// alongside a complete Result.
func Run(ctx context.Context, cfg *config.Config, in *config.Inputs, deps Deps) (*Result, error) {
	deps = withDefaults(cfg, deps)
	began := time.Now()
	start := deps.Now()
	runID := uuid.NewString()
	log := logger.With("run_id", runID)

	log.Info("run started", "feeds", len(in.Feeds), "keywords", len(in.Keywords), "topics", len(in.Topics),
		"recipients", len(in.Recipients), "lookback", cfg.Lookback, "mode", cfg.DigestMode)

	res := &Result{RunID: runID}
	defer func() {
		deps.Metrics.RecordProcessingTime(time.Since(began))
		res.Sources = deps.Metrics.Sources()
		deps.Metrics.LogSummary()
	}()

	res.Articles = collect(ctx, cfg, in, deps, start)
	log.Info("articles collected", "count", len(res.Articles))

	opts := digest.OptionsFromConfig(cfg, in.Topics, start)
	msgs := digest.Format(res.Articles, opts)
	res.Dropped = len(res.Articles) - digest.Referenced(msgs)
	deps.Metrics.AddArticlesDropped(res.Dropped)

	if deps.Briefer != nil && len(res.Articles) > 0 {
		brief, err := deps.Briefer.Brief(ctx, digest.SortByRecency(res.Articles), start, cfg.HardLimit)
		if err != nil {
			log.Warn("market brief skipped", "error", err)
		} else {
			msgs = append([]digest.Message{{Text: brief}}, msgs...)
		}
	}
	for i := range msgs {
		msgs[i].Index = i
	}
	res.Messages = msgs
	log.Info("digest built", "parts", len(msgs), "dropped", res.Dropped)

	if cfg.DryRun {
		PrintDigest(deps.Out, msgs)
		deps.Metrics.SetLastRun(runID)
		return res, nil
	}

	sender := deps.Sender
	if sender == nil {
		client, err := telegram.NewClient(cfg.TelegramToken, cfg.TelegramAPIURL)
		if err != nil {
			deps.Metrics.SetError(err.Error())
			return res, fmt.Errorf("delivery skipped: %w", err)
		}
		sender = client
	}
	if len(in.Recipients) == 0 {
		deps.Metrics.SetError(ErrNoRecipients.Error())
		return res, fmt.Errorf("delivery skipped: %w", ErrNoRecipients)
	}

	dispatcher := telegram.NewDispatcher(sender,
		ratelimit.NewPacer(cfg.SendInterval),
		retry.RetryConfig{MaxAttempts: cfg.DeliveryAttempts, Delay: 2 * time.Second, Backoff: true},
		deps.Metrics)
	res.Report = dispatcher.Deliver(ctx, in.Recipients, msgs)

	log.Info("delivery finished", "sent", res.Report.Sent, "failed", res.Report.Failed())
	if res.Report.Failed() > 0 {
		deps.Metrics.SetError(fmt.Sprintf("%d of %d sends failed", res.Report.Failed(), res.Report.Failed()+res.Report.Sent))
	} else {
		deps.Metrics.SetLastRun(runID)
	}
	return res, nil
}

func withDefaults(cfg *config.Config, deps Deps) Deps {
	if deps.Fetcher == nil {
		deps.Fetcher = rss.NewFetcher(cfg.FeedTimeout)
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Global
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Out == nil {
		deps.Out = io.Discard
	}
	return deps
}

// collect fetches every source in parallel, then classifies and admits entries on
// this goroutine in source declaration order.
func collect(ctx context.Context, cfg *config.Config, in *config.Inputs, deps Deps, now time.Time) []news.Article {
	results := rss.FetchAll(ctx, deps.Fetcher, in.Feeds, cfg.FetchWorkers)
	if deps.NewsAPI != nil {
		results = append(results, rss.FetchAll(ctx, deps.NewsAPI, []config.FeedSource{newsapi.Source}, 1)...)
	}

	classifier := news.NewClassifier(in.Keywords, in.Topics, cfg.Lookback)
	collector := news.NewCollector(cfg.MaxPerFeed)

	for _, r := range results {
		if r.Err != nil {
			kind := string(rss.KindOf(r.Err))
			if kind == "" {
				kind = "error"
			}
			deps.Metrics.RecordFetch(r.Source.Name, 0, kind, r.Elapsed)
			continue
		}
		deps.Metrics.RecordFetch(r.Source.Name, len(r.Entries), "", r.Elapsed)
		tally := news.Ingest(collector, classifier, r.Source, r.Entries, now)
		counts := make(map[string]int, len(tally))
		for verdict, n := range tally {
			counts[verdict.String()] = n
		}
		deps.Metrics.RecordVerdicts(r.Source.Name, counts)
	}
	return collector.Articles()
}

// PrintDigest writes every message with a part marker, for dry runs and for runs
// whose delivery was skipped.
func PrintDigest(w io.Writer, msgs []digest.Message) {
	for _, m := range msgs {
		fmt.Fprintf(w, "----- part %d/%d (%d bytes) -----\n%s\n\n", m.Index+1, len(msgs), len(m.Text), m.Text)
	}
}
