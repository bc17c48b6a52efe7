package rss

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/logger"
)

// EntrySource is anything that can produce entries for a feed source.
type EntrySource interface {
	Fetch(ctx context.Context, src config.FeedSource) ([]Entry, error)
}

// Result is the outcome of fetching one source.
type Result struct {
	Source  config.FeedSource
	Entries []Entry
	Err     error
	Elapsed time.Duration
}

// FetchAll fetches every source with at most workers fetches in flight. Results
// keep the order of sources; each goroutine writes only its own slot.
func FetchAll(ctx context.Context, fetcher EntrySource, sources []config.FeedSource, workers int) []Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(sources))

	var g errgroup.Group
	g.SetLimit(workers)
	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			start := time.Now()
			entries, err := fetcher.Fetch(ctx, src)
			results[i] = Result{Source: src, Entries: entries, Err: err, Elapsed: time.Since(start)}
			if err != nil {
				logger.Warn("feed failed", "feed", src.Name, "kind", KindOf(err), "error", err)
			} else {
				logger.Debug("feed loaded", "feed", src.Name, "entries", len(entries), "elapsed", results[i].Elapsed)
			}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
