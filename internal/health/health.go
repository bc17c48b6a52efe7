// Package health validates the configured feeds and writes a cleaned feed list
// containing only the working ones.
package health

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/logger"
	"github.com/deusflow/findigest/internal/rss"
)

type Status string

const (
	Working Status = "working"
	Stale   Status = "stale"
	Timeout Status = "timeout"
	Broken  Status = "broken"
)

const (
	// DefaultWindow is how recent at least one entry must be for a working feed.
	DefaultWindow = 48 * time.Hour
	// sampleSize entries from the top of each feed are checked for recency.
	sampleSize = 20
)

type Result struct {
	Source  config.FeedSource
	Status  Status
	Entries int
	Recent  int
	Err     error
}

type Checker struct {
	fetcher rss.EntrySource
	window  time.Duration
	workers int
	now     func() time.Time
}

func NewChecker(fetcher rss.EntrySource, window time.Duration, workers int) *Checker {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Checker{fetcher: fetcher, window: window, workers: workers, now: time.Now}
}

// Check fetches every source and classifies it. Results keep the order of sources.
func (c *Checker) Check(ctx context.Context, sources []config.FeedSource) []Result {
	now := c.now()
	fetched := rss.FetchAll(ctx, c.fetcher, sources, c.workers)

	results := make([]Result, len(fetched))
	for i, r := range fetched {
		results[i] = Classify(r, c.window, now)
		logger.Info("feed checked", "feed", r.Source.Name, "status", results[i].Status,
			"entries", results[i].Entries, "recent", results[i].Recent)
	}
	return results
}

// Classify turns one fetch result into a health verdict. Only dated entries
// among the first few count as recent.
func Classify(r rss.Result, window time.Duration, now time.Time) Result {
	return classify(r, recency{window: window, sample: sampleSize}, now)
}

// recency decides which of a feed's leading entries count as recent.
type recency struct {
	window  time.Duration
	sample  int
	undated bool // entries without a timestamp count as recent
}

func (rc recency) count(entries []rss.Entry, now time.Time) int {
	n := 0
	for _, e := range lo.Slice(entries, 0, rc.sample) {
		switch {
		case e.Published == nil:
			if rc.undated {
				n++
			}
		case now.Sub(*e.Published) <= rc.window:
			n++
		}
	}
	return n
}

func classify(r rss.Result, rc recency, now time.Time) Result {
	res := Result{Source: r.Source, Entries: len(r.Entries), Err: r.Err}
	if r.Err != nil {
		res.Status = Broken
		if rss.KindOf(r.Err) == rss.KindTimeout {
			res.Status = Timeout
		}
		return res
	}
	if len(r.Entries) == 0 {
		res.Status = Broken
		return res
	}

	res.Recent = rc.count(r.Entries, now)
	res.Status = Working
	if res.Recent == 0 {
		res.Status = Stale
	}
	return res
}

// Summary counts results per status.
func Summary(results []Result) map[Status]int {
	return lo.CountValuesBy(results, func(r Result) Status { return r.Status })
}

// WriteCleaned writes the working feeds in `Name|Acronym|URL` form, grouped by
// acronym and sorted by acronym then name, under a generated header.
func WriteCleaned(w io.Writer, results []Result, now time.Time) error {
	working := lo.Filter(results, func(r Result, _ int) bool { return r.Status == Working })
	groups := lo.GroupBy(working, func(r Result) string { return r.Source.Acronym })

	acronyms := lo.Keys(groups)
	sort.Strings(acronyms)

	if _, err := fmt.Fprintf(w, "# Working RSS Feeds (Auto-Generated)\n# Validated: %s\n# Total: %d working feeds\n\n",
		now.Format("2006-01-02 15:04"), len(working)); err != nil {
		return err
	}
	for _, acronym := range acronyms {
		feeds := groups[acronym]
		sort.SliceStable(feeds, func(i, j int) bool { return feeds[i].Source.Name < feeds[j].Source.Name })

		if _, err := fmt.Fprintf(w, "# %s - %d feeds\n", acronym, len(feeds)); err != nil {
			return err
		}
		for _, f := range feeds {
			if _, err := fmt.Fprintf(w, "%s|%s|%s\n", f.Source.Name, f.Source.Acronym, f.Source.URL); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
