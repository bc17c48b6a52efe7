package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/rss"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

type fakeFetcher map[string]func() ([]rss.Entry, error)

func (f fakeFetcher) Fetch(_ context.Context, src config.FeedSource) ([]rss.Entry, error) {
	return f[src.Name]()
}

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

func TestChecker_Check(t *testing.T) {
	sources := []config.FeedSource{
		{Name: "ET Markets", Acronym: "ET", URL: "https://et.example.com/markets"},
		{Name: "ET Archive", Acronym: "ET", URL: "https://et.example.com/archive"},
		{Name: "Slow Feed", Acronym: "SLOW", URL: "https://slow.example.com"},
		{Name: "Dead Feed", Acronym: "DEAD", URL: "https://dead.example.com"},
		{Name: "Empty Feed", Acronym: "EMPTY", URL: "https://empty.example.com"},
	}
	fetcher := fakeFetcher{
		"ET Markets": func() ([]rss.Entry, error) {
			return []rss.Entry{{Title: "a", Published: ago(time.Hour)}, {Title: "b", Published: ago(90 * time.Hour)}}, nil
		},
		"ET Archive": func() ([]rss.Entry, error) {
			return []rss.Entry{{Title: "old", Published: ago(72 * time.Hour)}, {Title: "undated"}}, nil
		},
		"Slow Feed": func() ([]rss.Entry, error) {
			return nil, &rss.FetchError{Kind: rss.KindTimeout, Source: "Slow Feed", Err: context.DeadlineExceeded}
		},
		"Dead Feed": func() ([]rss.Entry, error) {
			return nil, &rss.FetchError{Kind: rss.KindUnreachable, Source: "Dead Feed", Err: errors.New("refused")}
		},
		"Empty Feed": func() ([]rss.Entry, error) { return nil, nil },
	}

	c := NewChecker(fetcher, 0, 2)
	c.now = func() time.Time { return now }

	results := c.Check(context.Background(), sources)
	require.Len(t, results, 5)

	statuses := []Status{}
	for _, r := range results {
		statuses = append(statuses, r.Status)
	}
	assert.Equal(t, []Status{Working, Stale, Timeout, Broken, Broken}, statuses)
	assert.Equal(t, 1, results[0].Recent)

	summary := Summary(results)
	assert.Equal(t, 1, summary[Working])
	assert.Equal(t, 1, summary[Stale])
	assert.Equal(t, 1, summary[Timeout])
	assert.Equal(t, 2, summary[Broken])
}

func TestClassify_OnlyFirstEntriesCount(t *testing.T) {
	var entries []rss.Entry
	for i := 0; i < 25; i++ {
		published := ago(100 * time.Hour)
		if i >= 20 {
			published = ago(time.Hour)
		}
		entries = append(entries, rss.Entry{Title: fmt.Sprint(i), Published: published})
	}

	res := Classify(rss.Result{Entries: entries}, DefaultWindow, now)
	assert.Equal(t, Stale, res.Status)
	assert.Equal(t, 25, res.Entries)
}

func TestWriteCleaned(t *testing.T) {
	results := []Result{
		{Source: config.FeedSource{Name: "Mint Markets", Acronym: "MINT", URL: "https://mint/m"}, Status: Working},
		{Source: config.FeedSource{Name: "ET Wealth", Acronym: "ET", URL: "https://et/w"}, Status: Working},
		{Source: config.FeedSource{Name: "ET Banking", Acronym: "ET", URL: "https://et/b"}, Status: Working},
		{Source: config.FeedSource{Name: "Old", Acronym: "OLD", URL: "https://old"}, Status: Stale},
	}

	var b strings.Builder
	require.NoError(t, WriteCleaned(&b, results, now))

	expected := `# Working RSS Feeds (Auto-Generated)
# Validated: 2024-03-15 09:00
# Total: 3 working feeds

# ET - 2 feeds
ET Banking|ET|https://et/b
ET Wealth|ET|https://et/w

# MINT - 1 feeds
Mint Markets|MINT|https://mint/m

`
	assert.Equal(t, expected, b.String())

	// the cleaned file loads back as a feed list
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	var feedLines []string
	for _, l := range lines {
		if l != "" && !strings.HasPrefix(l, "#") {
			feedLines = append(feedLines, l)
		}
	}
	assert.Len(t, config.ParseFeedLines(feedLines), 3)
}
