// Package rss fetches syndication feeds and normalizes their items into Entry
// values. A failing feed never stops the others.
package rss

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/logger"
)

// BrowserUserAgent is sent on the fallback request; some publishers reject the
// parser's default agent.
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

// Entry is one feed item as the rest of the pipeline sees it.
type Entry struct {
	Title     string
	Link      string
	Summary   string
	Published *time.Time
}

// Fetcher retrieves one feed with a bounded timeout.
type Fetcher struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:    &http.Client{},
		timeout:   timeout,
		userAgent: BrowserUserAgent,
	}
}

// Fetch parses src.URL. A parse failure, an empty feed or a 4xx answer is retried
// once with a plain GET and a browser user agent. Errors are *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, src config.FeedSource) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	log := logger.With("feed", src.Name)

	parser := gofeed.NewParser()
	parser.Client = f.client
	feed, err := parser.ParseURLWithContext(src.URL, ctx)
	if err == nil && len(feed.Items) > 0 {
		return normalize(feed.Items), nil
	}

	first := classify(src.Name, feed, err)
	if !first.retryable() {
		return nil, first
	}

	log.Debug("retrying feed with browser user agent", "reason", first.Error())
	entries, err := f.fetchPlain(ctx, src)
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (f *Fetcher) fetchPlain(ctx context.Context, src config.FeedSource) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return nil, &FetchError{Kind: KindUnreachable, Source: src.Name, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(src.Name, nil, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Kind: KindUnreachable, Source: src.Name, Err: fmt.Errorf("HTTP error: %d", resp.StatusCode)}
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err == nil && len(feed.Items) > 0 {
		return normalize(feed.Items), nil
	}
	return nil, classify(src.Name, feed, err)
}

func classify(source string, feed *gofeed.Feed, err error) *FetchError {
	if err == nil {
		if feed == nil || len(feed.Items) == 0 {
			return &FetchError{Kind: KindEmpty, Source: source, Err: errors.New("feed has no entries")}
		}
		return nil
	}

	var netErr net.Error
	var httpErr gofeed.HTTPError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &FetchError{Kind: KindTimeout, Source: source, Err: err}
	case errors.As(err, &httpErr):
		return &FetchError{Kind: KindUnreachable, Source: source, Err: err, Status: httpErr.StatusCode}
	case errors.Is(err, gofeed.ErrFeedTypeNotDetected), isParseError(err):
		return &FetchError{Kind: KindParse, Source: source, Err: err}
	default:
		return &FetchError{Kind: KindUnreachable, Source: source, Err: err}
	}
}

// isParseError reports decoder failures that gofeed passes through unwrapped.
func isParseError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "xml") || strings.Contains(msg, "json") || strings.Contains(msg, "eof")
}

func normalize(items []*gofeed.Item) []Entry {
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		link := strings.TrimSpace(item.Link)
		if link == "" && len(item.Links) > 0 {
			link = strings.TrimSpace(item.Links[0])
		}
		summary := item.Description
		if summary == "" {
			summary = item.Content
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		entries = append(entries, Entry{
			Title:     strings.TrimSpace(item.Title),
			Link:      link,
			Summary:   strings.TrimSpace(summary),
			Published: published,
		})
	}
	return entries
}
