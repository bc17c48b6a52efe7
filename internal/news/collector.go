package news

import (
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/rss"
)

// Collector accumulates the run's articles. It owns the seen-URL set, so no two
// admitted articles share a canonical URL. Not safe for concurrent use; the
// orchestrator feeds it from a single goroutine.
type Collector struct {
	maxPerSource int
	seen         map[string]struct{}
	perSource    map[string]int
	articles     []Article
}

// NewCollector caps admitted articles per source; 0 means unlimited.
func NewCollector(maxPerSource int) *Collector {
	return &Collector{
		maxPerSource: maxPerSource,
		seen:         make(map[string]struct{}),
		perSource:    make(map[string]int),
	}
}

// Full reports whether source has reached its cap.
func (c *Collector) Full(source string) bool {
	return c.maxPerSource > 0 && c.perSource[source] >= c.maxPerSource
}

// Admit adds a to the collection unless its URL was seen or its source is full.
func (c *Collector) Admit(a Article) Verdict {
	if c.Full(a.Source.Name) {
		return CapReached
	}
	key := CanonicalURL(a.URL)
	if _, dup := c.seen[key]; dup {
		return Duplicate
	}
	c.seen[key] = struct{}{}
	c.perSource[a.Source.Name]++
	a.Order = len(c.articles)
	c.articles = append(c.articles, a)
	return Admitted
}

// Len is the number of admitted articles.
func (c *Collector) Len() int {
	return len(c.articles)
}

// Articles returns a copy of the collection in discovery order.
func (c *Collector) Articles() []Article {
	out := make([]Article, len(c.articles))
	copy(out, c.articles)
	return out
}

// Tally counts entry outcomes for one source.
type Tally map[Verdict]int

// Ingest classifies a source's entries newest first and admits the relevant ones.
// Once the source is full its remaining entries are not looked at.
func Ingest(c *Collector, cl *Classifier, src config.FeedSource, entries []rss.Entry, now time.Time) Tally {
	tally := Tally{}
	ordered := newestFirst(entries, now)
	for i, e := range ordered {
		if c.Full(src.Name) {
			tally[CapReached] += len(ordered) - i
			break
		}
		article, verdict := cl.Classify(src, e, now)
		if verdict == Relevant {
			verdict = c.Admit(article)
		}
		tally[verdict]++
	}
	return tally
}

// newestFirst orders entries by timestamp, undated ones counting as now. The
// sort is stable, so feeds without timestamps keep their own order.
func newestFirst(entries []rss.Entry, now time.Time) []rss.Entry {
	sorted := make([]rss.Entry, len(entries))
	copy(sorted, entries)
	at := func(e rss.Entry) time.Time {
		if e.Published == nil {
			return now
		}
		return *e.Published
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return at(sorted[i]).After(at(sorted[j]))
	})
	return sorted
}

// CanonicalURL is the deduplication key for a link: scheme and host lowercased,
// fragment and utm_* tracking parameters dropped, trailing slash trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.RawQuery != "" {
		q := u.Query()
		for key := range q {
			if strings.HasPrefix(strings.ToLower(key), "utm_") {
				q.Del(key)
			}
		}
		u.RawQuery = q.Encode()
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
