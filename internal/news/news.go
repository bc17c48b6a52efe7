// Package news turns raw feed entries into Articles: freshness and keyword
// relevance checks, topic assignment, and per-run deduplication.
package news

import (
	"sort"
	"strings"
	"time"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/rss"
	"github.com/deusflow/findigest/internal/scraper"
)

// Article is an entry that passed classification. Immutable once admitted.
type Article struct {
	Source      config.FeedSource
	Title       string
	URL         string
	PublishedAt time.Time
	Dated       bool // false when PublishedAt is the fetch time
	Topic       string
	Snippet     string
	Order       int // discovery index within the run
}

// Verdict is the outcome of classifying or admitting one entry.
type Verdict int

const (
	Relevant Verdict = iota
	Admitted
	Malformed
	Stale
	Irrelevant
	Duplicate
	CapReached
)

func (v Verdict) String() string {
	switch v {
	case Relevant:
		return "relevant"
	case Admitted:
		return "admitted"
	case Malformed:
		return "malformed"
	case Stale:
		return "stale"
	case Irrelevant:
		return "irrelevant"
	case Duplicate:
		return "duplicate"
	case CapReached:
		return "cap_reached"
	}
	return "unknown"
}

const snippetRunes = 200

// Classifier decides whether an entry belongs in the digest and under which topic.
// Keyword matching is plain lowercase substring search.
type Classifier struct {
	keywords []string
	topics   []config.Topic
	window   time.Duration
}

// NewClassifier copies topics ordered by Priority. An empty keyword list lets
// every entry through the relevance check.
func NewClassifier(keywords []string, topics []config.Topic, window time.Duration) *Classifier {
	ordered := make([]config.Topic, len(topics))
	copy(ordered, topics)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	kws := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			kws = append(kws, k)
		}
	}
	return &Classifier{keywords: kws, topics: ordered, window: window}
}

// Classify checks one entry fetched at now. The Article is only meaningful when
// the verdict is Relevant.
func (c *Classifier) Classify(src config.FeedSource, e rss.Entry, now time.Time) (Article, Verdict) {
	title := strings.TrimSpace(e.Title)
	link := strings.TrimSpace(e.Link)
	if title == "" || link == "" {
		return Article{}, Malformed
	}
	if !c.IsFresh(e.Published, now) {
		return Article{}, Stale
	}

	summary := scraper.PlainText(e.Summary)
	text := MatchText(title, summary)
	if !c.IsRelevant(text) {
		return Article{}, Irrelevant
	}

	published, dated := now, false
	if e.Published != nil {
		published, dated = *e.Published, true
	}

	return Article{
		Source:      src,
		Title:       title,
		URL:         link,
		PublishedAt: published,
		Dated:       dated,
		Topic:       c.Topic(text),
		Snippet:     scraper.Snippet(summary, snippetRunes),
	}, Relevant
}

// IsFresh reports whether published lies within the lookback window of now.
// Entries without a timestamp count as fresh.
func (c *Classifier) IsFresh(published *time.Time, now time.Time) bool {
	if published == nil {
		return true
	}
	return now.Sub(*published) <= c.window
}

// IsRelevant reports whether text contains at least one keyword.
func (c *Classifier) IsRelevant(text string) bool {
	if len(c.keywords) == 0 {
		return true
	}
	for _, k := range c.keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// Topic returns the topic with the most keyword occurrences in text. Ties go to
// the topic declared first; no match gives config.DefaultTopic.
func (c *Classifier) Topic(text string) string {
	best, bestScore := config.DefaultTopic, 0
	for _, t := range c.topics {
		score := 0
		for _, k := range t.Keywords {
			score += strings.Count(text, k)
		}
		if score > bestScore {
			best, bestScore = t.Name, score
		}
	}
	return best
}

// MatchText is the normalized text keywords are matched against.
func MatchText(title, summary string) string {
	return strings.ToLower(title + " " + summary)
}
