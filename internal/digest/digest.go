// Package digest renders the run's articles into size-bounded Telegram messages.
package digest

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/news"
)

const (
	ModeTopic  = config.ModeTopic
	ModeSource = config.ModeSource

	// EmptyNotice is the whole digest when no article survived filtering.
	EmptyNotice = "No relevant articles found today."

	dateLayout = "02 Jan 2006"
)

// Message is one part of the digest. Articles lists the URLs rendered into it.
type Message struct {
	Index    int
	Text     string
	Articles []string
}

// Options controls grouping, title length and message limits.
type Options struct {
	Mode          string
	Topics        []config.Topic
	TitleBudget   int
	SoftLimit     int
	HardLimit     int
	MaxPerSection int // 0 = unlimited
	Now           time.Time
	Header        string // prepended to the first message
}

// DefaultOptions mirrors the config defaults.
func DefaultOptions(now time.Time) Options {
	return Options{
		Mode:        ModeTopic,
		TitleBudget: 75,
		SoftLimit:   3800,
		HardLimit:   4096,
		Now:         now,
	}
}

// OptionsFromConfig builds formatter options for one run.
func OptionsFromConfig(cfg *config.Config, topics []config.Topic, now time.Time) Options {
	return Options{
		Mode:          cfg.DigestMode,
		Topics:        topics,
		TitleBudget:   cfg.TitleBudget,
		SoftLimit:     cfg.SoftLimit,
		HardLimit:     cfg.HardLimit,
		MaxPerSection: cfg.MaxPerSection,
		Now:           now,
		Header:        Header(now),
	}
}

// Header is the standard first line of a digest.
func Header(now time.Time) string {
	return fmt.Sprintf("📊 *Financial News Digest* · %s", now.Format(dateLayout))
}

// Format sorts, groups and renders articles. Every article appears in exactly one
// message unless MaxPerSection cuts its section short or its link alone is
// longer than the soft limit.
func Format(articles []news.Article, opts Options) []Message {
	if opts.HardLimit <= 0 {
		opts.HardLimit = 4096
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	if len(articles) == 0 {
		return []Message{{Index: 0, Text: emptyText(opts)}}
	}

	b := NewSectionBuilder(opts.SoftLimit, opts.HardLimit, opts.Header)
	for _, g := range GroupArticles(SortByRecency(articles), opts.Mode, opts.Topics) {
		b.Add(renderSection(g, opts), len(g.Articles))
	}
	msgs := b.Messages()
	if len(msgs) == 0 {
		// every link was longer than a message
		return []Message{{Index: 0, Text: emptyText(opts)}}
	}
	return msgs
}

func emptyText(opts Options) string {
	var b strings.Builder
	if opts.Header != "" {
		b.WriteString(opts.Header)
		b.WriteString(sectionSep)
	}
	b.WriteString(fmt.Sprintf("%s\n_%s_", EmptyNotice, opts.Now.Format(dateLayout)))
	return clamp(b.String(), opts.HardLimit)
}

// SortByRecency returns a copy sorted by PublishedAt, newest first. Ties keep
// discovery order.
func SortByRecency(articles []news.Article) []news.Article {
	sorted := make([]news.Article, len(articles))
	copy(sorted, articles)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].PublishedAt.Equal(sorted[j].PublishedAt) {
			return sorted[i].Order < sorted[j].Order
		}
		return sorted[i].PublishedAt.After(sorted[j].PublishedAt)
	})
	return sorted
}

// Group is one digest section before rendering.
type Group struct {
	Label    string
	Articles []news.Article
}

// GroupArticles buckets sorted articles. Topic mode follows topic priority with unknown
// topics alphabetically after the declared ones and OTHER last; source mode is
// alphabetical by source name. Empty groups are left out.
func GroupArticles(sorted []news.Article, mode string, topics []config.Topic) []Group {
	keyOf := func(a news.Article) string { return a.Topic }
	if mode == ModeSource {
		keyOf = func(a news.Article) string { return a.Source.Name }
	}
	buckets := lo.GroupBy(sorted, keyOf)

	var order []string
	if mode == ModeSource {
		order = lo.Keys(buckets)
		sort.Strings(order)
	} else {
		order = topicOrder(buckets, topics)
	}

	groups := make([]Group, 0, len(order))
	for _, key := range order {
		if items := buckets[key]; len(items) > 0 {
			groups = append(groups, Group{Label: key, Articles: items})
		}
	}
	return groups
}

func topicOrder(buckets map[string][]news.Article, topics []config.Topic) []string {
	declared := make([]config.Topic, len(topics))
	copy(declared, topics)
	sort.SliceStable(declared, func(i, j int) bool {
		return declared[i].Priority < declared[j].Priority
	})

	known := make(map[string]bool, len(declared))
	order := make([]string, 0, len(buckets))
	for _, t := range declared {
		if t.Name == config.DefaultTopic || known[t.Name] {
			continue
		}
		known[t.Name] = true
		order = append(order, t.Name)
	}

	var extra []string
	for name := range buckets {
		if !known[name] && name != config.DefaultTopic {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	order = append(order, extra...)
	return append(order, config.DefaultTopic)
}

func renderSection(g Group, opts Options) Section {
	shown := g.Articles
	hidden := 0
	if opts.MaxPerSection > 0 && len(shown) > opts.MaxPerSection {
		hidden = len(shown) - opts.MaxPerSection
		shown = shown[:opts.MaxPerSection]
	}

	s := Section{Label: sanitize(g.Label), Items: make([]Item, 0, len(shown)+1)}
	for i, a := range shown {
		s.Items = append(s.Items, renderArticle(i+1, a, opts))
	}
	if hidden > 0 {
		s.Items = append(s.Items, Item{Text: fmt.Sprintf("_…and %d more_", hidden)})
	}
	return s
}

func renderArticle(i int, a news.Article, opts Options) Item {
	when := "Recent"
	if a.Dated {
		when = a.PublishedAt.In(opts.Now.Location()).Format("15:04")
	}
	if opts.Mode != ModeSource {
		when += " · " + sanitize(a.Source.Acronym)
	}
	return Item{
		Number: i,
		Title:  sanitize(TruncateTitle(a.Title, opts.TitleBudget)),
		URL:    a.URL,
		Note:   when,
	}
}

// Referenced counts the article URLs across messages.
func Referenced(msgs []Message) int {
	return lo.SumBy(msgs, func(m Message) int { return len(m.Articles) })
}
