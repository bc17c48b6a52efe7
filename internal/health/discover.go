package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/logger"
	"github.com/deusflow/findigest/internal/rss"
)

const (
	// DiscoveryWindow is how recent an entry must be to count for a candidate feed.
	DiscoveryWindow = 7 * 24 * time.Hour
	discoverySample = 10
	// TopFeeds is how many of the busiest discovered feeds get reported.
	TopFeeds = 10
)

// Publication is a site with a base URL and the paths where it may serve feeds.
type Publication struct {
	Name     string   `yaml:"name"`
	BaseURL  string   `yaml:"base_url"`
	Patterns []string `yaml:"patterns"`
}

type catalogFile struct {
	Publications []Publication `yaml:"publications"`
}

// LoadCatalog reads publications from a YAML file:
//
//	publications:
//	  - name: Economic Times
//	    base_url: https://economictimes.indiatimes.com
//	    patterns:
//	      - /markets/rssfeeds/1977021501.cms
func LoadCatalog(path string) ([]Publication, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var file catalogFile
	if err := yaml.NewDecoder(f).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	pubs := lo.Filter(file.Publications, func(p Publication, _ int) bool {
		return strings.TrimSpace(p.Name) != "" && p.BaseURL != "" && len(p.Patterns) > 0
	})
	if len(pubs) == 0 {
		return nil, fmt.Errorf("%s: no publications", path)
	}
	return pubs, nil
}

// Candidate is one guessed feed URL of a publication.
type Candidate struct {
	Publication string
	Feed        string
	Source      config.FeedSource
}

// Candidates expands every publication pattern into a feed URL. Source names
// read "<Publication> <Feed>", with Feed derived from the last path segment.
func Candidates(pubs []Publication) []Candidate {
	var out []Candidate
	for _, p := range pubs {
		acronym := p.Name
		if fields := strings.Fields(p.Name); len(fields) > 0 {
			acronym = fields[0]
		}
		base := strings.TrimRight(p.BaseURL, "/")
		for _, pattern := range p.Patterns {
			feed := FeedLabel(pattern)
			name := p.Name + " " + feed
			out = append(out, Candidate{
				Publication: p.Name,
				Feed:        feed,
				Source: config.FeedSource{
					Name:    name,
					Acronym: acronym,
					URL:     base + "/" + strings.TrimLeft(pattern, "/"),
				},
			})
		}
	}
	return out
}

var feedSuffixes = strings.NewReplacer(".rss", "", ".xml", "", ".cms", "", "?format=rss", "")

// FeedLabel names a feed after the last segment of its path pattern,
// e.g. "/industry/banking" is "Banking" and "/markets-106.rss" is "Markets-106".
func FeedLabel(pattern string) string {
	seg := pattern[strings.LastIndex(pattern, "/")+1:]
	return titleCase(feedSuffixes.Replace(seg))
}

func titleCase(s string) string {
	runes := []rune(strings.ToLower(s))
	upper := true
	for i, r := range runes {
		if unicode.IsLetter(r) {
			if upper {
				runes[i] = unicode.ToUpper(r)
			}
			upper = false
		} else {
			upper = true
		}
	}
	return string(runes)
}

// Discovery is the verdict for one candidate. Result.Source is the candidate's
// feed source.
type Discovery struct {
	Publication string
	Feed        string
	Result
}

// Found reports whether the candidate is worth adding to the feed list.
func (d Discovery) Found() bool {
	return d.Err == nil && d.Recent > 0
}

// Discover fetches every candidate. An entry counts as recent when it is within
// DiscoveryWindow or has no timestamp; only the first few entries are looked at.
func (c *Checker) Discover(ctx context.Context, candidates []Candidate) []Discovery {
	now := c.now()
	sources := lo.Map(candidates, func(cd Candidate, _ int) config.FeedSource { return cd.Source })
	fetched := rss.FetchAll(ctx, c.fetcher, sources, c.workers)

	rc := recency{window: DiscoveryWindow, sample: discoverySample, undated: true}
	out := make([]Discovery, len(fetched))
	for i, r := range fetched {
		out[i] = Discovery{
			Publication: candidates[i].Publication,
			Feed:        candidates[i].Feed,
			Result:      classify(r, rc, now),
		}
		logger.Debug("candidate checked", "feed", r.Source.Name, "status", out[i].Status,
			"entries", out[i].Entries, "recent", out[i].Recent)
	}
	return out
}

// Busiest returns up to n found feeds ordered by recent entries, highest first.
// Ties keep discovery order.
func Busiest(ds []Discovery, n int) []Discovery {
	found := lo.Filter(ds, func(d Discovery, _ int) bool { return d.Found() })
	sort.SliceStable(found, func(i, j int) bool { return found[i].Recent > found[j].Recent })
	return lo.Slice(found, 0, n)
}

// WriteDiscovered writes found feeds in `Name|URL` form, grouped by publication
// in alphabetical order, under a generated header.
func WriteDiscovered(w io.Writer, ds []Discovery, now time.Time) error {
	found := lo.Filter(ds, func(d Discovery, _ int) bool { return d.Found() })
	groups := lo.GroupBy(found, func(d Discovery) string { return d.Publication })

	pubs := lo.Keys(groups)
	sort.Strings(pubs)

	if _, err := fmt.Fprintf(w, "# Discovered RSS Feeds\n# Generated: %s\n# Total: %d working feeds\n\n",
		now.Format("2006-01-02 15:04"), len(found)); err != nil {
		return err
	}
	for _, pub := range pubs {
		feeds := groups[pub]
		if _, err := fmt.Fprintf(w, "# %s - %d feeds\n", pub, len(feeds)); err != nil {
			return err
		}
		for _, d := range feeds {
			if _, err := fmt.Fprintf(w, "%s|%s\n", d.Source.Name, d.Source.URL); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return nil
}
