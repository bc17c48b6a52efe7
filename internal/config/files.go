package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/deusflow/findigest/internal/logger"
)

// DefaultTopic is the bucket for articles that match no topic keyword.
const DefaultTopic = "OTHER"

// RecipientPlaceholder in the recipients file is replaced by TELEGRAM_CHAT_ID.
const RecipientPlaceholder = "YOUR_CHAT_ID"

// ErrNoFeeds is returned when no feed could be loaded. It is the only fatal
// configuration condition of a run.
var ErrNoFeeds = errors.New("no feeds configured")

// FeedSource is one syndication endpoint. Identity is Name.
type FeedSource struct {
	Name    string `yaml:"name"`
	Acronym string `yaml:"acronym"`
	URL     string `yaml:"url"`
}

// Topic is a named digest bucket. Priority is its position in the topics file;
// lower values win ties and come first in the digest.
type Topic struct {
	Name     string
	Keywords []string
	Priority int
}

// Inputs is everything the pipeline reads from files, loaded once per run.
type Inputs struct {
	Feeds      []FeedSource
	Keywords   []string
	Topics     []Topic
	Recipients []string
}

// LoadInputs reads all input files named by cfg. Only a missing or empty feed list
// is an error; the other files degrade to empty values with a warning.
func LoadInputs(cfg *Config) (*Inputs, error) {
	feeds, err := LoadFeeds(cfg.FeedsPath)
	if err != nil {
		return nil, err
	}

	keywords, err := LoadKeywords(cfg.KeywordsPath)
	if err != nil {
		logger.Warn("keywords not loaded, every entry will be treated as relevant", "path", cfg.KeywordsPath, "error", err)
	}

	topics, err := LoadTopics(cfg.TopicsPath)
	if err != nil {
		logger.Warn("topics not loaded, all articles go to "+DefaultTopic, "path", cfg.TopicsPath, "error", err)
	}

	recipients, err := LoadRecipients(cfg.RecipientsPath, cfg.TelegramChatID)
	if err != nil {
		logger.Warn("recipients not loaded", "path", cfg.RecipientsPath, "error", err)
	}

	return &Inputs{
		Feeds:      feeds,
		Keywords:   keywords,
		Topics:     topics,
		Recipients: recipients,
	}, nil
}

// LoadFeeds reads the feed list. Paths ending in .yaml/.yml use the YAML layout,
// everything else the `Name|URL` / `Name|Acronym|URL` line format.
func LoadFeeds(path string) ([]FeedSource, error) {
	var (
		feeds []FeedSource
		err   error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		feeds, err = loadFeedsYAML(path)
	default:
		feeds, err = loadFeedsText(path)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFeeds, err)
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("%w: %s has no usable entries", ErrNoFeeds, path)
	}
	return feeds, nil
}

func loadFeedsText(path string) ([]FeedSource, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	return ParseFeedLines(lines), nil
}

// ParseFeedLines parses feed lines, skipping (and logging) malformed ones and
// repeated names.
func ParseFeedLines(lines []string) []FeedSource {
	seen := make(map[string]struct{})
	var feeds []FeedSource
	for _, line := range lines {
		src, ok := parseFeedLine(line)
		if !ok {
			logger.Warn("skipping malformed feed line", "line", line)
			continue
		}
		if _, dup := seen[src.Name]; dup {
			logger.Warn("skipping repeated feed name", "name", src.Name)
			continue
		}
		seen[src.Name] = struct{}{}
		feeds = append(feeds, src)
	}
	return feeds
}

func parseFeedLine(line string) (FeedSource, bool) {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	var src FeedSource
	switch len(parts) {
	case 2:
		src = FeedSource{Name: parts[0], Acronym: defaultAcronym(parts[0]), URL: parts[1]}
	case 3:
		src = FeedSource{Name: parts[0], Acronym: parts[1], URL: parts[2]}
		if src.Acronym == "" {
			src.Acronym = defaultAcronym(src.Name)
		}
	default:
		return FeedSource{}, false
	}
	if src.Name == "" || !validURL(src.URL) {
		return FeedSource{}, false
	}
	return src, true
}

// defaultAcronym is the first word of the feed name.
func defaultAcronym(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}

func validURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	return err == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https")
}

// yamlFeed accepts either a bare URL or a {name, acronym, url} mapping.
type yamlFeed struct {
	FeedSource
}

func (f *yamlFeed) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		u := strings.TrimSpace(value.Value)
		name := u
		if parsed, err := url.Parse(u); err == nil && parsed.Host != "" {
			name = strings.TrimPrefix(parsed.Host, "www.")
		}
		f.FeedSource = FeedSource{Name: name, Acronym: defaultAcronym(name), URL: u}
		return nil
	}
	var src FeedSource
	if err := value.Decode(&src); err != nil {
		return err
	}
	f.FeedSource = src
	return nil
}

// feedsFile is the YAML layout:
//
//	feeds:
//	  - name: Economic Times Markets
//	    acronym: ET
//	    url: https://...
//	  - https://...
type feedsFile struct {
	Feeds []yamlFeed `yaml:"feeds"`
}

func loadFeedsYAML(path string) ([]FeedSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var file feedsFile
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}

	lines := make([]string, 0, len(file.Feeds))
	for _, yf := range file.Feeds {
		lines = append(lines, yf.Name+"|"+yf.Acronym+"|"+yf.URL)
	}
	return ParseFeedLines(lines), nil
}

// LoadKeywords reads one keyword or phrase per line, lowercased.
func LoadKeywords(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	keywords := lo.Map(lines, func(l string, _ int) string { return strings.ToLower(l) })
	return lo.Uniq(keywords), nil
}

// LoadTopics reads `TopicName|kw1,kw2` lines. Order defines priority.
func LoadTopics(path string) ([]Topic, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	return ParseTopicLines(lines), nil
}

func ParseTopicLines(lines []string) []Topic {
	var topics []Topic
	for _, line := range lines {
		name, kws, ok := strings.Cut(line, "|")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			logger.Warn("skipping malformed topic line", "line", line)
			continue
		}
		var keywords []string
		for _, kw := range strings.Split(kws, ",") {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				keywords = append(keywords, kw)
			}
		}
		if len(keywords) == 0 {
			logger.Warn("topic has no keywords", "topic", name)
		}
		topics = append(topics, Topic{Name: name, Keywords: lo.Uniq(keywords), Priority: len(topics)})
	}
	return topics
}

// LoadRecipients reads chat ids. The placeholder line is replaced by chatID. When
// the file is missing, chatID alone (if set) is the recipient list.
func LoadRecipients(path, chatID string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		if chatID != "" && errors.Is(err, os.ErrNotExist) {
			return []string{chatID}, nil
		}
		return nil, err
	}
	return ResolveRecipients(lines, chatID), nil
}

func ResolveRecipients(lines []string, chatID string) []string {
	var out []string
	for _, line := range lines {
		if line == RecipientPlaceholder {
			if chatID == "" {
				logger.Warn("recipient placeholder present but TELEGRAM_CHAT_ID is empty")
				continue
			}
			line = chatID
		}
		out = append(out, line)
	}
	return lo.Uniq(out)
}

// readLines returns trimmed, non-empty, non-comment lines.
func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return scanLines(f)
}

func scanLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		line = strings.TrimPrefix(line, "\ufeff")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
