package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/deusflow/findigest/internal/config"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(path, []byte(content), 0o644)
	require.NoError(t, err)
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("DIGEST_MODE", "")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Empty(t, cfg.TelegramToken)
	require.Equal(t, 24*time.Hour, cfg.Lookback)
	require.Equal(t, 10, cfg.MaxPerFeed)
	require.Equal(t, 75, cfg.TitleBudget)
	require.Equal(t, 3800, cfg.SoftLimit)
	require.Equal(t, 4096, cfg.HardLimit)
	require.Equal(t, 10*time.Second, cfg.FeedTimeout)
	require.Equal(t, 1, cfg.DeliveryAttempts)
	require.Equal(t, config.ModeTopic, cfg.DigestMode)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_TOKEN", "legacy-token")
	t.Setenv("LOOKBACK_HOURS", "72")
	t.Setenv("MAX_PER_FEED", "0")
	t.Setenv("FEED_TIMEOUT", "15")
	t.Setenv("SEND_INTERVAL", "250ms")
	t.Setenv("DIGEST_MODE", "source")

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, "legacy-token", cfg.TelegramToken)
	require.Equal(t, 72*time.Hour, cfg.Lookback)
	require.Equal(t, 0, cfg.MaxPerFeed)
	require.Equal(t, 15*time.Second, cfg.FeedTimeout)
	require.Equal(t, 250*time.Millisecond, cfg.SendInterval)
	require.Equal(t, config.ModeSource, cfg.DigestMode)
}

func TestLoad_InvalidMode(t *testing.T) {
	t.Setenv("DIGEST_MODE", "weekly")
	_, err := config.Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "DIGEST_MODE")
}

func TestLoadFeeds_BothFormats(t *testing.T) {
	path := writeTempFile(t, "feeds.txt", `# Financial feeds
Economic Times Markets|https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms

Mint Markets|MINT|https://www.livemint.com/rss/markets
broken line without separator
Bad URL|not-a-url
Mint Markets|https://duplicate.example.com/rss
`)

	feeds, err := config.LoadFeeds(path)
	require.NoError(t, err)
	require.Equal(t, []config.FeedSource{
		{Name: "Economic Times Markets", Acronym: "Economic", URL: "https://economictimes.indiatimes.com/markets/rssfeeds/1977021501.cms"},
		{Name: "Mint Markets", Acronym: "MINT", URL: "https://www.livemint.com/rss/markets"},
	}, feeds)
}

func TestLoadFeeds_YAML(t *testing.T) {
	path := writeTempFile(t, "feeds.yaml", `feeds:
  - name: Wall Street Journal Markets
    acronym: WSJ
    url: https://feeds.content.dowjones.io/public/rss/RSSMarketsMain
  - https://www.business-standard.com/rss/markets-106.rss
`)

	feeds, err := config.LoadFeeds(path)
	require.NoError(t, err)
	require.Len(t, feeds, 2)
	require.Equal(t, "WSJ", feeds[0].Acronym)
	require.Equal(t, "business-standard.com", feeds[1].Name)
	require.Equal(t, "https://www.business-standard.com/rss/markets-106.rss", feeds[1].URL)
}

func TestLoadFeeds_MissingOrEmptyIsFatal(t *testing.T) {
	_, err := config.LoadFeeds("/nonexistent/feeds.txt")
	require.ErrorIs(t, err, config.ErrNoFeeds)

	path := writeTempFile(t, "feeds.txt", "# only comments\n\n")
	_, err = config.LoadFeeds(path)
	require.ErrorIs(t, err, config.ErrNoFeeds)
}

func TestLoadKeywords_LowercasedAndUnique(t *testing.T) {
	path := writeTempFile(t, "keywords.txt", "Bank\nbank\n# comment\nFederal Reserve\n")
	keywords, err := config.LoadKeywords(path)
	require.NoError(t, err)
	require.Equal(t, []string{"bank", "federal reserve"}, keywords)
}

func TestLoadTopics_OrderIsPriority(t *testing.T) {
	path := writeTempFile(t, "topics.txt", `BANKING|bank, banking ,RBI
MARKETS|sensex,nifty,stocks
no separator here
FINTECH|
`)
	topics, err := config.LoadTopics(path)
	require.NoError(t, err)
	require.Len(t, topics, 3)
	require.Equal(t, config.Topic{Name: "BANKING", Keywords: []string{"bank", "banking", "rbi"}, Priority: 0}, topics[0])
	require.Equal(t, "MARKETS", topics[1].Name)
	require.Equal(t, 1, topics[1].Priority)
	require.Equal(t, "FINTECH", topics[2].Name)
	require.Empty(t, topics[2].Keywords)
}

func TestLoadRecipients(t *testing.T) {
	path := writeTempFile(t, "recipients.txt", "YOUR_CHAT_ID\n-100123\n-100123\n")

	recipients, err := config.LoadRecipients(path, "42")
	require.NoError(t, err)
	require.Equal(t, []string{"42", "-100123"}, recipients)

	recipients, err = config.LoadRecipients(path, "")
	require.NoError(t, err)
	require.Equal(t, []string{"-100123"}, recipients)
}

func TestLoadRecipients_MissingFileFallsBackToChatID(t *testing.T) {
	recipients, err := config.LoadRecipients("/nonexistent/recipients.txt", "42")
	require.NoError(t, err)
	require.Equal(t, []string{"42"}, recipients)

	_, err = config.LoadRecipients("/nonexistent/recipients.txt", "")
	require.Error(t, err)
}

func TestLoadInputs_DegradesWithoutOptionalFiles(t *testing.T) {
	feeds := writeTempFile(t, "feeds.txt", "Reuters Business|https://example.com/rss\n")
	cfg := &config.Config{
		FeedsPath:      feeds,
		KeywordsPath:   "/nonexistent/keywords.txt",
		TopicsPath:     "/nonexistent/topics.txt",
		RecipientsPath: "/nonexistent/recipients.txt",
	}

	in, err := config.LoadInputs(cfg)
	require.NoError(t, err)
	require.Len(t, in.Feeds, 1)
	require.Empty(t, in.Keywords)
	require.Empty(t, in.Topics)
	require.Empty(t, in.Recipients)
}
