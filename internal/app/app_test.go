package app_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/findigest/internal/app"
	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/digest"
	"github.com/deusflow/findigest/internal/metrics"
	"github.com/deusflow/findigest/internal/news"
	"github.com/deusflow/findigest/internal/rss"
	"github.com/deusflow/findigest/internal/telegram"
)

var now = time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)

func ago(d time.Duration) *time.Time {
	t := now.Add(-d)
	return &t
}

type fakeFetcher map[string][]rss.Entry

func (f fakeFetcher) Fetch(_ context.Context, src config.FeedSource) ([]rss.Entry, error) {
	entries, ok := f[src.Name]
	if !ok {
		return nil, &rss.FetchError{Kind: rss.KindUnreachable, Source: src.Name, Err: errors.New("connection refused")}
	}
	return entries, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []string
	fail map[string]bool
}

func (s *recordingSender) SendMessage(_ context.Context, chatID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[chatID] {
		return &telegram.DeliveryError{ChatID: chatID, Status: 400}
	}
	s.sent = append(s.sent, chatID+"|"+text)
	return nil
}

type fakeBriefer struct {
	err error
}

func (b fakeBriefer) Brief(_ context.Context, articles []news.Article, _ time.Time, _ int) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	return fmt.Sprintf("BRIEF of %d", len(articles)), nil
}

func testConfig() *config.Config {
	return &config.Config{
		Lookback:         24 * time.Hour,
		MaxPerFeed:       10,
		TitleBudget:      75,
		DigestMode:       config.ModeTopic,
		SoftLimit:        3800,
		HardLimit:        4096,
		FetchWorkers:     2,
		DeliveryAttempts: 1,
	}
}

func testInputs() *config.Inputs {
	return &config.Inputs{
		Feeds: []config.FeedSource{
			{Name: "Economic Times", Acronym: "ET", URL: "https://et.example.com/rss"},
			{Name: "Mint", Acronym: "MINT", URL: "https://mint.example.com/rss"},
			{Name: "Down", Acronym: "DOWN", URL: "https://down.example.com/rss"},
		},
		Keywords: []string{"bank", "rbi", "fintech"},
		Topics: []config.Topic{
			{Name: "BANKING", Keywords: []string{"bank", "rbi"}, Priority: 0},
			{Name: "FINTECH", Keywords: []string{"fintech"}, Priority: 1},
		},
		Recipients: []string{"100", "200"},
	}
}

func testFetcher() fakeFetcher {
	return fakeFetcher{
		"Economic Times": {
			{Title: "RBI holds repo rate", Link: "https://news.example.com/rbi", Published: ago(time.Hour)},
			{Title: "Monsoon update", Link: "https://et.example.com/rain", Published: ago(time.Hour)},
			{Title: "Bank results from last week", Link: "https://et.example.com/old", Published: ago(72 * time.Hour)},
		},
		"Mint": {
			{Title: "RBI holds repo rate (Mint)", Link: "https://news.example.com/rbi?utm_source=mint", Published: ago(2 * time.Hour)},
			{Title: "Fintech lender raises funds", Link: "https://mint.example.com/fintech"},
			{Title: "", Link: "https://mint.example.com/untitled"},
		},
	}
}

func TestRun_EndToEnd(t *testing.T) {
	sender := &recordingSender{}
	m := metrics.New()

	res, err := app.Run(context.Background(), testConfig(), testInputs(), app.Deps{
		Fetcher: testFetcher(),
		Sender:  sender,
		Metrics: m,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	require.Len(t, res.Articles, 2)
	urls := []string{res.Articles[0].URL, res.Articles[1].URL}
	assert.Equal(t, []string{"https://news.example.com/rbi", "https://mint.example.com/fintech"}, urls)

	require.Len(t, res.Messages, 1)
	text := res.Messages[0].Text
	assert.Contains(t, text, "*BANKING* (1)")
	assert.Contains(t, text, "*FINTECH* (1)")
	assert.Less(t, strings.Index(text, "BANKING"), strings.Index(text, "FINTECH"))

	assert.Equal(t, 2, res.Report.Sent)
	assert.Len(t, sender.sent, 2)
	assert.True(t, strings.HasPrefix(sender.sent[0], "100|"))
	assert.True(t, strings.HasPrefix(sender.sent[1], "200|"))

	bySource := map[string]metrics.SourceStats{}
	for _, s := range res.Sources {
		bySource[s.Source] = s
	}
	assert.Equal(t, "unreachable", bySource["Down"].Failure)
	assert.Equal(t, 1, bySource["Economic Times"].Counts["irrelevant"])
	assert.Equal(t, 1, bySource["Economic Times"].Counts["stale"])
	assert.Equal(t, 1, bySource["Mint"].Counts["duplicate"])
	assert.Equal(t, 1, bySource["Mint"].Counts["malformed"])
	assert.True(t, m.Healthy())
}

func TestRun_NoRelevantArticles(t *testing.T) {
	in := testInputs()
	in.Keywords = []string{"cryptocurrency"}
	sender := &recordingSender{}

	res, err := app.Run(context.Background(), testConfig(), in, app.Deps{
		Fetcher: testFetcher(),
		Sender:  sender,
		Metrics: metrics.New(),
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Empty(t, res.Articles)
	require.Len(t, res.Messages, 1)
	assert.Contains(t, res.Messages[0].Text, digest.EmptyNotice)
	assert.Contains(t, res.Messages[0].Text, "15 Mar 2024")
	assert.Len(t, sender.sent, 2)
}

func TestRun_MissingTokenSkipsDelivery(t *testing.T) {
	res, err := app.Run(context.Background(), testConfig(), testInputs(), app.Deps{
		Fetcher: testFetcher(),
		Metrics: metrics.New(),
		Now:     func() time.Time { return now },
	})
	require.ErrorIs(t, err, telegram.ErrNoToken)
	require.NotNil(t, res)
	assert.Len(t, res.Articles, 2)
	assert.NotEmpty(t, res.Messages)
	assert.Zero(t, res.Report.Sent)
}

func TestRun_NoRecipients(t *testing.T) {
	in := testInputs()
	in.Recipients = nil

	res, err := app.Run(context.Background(), testConfig(), in, app.Deps{
		Fetcher: testFetcher(),
		Sender:  &recordingSender{},
		Metrics: metrics.New(),
		Now:     func() time.Time { return now },
	})
	require.ErrorIs(t, err, app.ErrNoRecipients)
	assert.NotEmpty(t, res.Messages)
}

func TestRun_DeliveryFailureIsolated(t *testing.T) {
	sender := &recordingSender{fail: map[string]bool{"100": true}}
	m := metrics.New()

	res, err := app.Run(context.Background(), testConfig(), testInputs(), app.Deps{
		Fetcher: testFetcher(),
		Sender:  sender,
		Metrics: m,
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Report.Sent)
	assert.Equal(t, 1, res.Report.Failed())
	assert.False(t, m.Healthy())
}

func TestRun_DryRunPrints(t *testing.T) {
	cfg := testConfig()
	cfg.DryRun = true
	sender := &recordingSender{}
	var out bytes.Buffer

	res, err := app.Run(context.Background(), cfg, testInputs(), app.Deps{
		Fetcher: testFetcher(),
		Sender:  sender,
		Metrics: metrics.New(),
		Now:     func() time.Time { return now },
		Out:     &out,
	})
	require.NoError(t, err)
	assert.Empty(t, sender.sent)
	assert.Contains(t, out.String(), "----- part 1/1")
	assert.Contains(t, out.String(), res.Messages[0].Text)
}

func TestRun_BriefLeadsTheDigest(t *testing.T) {
	sender := &recordingSender{}
	in := testInputs()
	in.Recipients = []string{"100"}

	res, err := app.Run(context.Background(), testConfig(), in, app.Deps{
		Fetcher: testFetcher(),
		Sender:  sender,
		Briefer: fakeBriefer{},
		Metrics: metrics.New(),
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 2)
	assert.Equal(t, "BRIEF of 2", res.Messages[0].Text)
	assert.Equal(t, 0, res.Messages[0].Index)
	assert.Equal(t, 1, res.Messages[1].Index)
	assert.Equal(t, []string{"100|BRIEF of 2", "100|" + res.Messages[1].Text}, sender.sent)
}

func TestRun_BriefFailureIgnored(t *testing.T) {
	res, err := app.Run(context.Background(), testConfig(), testInputs(), app.Deps{
		Fetcher: testFetcher(),
		Sender:  &recordingSender{},
		Briefer: fakeBriefer{err: errors.New("quota exceeded")},
		Metrics: metrics.New(),
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.NotContains(t, res.Messages[0].Text, "BRIEF")
}

func TestRun_NewsAPISourceJoinsPipeline(t *testing.T) {
	extra := fakeFetcher{"NewsAPI": {
		{Title: "Bank of Baroda raises deposit rates", Link: "https://napi.example.com/bob", Published: ago(time.Hour)},
		{Title: "RBI holds repo rate", Link: "https://news.example.com/rbi", Published: ago(time.Hour)},
	}}

	res, err := app.Run(context.Background(), testConfig(), testInputs(), app.Deps{
		Fetcher: testFetcher(),
		NewsAPI: extra,
		Sender:  &recordingSender{},
		Metrics: metrics.New(),
		Now:     func() time.Time { return now },
	})
	require.NoError(t, err)
	require.Len(t, res.Articles, 3)
	assert.Equal(t, "NewsAPI", res.Articles[2].Source.Name)
}

func TestPrintDigest_PartMarkers(t *testing.T) {
	var out bytes.Buffer
	app.PrintDigest(&out, []digest.Message{
		{Index: 0, Text: "₹ first"},
		{Index: 1, Text: "second"},
	})
	assert.Equal(t, "----- part 1/2 (9 bytes) -----\n₹ first\n\n----- part 2/2 (6 bytes) -----\nsecond\n\n", out.String())
}
