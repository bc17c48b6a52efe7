// Package newsapi pulls keyword matches from newsapi.org as an extra feed source.
package newsapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/deusflow/findigest/internal/config"
	"github.com/deusflow/findigest/internal/logger"
	"github.com/deusflow/findigest/internal/rss"
)

const (
	DefaultBaseURL = "https://newsapi.org"
	SourceName     = "NewsAPI"

	// maxQueryLen is the service's limit on the q parameter.
	maxQueryLen = 500
	pageSize    = 50
)

// Source is the synthetic feed source NewsAPI articles are attributed to.
var Source = config.FeedSource{Name: SourceName, Acronym: "NAPI", URL: DefaultBaseURL}

type Client struct {
	apiKey   string
	baseURL  string
	keywords []string
	lookback time.Duration
	http     *http.Client
	now      func() time.Time
}

// New returns nil when apiKey is empty so callers can skip the source.
func New(apiKey, baseURL string, keywords []string, lookback time.Duration) *Client {
	if apiKey == "" {
		return nil
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:   apiKey,
		baseURL:  strings.TrimRight(baseURL, "/"),
		keywords: keywords,
		lookback: lookback,
		http:     &http.Client{Timeout: 15 * time.Second},
		now:      time.Now,
	}
}

type article struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"publishedAt"`
}

type response struct {
	Status   string    `json:"status"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	Articles []article `json:"articles"`
}

// Fetch queries /v2/everything for the configured keywords. It satisfies
// rss.EntrySource so the result flows through the normal pipeline; failures are
// *rss.FetchError.
func (c *Client) Fetch(ctx context.Context, src config.FeedSource) ([]rss.Entry, error) {
	fail := func(kind rss.ErrorKind, status int, err error) error {
		return &rss.FetchError{Kind: kind, Source: src.Name, Status: status, Err: err}
	}

	q := Query(c.keywords)
	if q == "" {
		return nil, fail(rss.KindEmpty, 0, fmt.Errorf("no keywords to query"))
	}

	params := url.Values{}
	params.Set("q", q)
	params.Set("language", "en")
	params.Set("sortBy", "publishedAt")
	params.Set("pageSize", strconv.Itoa(pageSize))
	if c.lookback > 0 {
		params.Set("from", c.now().Add(-c.lookback).UTC().Format(time.RFC3339))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v2/everything?"+params.Encode(), nil)
	if err != nil {
		return nil, fail(rss.KindUnreachable, 0, err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fail(rss.KindTimeout, 0, ctx.Err())
		}
		return nil, fail(rss.KindUnreachable, 0, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}(resp.Body)

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fail(rss.KindParse, resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || out.Status != "ok" {
		return nil, fail(rss.KindUnreachable, resp.StatusCode, fmt.Errorf("%s: %s", out.Code, out.Message))
	}
	if len(out.Articles) == 0 {
		return nil, fail(rss.KindEmpty, resp.StatusCode, fmt.Errorf("no articles"))
	}

	entries := make([]rss.Entry, 0, len(out.Articles))
	for _, a := range out.Articles {
		e := rss.Entry{Title: strings.TrimSpace(a.Title), Link: strings.TrimSpace(a.URL), Summary: a.Description}
		if !a.PublishedAt.IsZero() {
			published := a.PublishedAt
			e.Published = &published
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Query ORs the keywords, quoting phrases, within the service's length limit.
func Query(keywords []string) string {
	var b strings.Builder
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if strings.ContainsRune(k, ' ') {
			k = strconv.Quote(k)
		}
		term := k
		if b.Len() > 0 {
			term = " OR " + k
		}
		if b.Len()+len(term) > maxQueryLen {
			break
		}
		b.WriteString(term)
	}
	return b.String()
}
