// Package gemini asks a Gemini model for a short market brief built from the run's
// top headlines. The brief is optional: callers send the digest without it on error.
package gemini

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/deusflow/findigest/internal/logger"
	"github.com/deusflow/findigest/internal/news"
)

const (
	// maxHeadlines sent in one prompt.
	maxHeadlines = 25
	maxPoints    = 5
	maxPointLen  = 280
)

type Client struct {
	client *genai.Client
	model  string
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

func (c *Client) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

// Brief returns the market brief message for articles, at most limit bytes long.
func (c *Client) Brief(ctx context.Context, articles []news.Article, now time.Time, limit int) (string, error) {
	if len(articles) == 0 {
		return "", fmt.Errorf("no headlines to summarize")
	}

	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(0.2)

	resp, err := model.GenerateContent(ctx, genai.Text(BuildPrompt(articles)))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no response from Gemini")
	}

	var raw strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			raw.WriteString(string(text))
		}
	}

	points, err := ParseBrief(raw.String())
	if err != nil {
		logger.Debug("unparsed Gemini response", "response", raw.String())
		return "", err
	}
	return FormatBrief(points, now, limit), nil
}

// BuildPrompt lists up to maxHeadlines headlines with their source.
func BuildPrompt(articles []news.Article) string {
	var b strings.Builder
	b.WriteString(`You are a financial news editor. Read the headlines below and write a market brief.

RULES:
- At most 5 bullet points, one sentence each, no more than 200 characters.
- Only use facts present in the headlines. Do not invent numbers.
- No Markdown, no links, no introduction.

FORMAT (strictly):
BRIEF:
- <point>
- <point>

HEADLINES:
`)
	for i, a := range articles {
		if i >= maxHeadlines {
			break
		}
		b.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, strings.TrimSpace(a.Title), a.Source.Acronym))
	}
	return b.String()
}

var (
	briefLabel = regexp.MustCompile(`(?i)^\**\s*(BRIEF|SUMMARY)\s*\**\s*:?\s*`)
	bullet     = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s+`)
)

// ParseBrief extracts the bullet points of a model response. Lines before the
// BRIEF label are ignored when the label is present.
func ParseBrief(response string) ([]string, error) {
	lines := strings.Split(strings.ReplaceAll(response, "\r", ""), "\n")

	start := 0
	for i, raw := range lines {
		if briefLabel.MatchString(strings.TrimSpace(raw)) {
			start = i
			lines[i] = briefLabel.ReplaceAllString(strings.TrimSpace(raw), "")
			break
		}
	}

	var points []string
	for _, raw := range lines[start:] {
		line := strings.TrimSpace(raw)
		if !bullet.MatchString(line) {
			continue
		}
		point := cleanPoint(bullet.ReplaceAllString(line, ""))
		if point == "" {
			continue
		}
		points = append(points, point)
		if len(points) == maxPoints {
			break
		}
	}

	if len(points) == 0 {
		return nil, fmt.Errorf("could not parse Gemini response: no bullet points")
	}
	return points, nil
}

var markdownChars = strings.NewReplacer("*", "", "_", " ", "`", "", "[", "(", "]", ")")

func cleanPoint(s string) string {
	s = strings.Join(strings.Fields(markdownChars.Replace(s)), " ")
	if utf8.RuneCountInString(s) > maxPointLen {
		s = string([]rune(s)[:maxPointLen-3]) + "..."
	}
	return s
}

// FormatBrief renders points as a Markdown message no longer than limit bytes.
// Points that do not fit are left out.
func FormatBrief(points []string, now time.Time, limit int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🧭 *Market Brief* · %s\n", now.Format("02 Jan 2006")))
	for _, p := range points {
		line := "\n• " + p
		if limit > 0 && b.Len()+len(line) > limit {
			break
		}
		b.WriteString(line)
	}
	return b.String()
}
