// Package scraper turns the HTML fragments found in feed summaries into plain text.
package scraper

import (
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

// junkPhrases are boilerplate tails that publishers append to feed descriptions.
var junkPhrases = []string{
	"Continue reading...",
	"Read more",
	"Read More",
	"(Reuters) -",
	"The post appeared first on",
	"Click here to",
	"Subscribe to",
}

// PlainText strips markup from an HTML fragment and collapses whitespace.
// Publisher boilerplate is kept so keyword matching sees the full text.
func PlainText(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	if fragment == "" {
		return ""
	}
	text := fragment
	if strings.ContainsAny(fragment, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
		if err == nil {
			doc.Find("script, style, img, figure").Remove()
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// Snippet is PlainText without publisher boilerplate, cut to at most max runes
// on a word boundary when possible.
func Snippet(fragment string, max int) string {
	text := cleanContent(PlainText(fragment))
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	cut := string(runes[:max])
	if idx := strings.LastIndex(cut, " "); idx > max/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ,.;:-") + "..."
}

func cleanContent(content string) string {
	for _, phrase := range junkPhrases {
		content = strings.ReplaceAll(content, phrase, " ")
	}
	return strings.Join(strings.Fields(content), " ")
}
