package digest

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// TruncateTitle cuts title to budget runes. Longer titles keep their first
// budget-3 runes followed by "...".
func TruncateTitle(title string, budget int) string {
	title = strings.TrimSpace(title)
	if budget <= len(ellipsis) || utf8.RuneCountInString(title) <= budget {
		return title
	}
	runes := []rune(title)
	return string(runes[:budget-len(ellipsis)]) + ellipsis
}

// markdownReplacer neutralises legacy Markdown control characters. Telegram's
// legacy mode has no escaping inside entities, so they are replaced instead.
var markdownReplacer = strings.NewReplacer(
	"[", "(",
	"]", ")",
	"*", "",
	"_", " ",
	"`", "'",
)

// sanitize never makes s longer.
func sanitize(s string) string {
	return markdownReplacer.Replace(s)
}
