package digest

import (
	"fmt"
	"strings"
)

const sectionSep = "\n\n"

// Item is one rendered line block. Items with a URL render as a numbered link
// with an optional italic note below it; items without one render Text as is,
// e.g. "...and N more".
type Item struct {
	Number int
	Title  string // already free of Markdown control characters
	URL    string
	Note   string
	Text   string
}

func (it Item) render() string {
	if it.URL == "" {
		return it.Text
	}
	line := it.link(it.Title)
	if it.Note != "" {
		line += "\n   _" + it.Note + "_"
	}
	return line
}

func (it Item) link(title string) string {
	return fmt.Sprintf("%d. [%s](%s)", it.Number, title, it.URL)
}

// fit renders the item in at most max bytes. A link that is too long loses its
// note, then the tail of its title. The URL is never cut; false means the item
// cannot be shown at all.
func (it Item) fit(max int) (string, bool) {
	if full := it.render(); len(full) <= max {
		return full, true
	}
	if it.URL == "" {
		return "", false
	}
	if bare := it.link(it.Title); len(bare) <= max {
		return bare, true
	}
	room := max - len(it.link("")) - len(ellipsis)
	if room <= 0 {
		return "", false
	}
	return it.link(strings.TrimSpace(clamp(it.Title, room)) + ellipsis), true
}

// Section is a group header followed by its item blocks.
type Section struct {
	Label string
	Items []Item
}

func (s Section) header(count int, continued bool) string {
	if continued {
		return "*" + s.Label + "* (cont.)"
	}
	return fmt.Sprintf("*%s* (%d)", s.Label, count)
}

// Render returns the section as a single string.
func (s Section) Render(count int) string {
	var b strings.Builder
	b.WriteString(s.header(count, false))
	for _, it := range s.Items {
		b.WriteString("\n")
		b.WriteString(it.render())
	}
	return b.String()
}

func (s Section) urls() []string {
	var out []string
	for _, it := range s.Items {
		if it.URL != "" {
			out = append(out, it.URL)
		}
	}
	return out
}

// SectionBuilder packs sections into messages. A message is closed before a
// section that would push it past the soft limit; a section that alone exceeds
// the soft limit is split between items. Every closed message carries at least
// one article and none exceeds the hard limit.
type SectionBuilder struct {
	soft, hard int
	header     string

	buf     strings.Builder
	urls    []string
	out     []Message
	dropped int
}

// NewSectionBuilder returns a builder whose first message starts with header
// (may be empty).
func NewSectionBuilder(soft, hard int, header string) *SectionBuilder {
	if soft <= 0 || soft > hard {
		soft = hard
	}
	b := &SectionBuilder{soft: soft, hard: hard}
	if header != "" {
		b.header = clamp(header, soft)
		b.buf.WriteString(b.header)
	}
	return b
}

// Add appends a section whose header shows count articles.
func (b *SectionBuilder) Add(s Section, count int) {
	text := s.Render(count)
	if b.fits(text) {
		b.write(text, s.urls())
		return
	}
	if b.hasContent() {
		b.flush()
		if b.fits(text) {
			b.write(text, s.urls())
			return
		}
	}
	b.split(s, count)
}

// split writes an oversized section item by item. The section header is only
// written together with the item that follows it, and each new message repeats
// it as a continuation header. Links that cannot fit even in an empty message
// are dropped; summary lines never open a message of their own.
func (b *SectionBuilder) split(s Section, count int) {
	pending := s.header(count, false)
	for _, it := range s.Items {
		if text, ok := it.fit(b.room(pending)); ok {
			b.put(pending, text, it.URL)
			pending = ""
			continue
		}
		if it.URL == "" {
			continue
		}
		if b.hasContent() {
			b.flush()
			if pending == "" {
				pending = s.header(count, true)
			}
			if text, ok := it.fit(b.room(pending)); ok {
				b.put(pending, text, it.URL)
				pending = ""
				continue
			}
		}
		b.dropped++
	}
}

// room is the space left for one item line once header is written.
func (b *SectionBuilder) room(header string) int {
	n := b.buf.Len()
	if header != "" {
		if n > 0 {
			n += len(sectionSep)
		}
		n += len(header)
	}
	return b.soft - n - 1
}

func (b *SectionBuilder) put(header, text, url string) {
	if header != "" {
		b.write(header, nil)
	}
	b.buf.WriteString("\n")
	b.buf.WriteString(text)
	if url != "" {
		b.urls = append(b.urls, url)
	}
}

func (b *SectionBuilder) fits(text string) bool {
	n := b.buf.Len()
	if n > 0 {
		n += len(sectionSep)
	}
	return n+len(text) <= b.soft
}

func (b *SectionBuilder) write(text string, urls []string) {
	if b.buf.Len() > 0 {
		b.buf.WriteString(sectionSep)
	}
	b.buf.WriteString(text)
	b.urls = append(b.urls, urls...)
}

// hasContent reports whether the buffer holds more than the message header.
func (b *SectionBuilder) hasContent() bool {
	if len(b.out) == 0 && b.header != "" {
		return b.buf.Len() > len(b.header)
	}
	return b.buf.Len() > 0
}

func (b *SectionBuilder) flush() {
	if b.buf.Len() == 0 {
		return
	}
	b.out = append(b.out, Message{
		Index:    len(b.out),
		Text:     clamp(b.buf.String(), b.hard),
		Articles: b.urls,
	})
	b.buf.Reset()
	b.urls = nil
}

// Messages closes the current buffer and returns every message built so far.
func (b *SectionBuilder) Messages() []Message {
	if b.hasContent() {
		b.flush()
	}
	return b.out
}

// Dropped is the number of links too long for any message.
func (b *SectionBuilder) Dropped() int {
	return b.dropped
}

// clamp cuts s to at most max bytes without splitting a UTF-8 sequence.
func clamp(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !startsRune(s[cut]) {
		cut--
	}
	return s[:cut]
}

func startsRune(c byte) bool {
	return c&0xC0 != 0x80
}
