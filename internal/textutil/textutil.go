// Package textutil derives listing previews from stored post HTML.
package textutil

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	ExcerptLength  = 150
	WordsPerMinute = 200
)

var (
	tagPattern   = regexp.MustCompile(`<[^>]*>`)
	spacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML removes tags, decodes entities and collapses whitespace.
func StripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// Excerpt is the first ExcerptLength runes of the post's plain text.
func Excerpt(content string) string {
	text := StripHTML(content)
	if utf8.RuneCountInString(text) <= ExcerptLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:ExcerptLength]))
}

// ReadingMinutes estimates reading time, never less than one minute.
func ReadingMinutes(content string) int {
	words := len(strings.Fields(StripHTML(content)))
	minutes := (words + WordsPerMinute - 1) / WordsPerMinute
	return max(minutes, 1)
}
