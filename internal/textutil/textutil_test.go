package textutil

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestStripHTML(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"<p>Hello <strong>world</strong></p>", "Hello world"},
		{"plain", "plain"},
		{"<p>a</p><p>b</p>", "a b"},
		{"Fish &amp; chips", "Fish & chips"},
		{"  <br/>\n\t spaced   out ", "spaced out"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripHTML(tt.in), "StripHTML(%q)", tt.in)
	}
}

func TestExcerpt(t *testing.T) {
	assert.Equal(t, "short", Excerpt("<p>short</p>"))

	long := "<p>" + strings.Repeat("ü", 400) + "</p>"
	got := Excerpt(long)
	assert.Equal(t, ExcerptLength, utf8.RuneCountInString(got))
	assert.NotContains(t, got, "<")
}

func TestReadingMinutes(t *testing.T) {
	assert.Equal(t, 1, ReadingMinutes(""))
	assert.Equal(t, 1, ReadingMinutes("<p>a few words</p>"))
	assert.Equal(t, 1, ReadingMinutes(strings.Repeat("word ", 200)))
	assert.Equal(t, 2, ReadingMinutes(strings.Repeat("word ", 201)))
	assert.Equal(t, 5, ReadingMinutes("<div>"+strings.Repeat("<b>word</b> ", 1000)+"</div>"))
}
