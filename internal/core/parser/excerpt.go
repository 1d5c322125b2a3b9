package parser

import (
	"regexp"
	"strings"
)

// DefaultExcerptLength is the maximum excerpt length in runes, before the ellipsis.
const DefaultExcerptLength = 300

var (
	markdownLink = regexp.MustCompile(`\[([^\]]+)\]\([^)]*\)`)
	citationRef  = regexp.MustCompile(`\[\d+\]`)
	atxMarker    = regexp.MustCompile(`(?m)^[ \t]*#{1,6}[ \t]*`)
	underscoreEm = regexp.MustCompile(`(^|[^\w])_{1,2}([^_\n]+?)_{1,2}([^\w]|$)`)
	emphasis     = strings.NewReplacer("***", "", "**", "", "*", "")
)

// StripMarkdown removes links, citation markers, emphasis and header markers,
// then collapses whitespace.
func StripMarkdown(text string) string {
	s := markdownLink.ReplaceAllString(text, "$1")
	s = citationRef.ReplaceAllString(s, "")
	s = atxMarker.ReplaceAllString(s, "")
	s = emphasis.Replace(s)
	s = underscoreEm.ReplaceAllString(s, "$1$2$3")
	return strings.Join(strings.Fields(s), " ")
}

// BuildExcerpt produces a plain-text summary of at most maxLen runes plus "...".
// Truncation prefers the last space at or beyond half of maxLen.
func BuildExcerpt(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultExcerptLength
	}

	plain := StripMarkdown(text)
	runes := []rune(plain)
	if len(runes) <= maxLen {
		return plain
	}

	cut := string(runes[:maxLen])
	if idx := strings.LastIndex(cut, " "); idx >= 0 && len([]rune(cut[:idx])) >= maxLen/2 {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " ") + "..."
}
