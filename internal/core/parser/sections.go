// Package parser extracts structure from semi-structured markdown answers.
package parser

import (
	"regexp"
	"strings"
)

// Section names requested from every platform.
const (
	SectionVisibility  = "Visibility"
	SectionCompetitors = "Competitors"
	SectionActionPlan  = "Action Plan"
)

// KnownSections bound each captured section.
var KnownSections = []string{SectionVisibility, SectionCompetitors, SectionActionPlan}

// Sections holds the three logical parts of an answer.
type Sections struct {
	Visibility  string
	Competitors string
	ActionPlan  string
}

var (
	sectionPatterns  = map[string][]*regexp.Regexp{}
	sectionBoundary  *regexp.Regexp
	knownSectionExpr string
)

func init() {
	alternatives := make([]string, 0, len(KnownSections))
	for _, name := range KnownSections {
		alternatives = append(alternatives, nameExpr(name))
		sectionPatterns[strings.ToLower(name)] = compileHeaderPatterns(name)
	}
	knownSectionExpr = "(?:" + strings.Join(alternatives, "|") + ")"
	sectionBoundary = regexp.MustCompile(
		`(?im)` +
			boldHeaderExpr(knownSectionExpr) + `|` +
			atxHeaderExpr(knownSectionExpr) + `|` +
			plainHeaderExpr(knownSectionExpr),
	)
}

// ExtractSection returns the trimmed body of the named section. It tries a bold
// "**Name:**" header, then a "## Name" header, then a plain "Name:" label, and
// returns the first non-empty capture. The capture runs to the next known
// section header or the end of text. It returns "" when nothing matches.
func ExtractSection(text, name string) string {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(text) == "" {
		return ""
	}

	patterns, ok := sectionPatterns[strings.ToLower(name)]
	if !ok {
		patterns = compileHeaderPatterns(name)
	}

	for _, pattern := range patterns {
		loc := pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		rest := text[loc[1]:]
		if end := sectionBoundary.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		if captured := strings.TrimSpace(rest); captured != "" {
			return captured
		}
	}
	return ""
}

// VisibilityText returns the Visibility section, or the whole text when the
// answer ignored the requested layout.
func VisibilityText(text string) string {
	if section := ExtractSection(text, SectionVisibility); section != "" {
		return section
	}
	return text
}

// Split extracts all known sections. Visibility falls back to the whole text.
func Split(text string) Sections {
	return Sections{
		Visibility:  VisibilityText(text),
		Competitors: ExtractSection(text, SectionCompetitors),
		ActionPlan:  ExtractSection(text, SectionActionPlan),
	}
}

func compileHeaderPatterns(name string) []*regexp.Regexp {
	expr := nameExpr(name)
	return []*regexp.Regexp{
		regexp.MustCompile(`(?i)` + boldHeaderExpr(expr)),
		regexp.MustCompile(`(?im)` + atxHeaderExpr(expr)),
		regexp.MustCompile(`(?im)` + plainHeaderExpr(expr)),
	}
}

// nameExpr quotes name and lets any run of whitespace separate its words.
func nameExpr(name string) string {
	words := strings.Fields(name)
	for i, word := range words {
		words[i] = regexp.QuoteMeta(word)
	}
	return strings.Join(words, `\s+`)
}

func boldHeaderExpr(name string) string {
	return `\*\*[ \t]*` + name + `\b[ \t]*:?[ \t]*\*\*[ \t]*:?`
}

func atxHeaderExpr(name string) string {
	return `^[ \t]*#{1,6}[ \t]*(?:\*\*)?[ \t]*` + name + `\b[ \t]*:?[ \t]*(?:\*\*)?[ \t]*:?`
}

func plainHeaderExpr(name string) string {
	return `^[ \t]*` + name + `\b[ \t]*:`
}
