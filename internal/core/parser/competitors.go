package parser

import (
	"regexp"
	"strings"
)

// MaxCompetitors caps the list returned by ParseCompetitors.
const MaxCompetitors = 5

const minCompetitorLength = 2

var (
	listItem          = regexp.MustCompile(`^[ \t]*(?:[-*]|\d+[.)])[ \t]+(.+)$`)
	trailingDash      = regexp.MustCompile(`\s+[-–—]\s+.*$`)
	trailingColon     = regexp.MustCompile(`:\s.*$`)
	trailingParens    = regexp.MustCompile(`\s*\([^)]*\)\s*$`)
	competitorTrimSet = " \t.,;:*_\"'`"
)

// ParseCompetitors extracts competitor names from list items in text. Names
// that contain or are contained in the business name are dropped, as are
// names containing the domain, duplicates are removed case-insensitively, and at most
// MaxCompetitors names are returned in order of appearance.
func ParseCompetitors(text, businessName, domain string) []string {
	name := strings.ToLower(strings.TrimSpace(businessName))
	host := strings.ToLower(strings.TrimSpace(domain))

	competitors := make([]string, 0, MaxCompetitors)
	seen := make(map[string]struct{})

	for _, line := range strings.Split(text, "\n") {
		if len(competitors) >= MaxCompetitors {
			break
		}
		match := listItem.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if match == nil {
			continue
		}

		candidate := cleanCompetitor(match[1])
		if len([]rune(candidate)) < minCompetitorLength {
			continue
		}

		lower := strings.ToLower(candidate)
		if overlaps(lower, name) || (host != "" && strings.Contains(lower, host)) {
			continue
		}
		if _, dup := seen[lower]; dup {
			continue
		}
		seen[lower] = struct{}{}
		competitors = append(competitors, candidate)
	}
	return competitors
}

func cleanCompetitor(raw string) string {
	s := markdownLink.ReplaceAllString(raw, "$1")
	s = citationRef.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "**", "")
	s = strings.ReplaceAll(s, "__", "")
	s = trailingDash.ReplaceAllString(s, "")
	s = trailingColon.ReplaceAllString(s, "")
	s = trailingParens.ReplaceAllString(s, "")
	return strings.Trim(strings.TrimSpace(s), competitorTrimSet)
}

func overlaps(candidate, target string) bool {
	if target == "" {
		return false
	}
	return strings.Contains(candidate, target) || strings.Contains(target, candidate)
}
