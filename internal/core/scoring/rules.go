package scoring

import (
	"regexp"
	"strings"
)

// NoKnowledgePhrases force a zero score when any appears in the visibility text.
// Matching is a lowercase substring test.
var NoKnowledgePhrases = []string{
	"i have no specific knowledge",
	"i don't have specific information",
	"i do not have specific information",
	"i don't have any information",
	"i do not have any information",
	"i couldn't find any",
	"i could not find any",
	"i cannot find any",
	"unable to find information",
	"i'm not familiar with",
	"i am not familiar with",
	"no information available",
	"not aware of any business",
}

// FactualPatterns detect concrete claims about what the business is or does.
var FactualPatterns = []*regexp.Regexp{
	// service offering
	regexp.MustCompile(`(?i)\b(offers?|provides?|specializ(?:es|ing)|known for|services include)\b`),
	// founding
	regexp.MustCompile(`(?i)\b(founded|established|opened in|started in|in business since)\b`),
	// location or service area
	regexp.MustCompile(`(?i)\b(located in|based in|headquartered|serves|serving|service area)\b`),
	// team
	regexp.MustCompile(`(?i)\b(team|staff|employees|owner|technicians|attorneys|stylists)\b`),
	// reputation
	regexp.MustCompile(`(?i)\b(reviews?|rated|ratings?|reputation|award-winning|awards?|testimonials?)\b`),
}

// Cities is the fixed list of named cities that count as a specificity signal.
var Cities = []string{
	"new york", "los angeles", "chicago", "houston", "phoenix", "philadelphia",
	"san antonio", "san diego", "dallas", "austin", "jacksonville", "san jose",
	"fort worth", "columbus", "charlotte", "indianapolis", "san francisco",
	"seattle", "denver", "nashville", "oklahoma city", "boston", "el paso",
	"portland", "las vegas", "detroit", "memphis", "louisville", "baltimore",
	"milwaukee", "albuquerque", "tucson", "fresno", "sacramento", "kansas city",
	"atlanta", "miami", "raleigh", "omaha", "minneapolis", "tampa", "orlando",
	"cleveland", "pittsburgh", "cincinnati", "st. louis", "salt lake city",
	"london", "toronto", "vancouver", "sydney", "melbourne",
}

// DetailPatterns detect specific, checkable details.
var DetailPatterns = []*regexp.Regexp{
	// four digit year
	regexp.MustCompile(`\b(19|20)\d{2}\b`),
	// counted facts
	regexp.MustCompile(`(?i)\b\d[\d,]*\+?\s+(years|employees|locations|clients|projects)\b`),
	// review and social platforms
	regexp.MustCompile(`(?i)\b(google|yelp|facebook|instagram|linkedin|tripadvisor|trustpilot|bbb|better business bureau|angi|angie's list|houzz|nextdoor)\b`),
	cityPattern(Cities),
}

func cityPattern(cities []string) *regexp.Regexp {
	quoted := make([]string, 0, len(cities))
	for _, city := range cities {
		quoted = append(quoted, regexp.QuoteMeta(city))
	}
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\b`)
}
