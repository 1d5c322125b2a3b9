// Package scoring computes a deterministic visibility score from AI response text.
package scoring

import (
	"regexp"
	"strings"
)

// ScoreCeiling is the highest visibility any weights can produce.
const ScoreCeiling = 99

// Weights holds the point values and thresholds applied by the engine.
type Weights struct {
	FoundThreshold int `mapstructure:"found_threshold"`
	MaxScore       int `mapstructure:"max_score"`

	NameMentionsHigh    int `mapstructure:"name_mentions_high"`
	NameMentionsLow     int `mapstructure:"name_mentions_low"`
	NameMentionsHighMin int `mapstructure:"name_mentions_high_min"`

	DomainMention int `mapstructure:"domain_mention"`

	FactualClaim    int `mapstructure:"factual_claim"`
	FactualClaimMax int `mapstructure:"factual_claim_max"`

	DetailSignal    int `mapstructure:"detail_signal"`
	DetailSignalMax int `mapstructure:"detail_signal_max"`

	LengthLong        int `mapstructure:"length_long"`
	LengthMedium      int `mapstructure:"length_medium"`
	LengthShort       int `mapstructure:"length_short"`
	LengthLongWords   int `mapstructure:"length_long_words"`
	LengthMediumWords int `mapstructure:"length_medium_words"`
	LengthShortWords  int `mapstructure:"length_short_words"`
}

// DefaultWeights returns the tuned production weights.
func DefaultWeights() Weights {
	return Weights{
		FoundThreshold:      20,
		MaxScore:            ScoreCeiling,
		NameMentionsHigh:    15,
		NameMentionsLow:     8,
		NameMentionsHighMin: 3,
		DomainMention:       10,
		FactualClaim:        10,
		FactualClaimMax:     4,
		DetailSignal:        8,
		DetailSignalMax:     3,
		LengthLong:          10,
		LengthMedium:        7,
		LengthShort:         3,
		LengthLongWords:     150,
		LengthMediumWords:   80,
		LengthShortWords:    30,
	}
}

// Score is the outcome for one response.
type Score struct {
	Visibility int  `json:"visibility"`
	Found      bool `json:"found"`
}

// Engine applies Weights to response text. The zero value uses DefaultWeights.
type Engine struct {
	Weights *Weights
}

// New returns an engine with the given weights.
func New(weights Weights) *Engine {
	return &Engine{Weights: &weights}
}

// Score rates how much specific knowledge a response shows about a business.
// visibilityText is the Visibility section (or the whole response when the section
// is missing); fullText is the entire response.
func (e *Engine) Score(visibilityText, fullText, businessName, domain string) Score {
	w := e.weights()

	lowerVisibility := strings.ToLower(visibilityText)
	if HasNoKnowledgePhrase(lowerVisibility) {
		return Score{Visibility: 0, Found: false}
	}

	lowerFull := strings.ToLower(fullText)
	total := 0

	if mentions := countMentions(lowerFull, strings.ToLower(strings.TrimSpace(businessName))); mentions >= w.NameMentionsHighMin {
		total += w.NameMentionsHigh
	} else if mentions > 0 {
		total += w.NameMentionsLow
	}

	if d := strings.ToLower(strings.TrimSpace(domain)); d != "" && strings.Contains(lowerFull, d) {
		total += w.DomainMention
	}

	total += w.FactualClaim * countMatches(FactualPatterns, visibilityText, w.FactualClaimMax)
	total += w.DetailSignal * countMatches(DetailPatterns, visibilityText, w.DetailSignalMax)

	words := len(strings.Fields(visibilityText))
	switch {
	case words > w.LengthLongWords:
		total += w.LengthLong
	case words > w.LengthMediumWords:
		total += w.LengthMedium
	case words > w.LengthShortWords:
		total += w.LengthShort
	}

	total = clamp(total, 0, w.MaxScore)
	return Score{Visibility: total, Found: total >= w.FoundThreshold}
}

// HasNoKnowledgePhrase reports whether text contains a knowledge-denial phrase.
func HasNoKnowledgePhrase(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range NoKnowledgePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// ScoreText scores with DefaultWeights.
func ScoreText(visibilityText, fullText, businessName, domain string) Score {
	return (&Engine{}).Score(visibilityText, fullText, businessName, domain)
}

func (e *Engine) weights() Weights {
	if e == nil || e.Weights == nil {
		return DefaultWeights()
	}
	w := *e.Weights
	w.MaxScore = clamp(w.MaxScore, 0, ScoreCeiling)
	return w
}

func countMentions(text, name string) int {
	if name == "" {
		return 0
	}
	return strings.Count(text, name)
}

func countMatches(patterns []*regexp.Regexp, text string, limit int) int {
	count := 0
	for _, pattern := range patterns {
		if count >= limit {
			break
		}
		if pattern.MatchString(text) {
			count++
		}
	}
	return count
}

func clamp(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}
