package report

import (
	"math"
	"regexp"
	"strconv"
)

// Sentiment bounds.
const (
	MinSentiment = -5
	MaxSentiment = 5
)

// sentimentPatterns are tried in order. A labelled score always beats a
// bare "n/5".
var sentimentPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:sentiment(?:\s+score)?|情绪评分|情绪分)\s*[:：]?\s*\**\s*([+-]?\d+(?:\.\d+)?)`),
	regexp.MustCompile(`(?:^|[^\d/.])([+-]?\d+(?:\.\d+)?)\s*/\s*5(?:[^\d./]|$)`),
}

// ExtractSentiment returns the first match of the highest-priority pattern
// found in text, rounded and clamped to [MinSentiment, MaxSentiment], or nil
// when there is none.
func ExtractSentiment(text string) *int {
	var value string
	for _, re := range sentimentPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			value = m[1]
			break
		}
	}
	if value == "" {
		return nil
	}

	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil
	}
	n := int(math.Round(f))
	if n < MinSentiment {
		n = MinSentiment
	}
	if n > MaxSentiment {
		n = MaxSentiment
	}
	return &n
}
