package analyze

import (
	"regexp"
	"strings"
)

// Best-effort text signals carried into topic metrics. These are blunt
// pattern matches, not sentiment analysis.
var frustrationPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bdoesn'?t work\b`),
	regexp.MustCompile(`\bstill (confused|stuck|don'?t understand|having trouble)\b`),
	regexp.MustCompile(`\bnot working\b`),
	regexp.MustCompile(`\bisn'?t working\b`),
	regexp.MustCompile(`\bdidn'?t work\b`),
	regexp.MustCompile(`\bfailed\b`),
	regexp.MustCompile(`\berror\b`),
	regexp.MustCompile(`\bwrong\b`),
	regexp.MustCompile(`\bwhy (won'?t|doesn'?t|isn'?t)\b`),
	regexp.MustCompile(`\bkeep(s)? (getting|failing)\b`),
	regexp.MustCompile(`\bcan'?t (figure|get|make)\b`),
}

var resolutionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\bthank(s| you)\b`),
	regexp.MustCompile(`\bgot it\b`),
	regexp.MustCompile(`\bperfect\b`),
	regexp.MustCompile(`\bworks?\b`),
	regexp.MustCompile(`\bworked\b`),
	regexp.MustCompile(`\bsolved\b`),
	regexp.MustCompile(`\bfixed\b`),
	regexp.MustCompile(`\bmakes sense\b`),
	regexp.MustCompile(`\bunderstood\b`),
	regexp.MustCompile(`\bappreciate\b`),
}

func hasFrustrationSignal(text string) bool {
	return matchAny(frustrationPatterns, text)
}

func hasResolutionSignal(text string) bool {
	return matchAny(resolutionPatterns, text)
}

func matchAny(patterns []*regexp.Regexp, text string) bool {
	if text == "" {
		return false
	}
	text = strings.ToLower(text)
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
