package matcher

import (
	"strings"
	"unicode/utf8"
)

// Similarity scores two matching keys in [0,1]. Equal keys score 1, containment scores
// 0.7 plus a length-ratio bonus, anything else scores the share of distinct runes in common.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0.0
	}

	if strings.Contains(a, b) || strings.Contains(b, a) {
		la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
		return 0.7 + 0.3*float64(min(la, lb))/float64(max(la, lb))
	}

	setA, setB := runeSet(a), runeSet(b)
	common := 0
	for r := range setA {
		if _, ok := setB[r]; ok {
			common++
		}
	}

	return float64(common) / float64(max(len(setA), len(setB)))
}

func runeSet(s string) map[rune]struct{} {
	set := make(map[rune]struct{}, len(s))
	for _, r := range s {
		set[r] = struct{}{}
	}
	return set
}
