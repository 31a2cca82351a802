// Package normalizer cleans OCR or typed label text and derives the strings used
// for ingredient matching: normalized text, matching keys, dosages and name candidates.
package normalizer

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	bracketReplacer = strings.NewReplacer(
		"【", "[", "】", "]",
		"〔", "(", "〕", ")",
	)

	// A number in front of a unit, where OCR may have read 0 as O and 1 as l or I.
	// The run must start with a real digit.
	ocrDosageRun = regexp.MustCompile(`(\d[\d.oOlI]*)(\s*(?i:mg|mcg|µg|μg|ml|iu|cc|g))`)
	ocrDigits    = strings.NewReplacer("o", "0", "O", "0", "l", "1", "I", "1")

	whitespaceRun = regexp.MustCompile(`\s+`)
	blankRun      = regexp.MustCompile(`[^\S\n]+`)
	lineBreaks    = regexp.MustCompile(`\s*\n\s*`)

	matchingKeyNoise = regexp.MustCompile(`[\s\-_·•()\[\]{}]+`)
)

// Normalize returns the display-safe form of raw text: NFKC folded, brackets mapped to
// ASCII, dosage OCR confusions fixed, newlines and whitespace runs collapsed to one space.
func Normalize(text string) string {
	s := whitespaceRun.ReplaceAllString(fold(text), " ")
	return strings.TrimSpace(s)
}

// NormalizeLines is Normalize without joining lines: each line is cleaned the same way and
// blank lines are dropped. Candidate extraction splits segments on the line breaks kept here.
func NormalizeLines(text string) string {
	s := strings.ReplaceAll(fold(text), "\r", "\n")
	s = blankRun.ReplaceAllString(s, " ")
	s = lineBreaks.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

func fold(text string) string {
	s := norm.NFKC.String(text)
	s = bracketReplacer.Replace(s)
	return fixDosageDigits(s)
}

// fixDosageDigits rewrites O, l and I to digits inside the number of a dosage
func fixDosageDigits(s string) string {
	return ocrDosageRun.ReplaceAllStringFunc(s, func(match string) string {
		parts := ocrDosageRun.FindStringSubmatch(match)
		return ocrDigits.Replace(parts[1]) + parts[2]
	})
}

// MatchingKey lower-cases text and strips whitespace, hyphens, underscores, middle dots
// and brackets. Only used for similarity comparison, never for display.
func MatchingKey(text string) string {
	return matchingKeyNoise.ReplaceAllString(strings.ToLower(text), "")
}
