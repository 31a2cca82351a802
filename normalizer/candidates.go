package normalizer

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	minSegmentRunes = 2
	maxSegmentRunes = 30
)

var (
	// "주성분: ...", "원료 ...", "유효성분: ..."
	labeledFieldPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:주?\s*성\s*분|원료|유효성분)\s*[:：]\s*([^,\n]+)`),
		regexp.MustCompile(`(?i)(?:주?\s*성\s*분|원료|유효성분)\s*([가-힣a-zA-Z]+)`),
	}

	// "아세트아미노펜 500mg"
	dosageAdjacentPattern = regexp.MustCompile(`(?i)([가-힣a-zA-Z]+(?:[ \t]*[가-힣a-zA-Z]+)*)[ \t]*\d+(?:\.\d+)?[ \t]*(?:mg|g|mcg|iu)`)

	// "타이레놀(아세트아미노펜)"
	parenthesizedPattern = regexp.MustCompile(`\(([가-힣a-zA-Z\s]+)\)`)

	segmentSeparator = regexp.MustCompile(`[\n,]`)
	digitsOnly       = regexp.MustCompile(`^\d+$`)
)

// ExtractCandidates returns the ingredient name candidates found in text cleaned by
// NormalizeLines.
// Labeled fields come first, then dosage-adjacent names, parenthesized names and
// finally comma or newline separated segments. Exact duplicates are dropped.
func ExtractCandidates(text string) []string {
	var found []string

	for _, pattern := range labeledFieldPatterns {
		found = appendSubmatches(found, pattern, text)
	}
	found = appendSubmatches(found, dosageAdjacentPattern, text)
	found = appendSubmatches(found, parenthesizedPattern, text)

	for _, segment := range segmentSeparator.Split(text, -1) {
		segment = strings.TrimSpace(segment)
		n := utf8.RuneCountInString(segment)
		if n < minSegmentRunes || n > maxSegmentRunes || digitsOnly.MatchString(segment) {
			continue
		}
		found = append(found, segment)
	}

	return uniqueOrdered(found)
}

func appendSubmatches(dst []string, pattern *regexp.Regexp, text string) []string {
	for _, match := range pattern.FindAllStringSubmatch(text, -1) {
		dst = append(dst, strings.TrimSpace(match[1]))
	}
	return dst
}

func uniqueOrdered(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
