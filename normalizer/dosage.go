package normalizer

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/giygas/medcheck-api/catalogparser/entities"
)

// Tried in order, first match wins
var dosagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mg|g|mcg|µg|μg|iu|ml|cc)`),
	regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(밀리그램|그램|마이크로그램)`),
}

var unitSynonyms = map[string]string{
	"밀리그램":   "mg",
	"그램":     "g",
	"마이크로그램": "mcg",
	"µg":     "mcg",
	"μg":     "mcg",
	"iu":     "IU",
}

// CanonicalUnit maps a unit token to its canonical spelling
func CanonicalUnit(unit string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if canonical, ok := unitSynonyms[u]; ok {
		return canonical
	}
	return u
}

// ExtractDosage returns the first amount+unit found in text
func ExtractDosage(text string) (entities.Dosage, bool) {
	for _, pattern := range dosagePatterns {
		match := pattern.FindStringSubmatch(text)
		if match == nil {
			continue
		}

		amount, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}

		return entities.Dosage{Amount: amount, Unit: CanonicalUnit(match[2])}, true
	}

	return entities.Dosage{}, false
}
