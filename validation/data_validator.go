// Package validation checks user input and reports integrity issues in catalog snapshots.
package validation

import (
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
)

const (
	maxInputRunes   = 100
	maxInputWords   = 8
	maxRepeatedRune = 10
	maxReportItems  = 10
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Hangul, Latin, digits and the punctuation found on medicine labels
	inputRegex = regexp.MustCompile(`^[\p{Hangul}a-zA-Z0-9\s\-\.\+'(),/%·μ]+$`)

	codeRegex   = regexp.MustCompile(`^[A-Z][A-Z0-9_]{1,63}$`)
	userIDRegex = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "eval(", "expression(", "@import",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:",
	}
)

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

// ValidateInput validates search queries and ingredient names typed by users
func (v *DataValidatorImpl) ValidateInput(input string) error {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if utf8.RuneCountInString(trimmed) > maxInputRunes {
		return fmt.Errorf("input too long: maximum %d characters", maxInputRunes)
	}

	// Word count validation to prevent DoS attacks with many short words
	if len(strings.Fields(trimmed)) > maxInputWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", maxInputWords)
	}

	lowerInput := strings.ToLower(trimmed)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(trimmed) {
		return fmt.Errorf("input contains invalid characters. Only Hangul, Latin letters, numbers, spaces and label punctuation are allowed")
	}

	if !strings.ContainsFunc(trimmed, func(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }) {
		return fmt.Errorf("input must contain at least one letter or digit")
	}

	if hasExcessiveRepetition(trimmed) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateCode upper-cases and checks a standard ingredient code
func (v *DataValidatorImpl) ValidateCode(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("code cannot be empty")
	}

	upper := strings.ToUpper(trimmed)
	if !codeRegex.MatchString(upper) {
		return "", fmt.Errorf("invalid ingredient code %q: expected letters, digits and underscores starting with a letter", code)
	}
	return upper, nil
}

// ValidateUserID checks a user ID taken from the URL path
func (v *DataValidatorImpl) ValidateUserID(id string) error {
	if !userIDRegex.MatchString(id) {
		return fmt.Errorf("invalid user id: 1-64 letters, digits, '-' or '_'")
	}
	return nil
}

// ValidateProfile accepts an empty age band or one of entities.AgeBands
func (v *DataValidatorImpl) ValidateProfile(profile *entities.UserHealthProfile) error {
	if profile == nil {
		return fmt.Errorf("profile is nil")
	}
	if profile.AgeBand != "" && !slices.Contains(entities.AgeBands, profile.AgeBand) {
		return fmt.Errorf("invalid age band %q: expected one of %s", profile.AgeBand, strings.Join(entities.AgeBands, ", "))
	}
	return nil
}

// ReportCatalogQuality lists integrity issues of a snapshot. It never rejects the snapshot.
func (v *DataValidatorImpl) ReportCatalogQuality(snapshot *entities.CatalogSnapshot) *entities.CatalogQualityReport {
	report := &entities.CatalogQualityReport{
		DuplicateCodes:          []string{},
		DuplicateAliases:        []string{},
		SharedAliases:           []string{},
		OverdoseWithoutMaxDose:  []string{},
		IngredientsWithoutAlias: []string{},
	}
	if snapshot == nil {
		return report
	}

	// Check 1: duplicate codes
	byCode := make(map[string]entities.StandardIngredient, len(snapshot.Ingredients))
	for _, ing := range snapshot.Ingredients {
		if _, dup := byCode[ing.Code]; dup {
			report.DuplicateCodes = append(report.DuplicateCodes, ing.Code)
			continue
		}
		byCode[ing.Code] = ing
	}

	// Check 2 and 3: duplicate (alias, code) pairs and alias names shared across ingredients
	pairs := make(map[string]bool, len(snapshot.Aliases))
	owners := make(map[string]string, len(snapshot.Aliases))
	shared := make(map[string]bool)
	withAlias := make(map[string]bool, len(snapshot.Ingredients))
	for _, alias := range snapshot.Aliases {
		name := strings.ToLower(alias.AliasName)
		withAlias[alias.IngredientCode] = true

		pair := alias.AliasName + "|" + alias.IngredientCode
		if pairs[pair] {
			report.DuplicateAliases = appendLimited(report.DuplicateAliases, pair)
		}
		pairs[pair] = true

		if owner, ok := owners[name]; ok && owner != alias.IngredientCode && !shared[name] {
			shared[name] = true
			report.SharedAliases = appendLimited(report.SharedAliases, alias.AliasName)
		}
		if _, ok := owners[name]; !ok {
			owners[name] = alias.IngredientCode
		}
	}

	// Check 4: ingredients nobody can type
	for _, ing := range snapshot.Ingredients {
		if !withAlias[ing.Code] {
			report.IngredientsWithoutAlias = appendLimited(report.IngredientsWithoutAlias, ing.Code)
		}
	}

	// Check 5: rules
	for _, rule := range snapshot.Rules {
		if !rule.IsActive {
			report.InactiveRules++
		}

		_, triggerKnown := byCode[rule.Trigger.Code]
		targetKnown := true
		if rule.Target != nil {
			_, targetKnown = byCode[rule.Target.Code]
		}
		if !triggerKnown || !targetKnown {
			report.RulesWithUnknownCodes++
			continue
		}

		if rule.Category == entities.CategoryOverdose && byCode[rule.Trigger.Code].MaxDailyDose == nil {
			report.OverdoseWithoutMaxDose = appendLimited(report.OverdoseWithoutMaxDose, rule.Trigger.Code)
		}
	}

	return report
}

// LogCatalogQuality writes a report at Warn level when it holds issues
func LogCatalogQuality(report *entities.CatalogQualityReport) {
	if report == nil {
		return
	}

	if !HasIssues(report) {
		logging.Info("Catalog quality check passed", "inactive_rules", report.InactiveRules)
		return
	}

	logging.Warn("Catalog quality issues detected",
		"duplicate_codes", report.DuplicateCodes,
		"duplicate_aliases", report.DuplicateAliases,
		"shared_aliases", report.SharedAliases,
		"rules_with_unknown_codes", report.RulesWithUnknownCodes,
		"overdose_without_max_dose", report.OverdoseWithoutMaxDose,
		"ingredients_without_alias", report.IngredientsWithoutAlias,
		"inactive_rules", report.InactiveRules,
	)
}

// HasIssues reports whether anything other than inactive rules was found.
// Shared aliases are expected (brand names reused across generics) and not counted.
func HasIssues(report *entities.CatalogQualityReport) bool {
	return len(report.DuplicateCodes) > 0 ||
		len(report.DuplicateAliases) > 0 ||
		report.RulesWithUnknownCodes > 0 ||
		len(report.OverdoseWithoutMaxDose) > 0 ||
		len(report.IngredientsWithoutAlias) > 0
}

func appendLimited(list []string, item string) []string {
	if len(list) >= maxReportItems {
		return list
	}
	return append(list, item)
}

// hasExcessiveRepetition checks for the same rune repeated more than maxRepeatedRune times
func hasExcessiveRepetition(input string) bool {
	var prev rune
	run := 0
	for _, r := range input {
		if r == prev {
			run++
			if run > maxRepeatedRune {
				return true
			}
			continue
		}
		prev = r
		run = 1
	}
	return false
}
