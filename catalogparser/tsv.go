package catalogparser

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/logging"
	"github.com/google/uuid"
)

// ruleNamespace scopes the name-based UUIDs of catalog rules
var ruleNamespace = uuid.MustParse("5b7f7a52-3c1e-4c8e-9d7a-2f1e6c0b9a41")

// RuleID derives a stable rule ID from its category and ingredient pair
func RuleID(category entities.RuleCategory, trigger, target string) string {
	return uuid.NewSHA1(ruleNamespace, []byte(string(category)+"|"+trigger+"|"+target)).String()
}

type skipStats struct {
	file           string
	lines          int
	emptyLines     int
	missingColumns int
	formatErrors   int
	unknownCodes   int
	duplicates     int
	records        int
}

func (s *skipStats) log() {
	if s.emptyLines == 0 && s.missingColumns == 0 && s.formatErrors == 0 && s.unknownCodes == 0 && s.duplicates == 0 {
		return
	}
	logging.Info(s.file+" skip statistics",
		"empty_lines", s.emptyLines,
		"missing_columns", s.missingColumns,
		"format_errors", s.formatErrors,
		"unknown_codes", s.unknownCodes,
		"duplicates", s.duplicates,
		"total_lines", s.lines,
		"records_parsed", s.records)
}

// eachRow calls fn with the tab-separated fields of every data row. The first
// non-empty line is a header when its first column equals headerKey.
func eachRow(content []byte, headerKey string, stats *skipStats, fn func(fields []string)) error {
	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	headerChecked := false
	for scanner.Scan() {
		stats.lines++
		line := strings.TrimRight(scanner.Text(), "\r")

		if strings.TrimSpace(line) == "" {
			stats.emptyLines++
			continue
		}

		fields := strings.Split(line, "\t")
		if !headerChecked {
			headerChecked = true
			if strings.TrimSpace(fields[0]) == headerKey {
				continue
			}
		}

		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		fn(fields)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error in %s: %w", stats.file, err)
	}
	return nil
}

func parseIngredients(content []byte) ([]entities.StandardIngredient, error) {
	stats := &skipStats{file: ingredientsFile}
	var out []entities.StandardIngredient
	seen := make(map[string]struct{})

	err := eachRow(content, "code", stats, func(f []string) {
		if len(f) < 7 {
			stats.missingColumns++
			return
		}
		if f[0] == "" || f[1] == "" {
			stats.formatErrors++
			return
		}
		if _, dup := seen[f[0]]; dup {
			stats.duplicates++
			return
		}

		ing := entities.StandardIngredient{
			ID:               int64(len(out) + 1),
			Code:             f[0],
			NameKo:           f[1],
			NameEn:           f[2],
			Category:         f[3],
			TherapeuticGroup: f[4],
			MaxDailyUnit:     f[6],
		}
		if f[5] != "" {
			dose, err := strconv.ParseFloat(f[5], 64)
			if err != nil {
				stats.formatErrors++
				return
			}
			ing.MaxDailyDose = &dose
		}
		if len(f) > 7 {
			ing.Description = f[7]
		}

		seen[ing.Code] = struct{}{}
		out = append(out, ing)
	})
	stats.records = len(out)
	stats.log()

	return out, err
}

func parseAliases(content []byte, byCode map[string]entities.StandardIngredient) ([]entities.IngredientAlias, error) {
	stats := &skipStats{file: aliasesFile}
	var out []entities.IngredientAlias

	err := eachRow(content, "code", stats, func(f []string) {
		if len(f) < 4 {
			stats.missingColumns++
			return
		}
		ing, ok := byCode[f[0]]
		if !ok {
			stats.unknownCodes++
			return
		}
		priority, err := strconv.Atoi(f[3])
		if err != nil || f[1] == "" {
			stats.formatErrors++
			return
		}

		out = append(out, entities.IngredientAlias{
			ID:             int64(len(out) + 1),
			IngredientID:   ing.ID,
			IngredientCode: ing.Code,
			AliasName:      f[1],
			AliasType:      f[2],
			Priority:       priority,
		})
	})
	stats.records = len(out)
	stats.log()

	return out, err
}

func parseWeight(s string) (float64, error) {
	if s == "" {
		return 1.0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseRules(content []byte, byCode map[string]entities.StandardIngredient) ([]entities.InteractionRule, error) {
	stats := &skipStats{file: rulesFile}
	var out []entities.InteractionRule

	err := eachRow(content, "category", stats, func(f []string) {
		if len(f) < 12 {
			stats.missingColumns++
			return
		}

		category, err := entities.ParseRuleCategory(f[0])
		if err != nil {
			stats.formatErrors++
			return
		}
		baseRisk, err := entities.ParseRiskLevel(f[3])
		if err != nil {
			stats.formatErrors++
			return
		}

		trigger, ok := byCode[f[1]]
		if !ok {
			stats.unknownCodes++
			return
		}
		var target *entities.StandardIngredient
		if f[2] != "" {
			t, ok := byCode[f[2]]
			if !ok {
				stats.unknownCodes++
				return
			}
			target = &t
		}
		if target == nil && category != entities.CategoryOverdose {
			stats.formatErrors++
			return
		}

		var weights [5]float64
		for i := range weights {
			if weights[i], err = parseWeight(f[4+i]); err != nil {
				stats.formatErrors++
				return
			}
		}

		rule := entities.InteractionRule{
			ID:       RuleID(category, f[1], f[2]),
			Category: category,
			Trigger:  trigger,
			Target:   target,
			BaseRisk: baseRisk,
			Weights: entities.RiskWeights{
				Liver:     weights[0],
				Kidney:    weights[1],
				Bleeding:  weights[2],
				Pregnancy: weights[3],
				Elderly:   weights[4],
			},
			Conclusion: f[9],
			Reason:     f[10],
			Action:     f[11],
			IsActive:   true,
		}
		if len(f) > 12 {
			rule.EvidenceURL = f[12]
		}
		if len(f) > 13 && f[13] != "" {
			if active, err := strconv.ParseBool(f[13]); err == nil {
				rule.IsActive = active
			}
		}

		out = append(out, rule)
	})
	stats.records = len(out)
	stats.log()

	return out, err
}
