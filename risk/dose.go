package risk

import (
	"strconv"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/normalizer"
)

// mass units in micrograms
var massInMcg = map[string]float64{
	"g":   1_000_000,
	"mg":  1_000,
	"mcg": 1,
}

var volumeUnits = map[string]string{
	"ml": "ml",
	"cc": "ml",
}

// DoseTotalRuleID is the ID of a daily-dose total finding
func DoseTotalRuleID(code string) string {
	return "dose_total_" + code
}

// convertDose expresses amount in the unit of a daily limit. IU and volumes only compare
// with themselves.
func convertDose(amount float64, from, to string) (float64, bool) {
	from, to = normalizer.CanonicalUnit(from), normalizer.CanonicalUnit(to)
	if v, ok := volumeUnits[from]; ok {
		from = v
	}
	if v, ok := volumeUnits[to]; ok {
		to = v
	}

	if from == to && from != "" {
		return amount, true
	}

	f, okFrom := massInMcg[from]
	t, okTo := massInMcg[to]
	if !okFrom || !okTo {
		return 0, false
	}
	return amount * f / t, true
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// doseTotals sums the registered daily amounts of each scanned ingredient with its scanned
// amount and reports the ones above the ingredient's daily maximum
func doseTotals(
	scanned []entities.ExtractedIngredient,
	byCode map[string]entities.StandardIngredient,
	doses []entities.IngredientDose,
	rules []entities.InteractionRule,
	profile *entities.UserHealthProfile,
) []entities.AnalysisResult {
	overdoseWeights := make(map[string]entities.RiskWeights)
	for _, rule := range rules {
		if rule.Category == entities.CategoryOverdose && rule.Target == nil {
			if _, ok := overdoseWeights[rule.Trigger.Code]; !ok {
				overdoseWeights[rule.Trigger.Code] = rule.Weights
			}
		}
	}

	var results []entities.AnalysisResult
	done := make(map[string]struct{})
	for _, s := range scanned {
		if !s.Matched() {
			continue
		}
		if _, ok := done[s.StandardCode]; ok {
			continue
		}
		done[s.StandardCode] = struct{}{}

		ing, ok := byCode[s.StandardCode]
		if !ok || ing.MaxDailyDose == nil || *ing.MaxDailyDose <= 0 {
			continue
		}
		limit, unit := *ing.MaxDailyDose, ing.MaxDailyUnit

		total := 0.0
		for _, d := range doses {
			if d.Code != ing.Code {
				continue
			}
			v, ok := convertDose(d.Amount, d.Unit, unit)
			if !ok {
				logging.Debug("Skipping dose with incompatible unit", "code", ing.Code, "unit", d.Unit, "limit_unit", unit)
				continue
			}
			total += v
		}
		if s.Amount != nil {
			if v, ok := convertDose(*s.Amount, s.Unit, unit); ok {
				total += v
			}
		}

		if total <= limit {
			continue
		}

		base := entities.RiskWarning
		if total >= 2*limit {
			base = entities.RiskDanger
		}
		weights, ok := overdoseWeights[ing.Code]
		if !ok {
			weights = entities.NeutralWeights()
		}
		level, note := Personalize(base, profile, weights)

		results = append(results, entities.AnalysisResult{
			RuleID:            DoseTotalRuleID(ing.Code),
			Level:             level,
			LevelLabel:        level.Label(),
			Category:          entities.CategoryOverdose,
			Kind:              entities.KindDoseTotal,
			TriggerIngredient: ing.Ref(),
			Message: entities.Message{
				Conclusion: "⚠️ " + ing.NameKo + " 1일 최대 용량 초과",
				Reason: "복용 중인 약과 이번에 확인한 약의 " + ing.NameKo + " 합계가 하루 " +
					formatAmount(total) + unit + "으로, 1일 최대 용량 " + formatAmount(limit) + unit + "을(를) 넘습니다.",
				Action: "모든 제품의 " + ing.NameKo + " 함량을 확인하고 복용 전 의사 또는 약사와 상담하세요.",
			},
			PersonalizedNote: note,
		})
	}
	return results
}
