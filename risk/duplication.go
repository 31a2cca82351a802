package risk

import (
	"github.com/giygas/medcheck-api/catalogparser/entities"
)

const (
	duplicationConclusion = "📌 동일 효능군 약물 중복"
	duplicationAction     = "의사 또는 약사에게 두 약물을 함께 복용해도 되는지 확인하세요."
)

var therapeuticGroupNames = map[string]string{
	"anticoagulant":         "항응고제",
	"antiplatelet":          "항혈소판제",
	"analgesic":             "진통제",
	"nsaid":                 "비스테로이드성 항염증제(NSAID)",
	"statin":                "스타틴(콜레스테롤 약)",
	"ace_inhibitor":         "ACE 억제제",
	"arb":                   "ARB(안지오텐신 수용체 차단제)",
	"ccb":                   "칼슘채널차단제",
	"antidiabetic":          "당뇨병약",
	"sulfonylurea":          "설포닐우레아",
	"ppi":                   "PPI(위산억제제)",
	"antibiotic_penicillin": "페니실린계 항생제",
	"antibiotic_quinolone":  "퀴놀론계 항생제",
	"thyroid":               "갑상선 호르몬제",
	"ssri":                  "SSRI(항우울제)",
	"sedative":              "수면제/진정제",
	"benzodiazepine":        "벤조디아제핀",
	"vitamin":               "비타민",
	"mineral":               "미네랄",
	"supplement":            "보충제",
	"herbal":                "허브보충제",
	"food":                  "음식",
}

// TherapeuticGroupName returns the Korean display name of a group, the key itself when unknown
func TherapeuticGroupName(group string) string {
	if name, ok := therapeuticGroupNames[group]; ok {
		return name
	}
	return group
}

// TherapeuticGroupRuleID is the ID of an implicit duplication finding
func TherapeuticGroupRuleID(group, scannedCode, baselineCode string) string {
	return "therapeutic_group_" + group + "_" + scannedCode + "_" + baselineCode
}

// groupDuplications pairs every scanned ingredient with every baseline ingredient of the
// same therapeutic group. Pairs of the same code are skipped.
func groupDuplications(scanned, baseline []entities.StandardIngredient) []entities.AnalysisResult {
	baselineByGroup := make(map[string][]entities.StandardIngredient)
	for _, ing := range baseline {
		if ing.TherapeuticGroup != "" {
			baselineByGroup[ing.TherapeuticGroup] = append(baselineByGroup[ing.TherapeuticGroup], ing)
		}
	}

	// groups in order of first appearance among scanned ingredients
	var groups []string
	scannedByGroup := make(map[string][]entities.StandardIngredient)
	for _, ing := range scanned {
		group := ing.TherapeuticGroup
		if group == "" {
			continue
		}
		if _, ok := scannedByGroup[group]; !ok {
			groups = append(groups, group)
		}
		scannedByGroup[group] = append(scannedByGroup[group], ing)
	}

	var results []entities.AnalysisResult
	for _, group := range groups {
		for _, s := range scannedByGroup[group] {
			for _, b := range baselineByGroup[group] {
				if s.Code == b.Code {
					continue
				}
				target := b.Ref()
				results = append(results, entities.AnalysisResult{
					RuleID:            TherapeuticGroupRuleID(group, s.Code, b.Code),
					Level:             entities.RiskNotice,
					LevelLabel:        entities.RiskNotice.Label(),
					Category:          entities.CategoryDuplication,
					Kind:              entities.KindDuplicationImplicit,
					TriggerIngredient: s.Ref(),
					TargetIngredient:  &target,
					Message: entities.Message{
						Conclusion: duplicationConclusion,
						Reason:     s.NameKo + "과(와) " + b.NameKo + "은(는) 같은 " + TherapeuticGroupName(group) + " 계열입니다. 효과 중복으로 부작용이 증가할 수 있습니다.",
						Action:     duplicationAction,
					},
				})
			}
		}
	}
	return results
}
