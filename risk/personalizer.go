// Package risk evaluates scanned and registered ingredients against the interaction
// rules and weights each finding by the user's health profile.
package risk

import (
	"strings"

	"github.com/giygas/medcheck-api/catalogparser/entities"
)

const (
	noteLiver     = "⚠️ 간질환이 있어 위험이 더 높습니다"
	noteKidney    = "⚠️ 신장질환이 있어 위험이 더 높습니다"
	noteBleeding  = "⚠️ 출혈 위험군이라 더욱 주의가 필요합니다"
	notePregnancy = "⚠️ 임신/수유 중이라 특별한 주의가 필요합니다"
	noteElderly   = "⚠️ 고령자라 부작용 위험이 더 높습니다"
)

// Personalize scales the base score by every weight above 1.0 whose profile flag is set,
// then requantizes it. Factors apply in the order liver, kidney, bleeding, pregnancy, elderly.
// A nil profile returns the base level unchanged.
func Personalize(base entities.RiskLevel, profile *entities.UserHealthProfile, weights entities.RiskWeights) (entities.RiskLevel, string) {
	if profile == nil {
		return base, ""
	}

	factors := []struct {
		applies bool
		weight  float64
		note    string
	}{
		{profile.LiverIssue, weights.Liver, noteLiver},
		{profile.KidneyIssue, weights.Kidney, noteKidney},
		{profile.BleedingRisk, weights.Bleeding, noteBleeding},
		{profile.PregnancyLactation, weights.Pregnancy, notePregnancy},
		{profile.IsElderly(), weights.Elderly, noteElderly},
	}

	score := base.Score()
	var notes []string
	for _, f := range factors {
		if f.applies && f.weight > 1 {
			score *= f.weight
			notes = append(notes, f.note)
		}
	}

	return entities.LevelFromScore(score), strings.Join(notes, "\n")
}
