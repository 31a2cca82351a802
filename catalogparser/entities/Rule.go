package entities

import "fmt"

// RiskLevel is the severity of a finding
type RiskLevel string

const (
	RiskNotice  RiskLevel = "notice"
	RiskWarning RiskLevel = "warning"
	RiskDanger  RiskLevel = "danger"
)

// Score returns the numeric base score used for personalization
func (l RiskLevel) Score() float64 {
	switch l {
	case RiskDanger:
		return 3
	case RiskWarning:
		return 2
	default:
		return 1
	}
}

// Rank orders levels for sorting, danger first
func (l RiskLevel) Rank() int {
	switch l {
	case RiskDanger:
		return 0
	case RiskWarning:
		return 1
	default:
		return 2
	}
}

// Label returns the Korean display label
func (l RiskLevel) Label() string {
	switch l {
	case RiskDanger:
		return "위험"
	case RiskWarning:
		return "주의"
	case RiskNotice:
		return "참고"
	default:
		return "알 수 없음"
	}
}

// Color returns the display color of the level
func (l RiskLevel) Color() string {
	switch l {
	case RiskDanger:
		return "#EF4444"
	case RiskWarning:
		return "#F97316"
	case RiskNotice:
		return "#EAB308"
	default:
		return "#6B7280"
	}
}

// LevelFromScore requantizes a personalized score
func LevelFromScore(score float64) RiskLevel {
	switch {
	case score >= 3:
		return RiskDanger
	case score >= 2:
		return RiskWarning
	default:
		return RiskNotice
	}
}

// ParseRiskLevel validates a level read from a catalog file or database
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch l := RiskLevel(s); l {
	case RiskNotice, RiskWarning, RiskDanger:
		return l, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// RuleCategory is the kind of interaction a rule describes
type RuleCategory string

const (
	CategoryDDI         RuleCategory = "ddi"
	CategoryHDI         RuleCategory = "hdi"
	CategoryFDI         RuleCategory = "fdi"
	CategoryDuplication RuleCategory = "duplication"
	CategoryOverdose    RuleCategory = "overdose"
)

// ParseRuleCategory validates a rule category
func ParseRuleCategory(s string) (RuleCategory, error) {
	switch c := RuleCategory(s); c {
	case CategoryDDI, CategoryHDI, CategoryFDI, CategoryDuplication, CategoryOverdose:
		return c, nil
	}
	return "", fmt.Errorf("unknown rule category %q", s)
}

// RiskWeights amplify the base risk per health factor. 1.0 means no adjustment.
type RiskWeights struct {
	Liver     float64 `json:"liver"`
	Kidney    float64 `json:"kidney"`
	Bleeding  float64 `json:"bleeding"`
	Pregnancy float64 `json:"pregnancy"`
	Elderly   float64 `json:"elderly"`
}

// NeutralWeights leaves every factor unchanged
func NeutralWeights() RiskWeights {
	return RiskWeights{Liver: 1, Kidney: 1, Bleeding: 1, Pregnancy: 1, Elderly: 1}
}

// InteractionRule is static reference data. Target is nil only for single-ingredient overdose rules.
type InteractionRule struct {
	ID          string
	Category    RuleCategory
	Trigger     StandardIngredient
	Target      *StandardIngredient
	BaseRisk    RiskLevel
	Weights     RiskWeights
	Conclusion  string
	Reason      string
	Action      string
	EvidenceURL string
	IsActive    bool
}
