package entities

import "time"

// Dosage is an amount with a canonical unit
type Dosage struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// Match tiers recorded on extracted ingredients
const (
	MatchExact  = "exact"
	MatchFuzzy  = "fuzzy"
	MatchDirect = "direct"
	MatchSearch = "search"
)

// ExtractedIngredient is one candidate after catalog resolution. StandardCode is empty when unmatched.
type ExtractedIngredient struct {
	OriginalText string   `json:"originalText"`
	StandardCode string   `json:"standardCode,omitempty"`
	NameKo       string   `json:"nameKo,omitempty"`
	Confidence   float64  `json:"confidence"`
	Amount       *float64 `json:"amount,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	MatchType    string   `json:"matchType,omitempty"`
}

// Matched reports whether the candidate resolved to a catalog ingredient
func (e ExtractedIngredient) Matched() bool {
	return e.StandardCode != ""
}

// DisplayName is the resolved Korean name or the text as it was read
func (e ExtractedIngredient) DisplayName() string {
	if e.NameKo != "" {
		return e.NameKo
	}
	return e.OriginalText
}

// ResultKind separates findings backed by a rule row from synthesized ones
type ResultKind string

const (
	KindRule                ResultKind = "rule"
	KindDuplicationExplicit ResultKind = "duplication-explicit"
	KindDuplicationImplicit ResultKind = "duplication-implicit"
	KindDoseTotal           ResultKind = "dose-total"
)

// Synthetic reports whether the finding was derived without an InteractionRule row
func (k ResultKind) Synthetic() bool {
	return k == KindDuplicationImplicit || k == KindDoseTotal
}

// Message is the human-readable part of a finding
type Message struct {
	Conclusion string `json:"conclusion"`
	Reason     string `json:"reason"`
	Action     string `json:"action"`
}

// AnalysisResult is one finding
type AnalysisResult struct {
	RuleID            string         `json:"ruleId"`
	Level             RiskLevel      `json:"level"`
	LevelLabel        string         `json:"levelLabel"`
	Category          RuleCategory   `json:"category"`
	Kind              ResultKind     `json:"kind"`
	TriggerIngredient IngredientRef  `json:"triggerIngredient"`
	TargetIngredient  *IngredientRef `json:"targetIngredient,omitempty"`
	Message           Message        `json:"message"`
	EvidenceURL       string         `json:"evidenceUrl,omitempty"`
	PersonalizedNote  string         `json:"personalizedNote,omitempty"`
}

// AnalysisReport aggregates the findings of one analysis
type AnalysisReport struct {
	OverallRisk         RiskLevel        `json:"overallRisk"`
	Results             []AnalysisResult `json:"results"`
	ScannedIngredients  []string         `json:"scannedIngredients"`
	BaselineIngredients []string         `json:"baselineIngredients"`
	Timestamp           time.Time        `json:"timestamp"`
	ProcessingTime      int64            `json:"processingTime"`
}
