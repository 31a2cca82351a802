package entities

// StandardIngredient is a canonical catalog entry. TherapeuticGroup is empty when the
// ingredient belongs to no group, MaxDailyDose is nil for foods.
type StandardIngredient struct {
	ID               int64    `json:"-"`
	Code             string   `json:"code"`
	NameKo           string   `json:"nameKo"`
	NameEn           string   `json:"nameEn"`
	Category         string   `json:"category"`
	TherapeuticGroup string   `json:"therapeuticGroup,omitempty"`
	MaxDailyDose     *float64 `json:"maxDailyDose,omitempty"`
	MaxDailyUnit     string   `json:"maxDailyUnit,omitempty"`
	Description      string   `json:"description,omitempty"`
}

// Ref returns the short code+name form used inside analysis results
func (s StandardIngredient) Ref() IngredientRef {
	return IngredientRef{Code: s.Code, NameKo: s.NameKo}
}

// IngredientAlias is a surface form (korean, english, brand, abbreviation, typo) of one ingredient
type IngredientAlias struct {
	ID             int64  `json:"-"`
	IngredientID   int64  `json:"-"`
	IngredientCode string `json:"code"`
	AliasName      string `json:"aliasName"`
	AliasType      string `json:"aliasType"`
	Priority       int    `json:"priority"`
}

// AliasMatch is an alias row joined with its owning ingredient
type AliasMatch struct {
	Alias      IngredientAlias
	Ingredient StandardIngredient
}

// IngredientRef identifies an ingredient in a finding
type IngredientRef struct {
	Code   string `json:"code"`
	NameKo string `json:"nameKo"`
}
