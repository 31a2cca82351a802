package entities

// CatalogSnapshot is one complete, parsed version of the reference catalog.
// Aliases and Rules keep file order, which is also their tie-break order.
type CatalogSnapshot struct {
	Ingredients []StandardIngredient
	Aliases     []IngredientAlias
	Rules       []InteractionRule
	Version     string
}

// CatalogCounts summarizes the size of a loaded catalog
type CatalogCounts struct {
	Ingredients int `json:"ingredients"`
	Aliases     int `json:"aliases"`
	Rules       int `json:"rules"`
}

// CatalogQualityReport lists integrity issues found in a snapshot
type CatalogQualityReport struct {
	DuplicateCodes          []string
	DuplicateAliases        []string // "alias|CODE" pairs declared more than once
	SharedAliases           []string // alias names pointing to more than one ingredient
	RulesWithUnknownCodes   int
	OverdoseWithoutMaxDose  []string
	IngredientsWithoutAlias []string
	InactiveRules           int
}
