package entities

// UserHealthProfile carries the flags used to personalize risk
type UserHealthProfile struct {
	LiverIssue         bool   `json:"liverIssue"`
	KidneyIssue        bool   `json:"kidneyIssue"`
	BleedingRisk       bool   `json:"bleedingRisk"`
	PregnancyLactation bool   `json:"pregnancyLactation"`
	AgeBand            string `json:"ageBand"`
}

// AgeBands lists the accepted age band values
var AgeBands = []string{"10s", "20s", "30s", "40s", "50s", "60+", "70+"}

// IsElderly reports whether the age band counts as elderly
func (p *UserHealthProfile) IsElderly() bool {
	return p.AgeBand == "60+" || p.AgeBand == "70+"
}

// IngredientDose is the registered daily amount of one ingredient in one product
type IngredientDose struct {
	Code        string  `json:"code"`
	Amount      float64 `json:"amount"`
	Unit        string  `json:"unit"`
	ProductName string  `json:"productName,omitempty"`
}

// Product is a medication the user already takes
type Product struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Ingredients []IngredientDose `json:"ingredients"`
}
