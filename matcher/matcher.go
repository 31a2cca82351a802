// Package matcher resolves a candidate string to a standard ingredient through an
// ordered list of strategies: exact alias, fuzzy alias, then direct name lookup.
package matcher

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/metrics"
	"github.com/giygas/medcheck-api/normalizer"
)

const (
	// FuzzyThreshold is the similarity a fuzzy alias must exceed
	FuzzyThreshold = 0.7

	// DirectConfidence is the fixed confidence of a standard-name substring hit
	DirectConfidence = 0.8

	minKeyRunes         = 2
	fuzzyPrefixRunes    = 5
	fuzzyShortKeyRunes  = 3
	fuzzyCandidateLimit = 5
)

// Candidate is a candidate string with its precomputed matching key
type Candidate struct {
	Text string
	Key  string
}

// Resolution is the outcome of a successful strategy
type Resolution struct {
	Ingredient entities.StandardIngredient
	Confidence float64
}

// Strategy is one tier of the fallback chain. Resolve returns nil without error on a miss.
type Strategy struct {
	Name    string
	Resolve func(ctx context.Context, catalog interfaces.Catalog, c Candidate) (*Resolution, error)
}

// DefaultStrategies is the exact, fuzzy, direct chain
func DefaultStrategies() []Strategy {
	return []Strategy{
		{Name: entities.MatchExact, Resolve: resolveExact},
		{Name: entities.MatchFuzzy, Resolve: resolveFuzzy},
		{Name: entities.MatchDirect, Resolve: resolveDirect},
	}
}

// Matcher runs the strategy chain against a catalog
type Matcher struct {
	catalog    interfaces.Catalog
	strategies []Strategy
}

// NewMatcher creates a matcher using the default strategy chain
func NewMatcher(catalog interfaces.Catalog) *Matcher {
	return NewMatcherWithStrategies(catalog, DefaultStrategies())
}

// NewMatcherWithStrategies creates a matcher with a custom chain
func NewMatcherWithStrategies(catalog interfaces.Catalog, strategies []Strategy) *Matcher {
	return &Matcher{catalog: catalog, strategies: strategies}
}

// Match resolves one candidate. It returns nil without error when no strategy matched
// or when the matching key is too short to be meaningful.
func (m *Matcher) Match(ctx context.Context, text string) (*entities.ExtractedIngredient, error) {
	c := Candidate{Text: text, Key: normalizer.MatchingKey(text)}
	if utf8.RuneCountInString(c.Key) < minKeyRunes {
		return nil, nil
	}

	for _, s := range m.strategies {
		res, err := s.Resolve(ctx, m.catalog, c)
		if err != nil {
			return nil, fmt.Errorf("%s match for %q: %w", s.Name, text, err)
		}
		if res == nil {
			continue
		}

		metrics.IngredientMatchTotal.WithLabelValues(s.Name).Inc()
		return buildExtracted(c, res, s.Name), nil
	}

	metrics.IngredientMatchTotal.WithLabelValues("unmatched").Inc()
	return nil, nil
}

func buildExtracted(c Candidate, res *Resolution, tier string) *entities.ExtractedIngredient {
	out := &entities.ExtractedIngredient{
		OriginalText: c.Text,
		StandardCode: res.Ingredient.Code,
		NameKo:       res.Ingredient.NameKo,
		Confidence:   res.Confidence,
		MatchType:    tier,
	}
	if dosage, ok := normalizer.ExtractDosage(c.Text); ok {
		amount := dosage.Amount
		out.Amount = &amount
		out.Unit = dosage.Unit
	}
	return out
}

func resolveExact(ctx context.Context, catalog interfaces.Catalog, c Candidate) (*Resolution, error) {
	rows, err := catalog.FindAliasesExact(ctx, c.Text)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &Resolution{Ingredient: rows[0].Ingredient, Confidence: 1.0}, nil
}

// fuzzyPrefix tolerates OCR truncation at the end of long names
func fuzzyPrefix(key string) string {
	runes := []rune(key)
	if len(runes) <= fuzzyShortKeyRunes {
		return key
	}
	return string(runes[:min(len(runes), fuzzyPrefixRunes)])
}

func resolveFuzzy(ctx context.Context, catalog interfaces.Catalog, c Candidate) (*Resolution, error) {
	rows, err := catalog.FindAliasesContaining(ctx, fuzzyPrefix(c.Key), fuzzyCandidateLimit)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		score := Similarity(c.Key, normalizer.MatchingKey(row.Alias.AliasName))
		if score > FuzzyThreshold {
			return &Resolution{Ingredient: row.Ingredient, Confidence: score}, nil
		}
	}
	return nil, nil
}

func resolveDirect(ctx context.Context, catalog interfaces.Catalog, c Candidate) (*Resolution, error) {
	rows, err := catalog.FindIngredientsByNameSubstring(ctx, c.Text)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &Resolution{Ingredient: rows[0], Confidence: DirectConfidence}, nil
}
