// Package extraction turns OCR output or typed label text into catalog ingredients.
package extraction

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/giygas/medcheck-api/cache"
	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/matcher"
	"github.com/giygas/medcheck-api/normalizer"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSearchLimit = 10
	MaxSearchLimit     = 50
	DefaultWorkers     = 8
)

// ExtractionResult is the outcome of one extraction. Unmatched candidates keep confidence 0.
type ExtractionResult struct {
	RawText        string                         `json:"rawText"`
	NormalizedText string                         `json:"normalizedText"`
	Ingredients    []entities.ExtractedIngredient `json:"ingredients"`
	Unmatched      []entities.ExtractedIngredient `json:"unmatched"`
	ProcessingTime int64                          `json:"processingTime"`
}

// Pipeline runs normalization, candidate extraction and matching
type Pipeline struct {
	catalog    interfaces.Catalog
	matcher    *matcher.Matcher
	recognizer interfaces.Recognizer
	cache      interfaces.SearchCache
	workers    int
}

// NewPipeline wires a pipeline. A nil recognizer disables image extraction, a nil cache
// disables search caching and workers below 1 fall back to DefaultWorkers.
func NewPipeline(catalog interfaces.Catalog, recognizer interfaces.Recognizer, searchCache interfaces.SearchCache, workers int) *Pipeline {
	if searchCache == nil {
		searchCache = cache.Noop{}
	}
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Pipeline{
		catalog:    catalog,
		matcher:    matcher.NewMatcher(catalog),
		recognizer: recognizer,
		cache:      searchCache,
		workers:    workers,
	}
}

// ExtractFromOCR extracts ingredients from recognizer output
func (p *Pipeline) ExtractFromOCR(ctx context.Context, rawText string) (*ExtractionResult, error) {
	return p.extract(ctx, rawText)
}

// ExtractFromText extracts ingredients from text typed by the user
func (p *Pipeline) ExtractFromText(ctx context.Context, text string) (*ExtractionResult, error) {
	return p.extract(ctx, text)
}

// ExtractFromImage recognizes the image and extracts ingredients from the text found
func (p *Pipeline) ExtractFromImage(ctx context.Context, image []byte) (*ExtractionResult, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image: %w", entities.ErrInvalidInput)
	}
	if p.recognizer == nil {
		return nil, fmt.Errorf("no recognizer configured: %w", entities.ErrRecognizerUnavailable)
	}

	start := time.Now()
	text, err := p.recognizer.Recognize(ctx, image)
	if err != nil {
		return nil, fmt.Errorf("%s recognition failed: %w", p.recognizer.Name(), err)
	}
	logging.Debug("Image recognized",
		"recognizer", p.recognizer.Name(),
		"bytes", len(image),
		"chars", len(text),
		"duration_ms", time.Since(start).Milliseconds())

	if strings.TrimSpace(text) == "" {
		return &ExtractionResult{
			Ingredients:    []entities.ExtractedIngredient{},
			Unmatched:      []entities.ExtractedIngredient{},
			ProcessingTime: time.Since(start).Milliseconds(),
		}, nil
	}

	result, err := p.extract(ctx, text)
	if err != nil {
		return nil, err
	}
	result.ProcessingTime = time.Since(start).Milliseconds()
	return result, nil
}

func (p *Pipeline) extract(ctx context.Context, text string) (*ExtractionResult, error) {
	start := time.Now()
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty text: %w", entities.ErrInvalidInput)
	}

	normalized := normalizer.Normalize(text)
	candidates := normalizer.ExtractCandidates(normalizer.NormalizeLines(text))

	matches, err := p.matchAll(ctx, candidates)
	if err != nil {
		return nil, err
	}

	result := &ExtractionResult{
		RawText:        text,
		NormalizedText: normalized,
		Ingredients:    []entities.ExtractedIngredient{},
		Unmatched:      []entities.ExtractedIngredient{},
	}

	// first occurrence wins, a later duplicate only contributes a dosage the first one lacked
	seen := make(map[string]int, len(matches))
	for i, m := range matches {
		if m == nil {
			result.Unmatched = append(result.Unmatched, entities.ExtractedIngredient{OriginalText: candidates[i]})
			continue
		}
		if at, dup := seen[m.StandardCode]; dup {
			if kept := &result.Ingredients[at]; kept.Amount == nil && m.Amount != nil {
				kept.Amount, kept.Unit = m.Amount, m.Unit
			}
			continue
		}
		seen[m.StandardCode] = len(result.Ingredients)
		result.Ingredients = append(result.Ingredients, *m)
	}

	result.ProcessingTime = time.Since(start).Milliseconds()
	logging.Debug("Extraction finished",
		"candidates", len(candidates),
		"matched", len(result.Ingredients),
		"unmatched", len(result.Unmatched),
		"duration_ms", result.ProcessingTime)

	return result, nil
}

// matchAll matches candidates concurrently. The result slice is indexed like candidates.
func (p *Pipeline) matchAll(ctx context.Context, candidates []string) ([]*entities.ExtractedIngredient, error) {
	results := make([]*entities.ExtractedIngredient, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, candidate := range candidates {
		g.Go(func() error {
			m, err := p.matcher.Match(gctx, candidate)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SearchIngredient is the autocomplete lookup: alias substring only, priority order,
// one hit per ingredient
func (p *Pipeline) SearchIngredient(ctx context.Context, query string, limit int) ([]interfaces.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []interfaces.SearchHit{}, nil
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	limit = min(limit, MaxSearchLimit)

	key := cache.SearchKey(p.catalog.Version(), query, limit)
	if hits, ok := p.cache.Get(ctx, key); ok {
		return hits, nil
	}

	rows, err := p.catalog.FindAliasesContaining(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search for %q: %w", query, err)
	}

	hits := make([]interfaces.SearchHit, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, dup := seen[row.Ingredient.Code]; dup {
			continue
		}
		seen[row.Ingredient.Code] = struct{}{}
		hits = append(hits, interfaces.SearchHit{
			Code:         row.Ingredient.Code,
			NameKo:       row.Ingredient.NameKo,
			NameEn:       row.Ingredient.NameEn,
			Category:     row.Ingredient.Category,
			MatchedAlias: row.Alias.AliasName,
		})
	}

	p.cache.Set(ctx, key, hits)
	return hits, nil
}

// ResolveNames resolves names the user picked from autocomplete. Each name takes the
// best search hit, names without one are returned as unmatched.
func (p *Pipeline) ResolveNames(ctx context.Context, names []string) (*ExtractionResult, error) {
	start := time.Now()

	result := &ExtractionResult{
		Ingredients: []entities.ExtractedIngredient{},
		Unmatched:   []entities.ExtractedIngredient{},
	}
	seen := make(map[string]struct{}, len(names))

	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}

		hits, err := p.SearchIngredient(ctx, name, 1)
		if err != nil {
			return nil, err
		}
		if len(hits) == 0 {
			result.Unmatched = append(result.Unmatched, entities.ExtractedIngredient{OriginalText: name})
			continue
		}

		hit := hits[0]
		if _, dup := seen[hit.Code]; dup {
			continue
		}
		seen[hit.Code] = struct{}{}
		result.Ingredients = append(result.Ingredients, entities.ExtractedIngredient{
			OriginalText: name,
			StandardCode: hit.Code,
			NameKo:       hit.NameKo,
			Confidence:   1.0,
			MatchType:    entities.MatchSearch,
		})
	}

	if len(result.Ingredients) == 0 && len(result.Unmatched) == 0 {
		return nil, fmt.Errorf("no ingredient names: %w", entities.ErrInvalidInput)
	}

	result.RawText = strings.Join(names, ", ")
	result.ProcessingTime = time.Since(start).Milliseconds()
	return result, nil
}
