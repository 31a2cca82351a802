// Package data provides the in-memory catalog and user stores of the medcheck API.
// CatalogContainer swaps whole catalog indexes atomically so readers never block during a reload.
package data

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
)

// Compile-time check to ensure CatalogContainer implements CatalogStore
var _ interfaces.CatalogStore = (*CatalogContainer)(nil)

type rankedAlias struct {
	lowerName string
	match     entities.AliasMatch
}

// catalogIndex is immutable once stored
type catalogIndex struct {
	snapshot          *entities.CatalogSnapshot
	ingredientsByCode map[string]entities.StandardIngredient
	aliasesByName     map[string][]entities.AliasMatch
	rankedAliases     []rankedAlias
}

// CatalogContainer holds the current catalog with atomic pointers for zero-downtime updates
type CatalogContainer struct {
	index           atomic.Value // *catalogIndex
	lastUpdated     atomic.Value // time.Time
	updating        atomic.Bool
	serverStartTime atomic.Value // time.Time
	now             func() time.Time
}

// NewCatalogContainer creates an empty container. Queries fail until a catalog is loaded.
func NewCatalogContainer() *CatalogContainer {
	cc := &CatalogContainer{now: time.Now}
	cc.index.Store(&catalogIndex{snapshot: &entities.CatalogSnapshot{}})
	cc.lastUpdated.Store(time.Time{})
	cc.serverStartTime.Store(time.Time{})
	return cc
}

func (cc *CatalogContainer) current() (*catalogIndex, error) {
	if v := cc.index.Load(); v != nil {
		if idx, ok := v.(*catalogIndex); ok && len(idx.snapshot.Ingredients) > 0 {
			return idx, nil
		}
	}
	return nil, fmt.Errorf("no catalog loaded: %w", entities.ErrCatalogUnavailable)
}

// buildIndex ranks aliases by priority desc then declaration order
func buildIndex(snapshot *entities.CatalogSnapshot) *catalogIndex {
	idx := &catalogIndex{
		snapshot:          snapshot,
		ingredientsByCode: make(map[string]entities.StandardIngredient, len(snapshot.Ingredients)),
		aliasesByName:     make(map[string][]entities.AliasMatch),
		rankedAliases:     make([]rankedAlias, 0, len(snapshot.Aliases)),
	}

	byID := make(map[int64]entities.StandardIngredient, len(snapshot.Ingredients))
	for _, ing := range snapshot.Ingredients {
		idx.ingredientsByCode[ing.Code] = ing
		byID[ing.ID] = ing
	}

	for _, alias := range snapshot.Aliases {
		ing, ok := byID[alias.IngredientID]
		if !ok {
			logging.Warn("Alias points to unknown ingredient", "alias", alias.AliasName, "ingredient_id", alias.IngredientID)
			continue
		}
		idx.rankedAliases = append(idx.rankedAliases, rankedAlias{
			lowerName: strings.ToLower(alias.AliasName),
			match:     entities.AliasMatch{Alias: alias, Ingredient: ing},
		})
	}

	slices.SortStableFunc(idx.rankedAliases, func(a, b rankedAlias) int {
		if c := cmp.Compare(b.match.Alias.Priority, a.match.Alias.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.match.Alias.ID, b.match.Alias.ID)
	})

	for _, ra := range idx.rankedAliases {
		idx.aliasesByName[ra.lowerName] = append(idx.aliasesByName[ra.lowerName], ra.match)
	}

	return idx
}

// FindAliasesExact returns aliases equal to name ignoring case, priority desc
func (cc *CatalogContainer) FindAliasesExact(ctx context.Context, name string) ([]entities.AliasMatch, error) {
	idx, err := cc.current()
	if err != nil {
		return nil, err
	}
	return slices.Clone(idx.aliasesByName[strings.ToLower(name)]), nil
}

// FindAliasesContaining returns at most limit aliases containing substring ignoring case.
// A limit of 0 or less returns every match.
func (cc *CatalogContainer) FindAliasesContaining(ctx context.Context, substring string, limit int) ([]entities.AliasMatch, error) {
	idx, err := cc.current()
	if err != nil {
		return nil, err
	}
	if substring == "" {
		return nil, nil
	}

	needle := strings.ToLower(substring)
	var out []entities.AliasMatch
	for _, ra := range idx.rankedAliases {
		if !strings.Contains(ra.lowerName, needle) {
			continue
		}
		out = append(out, ra.match)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// FindIngredientsByNameSubstring searches NameKo and NameEn ignoring case, in catalog order
func (cc *CatalogContainer) FindIngredientsByNameSubstring(ctx context.Context, text string) ([]entities.StandardIngredient, error) {
	idx, err := cc.current()
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	needle := strings.ToLower(text)
	var out []entities.StandardIngredient
	for _, ing := range idx.snapshot.Ingredients {
		if strings.Contains(strings.ToLower(ing.NameKo), needle) || strings.Contains(strings.ToLower(ing.NameEn), needle) {
			out = append(out, ing)
		}
	}
	return out, nil
}

// FindIngredientsByCodes resolves codes in the given order, skipping unknown and repeated codes
func (cc *CatalogContainer) FindIngredientsByCodes(ctx context.Context, codes []string) ([]entities.StandardIngredient, error) {
	idx, err := cc.current()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(codes))
	out := make([]entities.StandardIngredient, 0, len(codes))
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		if ing, ok := idx.ingredientsByCode[code]; ok {
			out = append(out, ing)
		}
	}
	return out, nil
}

// FindActiveRulesInvolving returns active rules touching any of ids, in catalog order
func (cc *CatalogContainer) FindActiveRulesInvolving(ctx context.Context, ids []int64) ([]entities.InteractionRule, error) {
	idx, err := cc.current()
	if err != nil {
		return nil, err
	}

	wanted := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	var out []entities.InteractionRule
	for _, rule := range idx.snapshot.Rules {
		if !rule.IsActive {
			continue
		}
		_, triggerHit := wanted[rule.Trigger.ID]
		targetHit := false
		if rule.Target != nil {
			_, targetHit = wanted[rule.Target.ID]
		}
		if triggerHit || targetHit {
			out = append(out, rule)
		}
	}
	return out, nil
}

// Version returns the content version of the loaded catalog, empty when none is loaded
func (cc *CatalogContainer) Version() string {
	if v := cc.index.Load(); v != nil {
		if idx, ok := v.(*catalogIndex); ok {
			return idx.snapshot.Version
		}
	}
	return ""
}

// ReplaceCatalog atomically swaps in a new snapshot
func (cc *CatalogContainer) ReplaceCatalog(ctx context.Context, snapshot *entities.CatalogSnapshot) error {
	if snapshot == nil || len(snapshot.Ingredients) == 0 {
		return fmt.Errorf("refusing to load an empty catalog")
	}

	cc.index.Store(buildIndex(snapshot))
	cc.lastUpdated.Store(cc.now())
	return nil
}

// MarkChecked records a successful reload that found the loaded catalog current
func (cc *CatalogContainer) MarkChecked(ctx context.Context) error {
	cc.lastUpdated.Store(cc.now())
	return nil
}

// Counts returns the size of the loaded catalog
func (cc *CatalogContainer) Counts() entities.CatalogCounts {
	if v := cc.index.Load(); v != nil {
		if idx, ok := v.(*catalogIndex); ok {
			return entities.CatalogCounts{
				Ingredients: len(idx.snapshot.Ingredients),
				Aliases:     len(idx.snapshot.Aliases),
				Rules:       len(idx.snapshot.Rules),
			}
		}
	}

	logging.Warn("Catalog index is empty or invalid")
	return entities.CatalogCounts{}
}

// GetLastUpdated returns the time of the last successful reload, whether or not it swapped the catalog
func (cc *CatalogContainer) GetLastUpdated() time.Time {
	if v := cc.lastUpdated.Load(); v != nil {
		if lastUpdated, ok := v.(time.Time); ok {
			return lastUpdated
		}
	}

	logging.Warn("Could not get the last updated value")
	return time.Time{}
}

// IsUpdating returns true if a reload is in progress
func (cc *CatalogContainer) IsUpdating() bool {
	return cc.updating.Load()
}

// SetServerStartTime sets the server start time
func (cc *CatalogContainer) SetServerStartTime(startTime time.Time) {
	cc.serverStartTime.Store(startTime)
}

// GetServerStartTime returns the server start time
func (cc *CatalogContainer) GetServerStartTime() time.Time {
	if v := cc.serverStartTime.Load(); v != nil {
		if startTime, ok := v.(time.Time); ok {
			return startTime
		}
	}

	logging.Warn("Could not get the server start time value")
	return time.Time{}
}

// BeginUpdate marks the start of a reload.
// Returns true if the reload can proceed, false if another one is in progress.
func (cc *CatalogContainer) BeginUpdate() bool {
	return cc.updating.CompareAndSwap(false, true)
}

// EndUpdate marks the end of a reload
func (cc *CatalogContainer) EndUpdate() {
	cc.updating.Store(false)
}
