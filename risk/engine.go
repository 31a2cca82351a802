package risk

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/metrics"
)

// Request is the input of one analysis
type Request struct {
	Scanned       []entities.ExtractedIngredient
	BaselineCodes []string
	Profile       *entities.UserHealthProfile
	Doses         []entities.IngredientDose
}

// Engine matches ingredient sets against the rule table of a catalog
type Engine struct {
	catalog interfaces.Catalog
}

// NewEngine creates an engine reading rules from catalog
func NewEngine(catalog interfaces.Catalog) *Engine {
	return &Engine{catalog: catalog}
}

// codeSet is an ordered set of ingredient codes
type codeSet struct {
	codes []string
	index map[string]struct{}
}

func newCodeSet() *codeSet {
	return &codeSet{index: make(map[string]struct{})}
}

func (s *codeSet) add(code string) {
	if code == "" {
		return
	}
	if _, ok := s.index[code]; ok {
		return
	}
	s.index[code] = struct{}{}
	s.codes = append(s.codes, code)
}

func (s *codeSet) has(code string) bool {
	_, ok := s.index[code]
	return ok
}

// Analyze evaluates the scanned ingredients against the baseline. Rules only fire when at
// least one side was scanned, rules between two registered ingredients are suppressed.
func (e *Engine) Analyze(ctx context.Context, req Request) (*entities.AnalysisReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scanned, baseline, all := newCodeSet(), newCodeSet(), newCodeSet()
	for _, s := range req.Scanned {
		scanned.add(s.StandardCode)
		all.add(s.StandardCode)
	}
	for _, code := range req.BaselineCodes {
		baseline.add(code)
		all.add(code)
	}

	results := []entities.AnalysisResult{}
	if len(all.codes) > 0 {
		ingredients, err := e.catalog.FindIngredientsByCodes(ctx, all.codes)
		if err != nil {
			return nil, catalogError("resolve ingredient codes", err)
		}

		byCode := make(map[string]entities.StandardIngredient, len(ingredients))
		ids := make([]int64, 0, len(ingredients))
		for _, ing := range ingredients {
			byCode[ing.Code] = ing
			ids = append(ids, ing.ID)
		}

		rules, err := e.catalog.FindActiveRulesInvolving(ctx, ids)
		if err != nil {
			return nil, catalogError("load interaction rules", err)
		}

		for _, rule := range rules {
			if !ruleApplies(rule, scanned, baseline) {
				continue
			}
			level, note := Personalize(rule.BaseRisk, req.Profile, rule.Weights)
			results = append(results, ruleResult(rule, level, note))
		}

		results = append(results, groupDuplications(pick(byCode, scanned.codes), pick(byCode, baseline.codes))...)
		results = append(results, doseTotals(req.Scanned, byCode, req.Doses, rules, req.Profile)...)
	}

	slices.SortStableFunc(results, func(a, b entities.AnalysisResult) int {
		return a.Level.Rank() - b.Level.Rank()
	})

	scannedNames := make([]string, len(req.Scanned))
	for i, s := range req.Scanned {
		scannedNames[i] = s.DisplayName()
	}

	report := &entities.AnalysisReport{
		OverallRisk:         OverallRisk(results),
		Results:             results,
		ScannedIngredients:  scannedNames,
		BaselineIngredients: append([]string{}, baseline.codes...),
		Timestamp:           time.Now(),
		ProcessingTime:      time.Since(start).Milliseconds(),
	}

	metrics.AnalysisDuration.Observe(time.Since(start).Seconds())
	for _, r := range results {
		metrics.AnalysisFindingsTotal.WithLabelValues(string(r.Level), string(r.Kind)).Inc()
	}
	logging.Debug("Analysis finished",
		"scanned", len(scanned.codes),
		"baseline", len(baseline.codes),
		"findings", len(results),
		"overall", report.OverallRisk)

	return report, nil
}

// OverallRisk is the most severe level among results, notice when there are none
func OverallRisk(results []entities.AnalysisResult) entities.RiskLevel {
	overall := entities.RiskNotice
	for _, r := range results {
		if r.Level.Rank() < overall.Rank() {
			overall = r.Level
		}
	}
	return overall
}

// ruleApplies requires the trigger to be present and, for pair rules, the pair to involve a
// scanned ingredient. Single-ingredient rules only fire on scanned ingredients.
func ruleApplies(rule entities.InteractionRule, scanned, baseline *codeSet) bool {
	trigger := rule.Trigger.Code
	triggerScanned, triggerBaseline := scanned.has(trigger), baseline.has(trigger)
	if !triggerScanned && !triggerBaseline {
		return false
	}

	if rule.Target == nil {
		return triggerScanned
	}

	target := rule.Target.Code
	targetScanned, targetBaseline := scanned.has(target), baseline.has(target)
	if !targetScanned && !targetBaseline {
		return false
	}

	return (triggerScanned && targetBaseline) ||
		(triggerBaseline && targetScanned) ||
		(triggerScanned && targetScanned)
}

func ruleResult(rule entities.InteractionRule, level entities.RiskLevel, note string) entities.AnalysisResult {
	kind := entities.KindRule
	if rule.Category == entities.CategoryDuplication {
		kind = entities.KindDuplicationExplicit
	}

	result := entities.AnalysisResult{
		RuleID:            rule.ID,
		Level:             level,
		LevelLabel:        level.Label(),
		Category:          rule.Category,
		Kind:              kind,
		TriggerIngredient: rule.Trigger.Ref(),
		Message: entities.Message{
			Conclusion: rule.Conclusion,
			Reason:     rule.Reason,
			Action:     rule.Action,
		},
		EvidenceURL:      rule.EvidenceURL,
		PersonalizedNote: note,
	}
	if rule.Target != nil {
		target := rule.Target.Ref()
		result.TargetIngredient = &target
	}
	return result
}

func pick(byCode map[string]entities.StandardIngredient, codes []string) []entities.StandardIngredient {
	out := make([]entities.StandardIngredient, 0, len(codes))
	for _, code := range codes {
		if ing, ok := byCode[code]; ok {
			out = append(out, ing)
		}
	}
	return out
}

func catalogError(op string, err error) error {
	if errors.Is(err, entities.ErrCatalogUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, entities.ErrCatalogUnavailable, err)
}
