package risk

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/giygas/medcheck-api/catalogparser"
	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/data"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
)

func seedCatalog(t *testing.T) *data.CatalogContainer {
	t.Helper()
	logging.InitLogger("")

	snapshot, err := catalogparser.ParseEmbedded()
	if err != nil {
		t.Fatalf("ParseEmbedded failed: %v", err)
	}
	cc := data.NewCatalogContainer()
	if err := cc.ReplaceCatalog(context.Background(), snapshot); err != nil {
		t.Fatalf("ReplaceCatalog failed: %v", err)
	}
	return cc
}

func scan(code, nameKo string) entities.ExtractedIngredient {
	return entities.ExtractedIngredient{OriginalText: nameKo, StandardCode: code, NameKo: nameKo, Confidence: 1.0, MatchType: entities.MatchExact}
}

func scanWithDose(code, nameKo string, amount float64, unit string) entities.ExtractedIngredient {
	s := scan(code, nameKo)
	s.Amount, s.Unit = &amount, unit
	return s
}

func ruleIDs(results []entities.AnalysisResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.RuleID
	}
	return out
}

func findResult(results []entities.AnalysisResult, kind entities.ResultKind, trigger string) *entities.AnalysisResult {
	for i := range results {
		if results[i].Kind == kind && results[i].TriggerIngredient.Code == trigger {
			return &results[i]
		}
	}
	return nil
}

func TestAnalyzeScannedAgainstBaseline(t *testing.T) {
	e := NewEngine(seedCatalog(t))

	report, err := e.Analyze(context.Background(), Request{
		Scanned:       []entities.ExtractedIngredient{scan("ASPIRIN", "아스피린")},
		BaselineCodes: []string{"WARFARIN"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(report.Results) != 1 {
		t.Fatalf("expected one finding, got %+v", report.Results)
	}
	r := report.Results[0]
	if r.Level != entities.RiskDanger || r.Category != entities.CategoryDDI || r.Kind != entities.KindRule {
		t.Errorf("unexpected finding: %+v", r)
	}
	if r.RuleID != catalogparser.RuleID(entities.CategoryDDI, "WARFARIN", "ASPIRIN") {
		t.Errorf("unexpected rule ID %s", r.RuleID)
	}
	if r.TriggerIngredient.Code != "WARFARIN" || r.TargetIngredient == nil || r.TargetIngredient.Code != "ASPIRIN" {
		t.Errorf("unexpected ingredients: %+v %+v", r.TriggerIngredient, r.TargetIngredient)
	}
	if r.LevelLabel != "위험" || r.EvidenceURL == "" || r.PersonalizedNote != "" {
		t.Errorf("unexpected presentation fields: %+v", r)
	}
	if report.OverallRisk != entities.RiskDanger {
		t.Errorf("expected overall danger, got %s", report.OverallRisk)
	}
	if !reflect.DeepEqual(report.ScannedIngredients, []string{"아스피린"}) || !reflect.DeepEqual(report.BaselineIngredients, []string{"WARFARIN"}) {
		t.Errorf("unexpected ingredient lists: %v %v", report.ScannedIngredients, report.BaselineIngredients)
	}
}

func TestAnalyzeCrossSourceSuppression(t *testing.T) {
	e := NewEngine(seedCatalog(t))
	warfarinAspirin := catalogparser.RuleID(entities.CategoryDDI, "WARFARIN", "ASPIRIN")

	tests := []struct {
		name     string
		scanned  []entities.ExtractedIngredient
		baseline []string
		want     bool
	}{
		{"both registered", []entities.ExtractedIngredient{scan("CALCIUM", "칼슘")}, []string{"WARFARIN", "ASPIRIN"}, false},
		{"trigger scanned target registered", []entities.ExtractedIngredient{scan("WARFARIN", "와파린")}, []string{"ASPIRIN"}, true},
		{"trigger registered target scanned", []entities.ExtractedIngredient{scan("ASPIRIN", "아스피린")}, []string{"WARFARIN"}, true},
		{"both scanned", []entities.ExtractedIngredient{scan("WARFARIN", "와파린"), scan("ASPIRIN", "아스피린")}, nil, true},
		{"target missing", []entities.ExtractedIngredient{scan("WARFARIN", "와파린")}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := e.Analyze(context.Background(), Request{Scanned: tt.scanned, BaselineCodes: tt.baseline})
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			found := false
			for _, r := range report.Results {
				if r.RuleID == warfarinAspirin {
					found = true
				}
			}
			if found != tt.want {
				t.Errorf("expected presence %v, got %v (%v)", tt.want, found, ruleIDs(report.Results))
			}
		})
	}
}

func TestAnalyzeTargetlessRuleNeedsScan(t *testing.T) {
	e := NewEngine(seedCatalog(t))

	report, _ := e.Analyze(context.Background(), Request{BaselineCodes: []string{"ACETAMINOPHEN"}})
	if len(report.Results) != 0 {
		t.Errorf("a registered ingredient alone should not fire overdose rules, got %v", ruleIDs(report.Results))
	}

	report, _ = e.Analyze(context.Background(), Request{Scanned: []entities.ExtractedIngredient{scan("ACETAMINOPHEN", "아세트아미노펜")}})
	if r := findResult(report.Results, entities.KindRule, "ACETAMINOPHEN"); r == nil || r.Category != entities.CategoryOverdose || r.TargetIngredient != nil {
		t.Errorf("expected the overdose rule, got %+v", report.Results)
	}
}

func TestAnalyzePersonalizesRules(t *testing.T) {
	e := NewEngine(seedCatalog(t))

	report, err := e.Analyze(context.Background(), Request{
		Scanned:       []entities.ExtractedIngredient{scan("IBUPROFEN", "이부프로펜")},
		BaselineCodes: []string{"ASPIRIN"},
		Profile:       &entities.UserHealthProfile{BleedingRisk: true, AgeBand: "40s"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(report.Results) != 1 {
		t.Fatalf("expected one finding, got %v", ruleIDs(report.Results))
	}
	r := report.Results[0]
	if r.Level != entities.RiskDanger {
		t.Errorf("warning with bleeding weight 1.5 should become danger, got %s", r.Level)
	}
	if r.PersonalizedNote != noteBleeding {
		t.Errorf("expected the bleeding note, got %q", r.PersonalizedNote)
	}
}

func TestAnalyzeImplicitGroupDuplication(t *testing.T) {
	e := NewEngine(seedCatalog(t))

	report, err := e.Analyze(context.Background(), Request{
		Scanned:       []entities.ExtractedIngredient{scan("ROSUVASTATIN", "로수바스타틴")},
		BaselineCodes: []string{"SIMVASTATIN"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(report.Results) != 1 {
		t.Fatalf("expected one finding, got %v", ruleIDs(report.Results))
	}
	r := report.Results[0]
	if r.RuleID != "therapeutic_group_statin_ROSUVASTATIN_SIMVASTATIN" {
		t.Errorf("unexpected ID %s", r.RuleID)
	}
	if r.Level != entities.RiskNotice || r.Kind != entities.KindDuplicationImplicit || r.Category != entities.CategoryDuplication {
		t.Errorf("unexpected finding: %+v", r)
	}
	wantReason := "로수바스타틴과(와) 심바스타틴은(는) 같은 스타틴(콜레스테롤 약) 계열입니다. 효과 중복으로 부작용이 증가할 수 있습니다."
	if r.Message.Reason != wantReason {
		t.Errorf("unexpected reason %q", r.Message.Reason)
	}
	if r.Message.Conclusion != duplicationConclusion || r.Message.Action != duplicationAction {
		t.Errorf("unexpected message %+v", r.Message)
	}
}

func TestAnalyzeExplicitAndImplicitDuplication(t *testing.T) {
	e := NewEngine(seedCatalog(t))

	report, err := e.Analyze(context.Background(), Request{
		Scanned:       []entities.ExtractedIngredient{scan("ATORVASTATIN", "아토르바스타틴"), scan("SIMVASTATIN", "심바스타틴")},
		BaselineCodes: []string{"SIMVASTATIN"},
		Profile:       &entities.UserHealthProfile{BleedingRisk: true},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	want := []string{
		catalogparser.RuleID(entities.CategoryDuplication, "SIMVASTATIN", "ATORVASTATIN"),
		"therapeutic_group_statin_ATORVASTATIN_SIMVASTATIN",
	}
	if got := ruleIDs(report.Results); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if report.Results[0].Kind != entities.KindDuplicationExplicit || report.Results[0].Level != entities.RiskWarning {
		t.Errorf("unexpected explicit finding: %+v", report.Results[0])
	}
	if report.Results[1].PersonalizedNote != "" {
		t.Error("implicit duplication should not be personalized")
	}
}

func TestAnalyzeDoseTotals(t *testing.T) {
	e := NewEngine(seedCatalog(t))
	doses := []entities.IngredientDose{
		{Code: "ACETAMINOPHEN", Amount: 3000, Unit: "mg", ProductName: "타이레놀"},
		{Code: "ACETAMINOPHEN", Amount: 1, Unit: "g", ProductName: "종합감기약"},
		{Code: "ACETAMINOPHEN", Amount: 5, Unit: "ml", ProductName: "시럽"},
	}

	report, err := e.Analyze(context.Background(), Request{
		Scanned:       []entities.ExtractedIngredient{scanWithDose("ACETAMINOPHEN", "아세트아미노펜", 500, "mg")},
		BaselineCodes: []string{"ACETAMINOPHEN"},
		Doses:         doses,
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	r := findResult(report.Results, entities.KindDoseTotal, "ACETAMINOPHEN")
	if r == nil {
		t.Fatalf("expected a dose total finding, got %v", ruleIDs(report.Results))
	}
	if r.RuleID != "dose_total_ACETAMINOPHEN" || r.Category != entities.CategoryOverdose || r.Level != entities.RiskWarning {
		t.Errorf("unexpected dose finding: %+v", r)
	}
	wantReason := "복용 중인 약과 이번에 확인한 약의 아세트아미노펜 합계가 하루 4500mg으로, 1일 최대 용량 4000mg을(를) 넘습니다."
	if r.Message.Reason != wantReason {
		t.Errorf("unexpected reason %q", r.Message.Reason)
	}

	report, _ = e.Analyze(context.Background(), Request{
		Scanned: []entities.ExtractedIngredient{scanWithDose("ACETAMINOPHEN", "아세트아미노펜", 500, "mg")},
		Doses:   doses,
		Profile: &entities.UserHealthProfile{LiverIssue: true},
	})
	r = findResult(report.Results, entities.KindDoseTotal, "ACETAMINOPHEN")
	if r == nil || r.Level != entities.RiskDanger || r.PersonalizedNote != noteLiver {
		t.Errorf("the overdose rule's liver weight should apply, got %+v", r)
	}

	report, _ = e.Analyze(context.Background(), Request{
		Scanned: []entities.ExtractedIngredient{scanWithDose("ACETAMINOPHEN", "아세트아미노펜", 8, "g")},
	})
	r = findResult(report.Results, entities.KindDoseTotal, "ACETAMINOPHEN")
	if r == nil || r.Level != entities.RiskDanger {
		t.Errorf("twice the daily maximum should be danger, got %+v", r)
	}

	report, _ = e.Analyze(context.Background(), Request{
		Scanned: []entities.ExtractedIngredient{scanWithDose("ACETAMINOPHEN", "아세트아미노펜", 4000, "mg")},
	})
	if findResult(report.Results, entities.KindDoseTotal, "ACETAMINOPHEN") != nil {
		t.Error("a total equal to the maximum should not be reported")
	}
}

func TestAnalyzeDoseTotalsIU(t *testing.T) {
	e := NewEngine(seedCatalog(t))

	report, err := e.Analyze(context.Background(), Request{
		Scanned: []entities.ExtractedIngredient{scanWithDose("VITAMIN_D", "비타민D", 3000, "IU")},
		Doses: []entities.IngredientDose{
			{Code: "VITAMIN_D", Amount: 2000, Unit: "iu"},
			{Code: "VITAMIN_D", Amount: 25, Unit: "mcg"},
		},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	r := findResult(report.Results, entities.KindDoseTotal, "VITAMIN_D")
	if r == nil || r.Level != entities.RiskWarning {
		t.Fatalf("expected a warning for 5000 IU, got %+v", report.Results)
	}
	if r.PersonalizedNote != "" {
		t.Error("no overdose rule exists for vitamin D, weights should be neutral")
	}
}

func TestConvertDose(t *testing.T) {
	tests := []struct {
		amount   float64
		from, to string
		want     float64
		ok       bool
	}{
		{1, "g", "mg", 1000, true},
		{500, "mcg", "mg", 0.5, true},
		{2, "mg", "mcg", 2000, true},
		{10, "밀리그램", "mg", 10, true},
		{5, "cc", "ml", 5, true},
		{100, "IU", "IU", 100, true},
		{100, "IU", "mg", 0, false},
		{5, "ml", "mg", 0, false},
		{5, "", "", 0, false},
	}

	for _, tt := range tests {
		got, ok := convertDose(tt.amount, tt.from, tt.to)
		if ok != tt.ok || got != tt.want {
			t.Errorf("convertDose(%v, %q, %q) = %v, %v; want %v, %v", tt.amount, tt.from, tt.to, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAnalyzeSortsAndAggregates(t *testing.T) {
	e := NewEngine(seedCatalog(t))

	report, err := e.Analyze(context.Background(), Request{
		Scanned: []entities.ExtractedIngredient{
			scan("OMEPRAZOLE", "오메프라졸"),
			scan("SERTRALINE", "설트랄린"),
			scan("NAPROXEN", "나프록센"),
			{OriginalText: "가나다라"},
		},
		BaselineCodes: []string{"ESOMEPRAZOLE", "ST_JOHNS_WORT", "WARFARIN", "IBUPROFEN"},
	})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}

	if len(report.Results) < 4 {
		t.Fatalf("expected several findings, got %v", ruleIDs(report.Results))
	}
	for i := 1; i < len(report.Results); i++ {
		if report.Results[i].Level.Rank() < report.Results[i-1].Level.Rank() {
			t.Errorf("results not sorted by severity at %d: %v", i, ruleIDs(report.Results))
		}
	}
	if report.OverallRisk != report.Results[0].Level {
		t.Errorf("overall risk %s should equal the most severe finding %s", report.OverallRisk, report.Results[0].Level)
	}
	if report.ScannedIngredients[3] != "가나다라" {
		t.Errorf("unmatched scans should be listed by their text, got %v", report.ScannedIngredients)
	}

	present := map[string]bool{"OMEPRAZOLE": true, "SERTRALINE": true, "NAPROXEN": true, "ESOMEPRAZOLE": true, "ST_JOHNS_WORT": true, "WARFARIN": true, "IBUPROFEN": true}
	for _, r := range report.Results {
		if !present[r.TriggerIngredient.Code] {
			t.Errorf("trigger %s is neither scanned nor registered", r.TriggerIngredient.Code)
		}
	}
	for _, id := range ruleIDs(report.Results) {
		if id == catalogparser.RuleID(entities.CategoryHDI, "ST_JOHNS_WORT", "WARFARIN") {
			t.Error("a rule between two registered ingredients must be suppressed")
		}
	}
}

func TestOverallRisk(t *testing.T) {
	if got := OverallRisk(nil); got != entities.RiskNotice {
		t.Errorf("no findings should be notice, got %s", got)
	}
	results := []entities.AnalysisResult{{Level: entities.RiskNotice}, {Level: entities.RiskWarning}}
	if got := OverallRisk(results); got != entities.RiskWarning {
		t.Errorf("expected warning, got %s", got)
	}
}

func TestAnalyzeEmptyRequest(t *testing.T) {
	logging.InitLogger("")
	e := NewEngine(data.NewCatalogContainer())

	report, err := e.Analyze(context.Background(), Request{})
	if err != nil {
		t.Fatalf("an empty request should not touch the catalog: %v", err)
	}
	if report.OverallRisk != entities.RiskNotice || report.Results == nil || len(report.Results) != 0 {
		t.Errorf("unexpected empty report: %+v", report)
	}
}

type failingCatalog struct {
	interfaces.Catalog
}

func (failingCatalog) FindIngredientsByCodes(context.Context, []string) ([]entities.StandardIngredient, error) {
	return nil, errors.New("connection reset")
}

func TestAnalyzeCatalogErrors(t *testing.T) {
	logging.InitLogger("")
	req := Request{Scanned: []entities.ExtractedIngredient{scan("ASPIRIN", "아스피린")}}

	if _, err := NewEngine(data.NewCatalogContainer()).Analyze(context.Background(), req); !errors.Is(err, entities.ErrCatalogUnavailable) {
		t.Errorf("expected ErrCatalogUnavailable from an empty catalog, got %v", err)
	}
	if _, err := NewEngine(failingCatalog{}).Analyze(context.Background(), req); !errors.Is(err, entities.ErrCatalogUnavailable) {
		t.Errorf("store errors should be reported as ErrCatalogUnavailable, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEngine(seedCatalog(t)).Analyze(ctx, req); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	e := NewEngine(seedCatalog(t))
	req := Request{
		Scanned:       []entities.ExtractedIngredient{scan("IBUPROFEN", "이부프로펜"), scan("GRAPEFRUIT", "자몽")},
		BaselineCodes: []string{"WARFARIN", "ASPIRIN", "SIMVASTATIN", "NAPROXEN"},
		Profile:       &entities.UserHealthProfile{KidneyIssue: true, AgeBand: "70+"},
	}

	first, err := e.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, _ := e.Analyze(context.Background(), req)
		if !reflect.DeepEqual(first.Results, again.Results) || first.OverallRisk != again.OverallRisk {
			t.Fatalf("run %d differs from the first analysis", i)
		}
	}
}
