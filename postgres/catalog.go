package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/logging"
	"github.com/lib/pq"
)

const ingredientColumns = `i.id, i.code, i.name_ko, i.name_en, i.category, i.therapeutic_group,
	i.max_daily_dose, i.max_daily_unit, i.description`

const aliasQuery = `
	SELECT a.id, a.alias_name, a.alias_type, a.priority, ` + ingredientColumns + `
	FROM ingredient_alias a
	JOIN standard_ingredient i ON i.id = a.ingredient_id`

// nullableIngredient scans a possibly LEFT JOINed ingredient row
type nullableIngredient struct {
	id               sql.NullInt64
	code             sql.NullString
	nameKo           sql.NullString
	nameEn           sql.NullString
	category         sql.NullString
	therapeuticGroup sql.NullString
	maxDailyDose     sql.NullFloat64
	maxDailyUnit     sql.NullString
	description      sql.NullString
}

func (n *nullableIngredient) dest() []any {
	return []any{&n.id, &n.code, &n.nameKo, &n.nameEn, &n.category, &n.therapeuticGroup,
		&n.maxDailyDose, &n.maxDailyUnit, &n.description}
}

func (n *nullableIngredient) value() *entities.StandardIngredient {
	if !n.id.Valid {
		return nil
	}
	ing := &entities.StandardIngredient{
		ID:               n.id.Int64,
		Code:             n.code.String,
		NameKo:           n.nameKo.String,
		NameEn:           n.nameEn.String,
		Category:         n.category.String,
		TherapeuticGroup: n.therapeuticGroup.String,
		MaxDailyUnit:     n.maxDailyUnit.String,
		Description:      n.description.String,
	}
	if n.maxDailyDose.Valid {
		dose := n.maxDailyDose.Float64
		ing.MaxDailyDose = &dose
	}
	return ing
}

func (s *Store) queryAliases(ctx context.Context, op, query string, args ...any) ([]entities.AliasMatch, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	var out []entities.AliasMatch
	for rows.Next() {
		var alias entities.IngredientAlias
		var ing nullableIngredient
		dest := append([]any{&alias.ID, &alias.AliasName, &alias.AliasType, &alias.Priority}, ing.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, storeError(op, err)
		}
		match := entities.AliasMatch{Alias: alias, Ingredient: *ing.value()}
		match.Alias.IngredientID = match.Ingredient.ID
		match.Alias.IngredientCode = match.Ingredient.Code
		out = append(out, match)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return out, nil
}

// FindAliasesExact returns the aliases equal to name, ignoring case, best priority first
func (s *Store) FindAliasesExact(ctx context.Context, name string) ([]entities.AliasMatch, error) {
	return s.queryAliases(ctx, "find aliases", aliasQuery+`
		WHERE lower(a.alias_name) = lower($1)
		ORDER BY a.priority DESC, a.id`, name)
}

// FindAliasesContaining uses strpos so that % and _ in user input stay literal
func (s *Store) FindAliasesContaining(ctx context.Context, substring string, limit int) ([]entities.AliasMatch, error) {
	if substring == "" {
		return nil, nil
	}
	var limitArg sql.NullInt64
	if limit > 0 {
		limitArg = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	return s.queryAliases(ctx, "search aliases", aliasQuery+`
		WHERE strpos(lower(a.alias_name), lower($1)) > 0
		ORDER BY a.priority DESC, a.id
		LIMIT $2`, substring, limitArg)
}

func (s *Store) queryIngredients(ctx context.Context, op, query string, args ...any) ([]entities.StandardIngredient, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeError(op, err)
	}
	defer rows.Close()

	var out []entities.StandardIngredient
	for rows.Next() {
		var ing nullableIngredient
		if err := rows.Scan(ing.dest()...); err != nil {
			return nil, storeError(op, err)
		}
		out = append(out, *ing.value())
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(op, err)
	}
	return out, nil
}

// FindIngredientsByNameSubstring returns the ingredients whose Korean or English name contains text, ignoring case
func (s *Store) FindIngredientsByNameSubstring(ctx context.Context, text string) ([]entities.StandardIngredient, error) {
	if text == "" {
		return nil, nil
	}
	return s.queryIngredients(ctx, "search ingredient names", `
		SELECT `+ingredientColumns+`
		FROM standard_ingredient i
		WHERE strpos(lower(i.name_ko), lower($1)) > 0 OR strpos(lower(i.name_en), lower($1)) > 0
		ORDER BY i.id`, text)
}

// FindIngredientsByCodes returns ingredients in the order of codes
func (s *Store) FindIngredientsByCodes(ctx context.Context, codes []string) ([]entities.StandardIngredient, error) {
	if len(codes) == 0 {
		return []entities.StandardIngredient{}, nil
	}
	rows, err := s.queryIngredients(ctx, "resolve codes", `
		SELECT `+ingredientColumns+`
		FROM standard_ingredient i
		WHERE i.code = ANY($1)`, pq.Array(codes))
	if err != nil {
		return nil, err
	}

	byCode := make(map[string]entities.StandardIngredient, len(rows))
	for _, ing := range rows {
		byCode[ing.Code] = ing
	}
	out := make([]entities.StandardIngredient, 0, len(rows))
	for _, code := range codes {
		if ing, ok := byCode[code]; ok {
			out = append(out, ing)
			delete(byCode, code)
		}
	}
	return out, nil
}

// FindActiveRulesInvolving returns the active rules whose trigger or target is one of ids
func (s *Store) FindActiveRulesInvolving(ctx context.Context, ids []int64) ([]entities.InteractionRule, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.category, r.base_risk,
			r.liver_weight, r.kidney_weight, r.bleeding_weight, r.pregnancy_weight, r.elderly_weight,
			r.conclusion, r.reason, r.action, r.evidence_url,
			t.id, t.code, t.name_ko, t.name_en, t.category, t.therapeutic_group,
			t.max_daily_dose, t.max_daily_unit, t.description,
			g.id, g.code, g.name_ko, g.name_en, g.category, g.therapeutic_group,
			g.max_daily_dose, g.max_daily_unit, g.description
		FROM interaction_rule r
		JOIN standard_ingredient t ON t.id = r.trigger_ingredient_id
		LEFT JOIN standard_ingredient g ON g.id = r.target_ingredient_id
		WHERE r.is_active
			AND (r.trigger_ingredient_id = ANY($1) OR r.target_ingredient_id = ANY($1))
		ORDER BY r.position`, pq.Array(ids))
	if err != nil {
		return nil, storeError("load rules", err)
	}
	defer rows.Close()

	var out []entities.InteractionRule
	for rows.Next() {
		var rule entities.InteractionRule
		var category, baseRisk string
		var trigger, target nullableIngredient

		dest := []any{&rule.ID, &category, &baseRisk,
			&rule.Weights.Liver, &rule.Weights.Kidney, &rule.Weights.Bleeding, &rule.Weights.Pregnancy, &rule.Weights.Elderly,
			&rule.Conclusion, &rule.Reason, &rule.Action, &rule.EvidenceURL}
		dest = append(dest, trigger.dest()...)
		dest = append(dest, target.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, storeError("load rules", err)
		}

		if rule.Category, err = entities.ParseRuleCategory(category); err != nil {
			logging.Warn("Skipping rule with unknown category", "rule_id", rule.ID, "category", category)
			continue
		}
		if rule.BaseRisk, err = entities.ParseRiskLevel(baseRisk); err != nil {
			logging.Warn("Skipping rule with unknown risk level", "rule_id", rule.ID, "base_risk", baseRisk)
			continue
		}
		rule.Trigger = *trigger.value()
		rule.Target = target.value()
		rule.IsActive = true
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("load rules", err)
	}
	return out, nil
}

// ReplaceCatalog rewrites the catalog tables in one transaction
func (s *Store) ReplaceCatalog(ctx context.Context, snapshot *entities.CatalogSnapshot) error {
	if snapshot == nil || len(snapshot.Ingredients) == 0 {
		return fmt.Errorf("refusing to load an empty catalog")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return storeError("begin catalog transaction", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"interaction_rule", "ingredient_alias", "standard_ingredient"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return storeError("clear "+table, err)
		}
	}

	if err := insertIngredients(ctx, tx, snapshot.Ingredients); err != nil {
		return err
	}
	if err := insertAliases(ctx, tx, snapshot.Aliases); err != nil {
		return err
	}
	if err := insertRules(ctx, tx, snapshot.Rules); err != nil {
		return err
	}

	now := time.Now()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO catalog_meta (id, version, updated_at) VALUES (1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET version = EXCLUDED.version, updated_at = EXCLUDED.updated_at`,
		snapshot.Version, now); err != nil {
		return storeError("write catalog meta", err)
	}

	if err := tx.Commit(); err != nil {
		return storeError("commit catalog", err)
	}

	s.version.Store(snapshot.Version)
	s.counts.Store(entities.CatalogCounts{
		Ingredients: len(snapshot.Ingredients),
		Aliases:     len(snapshot.Aliases),
		Rules:       len(snapshot.Rules),
	})
	s.lastUpdated.Store(now)
	return nil
}

// MarkChecked moves the catalog timestamp forward without touching the rows
func (s *Store) MarkChecked(ctx context.Context) error {
	now := time.Now()
	if _, err := s.db.ExecContext(ctx, `UPDATE catalog_meta SET updated_at = $1 WHERE id = 1`, now); err != nil {
		return storeError("mark catalog checked", err)
	}
	s.lastUpdated.Store(now)
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func insertIngredients(ctx context.Context, tx *sql.Tx, ingredients []entities.StandardIngredient) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO standard_ingredient
			(id, code, name_ko, name_en, category, therapeutic_group, max_daily_dose, max_daily_unit, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return storeError("prepare ingredient insert", err)
	}
	defer stmt.Close()

	for _, ing := range ingredients {
		var maxDose sql.NullFloat64
		if ing.MaxDailyDose != nil {
			maxDose = sql.NullFloat64{Float64: *ing.MaxDailyDose, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, ing.ID, ing.Code, ing.NameKo, ing.NameEn, ing.Category,
			nullString(ing.TherapeuticGroup), maxDose, ing.MaxDailyUnit, ing.Description); err != nil {
			return storeError("insert ingredient "+ing.Code, err)
		}
	}
	return nil
}

func insertAliases(ctx context.Context, tx *sql.Tx, aliases []entities.IngredientAlias) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ingredient_alias (id, ingredient_id, alias_name, alias_type, priority)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return storeError("prepare alias insert", err)
	}
	defer stmt.Close()

	for _, a := range aliases {
		if _, err := stmt.ExecContext(ctx, a.ID, a.IngredientID, a.AliasName, a.AliasType, a.Priority); err != nil {
			return storeError("insert alias "+a.AliasName, err)
		}
	}
	return nil
}

func insertRules(ctx context.Context, tx *sql.Tx, rules []entities.InteractionRule) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interaction_rule
			(id, position, category, trigger_ingredient_id, target_ingredient_id, base_risk,
			 liver_weight, kidney_weight, bleeding_weight, pregnancy_weight, elderly_weight,
			 conclusion, reason, action, evidence_url, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`)
	if err != nil {
		return storeError("prepare rule insert", err)
	}
	defer stmt.Close()

	for i, r := range rules {
		var target sql.NullInt64
		if r.Target != nil {
			target = sql.NullInt64{Int64: r.Target.ID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, r.ID, i, string(r.Category), r.Trigger.ID, target, string(r.BaseRisk),
			r.Weights.Liver, r.Weights.Kidney, r.Weights.Bleeding, r.Weights.Pregnancy, r.Weights.Elderly,
			r.Conclusion, r.Reason, r.Action, r.EvidenceURL, r.IsActive); err != nil {
			return storeError("insert rule "+r.ID, err)
		}
	}
	return nil
}
