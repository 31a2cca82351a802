package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/google/uuid"
)

const productIngredientQuery = `
	SELECT p.id, p.name, pi.ingredient_code, pi.amount, pi.unit
	FROM user_product p
	LEFT JOIN user_product_ingredient pi ON pi.product_id = p.id
	WHERE p.user_id = $1
	ORDER BY p.seq, pi.position`

// products loads a user's products with their ingredients in registration order
func (s *Store) products(ctx context.Context, userID string) ([]entities.Product, error) {
	rows, err := s.db.QueryContext(ctx, productIngredientQuery, userID)
	if err != nil {
		return nil, storeError("load products", err)
	}
	defer rows.Close()

	out := []entities.Product{}
	for rows.Next() {
		var id, name string
		var code, unit sql.NullString
		var amount sql.NullFloat64
		if err := rows.Scan(&id, &name, &code, &amount, &unit); err != nil {
			return nil, storeError("load products", err)
		}

		if len(out) == 0 || out[len(out)-1].ID != id {
			out = append(out, entities.Product{ID: id, Name: name, Ingredients: []entities.IngredientDose{}})
		}
		if code.Valid {
			p := &out[len(out)-1]
			p.Ingredients = append(p.Ingredients, entities.IngredientDose{Code: code.String, Amount: amount.Float64, Unit: unit.String})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("load products", err)
	}
	return out, nil
}

// FindUserBaselineIngredientCodes returns the distinct codes of the user's products
func (s *Store) FindUserBaselineIngredientCodes(ctx context.Context, userID string) ([]string, error) {
	products, err := s.products(ctx, userID)
	if err != nil {
		return nil, err
	}

	codes := []string{}
	seen := make(map[string]struct{})
	for _, p := range products {
		for _, ing := range p.Ingredients {
			if _, ok := seen[ing.Code]; ok {
				continue
			}
			seen[ing.Code] = struct{}{}
			codes = append(codes, ing.Code)
		}
	}
	return codes, nil
}

// FindUserHealthProfile returns nil without error when the user has no profile
func (s *Store) FindUserHealthProfile(ctx context.Context, userID string) (*entities.UserHealthProfile, error) {
	var p entities.UserHealthProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT liver_issue, kidney_issue, bleeding_risk, pregnancy_lactation, age_band
		FROM user_profile WHERE user_id = $1`, userID).
		Scan(&p.LiverIssue, &p.KidneyIssue, &p.BleedingRisk, &p.PregnancyLactation, &p.AgeBand)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, storeError("load profile", err)
	}
	return &p, nil
}

// FindUserIngredientDoses returns one entry per product ingredient
func (s *Store) FindUserIngredientDoses(ctx context.Context, userID string) ([]entities.IngredientDose, error) {
	products, err := s.products(ctx, userID)
	if err != nil {
		return nil, err
	}

	var doses []entities.IngredientDose
	for _, p := range products {
		for _, ing := range p.Ingredients {
			ing.ProductName = p.Name
			doses = append(doses, ing)
		}
	}
	return doses, nil
}

// ListProducts returns the user's products in registration order
func (s *Store) ListProducts(ctx context.Context, userID string) ([]entities.Product, error) {
	return s.products(ctx, userID)
}

// AddProduct stores product with a new ID and returns it
func (s *Store) AddProduct(ctx context.Context, userID string, product entities.Product) (entities.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return entities.Product{}, fmt.Errorf("product name is required: %w", entities.ErrInvalidInput)
	}
	product.ID = uuid.NewString()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entities.Product{}, storeError("begin product transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO user_product (id, user_id, name) VALUES ($1, $2, $3)`,
		product.ID, userID, product.Name); err != nil {
		return entities.Product{}, storeError("insert product", err)
	}
	for i, ing := range product.Ingredients {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO user_product_ingredient (product_id, position, ingredient_code, amount, unit)
			VALUES ($1, $2, $3, $4, $5)`, product.ID, i, ing.Code, ing.Amount, ing.Unit); err != nil {
			return entities.Product{}, storeError("insert product ingredient", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return entities.Product{}, storeError("commit product", err)
	}
	return product, nil
}

// SaveHealthProfile creates or replaces the user's profile
func (s *Store) SaveHealthProfile(ctx context.Context, userID string, profile entities.UserHealthProfile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_profile (user_id, liver_issue, kidney_issue, bleeding_risk, pregnancy_lactation, age_band)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			liver_issue = EXCLUDED.liver_issue,
			kidney_issue = EXCLUDED.kidney_issue,
			bleeding_risk = EXCLUDED.bleeding_risk,
			pregnancy_lactation = EXCLUDED.pregnancy_lactation,
			age_band = EXCLUDED.age_band`,
		userID, profile.LiverIssue, profile.KidneyIssue, profile.BleedingRisk, profile.PregnancyLactation, profile.AgeBand)
	if err != nil {
		return storeError("save profile", err)
	}
	return nil
}
