package data

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/google/uuid"
)

// Compile-time check to ensure UserRepository implements UserStore
var _ interfaces.UserStore = (*UserRepository)(nil)

// DemoUserID is the user seeded by SeedDemoUser
const DemoUserID = "demo"

type userRecord struct {
	profile  *entities.UserHealthProfile
	products []entities.Product
}

// UserRepository is an in-memory UserStore
type UserRepository struct {
	mu    sync.RWMutex
	users map[string]*userRecord
}

// NewUserRepository creates an empty repository
func NewUserRepository() *UserRepository {
	return &UserRepository{users: make(map[string]*userRecord)}
}

// SeedDemoUser registers a user in their 30s who already takes warfarin
func (ur *UserRepository) SeedDemoUser(ctx context.Context) error {
	if err := ur.SaveHealthProfile(ctx, DemoUserID, entities.UserHealthProfile{AgeBand: "30s"}); err != nil {
		return err
	}
	_, err := ur.AddProduct(ctx, DemoUserID, entities.Product{
		Name: "쿠마딘 (와파린)",
		Ingredients: []entities.IngredientDose{
			{Code: "WARFARIN", Amount: 5, Unit: "mg"},
		},
	})
	return err
}

func (ur *UserRepository) record(userID string) *userRecord {
	rec, ok := ur.users[userID]
	if !ok {
		rec = &userRecord{}
		ur.users[userID] = rec
	}
	return rec
}

// FindUserBaselineIngredientCodes returns distinct codes across products in registration order
func (ur *UserRepository) FindUserBaselineIngredientCodes(ctx context.Context, userID string) ([]string, error) {
	ur.mu.RLock()
	defer ur.mu.RUnlock()

	rec, ok := ur.users[userID]
	if !ok {
		return []string{}, nil
	}

	codes := []string{}
	for _, p := range rec.products {
		for _, ing := range p.Ingredients {
			if !slices.Contains(codes, ing.Code) {
				codes = append(codes, ing.Code)
			}
		}
	}
	return codes, nil
}

// FindUserHealthProfile returns a copy of the profile, nil when none was saved
func (ur *UserRepository) FindUserHealthProfile(ctx context.Context, userID string) (*entities.UserHealthProfile, error) {
	ur.mu.RLock()
	defer ur.mu.RUnlock()

	rec, ok := ur.users[userID]
	if !ok || rec.profile == nil {
		return nil, nil
	}
	profile := *rec.profile
	return &profile, nil
}

// FindUserIngredientDoses flattens every product ingredient, tagging it with the product name
func (ur *UserRepository) FindUserIngredientDoses(ctx context.Context, userID string) ([]entities.IngredientDose, error) {
	ur.mu.RLock()
	defer ur.mu.RUnlock()

	rec, ok := ur.users[userID]
	if !ok {
		return nil, nil
	}

	var doses []entities.IngredientDose
	for _, p := range rec.products {
		for _, ing := range p.Ingredients {
			ing.ProductName = p.Name
			doses = append(doses, ing)
		}
	}
	return doses, nil
}

// ListProducts returns the user's products in registration order
func (ur *UserRepository) ListProducts(ctx context.Context, userID string) ([]entities.Product, error) {
	ur.mu.RLock()
	defer ur.mu.RUnlock()

	rec, ok := ur.users[userID]
	if !ok {
		return []entities.Product{}, nil
	}

	out := make([]entities.Product, len(rec.products))
	for i, p := range rec.products {
		p.Ingredients = slices.Clone(p.Ingredients)
		out[i] = p
	}
	return out, nil
}

// AddProduct stores a product and assigns it an ID
func (ur *UserRepository) AddProduct(ctx context.Context, userID string, product entities.Product) (entities.Product, error) {
	if strings.TrimSpace(product.Name) == "" {
		return entities.Product{}, fmt.Errorf("product name is required: %w", entities.ErrInvalidInput)
	}

	product.ID = uuid.NewString()
	product.Ingredients = slices.Clone(product.Ingredients)

	ur.mu.Lock()
	defer ur.mu.Unlock()

	rec := ur.record(userID)
	rec.products = append(rec.products, product)
	return product, nil
}

// SaveHealthProfile creates or replaces the user's profile
func (ur *UserRepository) SaveHealthProfile(ctx context.Context, userID string, profile entities.UserHealthProfile) error {
	ur.mu.Lock()
	defer ur.mu.Unlock()

	ur.record(userID).profile = &profile
	return nil
}
