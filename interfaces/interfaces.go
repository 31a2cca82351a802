// Package interfaces defines the core abstractions of the medcheck API so that the
// matching and risk engine can be wired against any catalog or user store.
package interfaces

import (
	"context"
	"net/http"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
)

// Catalog is the read-only query contract of the ingredient and rule store.
// Every method returns an error wrapping entities.ErrCatalogUnavailable when the store
// cannot be queried.
type Catalog interface {
	// FindAliasesExact returns aliases equal to name (case-insensitive), priority desc
	FindAliasesExact(ctx context.Context, name string) ([]entities.AliasMatch, error)

	// FindAliasesContaining returns at most limit aliases containing substring, priority desc
	FindAliasesContaining(ctx context.Context, substring string, limit int) ([]entities.AliasMatch, error)

	// FindIngredientsByNameSubstring searches the Korean and English standard names
	FindIngredientsByNameSubstring(ctx context.Context, text string) ([]entities.StandardIngredient, error)

	// FindIngredientsByCodes resolves codes to ingredients, unknown codes are ignored
	FindIngredientsByCodes(ctx context.Context, codes []string) ([]entities.StandardIngredient, error)

	// FindActiveRulesInvolving returns active rules whose trigger or target is in ids
	FindActiveRulesInvolving(ctx context.Context, ids []int64) ([]entities.InteractionRule, error)

	// Version identifies the loaded catalog content
	Version() string
}

// CatalogStore is a Catalog that can be reloaded in place
type CatalogStore interface {
	Catalog

	ReplaceCatalog(ctx context.Context, snapshot *entities.CatalogSnapshot) error
	// MarkChecked refreshes GetLastUpdated after a reload found the catalog unchanged
	MarkChecked(ctx context.Context) error
	Counts() entities.CatalogCounts
	GetLastUpdated() time.Time
	IsUpdating() bool
	BeginUpdate() bool
	EndUpdate()
	GetServerStartTime() time.Time
}

// CatalogParser produces catalog snapshots from the embedded bundle or a remote source
type CatalogParser interface {
	ParseCatalog(ctx context.Context) (*entities.CatalogSnapshot, error)
}

// UserStore holds the medications and health profile of each user
type UserStore interface {
	// FindUserBaselineIngredientCodes returns the distinct codes of all registered products
	FindUserBaselineIngredientCodes(ctx context.Context, userID string) ([]string, error)

	// FindUserHealthProfile returns nil without error when the user has no profile
	FindUserHealthProfile(ctx context.Context, userID string) (*entities.UserHealthProfile, error)

	// FindUserIngredientDoses returns every registered amount, one entry per product ingredient
	FindUserIngredientDoses(ctx context.Context, userID string) ([]entities.IngredientDose, error)

	ListProducts(ctx context.Context, userID string) ([]entities.Product, error)
	AddProduct(ctx context.Context, userID string, product entities.Product) (entities.Product, error)
	SaveHealthProfile(ctx context.Context, userID string, profile entities.UserHealthProfile) error
}

// Recognizer turns an image into raw text
type Recognizer interface {
	Recognize(ctx context.Context, image []byte) (string, error)
	Name() string
}

// SearchHit is one autocomplete result
type SearchHit struct {
	Code         string `json:"code"`
	NameKo       string `json:"nameKo"`
	NameEn       string `json:"nameEn"`
	Category     string `json:"category"`
	MatchedAlias string `json:"matchedAlias"`
}

// SearchCache caches autocomplete results. Implementations treat their own failures as misses.
type SearchCache interface {
	Get(ctx context.Context, key string) ([]SearchHit, bool)
	Set(ctx context.Context, key string, hits []SearchHit)
}

// Scheduler manages catalog reloads
type Scheduler interface {
	Start() error
	Stop()
}

// HTTPHandler defines the contract for HTTP request handlers
type HTTPHandler interface {
	ExtractText(w http.ResponseWriter, r *http.Request)
	ExtractImage(w http.ResponseWriter, r *http.Request)
	SearchIngredients(w http.ResponseWriter, r *http.Request)
	FindIngredientByCode(w http.ResponseWriter, r *http.Request)
	Analyze(w http.ResponseWriter, r *http.Request)
	ScanForUser(w http.ResponseWriter, r *http.Request)
	ListProducts(w http.ResponseWriter, r *http.Request)
	AddProduct(w http.ResponseWriter, r *http.Request)
	GetProfile(w http.ResponseWriter, r *http.Request)
	SaveProfile(w http.ResponseWriter, r *http.Request)
	HealthCheck(w http.ResponseWriter, r *http.Request)
}

// HealthChecker reports service health
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
	CalculateNextUpdate() time.Time
}

// DataValidator validates user input and catalog content
type DataValidator interface {
	ValidateInput(input string) error
	ValidateCode(code string) (string, error)
	ValidateUserID(id string) error
	ValidateProfile(profile *entities.UserHealthProfile) error
	ReportCatalogQuality(snapshot *entities.CatalogSnapshot) *entities.CatalogQualityReport
}
