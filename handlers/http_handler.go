package handlers

import (
	"io"
	"mime"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/extraction"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/normalizer"
	"github.com/giygas/medcheck-api/risk"
	"github.com/go-chi/chi/v5"
)

const (
	// DefaultMaxImageBody caps uploaded images when Deps.MaxImageBody is unset
	DefaultMaxImageBody int64 = 10 << 20

	maxTextRunes      = 5000
	maxAnalyzeItems   = 200
	maxScanNames      = 50
	maxProductItems   = 30
	maxProductNameLen = 200
)

// Deps groups what the handlers need
type Deps struct {
	Pipeline      *extraction.Pipeline
	Service       *risk.Service
	Catalog       interfaces.Catalog
	Users         interfaces.UserStore
	Validator     interfaces.DataValidator
	HealthChecker interfaces.HealthChecker
	MaxImageBody  int64
}

// HTTPHandlerImpl implements the HTTPHandler interface
type HTTPHandlerImpl struct {
	pipeline      *extraction.Pipeline
	service       *risk.Service
	catalog       interfaces.Catalog
	users         interfaces.UserStore
	validator     interfaces.DataValidator
	healthChecker interfaces.HealthChecker
	maxImageBody  int64
}

// NewHTTPHandler creates a new HTTP handler
func NewHTTPHandler(deps Deps) interfaces.HTTPHandler {
	maxImage := deps.MaxImageBody
	if maxImage <= 0 {
		maxImage = DefaultMaxImageBody
	}
	return &HTTPHandlerImpl{
		pipeline:      deps.Pipeline,
		service:       deps.Service,
		catalog:       deps.Catalog,
		users:         deps.Users,
		validator:     deps.Validator,
		healthChecker: deps.HealthChecker,
		maxImageBody:  maxImage,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status string         `json:"status"`
	Data   map[string]any `json:"data"`
	System map[string]any `json:"system"`
}

type extractTextRequest struct {
	Text string `json:"text"`
}

type analyzeRequest struct {
	Scanned  []entities.ExtractedIngredient `json:"scanned"`
	Baseline []string                       `json:"baseline"`
	Profile  *entities.UserHealthProfile    `json:"profile"`
	Doses    []entities.IngredientDose      `json:"doses"`
}

// Scan modes of ScanForUser
const (
	ScanModeText        = "text"
	ScanModeIngredients = "ingredients"
)

type scanRequest struct {
	Mode        string   `json:"mode"`
	Text        string   `json:"text"`
	Ingredients []string `json:"ingredients"`
}

type scanResponse struct {
	Extraction *extraction.ExtractionResult `json:"extraction"`
	Analysis   *entities.AnalysisReport     `json:"analysis"`
}

// ExtractText runs the extraction pipeline over pasted label text
func (h *HTTPHandlerImpl) ExtractText(w http.ResponseWriter, r *http.Request) {
	var req extractTextRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	if err := checkTextLength(req.Text); err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	result, err := h.pipeline.ExtractFromText(r.Context(), req.Text)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, result)
}

// ExtractImage reads a raw image body, recognizes its text and extracts ingredients
func (h *HTTPHandlerImpl) ExtractImage(w http.ResponseWriter, r *http.Request) {
	image, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxImageBody))
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	if len(image) == 0 {
		RespondWithError(w, http.StatusBadRequest, "Image body is empty")
		return
	}
	if !isImage(r.Header.Get("Content-Type"), image) {
		logging.Warn("Rejected non-image upload", "content_type", r.Header.Get("Content-Type"), "size", len(image))
		RespondWithError(w, http.StatusUnsupportedMediaType, "Body must be an image")
		return
	}

	result, err := h.pipeline.ExtractFromImage(r.Context(), image)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, result)
}

// isImage trusts an explicit image/* content type and sniffs the body otherwise
func isImage(contentType string, body []byte) bool {
	if contentType != "" {
		if mediaType, _, err := mime.ParseMediaType(contentType); err == nil && strings.HasPrefix(mediaType, "image/") {
			return true
		}
		if contentType != "application/octet-stream" {
			return false
		}
	}
	return strings.HasPrefix(http.DetectContentType(body), "image/")
}

// SearchIngredients serves the autocomplete search
func (h *HTTPHandlerImpl) SearchIngredients(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if strings.TrimSpace(query) == "" {
		RespondWithError(w, http.StatusBadRequest, "Missing search term")
		return
	}
	if err := h.validator.ValidateInput(query); err != nil {
		logging.Warn("Unusual user input", "q", query)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := extraction.DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > extraction.MaxSearchLimit {
			RespondWithError(w, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(extraction.MaxSearchLimit))
			return
		}
		limit = parsed
	}

	hits, err := h.pipeline.SearchIngredient(r.Context(), query, limit)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, hits)
}

// FindIngredientByCode returns one standard ingredient
func (h *HTTPHandlerImpl) FindIngredientByCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.validator.ValidateCode(chi.URLParam(r, "code"))
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	found, err := h.catalog.FindIngredientsByCodes(r.Context(), []string{code})
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	if len(found) == 0 {
		RespondWithError(w, http.StatusNotFound, "Ingredient not found")
		return
	}

	RespondWithJSON(w, http.StatusOK, found[0])
}

// Analyze runs the interaction engine over a stateless request
func (h *HTTPHandlerImpl) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	if len(req.Scanned)+len(req.Baseline)+len(req.Doses) > maxAnalyzeItems {
		RespondWithError(w, http.StatusBadRequest, "Too many items: maximum "+strconv.Itoa(maxAnalyzeItems))
		return
	}

	scanned, err := h.normalizeScanned(req.Scanned)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	baseline, err := h.normalizeCodes(req.Baseline)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	doses, err := h.normalizeDoses(req.Doses)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	if req.Profile != nil {
		if err := h.validator.ValidateProfile(req.Profile); err != nil {
			RespondWithError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	report, err := h.service.Analyze(r.Context(), risk.Request{
		Scanned:       scanned,
		BaselineCodes: baseline,
		Profile:       req.Profile,
		Doses:         doses,
	})
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, report)
}

// ScanForUser extracts ingredients and analyzes them against the user's products and profile
func (h *HTTPHandlerImpl) ScanForUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req scanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	var (
		result *extraction.ExtractionResult
		err    error
	)
	switch strings.ToLower(strings.TrimSpace(req.Mode)) {
	case "", ScanModeText:
		if err = checkTextLength(req.Text); err == nil {
			result, err = h.pipeline.ExtractFromText(r.Context(), req.Text)
		}
	case ScanModeIngredients:
		if err = h.checkNames(req.Ingredients); err == nil {
			result, err = h.pipeline.ResolveNames(r.Context(), req.Ingredients)
		}
	default:
		err = invalid("unknown scan mode %q: expected %s or %s", req.Mode, ScanModeText, ScanModeIngredients)
	}
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	report, err := h.service.AnalyzeForUser(r.Context(), userID, result.Ingredients)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, scanResponse{Extraction: result, Analysis: report})
}

// ListProducts returns the products a user registered
func (h *HTTPHandlerImpl) ListProducts(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	products, err := h.users.ListProducts(r.Context(), userID)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	if products == nil {
		products = []entities.Product{}
	}

	RespondWithJSON(w, http.StatusOK, products)
}

// AddProduct registers a product and its ingredient doses
func (h *HTTPHandlerImpl) AddProduct(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var product entities.Product
	if err := decodeJSON(r, &product); err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		RespondWithError(w, http.StatusBadRequest, "Product name is required")
		return
	}
	if utf8.RuneCountInString(product.Name) > maxProductNameLen {
		RespondWithError(w, http.StatusBadRequest, "Product name too long")
		return
	}
	if len(product.Ingredients) > maxProductItems {
		RespondWithError(w, http.StatusBadRequest, "Too many ingredients: maximum "+strconv.Itoa(maxProductItems))
		return
	}

	doses, err := h.normalizeDoses(product.Ingredients)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	product.ID = ""
	product.Ingredients = doses

	saved, err := h.users.AddProduct(r.Context(), userID, product)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	logging.Info("Product registered", "user", userID, "product", saved.ID, "ingredients", len(saved.Ingredients))
	RespondWithJSON(w, http.StatusCreated, saved)
}

// GetProfile returns the user's health profile
func (h *HTTPHandlerImpl) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	profile, err := h.users.FindUserHealthProfile(r.Context(), userID)
	if err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	if profile == nil {
		RespondWithError(w, http.StatusNotFound, "Profile not found")
		return
	}

	RespondWithJSON(w, http.StatusOK, profile)
}

// SaveProfile replaces the user's health profile
func (h *HTTPHandlerImpl) SaveProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var profile entities.UserHealthProfile
	if err := decodeJSON(r, &profile); err != nil {
		respondWithDomainError(w, r, err)
		return
	}
	if err := h.validator.ValidateProfile(&profile); err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.users.SaveHealthProfile(r.Context(), userID, profile); err != nil {
		respondWithDomainError(w, r, err)
		return
	}

	RespondWithJSON(w, http.StatusOK, profile)
}

// HealthCheck returns server health information
func (h *HTTPHandlerImpl) HealthCheck(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	status, data, httpStatus := h.healthChecker.HealthCheck()
	if seconds, ok := data["uptime_seconds"].(int64); ok {
		data["uptime"] = formatUptimeHuman(time.Duration(seconds) * time.Second)
	}

	RespondWithJSON(w, httpStatus, HealthResponse{
		Status: status,
		Data:   data,
		System: map[string]any{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       int(m.Alloc / 1024 / 1024),
				"total_alloc_mb": int(m.TotalAlloc / 1024 / 1024),
				"sys_mb":         int(m.Sys / 1024 / 1024),
				"num_gc":         m.NumGC,
			},
		},
	})
}

func (h *HTTPHandlerImpl) userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := chi.URLParam(r, "userID")
	if err := h.validator.ValidateUserID(userID); err != nil {
		logging.Warn("Unusual user id", "user", userID)
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return userID, true
}

func checkTextLength(text string) error {
	if utf8.RuneCountInString(text) > maxTextRunes {
		return invalid("text too long: maximum %d characters", maxTextRunes)
	}
	return nil
}

func (h *HTTPHandlerImpl) checkNames(names []string) error {
	if len(names) == 0 {
		return invalid("ingredients mode needs at least one name")
	}
	if len(names) > maxScanNames {
		return invalid("too many ingredients: maximum %d", maxScanNames)
	}
	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		if err := h.validator.ValidateInput(name); err != nil {
			return invalid("ingredient %q: %v", name, err)
		}
	}
	return nil
}

// normalizeScanned upper-cases the codes of matched entries. Unmatched entries pass through.
func (h *HTTPHandlerImpl) normalizeScanned(scanned []entities.ExtractedIngredient) ([]entities.ExtractedIngredient, error) {
	out := make([]entities.ExtractedIngredient, 0, len(scanned))
	for _, item := range scanned {
		if strings.TrimSpace(item.StandardCode) != "" {
			code, err := h.validator.ValidateCode(item.StandardCode)
			if err != nil {
				return nil, invalid("scanned: %v", err)
			}
			item.StandardCode = code
		}
		if item.Amount != nil && *item.Amount < 0 {
			return nil, invalid("scanned %s: amount cannot be negative", item.DisplayName())
		}
		item.Unit = normalizer.CanonicalUnit(item.Unit)
		out = append(out, item)
	}
	return out, nil
}

func (h *HTTPHandlerImpl) normalizeCodes(codes []string) ([]string, error) {
	out := make([]string, 0, len(codes))
	for _, raw := range codes {
		code, err := h.validator.ValidateCode(raw)
		if err != nil {
			return nil, invalid("baseline: %v", err)
		}
		out = append(out, code)
	}
	return out, nil
}

func (h *HTTPHandlerImpl) normalizeDoses(doses []entities.IngredientDose) ([]entities.IngredientDose, error) {
	out := make([]entities.IngredientDose, 0, len(doses))
	for _, dose := range doses {
		code, err := h.validator.ValidateCode(dose.Code)
		if err != nil {
			return nil, invalid("dose: %v", err)
		}
		if dose.Amount < 0 {
			return nil, invalid("dose %s: amount cannot be negative", code)
		}
		dose.Code = code
		dose.Unit = normalizer.CanonicalUnit(dose.Unit)
		out = append(out, dose)
	}
	return out, nil
}

var _ interfaces.HTTPHandler = (*HTTPHandlerImpl)(nil)
