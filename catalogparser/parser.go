// Package catalogparser loads the reference catalog (ingredients, aliases, interaction
// rules) from the embedded seed bundle or from a remote TSV bundle.
package catalogparser

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
)

// Compile-time check to ensure CatalogParser implements the parser interface
var _ interfaces.CatalogParser = (*CatalogParser)(nil)

// CatalogParser builds snapshots from a remote bundle when baseURL is set,
// from the embedded seed otherwise
type CatalogParser struct {
	baseURL string
	client  *http.Client
}

// NewCatalogParser creates a parser. An empty baseURL selects the embedded seed.
func NewCatalogParser(baseURL string) *CatalogParser {
	return &CatalogParser{baseURL: baseURL, client: newHTTPClient()}
}

// NewCatalogParserWithClient lets tests and callers supply the HTTP client
func NewCatalogParserWithClient(baseURL string, client *http.Client) *CatalogParser {
	return &CatalogParser{baseURL: baseURL, client: client}
}

// ParseCatalog implements the CatalogParser interface
func (p *CatalogParser) ParseCatalog(ctx context.Context) (*entities.CatalogSnapshot, error) {
	if p.baseURL == "" {
		return ParseEmbedded()
	}

	bundle, err := downloadBundle(ctx, p.client, p.baseURL)
	if err != nil {
		return nil, err
	}
	return ParseBundle(bundle)
}

// ParseEmbedded parses the seed bundle compiled into the binary
func ParseEmbedded() (*entities.CatalogSnapshot, error) {
	bundle, err := readSeedBundle()
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded catalog: %w", err)
	}
	return ParseBundle(bundle)
}

// ParseBundle parses the three catalog files keyed by file name
func ParseBundle(bundle map[string][]byte) (*entities.CatalogSnapshot, error) {
	for _, name := range catalogFiles {
		if _, ok := bundle[name]; !ok {
			return nil, fmt.Errorf("catalog bundle is missing %s", name)
		}
	}

	ingredients, err := parseIngredients(bundle[ingredientsFile])
	if err != nil {
		return nil, err
	}
	if len(ingredients) == 0 {
		return nil, fmt.Errorf("catalog bundle has no ingredients")
	}

	byCode := make(map[string]entities.StandardIngredient, len(ingredients))
	for _, ing := range ingredients {
		byCode[ing.Code] = ing
	}

	aliases, err := parseAliases(bundle[aliasesFile], byCode)
	if err != nil {
		return nil, err
	}

	rules, err := parseRules(bundle[rulesFile], byCode)
	if err != nil {
		return nil, err
	}

	snapshot := &entities.CatalogSnapshot{
		Ingredients: ingredients,
		Aliases:     aliases,
		Rules:       rules,
		Version:     bundleVersion(bundle),
	}

	logging.Info("Catalog parsed",
		"version", snapshot.Version,
		"ingredients", len(ingredients),
		"aliases", len(aliases),
		"rules", len(rules))

	return snapshot, nil
}

// bundleVersion hashes file contents so identical bundles share a version
func bundleVersion(bundle map[string][]byte) string {
	h := xxhash.New()
	for _, name := range catalogFiles {
		_, _ = h.WriteString(name)
		_, _ = h.Write(bundle[name])
	}
	return strconv.FormatUint(h.Sum64(), 16)
}
