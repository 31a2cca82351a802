// Package cache keeps autocomplete results close to the API. Keys embed the catalog
// version, so a reload never serves hits from an older catalog.
package cache

import (
	"context"
	"strconv"
	"strings"

	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/metrics"
)

const keyPrefix = "medcheck:search:"

// SearchKey builds the key of one autocomplete query
func SearchKey(version, query string, limit int) string {
	return keyPrefix + version + "|" + strings.ToLower(strings.TrimSpace(query)) + "|" + strconv.Itoa(limit)
}

// Noop never stores anything
type Noop struct{}

// Compile-time check to ensure Noop implements SearchCache
var _ interfaces.SearchCache = Noop{}

// Get always misses
func (Noop) Get(_ context.Context, _ string) ([]interfaces.SearchHit, bool) {
	metrics.SearchCacheRequests.WithLabelValues("disabled").Inc()
	return nil, false
}

// Set discards the hits
func (Noop) Set(_ context.Context, _ string, _ []interfaces.SearchHit) {}
