// Package health reports whether a usable, fresh catalog is loaded.
package health

import (
	"math"
	"net/http"
	"slices"
	"time"

	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	store        interfaces.CatalogStore
	refreshTimes []clockTime
	now          func() time.Time
}

// clockTime is a time of day in minutes after midnight
type clockTime int

// NewHealthChecker creates a health checker. refreshTimes are the scheduler's "HH:MM" reload
// times; invalid entries are ignored.
func NewHealthChecker(store interfaces.CatalogStore, refreshTimes []string) interfaces.HealthChecker {
	return &HealthCheckerImpl{
		store:        store,
		refreshTimes: parseClockTimes(refreshTimes),
		now:          time.Now,
	}
}

func parseClockTimes(times []string) []clockTime {
	var out []clockTime
	for _, s := range times {
		t, err := time.Parse("15:04", s)
		if err != nil {
			logging.Warn("Ignoring invalid refresh time", "value", s)
			continue
		}
		out = append(out, clockTime(t.Hour()*60+t.Minute()))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// HealthCheck classifies the catalog:
//   - unhealthy (503): nothing loaded, or older than 48h
//   - degraded (503): older than 24h, or a reload running for over 6h on data older than 6h
//   - healthy (200) otherwise
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	counts := h.store.Counts()
	lastUpdate := h.store.GetLastUpdated()
	isUpdating := h.store.IsUpdating()

	dataAge := h.now().Sub(lastUpdate)

	switch {
	case counts.Ingredients == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	data = map[string]any{
		"catalog_version": h.store.Version(),
		"ingredients":     counts.Ingredients,
		"aliases":         counts.Aliases,
		"rules":           counts.Rules,
		"is_updating":     isUpdating,
	}
	if !lastUpdate.IsZero() {
		data["last_update"] = lastUpdate.Format(time.RFC3339)
		data["data_age_hours"] = math.Round(dataAge.Hours()*10) / 10
	}
	if next := h.CalculateNextUpdate(); !next.IsZero() {
		data["next_update"] = next.Format(time.RFC3339)
	}
	if start := h.store.GetServerStartTime(); !start.IsZero() {
		data["uptime_seconds"] = int64(h.now().Sub(start).Seconds())
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reload, zero when no time is configured
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	if len(h.refreshTimes) == 0 {
		return time.Time{}
	}

	now := h.now()
	at := func(day int, ct clockTime) time.Time {
		return time.Date(now.Year(), now.Month(), day, int(ct)/60, int(ct)%60, 0, 0, now.Location())
	}

	for _, ct := range h.refreshTimes {
		if candidate := at(now.Day(), ct); candidate.After(now) {
			return candidate
		}
	}
	return at(now.Day()+1, h.refreshTimes[0])
}
