package health

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/giygas/medcheck-api/catalogparser/entities"
	"github.com/giygas/medcheck-api/interfaces"
	"github.com/giygas/medcheck-api/logging"
)

// mockCatalogStore serves fixed state; the query methods are unused here
type mockCatalogStore struct {
	interfaces.Catalog
	counts      entities.CatalogCounts
	version     string
	lastUpdated time.Time
	startTime   time.Time
	updating    bool
}

func (m *mockCatalogStore) Version() string                   { return m.version }
func (m *mockCatalogStore) Counts() entities.CatalogCounts    { return m.counts }
func (m *mockCatalogStore) GetLastUpdated() time.Time         { return m.lastUpdated }
func (m *mockCatalogStore) IsUpdating() bool                  { return m.updating }
func (m *mockCatalogStore) BeginUpdate() bool                 { return true }
func (m *mockCatalogStore) EndUpdate()                        {}
func (m *mockCatalogStore) GetServerStartTime() time.Time     { return m.startTime }
func (m *mockCatalogStore) MarkChecked(context.Context) error { return nil }
func (m *mockCatalogStore) ReplaceCatalog(context.Context, *entities.CatalogSnapshot) error {
	return nil
}

var fixedNow = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)

func newChecker(store *mockCatalogStore, times ...string) *HealthCheckerImpl {
	h := NewHealthChecker(store, times).(*HealthCheckerImpl)
	h.now = func() time.Time { return fixedNow }
	return h
}

func loadedStore(age time.Duration) *mockCatalogStore {
	return &mockCatalogStore{
		counts:      entities.CatalogCounts{Ingredients: 30, Aliases: 195, Rules: 21},
		version:     "abc123",
		lastUpdated: fixedNow.Add(-age),
		startTime:   fixedNow.Add(-time.Hour),
	}
}

func TestHealthCheckStatus(t *testing.T) {
	logging.InitLogger("")

	tests := []struct {
		name       string
		store      *mockCatalogStore
		wantStatus string
		wantHTTP   int
	}{
		{"fresh catalog", loadedStore(time.Hour), "healthy", http.StatusOK},
		{"empty catalog", &mockCatalogStore{lastUpdated: fixedNow}, "unhealthy", http.StatusServiceUnavailable},
		{"older than 48h", loadedStore(49 * time.Hour), "unhealthy", http.StatusServiceUnavailable},
		{"older than 24h", loadedStore(25 * time.Hour), "degraded", http.StatusServiceUnavailable},
		{"reload on old data", func() *mockCatalogStore {
			s := loadedStore(7 * time.Hour)
			s.updating = true
			return s
		}(), "degraded", http.StatusServiceUnavailable},
		{"reload on fresh data", func() *mockCatalogStore {
			s := loadedStore(time.Hour)
			s.updating = true
			return s
		}(), "healthy", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, httpStatus := newChecker(tt.store, "06:00", "18:00").HealthCheck()
			if status != tt.wantStatus || httpStatus != tt.wantHTTP {
				t.Errorf("HealthCheck() = %s/%d, want %s/%d", status, httpStatus, tt.wantStatus, tt.wantHTTP)
			}
		})
	}
}

func TestHealthCheckData(t *testing.T) {
	logging.InitLogger("")

	_, data, _ := newChecker(loadedStore(90*time.Minute), "06:00", "18:00").HealthCheck()

	want := map[string]any{
		"catalog_version": "abc123",
		"ingredients":     30,
		"aliases":         195,
		"rules":           21,
		"is_updating":     false,
		"data_age_hours":  1.5,
		"last_update":     "2026-10-17T10:30:00Z",
		"next_update":     "2026-10-17T18:00:00Z",
		"uptime_seconds":  int64(3600),
	}
	for key, value := range want {
		if data[key] != value {
			t.Errorf("data[%q] = %v (%T), want %v (%T)", key, data[key], data[key], value, value)
		}
	}
}

func TestHealthCheckEmptyStoreOmitsTimes(t *testing.T) {
	logging.InitLogger("")

	_, data, _ := newChecker(&mockCatalogStore{}).HealthCheck()
	for _, key := range []string{"last_update", "data_age_hours", "next_update", "uptime_seconds"} {
		if _, ok := data[key]; ok {
			t.Errorf("expected %q to be omitted, got %v", key, data[key])
		}
	}
}

func TestCalculateNextUpdate(t *testing.T) {
	logging.InitLogger("")

	tests := []struct {
		name  string
		now   time.Time
		times []string
		want  time.Time
	}{
		{"before first", time.Date(2026, 10, 17, 5, 0, 0, 0, time.UTC), []string{"06:00", "18:00"}, time.Date(2026, 10, 17, 6, 0, 0, 0, time.UTC)},
		{"between", time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC), []string{"06:00", "18:00"}, time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC)},
		{"exactly at a time", time.Date(2026, 10, 17, 18, 0, 0, 0, time.UTC), []string{"06:00", "18:00"}, time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)},
		{"after last", time.Date(2026, 10, 17, 23, 0, 0, 0, time.UTC), []string{"06:00", "18:00"}, time.Date(2026, 10, 18, 6, 0, 0, 0, time.UTC)},
		{"month end", time.Date(2026, 10, 31, 23, 0, 0, 0, time.UTC), []string{"03:15"}, time.Date(2026, 11, 1, 3, 15, 0, 0, time.UTC)},
		{"unsorted with invalid", time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC), []string{"21:30", "bad", "09:00"}, time.Date(2026, 10, 17, 21, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthChecker(&mockCatalogStore{}, tt.times).(*HealthCheckerImpl)
			h.now = func() time.Time { return tt.now }
			if got := h.CalculateNextUpdate(); !got.Equal(tt.want) {
				t.Errorf("CalculateNextUpdate() = %s, want %s", got, tt.want)
			}
		})
	}

	if got := NewHealthChecker(&mockCatalogStore{}, nil).CalculateNextUpdate(); !got.IsZero() {
		t.Errorf("expected zero time without refresh times, got %s", got)
	}
}
