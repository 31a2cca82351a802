package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/giygas/medcheck-api/catalogparser"
	"github.com/giygas/medcheck-api/config"
	"github.com/giygas/medcheck-api/data"
	"github.com/giygas/medcheck-api/extraction"
	"github.com/giygas/medcheck-api/handlers"
	"github.com/giygas/medcheck-api/health"
	"github.com/giygas/medcheck-api/logging"
	"github.com/giygas/medcheck-api/risk"
	"github.com/giygas/medcheck-api/validation"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:           "0",
		Address:        "127.0.0.1",
		Env:            config.EnvTest,
		LogLevel:       "info",
		MaxRequestBody: 4096,
		MaxHeaderSize:  8192,
		MaxImageBody:   1 << 20,
		CatalogRefresh: []string{"06:00", "18:00"},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logging.InitLogger("")

	snapshot, err := catalogparser.ParseEmbedded()
	if err != nil {
		t.Fatalf("ParseEmbedded failed: %v", err)
	}
	catalog := data.NewCatalogContainer()
	if err := catalog.ReplaceCatalog(context.Background(), snapshot); err != nil {
		t.Fatalf("ReplaceCatalog failed: %v", err)
	}
	catalog.SetServerStartTime(time.Now())

	users := data.NewUserRepository()
	if err := users.SeedDemoUser(context.Background()); err != nil {
		t.Fatalf("SeedDemoUser failed: %v", err)
	}

	cfg := testConfig()
	handler := handlers.NewHTTPHandler(handlers.Deps{
		Pipeline:      extraction.NewPipeline(catalog, nil, nil, 4),
		Service:       risk.NewService(risk.NewEngine(catalog), users, time.Second),
		Catalog:       catalog,
		Users:         users,
		Validator:     validation.NewDataValidator(),
		HealthChecker: health.NewHealthChecker(catalog, cfg.CatalogRefresh),
		MaxImageBody:  cfg.MaxImageBody,
	})

	s := NewServer(cfg, handler)
	t.Cleanup(s.cancel)
	return s
}

func TestNewServer(t *testing.T) {
	s := newTestServer(t)

	if s.server.Addr != "127.0.0.1:0" {
		t.Errorf("unexpected address %s", s.server.Addr)
	}
	if s.server.MaxHeaderBytes != 8192 {
		t.Errorf("expected MaxHeaderBytes 8192, got %d", s.server.MaxHeaderBytes)
	}
	if s.router == nil || s.handler == nil || s.limiter == nil {
		t.Error("server is not fully wired")
	}
}

func TestRoutes(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{"health", http.MethodGet, "/health", "", http.StatusOK},
		{"extract", http.MethodPost, "/v1/extract", `{"text":"타이레놀"}`, http.StatusOK},
		{"extract image without recognizer", http.MethodPost, "/v1/extract/image", "\x89PNG\r\n\x1a\n", http.StatusServiceUnavailable},
		{"search", http.MethodGet, "/v1/ingredients/search?q=aspirin", "", http.StatusOK},
		{"ingredient", http.MethodGet, "/v1/ingredients/WARFARIN", "", http.StatusOK},
		{"analyze", http.MethodPost, "/v1/analyze", `{"scanned":[{"originalText":"아스피린","standardCode":"ASPIRIN"}],"baseline":["WARFARIN"]}`, http.StatusOK},
		{"scan", http.MethodPost, "/v1/users/demo/scan", `{"text":"아스피린"}`, http.StatusOK},
		{"products", http.MethodGet, "/v1/users/demo/products", "", http.StatusOK},
		{"add product", http.MethodPost, "/v1/users/demo/products", `{"name":"오메가3","ingredients":[{"code":"OMEGA3","amount":1,"unit":"g"}]}`, http.StatusCreated},
		{"profile", http.MethodGet, "/v1/users/demo/profile", "", http.StatusOK},
		{"save profile", http.MethodPut, "/v1/users/demo/profile", `{"ageBand":"40s"}`, http.StatusOK},
		{"trailing slash redirected", http.MethodGet, "/v1/ingredients/WARFARIN/", "", http.StatusMovedPermanently},
		{"unknown route", http.MethodGet, "/v1/unknown", "", http.StatusNotFound},
		{"wrong method", http.MethodGet, "/v1/analyze", "", http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body *bytes.Reader
			if tt.body != "" {
				body = bytes.NewReader([]byte(tt.body))
			} else {
				body = bytes.NewReader(nil)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if strings.HasPrefix(tt.body, "{") {
				req.Header.Set("Content-Type", "application/json")
			}
			req.RemoteAddr = "10.1.0.1:4000"

			rr := httptest.NewRecorder()
			s.Handler().ServeHTTP(rr, req)
			if rr.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d: %s", tt.wantStatus, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestAnalyzeThroughRouter(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/users/demo/scan",
		strings.NewReader(`{"mode":"ingredients","ingredients":["아스피린"]}`))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp struct {
		Analysis struct {
			OverallRisk string `json:"overallRisk"`
			Results     []struct {
				LevelLabel string `json:"levelLabel"`
			} `json:"results"`
		} `json:"analysis"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if resp.Analysis.OverallRisk != "danger" || len(resp.Analysis.Results) == 0 || resp.Analysis.Results[0].LevelLabel != "위험" {
		t.Errorf("unexpected analysis %+v", resp.Analysis)
	}
}

func TestRequestBodyLimitThroughRouter(t *testing.T) {
	s := newTestServer(t)

	body := `{"text":"` + strings.Repeat("a", 5000) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/v1/extract", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", rr.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)

	s.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ingredients/WARFARIN", nil))

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	for _, name := range []string{"http_request_total", "rate_limiter_buckets_total", `path="/v1/ingredients/{code}"`} {
		if !strings.Contains(rr.Body.String(), name) {
			t.Errorf("metrics output is missing %s", name)
		}
	}
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/v1/analyze", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected any origin to be allowed, got %q", got)
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	logging.InitLogger("")
	cfg := testConfig()
	cfg.CORSAllowedOrigins = []string{"https://medcheck.example.com"}
	s := NewServer(cfg, handlers.NewHTTPHandler(handlers.Deps{}))
	t.Cleanup(s.cancel)

	for origin, want := range map[string]string{
		"https://medcheck.example.com": "https://medcheck.example.com",
		"https://evil.example.com":     "",
	} {
		req := httptest.NewRequest(http.MethodOptions, "/v1/analyze", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rr := httptest.NewRecorder()
		s.Handler().ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != want {
			t.Errorf("origin %s: expected %q, got %q", origin, want, got)
		}
	}
}

func TestStartAndShutdown(t *testing.T) {
	s := newTestServer(t)

	done := make(chan error, 1)
	go func() { done <- s.Start() }()

	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start should return nil after shutdown, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after shutdown")
	}
}
