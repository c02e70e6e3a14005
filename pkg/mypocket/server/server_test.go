package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mypocket/mypocket/pkg/mypocket/config"
	"github.com/mypocket/mypocket/pkg/mypocket/logging"
	"github.com/mypocket/mypocket/pkg/mypocket/metadata"
	"github.com/mypocket/mypocket/pkg/mypocket/testutil"
)

type offlineTransport struct{}

func (offlineTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("offline")
}

func anyOrigin() config.CORSConfig {
	return config.CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		ExposedHeaders: []string{logging.HeaderCorrelationID},
		MaxAge:         time.Hour,
	}
}

// setupFullServer builds the router with a fetcher that never reaches the network
func setupFullServer(t *testing.T) *gin.Engine {
	return setupServerWithCORS(t, anyOrigin())
}

func setupServerWithCORS(t *testing.T, corsCfg config.CORSConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	fetcher := metadata.NewFetcher(metadata.NewMemoryCache(), nil, metadata.Options{}, metadata.WithTransport(offlineTransport{}))
	return NewRouter(db, fetcher, corsCfg, logging.Discard())
}

func preflight(router *gin.Engine, path, origin string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("OPTIONS", path, nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Authorization, Content-Type")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func call(router *gin.Engine, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

// TestServerStartup verifies that all routes can be registered without conflicts
func TestServerStartup(t *testing.T) {
	router := setupFullServer(t)
	if router == nil {
		t.Fatal("Expected router to be created")
	}
}

func TestNewFallsBackToMemoryCache(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.Redis.URL = "redis://127.0.0.1:1/0"

	s, err := New(context.Background(), cfg, testutil.NewDB(t), nil)
	if err != nil {
		t.Fatalf("Expected server despite unreachable redis, got %v", err)
	}
	defer s.Close()

	if s.redis != nil {
		t.Error("Expected no redis client")
	}
	if s.Router() == nil {
		t.Error("Expected router")
	}
}

func TestHealthEndpoints(t *testing.T) {
	router := setupFullServer(t)

	for _, path := range []string{"/health", "/api/health"} {
		resp := call(router, "GET", path, "", nil)
		if resp.Code != http.StatusOK {
			t.Errorf("Expected status 200 for %s, got %d", path, resp.Code)
		}
	}
}

func TestSwaggerDoc(t *testing.T) {
	router := setupFullServer(t)

	resp := call(router, "GET", "/swagger/doc.json", "", nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.Code)
	}

	var doc struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		Paths map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}
	if doc.Info.Title != "MyPocket API" {
		t.Errorf("Unexpected title %q", doc.Info.Title)
	}
	if _, ok := doc.Paths["/links"]; !ok {
		t.Error("Expected /links to be documented")
	}
}

// TestSwaggerDocCoversRoutes checks every API route against the served document
func TestSwaggerDocCoversRoutes(t *testing.T) {
	router := setupFullServer(t)

	resp := call(router, "GET", "/swagger/doc.json", "", nil)
	var doc struct {
		Paths map[string]map[string]interface{} `json:"paths"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &doc); err != nil {
		t.Fatalf("Expected valid JSON: %v", err)
	}

	documented := 0
	for _, route := range router.Routes() {
		if !strings.HasPrefix(route.Path, "/api/") || route.Path == "/api/health" {
			continue
		}
		segments := strings.Split(strings.TrimPrefix(route.Path, "/api"), "/")
		for i, segment := range segments {
			if strings.HasPrefix(segment, ":") {
				segments[i] = "{" + segment[1:] + "}"
			}
		}
		path := strings.Join(segments, "/")

		if _, ok := doc.Paths[path][strings.ToLower(route.Method)]; !ok {
			t.Errorf("Expected %s %s to be documented", route.Method, path)
			continue
		}
		documented++
	}
	if documented == 0 {
		t.Fatal("Expected API routes")
	}
}

func TestCORSPreflight(t *testing.T) {
	router := setupFullServer(t)

	resp := preflight(router, "/api/links", "chrome-extension://abcdef")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Expected any origin to be allowed, got %q", got)
	}
	if got := resp.Header().Get("Access-Control-Allow-Headers"); !strings.Contains(strings.ToLower(got), "authorization") {
		t.Errorf("Expected Authorization in allowed headers, got %q", got)
	}
}

func TestCORSRestrictedOrigins(t *testing.T) {
	corsCfg := anyOrigin()
	corsCfg.AllowedOrigins = []string{"https://app.example.com"}
	router := setupServerWithCORS(t, corsCfg)

	resp := preflight(router, "/api/links", "https://app.example.com")
	if resp.Code != http.StatusNoContent {
		t.Fatalf("Expected status 204, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Expected the origin to be echoed, got %q", got)
	}

	resp = preflight(router, "/api/links", "https://evil.example.com")
	if resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for an unknown origin, got %d", resp.Code)
	}
	if got := resp.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Expected no allow-origin header, got %q", got)
	}
}

func TestNewRejectsInvalidCORS(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	cfg.CORS.AllowedOrigins = []string{"app.example.com"}

	if _, err := New(context.Background(), cfg, testutil.NewDB(t), nil); err == nil {
		t.Error("Expected an origin without a scheme to be rejected")
	}
}

func TestCorrelationIDHeader(t *testing.T) {
	router := setupFullServer(t)

	resp := call(router, "GET", "/health", "", nil)
	if resp.Header().Get(logging.HeaderCorrelationID) == "" {
		t.Error("Expected a correlation id on the response")
	}
}

// TestProtectedEndpointsRequireAuth verifies that protected endpoints return 401 without auth
func TestProtectedEndpointsRequireAuth(t *testing.T) {
	router := setupFullServer(t)

	protectedEndpoints := []struct {
		method string
		path   string
	}{
		{"GET", "/api/links"},
		{"POST", "/api/links"},
		{"GET", "/api/tags"},
		{"POST", "/api/import"},
		{"GET", "/api/export"},
		{"GET", "/api/metadata?url=https://example.com"},
		{"GET", "/api/api-keys"},
		{"GET", "/api/auth/me"},
	}

	for _, endpoint := range protectedEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := call(router, endpoint.method, endpoint.path, "", nil)
			if resp.Code != http.StatusUnauthorized {
				t.Errorf("Expected status 401 for %s %s, got %d", endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestPublicEndpointsNoAuth verifies that public endpoints don't require auth
func TestPublicEndpointsNoAuth(t *testing.T) {
	router := setupFullServer(t)

	publicEndpoints := []struct {
		method       string
		path         string
		expectedCode int
	}{
		{"POST", "/api/auth/register", http.StatusBadRequest},
		{"POST", "/api/auth/login", http.StatusBadRequest},
		{"POST", "/api/auth/logout", http.StatusOK},
		{"GET", "/nonexistent", http.StatusNotFound},
	}

	for _, endpoint := range publicEndpoints {
		t.Run(endpoint.method+" "+endpoint.path, func(t *testing.T) {
			resp := call(router, endpoint.method, endpoint.path, "", nil)
			if resp.Code != endpoint.expectedCode {
				t.Errorf("Expected status %d for %s %s, got %d", endpoint.expectedCode, endpoint.method, endpoint.path, resp.Code)
			}
		})
	}
}

// TestBookmarkFlow walks through what the dashboard and the extension do
func TestBookmarkFlow(t *testing.T) {
	router := setupFullServer(t)

	resp := call(router, "POST", "/api/auth/register", "", map[string]string{
		"email":    "reader@example.com",
		"password": "password123",
		"name":     "Reader",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var registered struct {
		Token string `json:"token"`
	}
	json.Unmarshal(resp.Body.Bytes(), &registered)
	token := registered.Token

	// The extension authenticates with an API key
	resp = call(router, "POST", "/api/api-keys", token, map[string]string{"description": "extension"})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 creating key, got %d: %s", resp.Code, resp.Body.String())
	}
	var key struct {
		Key string `json:"key"`
	}
	json.Unmarshal(resp.Body.Bytes(), &key)

	resp = call(router, "POST", "/api/links", key.Key, map[string]interface{}{
		"title": "Go blog",
		"url":   "https://go.dev/blog",
		"tags":  []string{"go", "Reading"},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 saving link, got %d: %s", resp.Code, resp.Body.String())
	}

	// The dashboard creates by tag id; the fetch fails offline and the link stays as typed
	resp = call(router, "GET", "/api/tags/lookup?label=reading", token, nil)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200 on lookup, got %d", resp.Code)
	}
	var reading struct {
		ID string `json:"id"`
	}
	json.Unmarshal(resp.Body.Bytes(), &reading)

	resp = call(router, "POST", "/api/links", token, map[string]interface{}{
		"title":   "Effective Go",
		"url":     "https://go.dev/doc/effective_go",
		"tag_ids": []string{reading.ID},
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201 creating link, got %d: %s", resp.Code, resp.Body.String())
	}
	if !strings.Contains(resp.Body.String(), `"title":"Effective Go"`) {
		t.Errorf("Expected title to be kept, got %s", resp.Body.String())
	}

	resp = call(router, "GET", "/api/links?tag="+reading.ID+"&sort=title-asc", token, nil)
	var page struct {
		TotalResults int `json:"total_results"`
		Links        []struct {
			Title string `json:"title"`
		} `json:"links"`
	}
	json.Unmarshal(resp.Body.Bytes(), &page)
	if page.TotalResults != 2 || len(page.Links) != 2 || page.Links[0].Title != "Effective Go" {
		t.Errorf("Unexpected search page: %s", resp.Body.String())
	}

	resp = call(router, "GET", "/api/export", key.Key, nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "https://go.dev/blog") {
		t.Errorf("Expected export to contain the saved link, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = call(router, "GET", "/api/metadata?url=http://localhost/secret", token, nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), `"title":"http://localhost/secret"`) {
		t.Errorf("Expected fallback metadata, got %d: %s", resp.Code, resp.Body.String())
	}

	resp = call(router, "GET", "/api/auth/me", key.Key, nil)
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "reader@example.com") {
		t.Errorf("Expected /me to accept the API key, got %d", resp.Code)
	}
}
