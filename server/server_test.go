package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/kscale/go-bootconfig/bootcfg"
	"github.com/kscale/go-bootconfig/source"
)

const mockConfig = `dtparam=i2c_arm=on
camera_auto_detect=1

[all]
dtoverlay=dwc2
`

// mockRepository is a thread-safe mock repository for testing.
type mockRepository struct {
	mu           sync.RWMutex
	name         string
	rawData      []byte
	refreshCount int
	shouldError  bool
}

func newMockRepository(name string) *mockRepository {
	return &mockRepository{
		name:    name,
		rawData: []byte(mockConfig),
	}
}

func (m *mockRepository) GetName() string {
	return m.name
}

func (m *mockRepository) Document() *bootcfg.Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.shouldError {
		return nil
	}
	return bootcfg.Parse(m.rawData)
}

func (m *mockRepository) GetRawData() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rawData
}

func (m *mockRepository) Refresh() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCount++
	if m.shouldError {
		return errors.New("mock refresh error")
	}
	return nil
}

func (m *mockRepository) getRefreshCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshCount
}

func TestServerServesRawConfig(t *testing.T) {
	repo := newMockRepository("pi4")
	server := NewServer(context.Background(), []source.Repository{repo}, 10*time.Second)
	defer server.Stop()

	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/pi4", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != mockConfig {
		t.Errorf("expected raw config, got %q", body)
	}
}

func TestServerMethodNotAllowed(t *testing.T) {
	repo := newMockRepository("pi4")
	server := NewServer(context.Background(), []source.Repository{repo}, 10*time.Second)
	defer server.Stop()

	handler := server.CreateHandlers()

	req := httptest.NewRequest("POST", "/pi4", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", w.Result().StatusCode)
	}
}

func TestServerHealthEndpoint(t *testing.T) {
	repo := newMockRepository("pi4")
	server := NewServer(context.Background(), []source.Repository{repo}, 10*time.Second)
	defer server.Stop()

	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if result["status"] != "healthy" {
		t.Errorf("expected status healthy, got %v", result["status"])
	}
}

func TestServerHealthEndpointUnhealthy(t *testing.T) {
	repo := newMockRepository("pi4")
	repo.shouldError = true
	server := NewServer(context.Background(), []source.Repository{repo}, 10*time.Second)
	defer server.Stop()

	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected status 503, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if result["status"] != "unhealthy" {
		t.Errorf("expected status unhealthy, got %v", result["status"])
	}
}

func TestServerReadyEndpoint(t *testing.T) {
	repo := newMockRepository("pi4")
	server := NewServer(context.Background(), []source.Repository{repo}, 10*time.Second)
	defer server.Stop()

	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/ready", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Result().StatusCode)
	}

	var result map[string]string
	if err := json.NewDecoder(w.Result().Body).Decode(&result); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if result["status"] != "ready" {
		t.Errorf("expected status ready, got %s", result["status"])
	}
}

func TestServerStatusEndpoint(t *testing.T) {
	repo1 := newMockRepository("pi4")
	repo2 := newMockRepository("bench")
	server := NewServer(context.Background(), []source.Repository{repo1, repo2}, 10*time.Second)
	defer server.Stop()

	handler := server.CreateHandlers()

	req := httptest.NewRequest("GET", "/status", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Result().StatusCode)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(w.Result().Body).Decode(&result); err != nil {
		t.Fatalf("failed to parse JSON response: %v", err)
	}
	if result["healthy"] != true {
		t.Errorf("expected healthy=true, got %v", result["healthy"])
	}
	if result["ready"] != true {
		t.Errorf("expected ready=true, got %v", result["ready"])
	}
	repos, ok := result["repositories"].([]interface{})
	if !ok || len(repos) != 2 {
		t.Fatalf("expected 2 repositories in status, got %v", result["repositories"])
	}
}

func TestServerBackgroundRefresh(t *testing.T) {
	repo := newMockRepository("pi4")
	server := NewServer(context.Background(), []source.Repository{repo}, 5*time.Second)
	defer server.Stop()

	// Initial refresh happens in NewServer.
	if repo.getRefreshCount() != 1 {
		t.Errorf("expected 1 initial refresh, got %d", repo.getRefreshCount())
	}
}

func TestServerRefreshIntervalClamp(t *testing.T) {
	repo := newMockRepository("pi4")
	server := NewServer(context.Background(), []source.Repository{repo}, time.Second)
	defer server.Stop()

	if server.RefreshInterval != 5*time.Second {
		t.Errorf("expected clamped interval of 5s, got %s", server.RefreshInterval)
	}
}

func TestHandlerProbesBypassAuth(t *testing.T) {
	repo := newMockRepository("pi4")
	server := NewServer(context.Background(), []source.Repository{repo}, 10*time.Second)
	defer server.Stop()
	server.AuthKey = "secret"

	handler := server.Handler()

	cases := []struct {
		path string
		key  string
		want int
	}{
		{"/health", "", http.StatusOK},
		{"/ready", "", http.StatusOK},
		{"/status", "", http.StatusUnauthorized},
		{"/pi4", "", http.StatusUnauthorized},
		{"/pi4", "secret", http.StatusOK},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", tc.path, nil)
		if tc.key != "" {
			req.Header.Set("X-API-KEY", tc.key)
		}
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		if w.Result().StatusCode != tc.want {
			t.Errorf("%s with key %q: expected status %d, got %d", tc.path, tc.key, tc.want, w.Result().StatusCode)
		}
	}
}

func TestHandlerNoAuthKey(t *testing.T) {
	repo := newMockRepository("pi4")
	server := NewServer(context.Background(), []source.Repository{repo}, 10*time.Second)
	defer server.Stop()

	req := httptest.NewRequest("GET", "/pi4", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("expected status 200 without auth key, got %d", w.Result().StatusCode)
	}
}

func TestAuthMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Auth(next, "secret")

	cases := []struct {
		name string
		key  string
		want int
	}{
		{"missing key", "", http.StatusUnauthorized},
		{"wrong key", "nope", http.StatusUnauthorized},
		{"correct key", "secret", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/pi4", nil)
			if tc.key != "" {
				req.Header.Set("X-API-KEY", tc.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Result().StatusCode != tc.want {
				t.Errorf("expected status %d, got %d", tc.want, w.Result().StatusCode)
			}
		})
	}
}
