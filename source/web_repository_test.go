package source

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebRepository(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testConfig))
	}))
	defer server.Close()

	repo, err := NewWebRepository("boot", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Refresh(); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(repo.GetRawData(), []byte(testConfig)) {
		t.Error("raw data does not match served content")
	}
	if v, ok := repo.Document().Lookup("dtparam"); !ok || v != "i2c_arm=on" {
		t.Errorf("expected dtparam=i2c_arm=on, got %q ok=%t", v, ok)
	}
}

func TestWebRepositoryAPIKey(t *testing.T) {
	const key = "secret"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-KEY") != key {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(testConfig))
	}))
	defer server.Close()

	repo, err := NewWebRepository("boot", server.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Refresh(); err == nil {
		t.Fatal("expected error without API key")
	}

	repo.APIKey = key
	if err := repo.Refresh(); err != nil {
		t.Fatal(err)
	}
	if repo.Document() == nil {
		t.Fatal("expected document after authenticated refresh")
	}
}

func TestWebRepositoryBadURL(t *testing.T) {
	repo, err := NewWebRepository("boot", "http://127.0.0.1:1/config.txt")
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Refresh(); err == nil {
		t.Fatal("expected error")
	}
}
