// Package server exposes boot-configuration repositories over HTTP.
// Devices fetch the raw file at /<name>; orchestration probes hit
// /health, /ready and /status.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-http-utils/etag"
	"github.com/sirupsen/logrus"

	"github.com/kscale/go-bootconfig/source"
)

type Server struct {
	Repositories    []source.Repository
	RefreshInterval time.Duration
	AuthKey         string
	cancel          context.CancelFunc

	mu      sync.RWMutex
	lastErr map[string]error
}

// NewServer creates a Server, refreshes every repository once and
// starts a refresh goroutine per repository. Refresh failures are
// recorded and surfaced through the health endpoints; the previously
// cached document keeps being served.
func NewServer(ctx context.Context, repositories []source.Repository, refreshInterval time.Duration) *Server {
	if refreshInterval < 5*time.Second {
		logrus.Warn("refresh interval too low, setting it to 5 seconds")
		refreshInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	server := &Server{
		Repositories:    repositories,
		RefreshInterval: refreshInterval,
		cancel:          cancel,
		lastErr:         make(map[string]error),
	}
	for _, repo := range server.Repositories {
		err := repo.Refresh()
		if err != nil {
			logrus.WithError(err).Error("error refreshing repository")
		}
		server.setLastErr(repo.GetName(), err)
	}
	for _, repo := range server.Repositories {
		go server.refresh(ctx, repo)
	}
	return server
}

func (s *Server) refresh(ctx context.Context, repository source.Repository) {
	ticker := time.NewTicker(s.RefreshInterval)
	for {
		select {
		case <-ticker.C:
			err := repository.Refresh()
			if err != nil {
				logrus.WithError(err).Error("error refreshing repository")
			}
			s.setLastErr(repository.GetName(), err)
		case <-ctx.Done():
			ticker.Stop()
			return
		}
	}
}

func (s *Server) setLastErr(name string, err error) {
	s.mu.Lock()
	s.lastErr[name] = err
	s.mu.Unlock()
}

// Stop cancels the refresh goroutines.
func (s *Server) Stop() {
	s.cancel()
}

// Start serves until ListenAndServe fails. Responses carry an ETag so
// polling devices can use If-None-Match and skip unchanged payloads.
func (s *Server) Start(addr string) {
	logrus.Info("starting server")

	if err := http.ListenAndServe(addr, s.Handler()); err != nil {
		logrus.WithError(err).Fatal("error starting server")
	}
}

// Handler returns the full middleware stack. When an auth key is
// configured, the raw-config and status routes require X-API-KEY;
// /health and /ready stay open so orchestration probes keep working
// without credentials.
func (s *Server) Handler() http.Handler {
	handler := etag.Handler(s.CreateHandlers(), false)
	if s.AuthKey == "" {
		return handler
	}
	authed := Auth(handler, s.AuthKey)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health", "/ready":
			handler.ServeHTTP(w, r)
		default:
			authed.ServeHTTP(w, r)
		}
	})
}

// CreateHandlers builds the route table: one raw-file route per
// repository plus the probe endpoints.
func (s *Server) CreateHandlers() http.Handler {
	mux := http.NewServeMux()
	for _, repo := range s.Repositories {
		repo := repo
		mux.HandleFunc("/"+repo.GetName(), func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
				return
			}
			if _, err := w.Write(repo.GetRawData()); err != nil {
				logrus.WithError(err).Error("error writing response")
			}
		})
	}
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/status", s.handleStatus)
	return mux
}

// healthy reports whether the last refresh of every repository
// succeeded.
func (s *Server) healthy() (bool, map[string]string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	errs := make(map[string]string)
	for name, err := range s.lastErr {
		if err != nil {
			errs[name] = err.Error()
		}
	}
	return len(errs) == 0, errs
}

// ready reports whether every repository has a document to serve.
func (s *Server) ready() bool {
	for _, repo := range s.Repositories {
		if repo.Document() == nil {
			return false
		}
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	healthy, errs := s.healthy()
	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]interface{}{"status": "unhealthy", "errors": errs})
		return
	}
	writeJSON(w, map[string]interface{}{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !s.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		writeJSON(w, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, map[string]string{"status": "ready"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	healthy, _ := s.healthy()
	repos := make([]map[string]interface{}, 0, len(s.Repositories))
	s.mu.RLock()
	for _, repo := range s.Repositories {
		name := repo.GetName()
		directives := 0
		if doc := repo.Document(); doc != nil {
			directives = len(doc.Directives())
		}
		repos = append(repos, map[string]interface{}{
			"name":       name,
			"healthy":    s.lastErr[name] == nil,
			"directives": directives,
		})
	}
	s.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"healthy":      healthy,
		"ready":        s.ready(),
		"repositories": repos,
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Error("error writing response")
	}
}

// Auth is a middleware that checks the X-API-KEY header against the
// configured key and rejects everything else with 401.
func Auth(next http.Handler, authKey string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-KEY")
		if key == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if key != authKey {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
