package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRouterServesHealthWithoutAuth(t *testing.T) {
	router := NewRouter(&Handler{}, RouterConfig{BackendAPIKey: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected /health to be reachable without auth, got status %d", rec.Code)
	}
}

func TestRouterRejectsUnauthenticatedTaskLookup(t *testing.T) {
	router := NewRouter(&Handler{}, RouterConfig{BackendAPIKey: "secret"})

	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without an API key, got %d", rec.Code)
	}
}
