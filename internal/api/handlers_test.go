package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthReturnsOK(t *testing.T) {
	h := &Handler{}
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()

	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got == "" {
		t.Error("expected a non-empty response body")
	}
}

func TestGetTaskStatusRejectsMissingID(t *testing.T) {
	h := &Handler{}
	req := httptest.NewRequest(http.MethodGet, "/v1/tasks/", nil)
	rec := httptest.NewRecorder()

	h.GetTaskStatus(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for a missing task id, got %d", rec.Code)
	}
}
