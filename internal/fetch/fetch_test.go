package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/bobarin/reelforge/internal/models"
)

func TestFetchSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("hello world"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	f := New(dir, "")

	path, err := f.Fetch(context.Background(), srv.URL+"/image.png", "out.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "hello world" {
		t.Errorf("unexpected content: %q", data)
	}
}

func TestFetchNotFoundNotRetried(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(t.TempDir(), "")
	_, err := f.Fetch(context.Background(), srv.URL+"/gone.png", "out.png")
	if err == nil {
		t.Fatal("expected error")
	}
	var assetErr *models.AssetUnavailableError
	if !errors.As(err, &assetErr) {
		t.Fatalf("expected AssetUnavailableError, got %T: %v", err, err)
	}
	if attempts != 1 {
		t.Errorf("expected exactly 1 attempt on 404, got %d", attempts)
	}
}

func TestFetchRetriesOnServerError(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	f := New(t.TempDir(), "")
	path, err := f.Fetch(context.Background(), srv.URL+"/flaky.png", "out.png")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "recovered" {
		t.Errorf("unexpected content: %q", data)
	}
	if attempts < 2 {
		t.Errorf("expected at least 2 attempts, got %d", attempts)
	}
}

func TestApplyProviderHeadersPexels(t *testing.T) {
	req, _ := http.NewRequest(http.MethodGet, "https://images.pexels.com/photo.jpg", nil)
	applyProviderHeaders(req, "https://images.pexels.com/photo.jpg", "my-key")
	if req.Header.Get("Referer") != "https://www.pexels.com/" {
		t.Errorf("expected Referer header to be set")
	}
	if req.Header.Get("Authorization") != "my-key" {
		t.Errorf("expected Authorization header to be set")
	}
}

func TestSelectTimeoutsByContentType(t *testing.T) {
	if selectConnectTimeout(true) <= selectConnectTimeout(false) {
		t.Error("expected video connect timeout to exceed non-video")
	}
	if selectChunkSize(true) <= selectChunkSize(false) {
		t.Error("expected video chunk size to exceed non-video")
	}
}

// errorsAs walks err's Unwrap chain for a *models.AssetUnavailableError, like errors.As for that one type.
func errorsAs(err error, target interface{}) bool {
	switch t := target.(type) {
	case **models.AssetUnavailableError:
		for err != nil {
			if e, ok := err.(*models.AssetUnavailableError); ok {
				*t = e
				return true
			}
			u, ok := err.(interface{ Unwrap() error })
			if !ok {
				return false
			}
			err = u.Unwrap()
		}
	}
	return false
}
