package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeImageEdit struct {
	err error
}

func (f *fakeImageEdit) EditImage(ctx context.Context, in ImageEditInput) ([]byte, error) {
	return nil, f.err
}

func TestEditWithFallbackReturnsUneditedSourceOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("original-bytes"))
	}))
	defer srv.Close()

	data := EditWithFallback(context.Background(), &fakeImageEdit{err: errors.New("edit failed")}, srv.Client(), ImageEditInput{SourceImageURL: srv.URL})
	if string(data) != "original-bytes" {
		t.Errorf("expected fallback to unedited source, got %q", data)
	}
}
