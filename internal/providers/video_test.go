package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestLumaAIClientPollsToCompletion(t *testing.T) {
	polls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/dream-machine/v1/generations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			json.NewEncoder(w).Encode(lumaGenerationResponse{ID: "gen1", State: "queued"})
			return
		}
	})
	mux.HandleFunc("/dream-machine/v1/generations/gen1", func(w http.ResponseWriter, r *http.Request) {
		polls++
		if polls < 2 {
			json.NewEncoder(w).Encode(lumaGenerationResponse{ID: "gen1", State: "dreaming"})
			return
		}
		resp := lumaGenerationResponse{ID: "gen1", State: "completed"}
		resp.Assets.Video = "https://cdn.example.com/v.mp4"
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewLumaAIClient("key")
	c.baseURL = srv.URL
	c.pollInterval = time.Millisecond

	url, err := c.GenerateVideo(context.Background(), VideoGenInput{Prompt: "a dog running"})
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	if url != "https://cdn.example.com/v.mp4" {
		t.Errorf("unexpected url: %s", url)
	}
}

func TestKlingAIClientSignsJWT(t *testing.T) {
	c := NewKlingAIClient("access-key", "secret-key")
	now := time.Now()
	tok, err := c.signJWT(now)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}

	parsed, err := jwt.ParseWithClaims(tok, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte("secret-key"), nil
	})
	if err != nil {
		t.Fatalf("ParseWithClaims: %v", err)
	}
	claims := parsed.Claims.(*jwt.RegisteredClaims)
	if claims.Issuer != "access-key" {
		t.Errorf("unexpected issuer: %s", claims.Issuer)
	}
}

func TestKlingAIClientQuotaExhausted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/videos/text2video", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(klingSubmitResponse{Code: klingQuotaExhaustedCode, Message: "insufficient balance"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewKlingAIClient("access-key", "secret-key")
	c.baseURL = srv.URL

	_, err := c.GenerateVideo(context.Background(), VideoGenInput{Prompt: "a cat"})
	var qe *quotaExhaustedError
	if !errors.As(err, &qe) {
		t.Fatalf("expected quotaExhaustedError, got %T: %v", err, err)
	}
}

func TestKlingAIClientPollsImage2VideoEndpoint(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/videos/image2video", func(w http.ResponseWriter, r *http.Request) {
		var resp klingSubmitResponse
		resp.Data.TaskID = "task1"
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/v1/videos/text2video/task1", func(w http.ResponseWriter, r *http.Request) {
		t.Error("expected the image2video submission to poll the image2video endpoint, not text2video")
	})
	mux.HandleFunc("/v1/videos/image2video/task1", func(w http.ResponseWriter, r *http.Request) {
		var resp klingStatusResponse
		resp.Data.TaskStatus = "succeed"
		resp.Data.TaskResult.Videos = []struct {
			URL string `json:"url"`
		}{{URL: "https://cdn.example.com/v.mp4"}}
		json.NewEncoder(w).Encode(resp)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewKlingAIClient("access-key", "secret-key")
	c.baseURL = srv.URL
	c.pollInterval = time.Millisecond

	url, err := c.GenerateVideo(context.Background(), VideoGenInput{Prompt: "a cat", ImageURL: "https://cdn.example.com/src.jpg"})
	if err != nil {
		t.Fatalf("GenerateVideo: %v", err)
	}
	if url != "https://cdn.example.com/v.mp4" {
		t.Errorf("unexpected url: %s", url)
	}
}

func TestVideoGenLadderUnknownProvider(t *testing.T) {
	l := &VideoGenLadder{Providers: map[string]VideoGenService{}}
	_, err := l.GenerateVideo(context.Background(), "unknown", VideoGenInput{})
	if err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "", "x"); got != "x" {
		t.Errorf("unexpected result: %s", got)
	}
	if got := firstNonEmpty("a", "b"); got != "a" {
		t.Errorf("unexpected result: %s", got)
	}
}
