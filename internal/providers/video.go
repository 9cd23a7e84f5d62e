package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// VideoGenInput is the input to a video-generation call (4.3c).
type VideoGenInput struct {
	Prompt      string
	ImageURL    string
	Duration    int
	AspectRatio string
	Resolution  string
	Model       string
}

// VideoGenService submits a video-generation job and returns the URL of the
// resulting clip once it reaches a terminal state.
type VideoGenService interface {
	Name() string
	GenerateVideo(ctx context.Context, in VideoGenInput) (string, error)
}

// ---------------------------------------------------------------------------
// LumaAI — text-to-video
// ---------------------------------------------------------------------------

type LumaAIClient struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	pollBudget   time.Duration
}

var _ VideoGenService = (*LumaAIClient)(nil)

func NewLumaAIClient(apiKey string) *LumaAIClient {
	return &LumaAIClient{
		apiKey:       apiKey,
		baseURL:      "https://api.lumalabs.ai",
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 5 * time.Second,
		pollBudget:   600 * time.Second,
	}
}

func (s *LumaAIClient) Name() string { return "lumaai" }

type lumaGenerationResponse struct {
	ID     string `json:"id"`
	State  string `json:"state"` // queued, dreaming, completed, failed
	Assets struct {
		Video string `json:"video"`
	} `json:"assets"`
	FailureReason string `json:"failure_reason"`
}

func (s *LumaAIClient) GenerateVideo(ctx context.Context, in VideoGenInput) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"prompt":       in.Prompt,
		"aspect_ratio": in.AspectRatio,
		"model":        firstNonEmpty(in.Model, "ray-2"),
		"resolution":   firstNonEmpty(in.Resolution, "720p"),
		"duration":     fmt.Sprintf("%ds", in.Duration),
	})
	if err != nil {
		return "", fmt.Errorf("lumaai: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/dream-machine/v1/generations", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("lumaai: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("lumaai: submit failed: %w", err)
	}
	var created lumaGenerationResponse
	derr := json.NewDecoder(resp.Body).Decode(&created)
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("lumaai: submit returned status %d", resp.StatusCode)
	}
	if derr != nil {
		return "", fmt.Errorf("lumaai: failed to parse submit response: %w", derr)
	}

	return s.poll(ctx, created.ID)
}

func (s *LumaAIClient) poll(ctx context.Context, generationID string) (string, error) {
	deadline := time.Now().Add(s.pollBudget)
	for time.Now().Before(deadline) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/dream-machine/v1/generations/%s", s.baseURL, generationID), nil)
		if err != nil {
			return "", fmt.Errorf("lumaai: failed to create poll request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+s.apiKey)

		resp, err := s.client.Do(req)
		if err != nil {
			return "", fmt.Errorf("lumaai: poll failed: %w", err)
		}
		var status lumaGenerationResponse
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("lumaai: failed to parse poll response: %w", err)
		}

		switch status.State {
		case "completed":
			if status.Assets.Video == "" {
				return "", fmt.Errorf("lumaai: completed with no video asset")
			}
			return status.Assets.Video, nil
		case "failed":
			return "", fmt.Errorf("lumaai: generation failed: %s", status.FailureReason)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
	return "", fmt.Errorf("lumaai: polling budget exhausted for generation %s", generationID)
}

// ---------------------------------------------------------------------------
// KlingAI — image+text-to-video, HS256 JWT auth
// ---------------------------------------------------------------------------

type KlingAIClient struct {
	accessKey    string
	secretKey    string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	pollBudget   time.Duration
}

var _ VideoGenService = (*KlingAIClient)(nil)

func NewKlingAIClient(accessKey, secretKey string) *KlingAIClient {
	return &KlingAIClient{
		accessKey:    accessKey,
		secretKey:    secretKey,
		baseURL:      "https://api.klingai.com",
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 5 * time.Second,
		pollBudget:   600 * time.Second,
	}
}

func (s *KlingAIClient) Name() string { return "klingai" }

// signJWT builds the HS256 bearer token KlingAI expects: claims
// {iss=access_key, nbf=now-5s, exp=now+1800s}.
func (s *KlingAIClient) signJWT(now time.Time) (string, error) {
	claims := jwt.RegisteredClaims{
		Issuer:    s.accessKey,
		NotBefore: jwt.NewNumericDate(now.Add(-5 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(1800 * time.Second)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.secretKey))
}

type klingSubmitResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type klingStatusResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		TaskStatus string `json:"task_status"` // submitted, processing, succeed, failed
		TaskResult struct {
			Videos []struct {
				URL string `json:"url"`
			} `json:"videos"`
		} `json:"task_result"`
	} `json:"data"`
}

const klingQuotaExhaustedCode = 1102

func (s *KlingAIClient) GenerateVideo(ctx context.Context, in VideoGenInput) (string, error) {
	token, err := s.signJWT(time.Now())
	if err != nil {
		return "", fmt.Errorf("klingai: failed to sign jwt: %w", err)
	}

	payload := map[string]interface{}{
		"model_name": firstNonEmpty(in.Model, "kling-v1"),
		"prompt":     in.Prompt,
	}
	if in.ImageURL != "" {
		payload["image"] = in.ImageURL
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("klingai: failed to marshal request: %w", err)
	}

	endpoint := "/v1/videos/text2video"
	if in.ImageURL != "" {
		endpoint = "/v1/videos/image2video"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("klingai: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("klingai: submit failed: %w", err)
	}
	respBody, _ := io.ReadAll(resp.Body)
	resp.Body.Close()

	var submitted klingSubmitResponse
	if err := json.Unmarshal(respBody, &submitted); err != nil {
		return "", fmt.Errorf("klingai: failed to parse submit response: %w", err)
	}
	if submitted.Code == klingQuotaExhaustedCode || resp.StatusCode == http.StatusTooManyRequests {
		return "", &quotaExhaustedError{provider: "klingai", detail: submitted.Message}
	}
	if resp.StatusCode >= 300 || submitted.Data.TaskID == "" {
		return "", fmt.Errorf("klingai: submit returned status %d: %s", resp.StatusCode, submitted.Message)
	}

	return s.poll(ctx, endpoint, submitted.Data.TaskID, token)
}

func (s *KlingAIClient) poll(ctx context.Context, endpoint, taskID, token string) (string, error) {
	deadline := time.Now().Add(s.pollBudget)
	consecutiveFailures := 0
	for time.Now().Before(deadline) {
		status, videoURL, err := s.pollOnce(ctx, endpoint, taskID, token)
		if err != nil {
			consecutiveFailures++
			if consecutiveFailures > 3 {
				return "", fmt.Errorf("klingai: status poll failed after retries: %w", err)
			}
			backoffDelay := time.Duration(consecutiveFailures) * 2 * time.Second
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoffDelay):
			}
			continue
		}
		consecutiveFailures = 0

		switch status {
		case "succeed":
			if videoURL == "" {
				return "", fmt.Errorf("klingai: succeeded with no video url")
			}
			return videoURL, nil
		case "failed":
			return "", fmt.Errorf("klingai: generation failed for task %s", taskID)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
	return "", fmt.Errorf("klingai: polling budget exhausted for task %s", taskID)
}

func (s *KlingAIClient) pollOnce(ctx context.Context, endpoint, taskID, token string) (status string, videoURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s/%s", s.baseURL, endpoint, taskID), nil)
	if err != nil {
		return "", "", fmt.Errorf("klingai: failed to create poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("klingai: poll failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed klingStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", "", fmt.Errorf("klingai: failed to parse poll response: %w", err)
	}

	if len(parsed.Data.TaskResult.Videos) > 0 {
		videoURL = parsed.Data.TaskResult.Videos[0].URL
	}
	return parsed.Data.TaskStatus, videoURL, nil
}

type quotaExhaustedError struct {
	provider string
	detail   string
}

func (e *quotaExhaustedError) Error() string {
	return fmt.Sprintf("%s quota exhausted: %s", e.provider, e.detail)
}

// ---------------------------------------------------------------------------
// Ordered ladder
// ---------------------------------------------------------------------------

type VideoGenLadder struct {
	Providers map[string]VideoGenService
}

func (l *VideoGenLadder) GenerateVideo(ctx context.Context, provider string, in VideoGenInput) (string, error) {
	svc, ok := l.Providers[provider]
	if !ok {
		return "", fmt.Errorf("video-gen: unknown provider %q", provider)
	}
	url, err := svc.GenerateVideo(ctx, in)
	if err != nil {
		log.Printf("[Provider:video:%s] generation failed: %v", provider, err)
		return "", err
	}
	return url, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
