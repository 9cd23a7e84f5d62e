package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ImageGenInput is the input to an image-generation call (4.3b).
type ImageGenInput struct {
	Prompt        string
	SceneContext  string
	VideoContext  string
	ProductImages []string
}

// ImageGenService generates a single image and returns its raw bytes.
type ImageGenService interface {
	Name() string
	GenerateImage(ctx context.Context, in ImageGenInput) ([]byte, error)
}

// ---------------------------------------------------------------------------
// Gemini
// ---------------------------------------------------------------------------

const geminiModel = "gemini-3-pro-image-preview"

type GeminiImageClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ ImageGenService = (*GeminiImageClient)(nil)

func NewGeminiImageClient(apiKey string) *GeminiImageClient {
	return &GeminiImageClient{
		apiKey:  apiKey,
		baseURL: "https://generativelanguage.googleapis.com",
		client:  &http.Client{Timeout: 300 * time.Second},
	}
}

func (s *GeminiImageClient) Name() string { return "gemini" }

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string          `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
	ImageSize   string `json:"imageSize,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (s *GeminiImageClient) GenerateImage(ctx context.Context, in ImageGenInput) ([]byte, error) {
	parts := []geminiPart{{Text: composeImagePrompt(in)}}

	if len(in.ProductImages) > 0 {
		if data, mime, err := downloadReferenceImage(ctx, s.client, in.ProductImages[0]); err == nil {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{MimeType: mime, Data: base64.StdEncoding.EncodeToString(data)}})
		} else {
			log.Printf("[Provider:image:gemini] could not load reference image, proceeding without: %v", err)
		}
	}

	reqBody := geminiGenerateContentRequest{
		Contents: []geminiContent{{Role: "user", Parts: parts}},
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: "9:16", ImageSize: "4K"},
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", s.baseURL, geminiModel, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini: returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("gemini: failed to parse response: %w", err)
	}
	for _, cand := range parsed.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData != nil && p.InlineData.Data != "" {
				return base64.StdEncoding.DecodeString(p.InlineData.Data)
			}
		}
	}
	return nil, fmt.Errorf("gemini: response contained no image data")
}

func composeImagePrompt(in ImageGenInput) string {
	prompt := in.Prompt
	if in.SceneContext != "" {
		prompt = fmt.Sprintf("%s\n\nScene context: %s", prompt, in.SceneContext)
	}
	if in.VideoContext != "" {
		prompt = fmt.Sprintf("%s\n\nVideo context: %s", prompt, in.VideoContext)
	}
	return prompt
}

func downloadReferenceImage(ctx context.Context, client *http.Client, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" {
		mime = "image/jpeg"
	}
	return data, mime, nil
}

// ---------------------------------------------------------------------------
// OpenAI (images API)
// ---------------------------------------------------------------------------

type OpenAIImageClient struct {
	client *openai.Client
}

var _ ImageGenService = (*OpenAIImageClient)(nil)

func NewOpenAIImageClient(apiKey string) *OpenAIImageClient {
	return &OpenAIImageClient{client: openai.NewClient(apiKey)}
}

func (s *OpenAIImageClient) Name() string { return "openai" }

func (s *OpenAIImageClient) GenerateImage(ctx context.Context, in ImageGenInput) ([]byte, error) {
	req := openai.ImageRequest{
		Prompt:         composeImagePrompt(in),
		Model:          "gpt-image-1",
		Size:           "1024x1536",
		N:              1,
		ResponseFormat: "b64_json",
	}

	resp, err := s.client.CreateImage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai: image generation failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("openai: response contained no image data")
	}
	return base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
}

// ---------------------------------------------------------------------------
// Freepik — asynchronous submit + poll protocol
// ---------------------------------------------------------------------------

type FreepikImageClient struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	pollBudget   time.Duration
}

var _ ImageGenService = (*FreepikImageClient)(nil)

func NewFreepikImageClient(apiKey string) *FreepikImageClient {
	return &FreepikImageClient{
		apiKey:       apiKey,
		baseURL:      "https://api.freepik.com",
		client:       &http.Client{Timeout: 30 * time.Second},
		pollInterval: 2 * time.Second,
		pollBudget:   60 * time.Second,
	}
}

func (s *FreepikImageClient) Name() string { return "freepik" }

type freepikSubmitResponse struct {
	Data struct {
		TaskID string `json:"task_id"`
	} `json:"data"`
}

type freepikStatusResponse struct {
	Data struct {
		Status    string   `json:"status"` // CREATED, PROCESSING, COMPLETED, FAILED
		Generated []string `json:"generated"`
	} `json:"data"`
}

func (s *FreepikImageClient) GenerateImage(ctx context.Context, in ImageGenInput) ([]byte, error) {
	taskID, err := s.submit(ctx, in)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(s.pollBudget)
	for time.Now().Before(deadline) {
		status, urls, err := s.poll(ctx, taskID)
		if err != nil {
			return nil, err
		}
		switch status {
		case "COMPLETED":
			if len(urls) == 0 {
				return nil, fmt.Errorf("freepik: completed with no output urls")
			}
			return s.download(ctx, urls[0])
		case "FAILED":
			return nil, fmt.Errorf("freepik: generation failed for task %s", taskID)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
	return nil, fmt.Errorf("freepik: polling budget exhausted for task %s", taskID)
}

func (s *FreepikImageClient) submit(ctx context.Context, in ImageGenInput) (string, error) {
	body, err := json.Marshal(map[string]string{"prompt": composeImagePrompt(in)})
	if err != nil {
		return "", fmt.Errorf("freepik: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/ai/text-to-image", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("freepik: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-freepik-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("freepik: submit failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("freepik: submit returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed freepikSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("freepik: failed to parse submit response: %w", err)
	}
	return parsed.Data.TaskID, nil
}

func (s *FreepikImageClient) poll(ctx context.Context, taskID string) (string, []string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/ai/text-to-image/%s", s.baseURL, taskID), nil)
	if err != nil {
		return "", nil, fmt.Errorf("freepik: failed to create poll request: %w", err)
	}
	req.Header.Set("x-freepik-api-key", s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("freepik: poll failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed freepikStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", nil, fmt.Errorf("freepik: failed to parse poll response: %w", err)
	}
	return parsed.Data.Status, parsed.Data.Generated, nil
}

func (s *FreepikImageClient) download(ctx context.Context, url string) ([]byte, error) {
	data, _, err := downloadReferenceImage(ctx, s.client, url)
	return data, err
}

// ---------------------------------------------------------------------------
// Ordered fallback + vision pre-pass
// ---------------------------------------------------------------------------

// ImageGenLadder tries the requested provider first, then the remaining providers
// in a fixed order, surfacing AllProvidersFailed only once every provider has
// been exhausted.
type ImageGenLadder struct {
	Providers    map[string]ImageGenService
	FallbackOrder []string
	VisionPrePass *VisionPrePass
}

func (l *ImageGenLadder) GenerateImage(ctx context.Context, requestedProvider string, in ImageGenInput) ([]byte, string, error) {
	if len(in.ProductImages) > 0 && l.VisionPrePass != nil {
		if augmented, err := l.VisionPrePass.Augment(ctx, in); err == nil {
			in = augmented
		} else {
			log.Printf("[Provider:image] vision pre-pass failed, proceeding with raw prompt: %v", err)
		}
	}

	order := l.order(requestedProvider)
	var errs []error
	for _, name := range order {
		svc, ok := l.Providers[name]
		if !ok {
			continue
		}
		data, err := svc.GenerateImage(ctx, in)
		if err == nil {
			return data, name, nil
		}
		log.Printf("[Provider:image:%s] generation failed: %v", name, err)
		errs = append(errs, err)
	}

	return nil, "", &allProvidersFailedError{capability: "image_generation", attempts: errs}
}

func (l *ImageGenLadder) order(requested string) []string {
	order := []string{requested}
	for _, name := range l.FallbackOrder {
		if name != requested {
			order = append(order, name)
		}
	}
	return order
}

type allProvidersFailedError struct {
	capability string
	attempts   []error
}

func (e *allProvidersFailedError) Error() string {
	return fmt.Sprintf("all providers failed for %s (%d attempts)", e.capability, len(e.attempts))
}

// VisionPrePass extracts product attributes from reference images via a vision-
// capable chat model, used to augment the prompt before image synthesis.
type VisionPrePass struct {
	client *openai.Client
}

func NewVisionPrePass(apiKey string) *VisionPrePass {
	return &VisionPrePass{client: openai.NewClient(apiKey)}
}

func (v *VisionPrePass) Augment(ctx context.Context, in ImageGenInput) (ImageGenInput, error) {
	if len(in.ProductImages) == 0 {
		return in, nil
	}

	parts := []openai.ChatMessagePart{
		{Type: "text", Text: "Describe this product's key visual attributes (color, shape, material, distinguishing features) in one concise sentence for an image generation prompt."},
		{Type: "image_url", ImageURL: &openai.ChatMessageImageURL{URL: in.ProductImages[0]}},
	}

	resp, err := v.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: "gpt-4o-mini",
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, MultiContent: parts},
		},
	})
	if err != nil {
		return in, fmt.Errorf("vision pre-pass: request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return in, fmt.Errorf("vision pre-pass: no response")
	}

	attrs := resp.Choices[0].Message.Content
	in.Prompt = fmt.Sprintf("%s\n\nProduct attributes: %s", in.Prompt, attrs)
	return in, nil
}
