package providers

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ImageEditInput is the input to an image-edit call (4.3e).
type ImageEditInput struct {
	SourceImageURL string
	EditPrompt     string
}

// ImageEditService edits a source image in place per a text instruction.
type ImageEditService interface {
	EditImage(ctx context.Context, in ImageEditInput) ([]byte, error)
}

type OpenAIImageEditClient struct {
	client *openai.Client
	http   *http.Client
}

var _ ImageEditService = (*OpenAIImageEditClient)(nil)

func NewOpenAIImageEditClient(apiKey string) *OpenAIImageEditClient {
	return &OpenAIImageEditClient{client: openai.NewClient(apiKey), http: &http.Client{Timeout: 60 * time.Second}}
}

func (c *OpenAIImageEditClient) EditImage(ctx context.Context, in ImageEditInput) ([]byte, error) {
	source, _, err := downloadReferenceImage(ctx, c.http, in.SourceImageURL)
	if err != nil {
		return nil, fmt.Errorf("image-edit: failed to fetch source image: %w", err)
	}

	req := openai.ImageEditRequest{
		Image:          bytes.NewReader(source),
		Prompt:         in.EditPrompt,
		Model:          "gpt-image-1",
		Size:           "1024x1536",
		ResponseFormat: "b64_json",
	}

	resp, err := c.client.CreateEditImage(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("image-edit: request failed: %w", err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("image-edit: response contained no image data")
	}
	return base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
}

// EditWithFallback runs the edit and, on any failure, returns the unedited
// source image instead of propagating the error (non-fatal per 4.3e).
func EditWithFallback(ctx context.Context, svc ImageEditService, httpClient *http.Client, in ImageEditInput) []byte {
	data, err := svc.EditImage(ctx, in)
	if err == nil {
		return data
	}
	log.Printf("[Provider:image-edit] edit failed, falling back to unedited source: %v", err)

	source, _, err := downloadReferenceImage(ctx, httpClient, in.SourceImageURL)
	if err != nil {
		log.Printf("[Provider:image-edit] could not even re-fetch unedited source: %v", err)
		return nil
	}
	return source
}
