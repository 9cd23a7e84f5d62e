// Package providers implements the uniform client layer over external asset
// providers (component C3): text-to-speech, image generation, video generation,
// stock-video search, and image editing. Text-to-speech and image generation
// try a primary provider and then an ordered fallback chain; stock search
// merges Pixabay and Pexels results; video generation calls only the named
// provider and has no fallback.
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"
)

// TTSResponse is the output of a text-to-speech synthesis call.
type TTSResponse struct {
	AudioData  []byte
	DurationMs int
	Format     string
}

// TTSInput is the input to a text-to-speech synthesis call.
type TTSInput struct {
	Text           string
	AudioPromptURL string
}

// TTSService synthesizes narration audio from text.
type TTSService interface {
	GenerateSpeech(ctx context.Context, in TTSInput) (*TTSResponse, error)
}

const (
	elevenLabsBaseURL      = "https://api.elevenlabs.io"
	elevenLabsDefaultModel = "eleven_flash_v2_5"
	elevenLabsOutputFormat = "mp3_44100_128"
)

// ElevenLabsTTS is the primary cloud text-to-speech provider.
type ElevenLabsTTS struct {
	apiKey  string
	voiceID string
	modelID string
	baseURL string
	client  *http.Client
}

var _ TTSService = (*ElevenLabsTTS)(nil)

func NewElevenLabsTTS(apiKey, voiceID string) *ElevenLabsTTS {
	return &ElevenLabsTTS{
		apiKey:  apiKey,
		voiceID: voiceID,
		modelID: elevenLabsDefaultModel,
		baseURL: elevenLabsBaseURL,
		client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type elevenLabsRequest struct {
	Text          string                   `json:"text"`
	ModelID       string                   `json:"model_id"`
	Speed         *float64                 `json:"speed,omitempty"`
	VoiceSettings *elevenLabsVoiceSettings `json:"voice_settings,omitempty"`
}

type elevenLabsVoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style,omitempty"`
	UseSpeakerBoost bool    `json:"use_speaker_boost,omitempty"`
}

func (s *ElevenLabsTTS) GenerateSpeech(ctx context.Context, in TTSInput) (*TTSResponse, error) {
	speed := 0.85
	reqBody := elevenLabsRequest{
		Text:    in.Text,
		ModelID: s.modelID,
		Speed:   &speed,
		VoiceSettings: &elevenLabsVoiceSettings{
			Stability:       0.60,
			SimilarityBoost: 0.80,
			Style:           0.35,
			UseSpeakerBoost: true,
		},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s?output_format=%s", s.baseURL, s.voiceID, elevenLabsOutputFormat)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", s.apiKey)

	log.Printf("[Provider:tts:elevenlabs] generating speech (textLen=%d)", len(in.Text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, &ttsRetryableStatusError{status: resp.StatusCode, body: string(body)}
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs: failed to read audio response: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("elevenlabs: returned empty audio")
	}

	return &TTSResponse{AudioData: audioData, DurationMs: estimateAudioDuration(in.Text, speed), Format: "mp3"}, nil
}

// ttsRetryableStatusError carries any non-200 status from the primary provider.
// shouldFallback reports whether it is one of the failure-ladder statuses
// (401/402/429) on which the ladder falls through to the fallback provider;
// any other status is returned as fatal.
type ttsRetryableStatusError struct {
	status int
	body   string
}

func (e *ttsRetryableStatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.status, e.body)
}

func (e *ttsRetryableStatusError) shouldFallback() bool {
	switch e.status {
	case http.StatusUnauthorized, http.StatusPaymentRequired, http.StatusTooManyRequests:
		return true
	default:
		return false
	}
}

const cartesiaAPIVersion = "2024-06-10"

// CartesiaTTS is the fallback text-to-speech provider, a remote HTTP API. Its
// mutex guards only the first-use flag; requests are not serialized and run
// concurrently.
type CartesiaTTS struct {
	apiKey     string
	apiURL     string
	apiVersion string
	voiceID    string
	client     *http.Client

	mu     sync.Mutex
	warmed bool
}

var _ TTSService = (*CartesiaTTS)(nil)

func NewCartesiaTTS(apiKey, apiURL, voiceID string) *CartesiaTTS {
	return &CartesiaTTS{
		apiKey:     apiKey,
		apiURL:     apiURL,
		apiVersion: cartesiaAPIVersion,
		voiceID:    voiceID,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

type cartesiaRequest struct {
	ModelID      string                    `json:"model_id"`
	Transcript   string                    `json:"transcript"`
	Voice        cartesiaVoiceSpecifier    `json:"voice"`
	Language     *string                   `json:"language,omitempty"`
	OutputFormat cartesiaOutputFormat      `json:"output_format"`
	Config       *cartesiaGenerationConfig `json:"generation_config,omitempty"`
}

type cartesiaVoiceSpecifier struct {
	Mode string `json:"mode"`
	ID   string `json:"id"`
}

type cartesiaOutputFormat struct {
	Container  string `json:"container"`
	SampleRate int    `json:"sample_rate"`
	BitRate    int    `json:"bit_rate,omitempty"`
}

type cartesiaGenerationConfig struct {
	Volume  *float64 `json:"volume,omitempty"`
	Speed   *float64 `json:"speed,omitempty"`
	Emotion *string  `json:"emotion,omitempty"`
}

// ensureWarm records first use under the mutex. It opens no connection and
// does not hold the mutex while a request runs.
func (s *CartesiaTTS) ensureWarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.warmed = true
}

func (s *CartesiaTTS) GenerateSpeech(ctx context.Context, in TTSInput) (*TTSResponse, error) {
	s.ensureWarm()

	speed := 0.85
	language := "en"
	reqBody := cartesiaRequest{
		ModelID:    "sonic-english",
		Transcript: in.Text,
		Voice:      cartesiaVoiceSpecifier{Mode: "id", ID: s.voiceID},
		Language:   &language,
		OutputFormat: cartesiaOutputFormat{
			Container:  "mp3",
			SampleRate: 44100,
			BitRate:    192000,
		},
		Config: &cartesiaGenerationConfig{Speed: &speed},
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("cartesia: failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/tts/bytes", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("cartesia: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cartesia-Version", s.apiVersion)

	log.Printf("[Provider:tts:cartesia] generating speech (textLen=%d)", len(in.Text))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cartesia: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("cartesia: returned status %d: %s", resp.StatusCode, string(body))
	}

	audioData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cartesia: failed to read audio: %w", err)
	}
	if len(audioData) == 0 {
		return nil, fmt.Errorf("cartesia: returned empty audio")
	}

	return &TTSResponse{AudioData: audioData, DurationMs: estimateAudioDuration(in.Text, speed), Format: "mp3"}, nil
}

// TTSLadder synthesizes narration via the primary provider, falling through to
// the local fallback on a retryable failure per the 4.3(a) failure ladder.
type TTSLadder struct {
	Primary  TTSService
	Fallback TTSService
}

func (l *TTSLadder) GenerateSpeech(ctx context.Context, in TTSInput) (*TTSResponse, error) {
	resp, err := l.Primary.GenerateSpeech(ctx, in)
	if err == nil {
		return validateTTSResponse(resp)
	}

	if rse, ok := err.(*ttsRetryableStatusError); ok && !rse.shouldFallback() {
		return nil, err
	}

	log.Printf("[Provider:tts] primary failed (%v), falling back", err)
	if l.Fallback == nil {
		return nil, fmt.Errorf("tts: primary failed and no fallback configured: %w", err)
	}
	resp, err = l.Fallback.GenerateSpeech(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("tts: fallback also failed: %w", err)
	}
	return validateTTSResponse(resp)
}

func validateTTSResponse(resp *TTSResponse) (*TTSResponse, error) {
	if resp == nil || len(resp.AudioData) == 0 {
		return nil, fmt.Errorf("tts: provider returned no audio data")
	}
	return resp, nil
}

// estimateAudioDuration approximates narration length at a 140 words-per-minute
// baseline, adjusted by the synthesis speed multiplier.
func estimateAudioDuration(text string, speed float64) int {
	words := 1
	inWord := false
	for _, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			inWord = false
			continue
		}
		if !inWord {
			words++
			inWord = true
		}
	}
	const wordsPerMinute = 140.0
	minutes := float64(words) / (wordsPerMinute * speed)
	return int(minutes * 60 * 1000)
}
