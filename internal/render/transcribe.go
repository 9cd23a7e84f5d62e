package render

import (
	"context"
	"fmt"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

// WordTimestamp is one word-level span from a narration transcription.
type WordTimestamp struct {
	Word  string
	Start float64
	End   float64
}

// Transcriber produces word-level timestamps for a narration audio file, used to
// drive subtitle synthesis (§4.4 step 6).
type Transcriber struct {
	client *openai.Client
}

func NewTranscriber(apiKey string) *Transcriber {
	return &Transcriber{client: openai.NewClient(apiKey)}
}

func (t *Transcriber) Transcribe(ctx context.Context, audioPath string) ([]WordTimestamp, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("render: failed to open narration audio: %w", err)
	}
	defer f.Close()

	resp, err := t.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:                  openai.Whisper1,
		FilePath:               audioPath,
		Reader:                 f,
		Format:                 openai.AudioResponseFormatVerboseJSON,
		TimestampGranularities: []openai.TranscriptionTimestampGranularity{openai.TranscriptionTimestampGranularityWord},
	})
	if err != nil {
		return nil, fmt.Errorf("render: transcription failed: %w", err)
	}

	words := make([]WordTimestamp, 0, len(resp.Words))
	for _, w := range resp.Words {
		words = append(words, WordTimestamp{Word: w.Word, Start: w.Start, End: w.End})
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("render: transcription returned no words")
	}
	return words, nil
}
