package recognition

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// OpenAIRecognizer transcribes audio clips through the OpenAI Whisper API.
type OpenAIRecognizer struct {
	client *openai.Client
	model  string
}

// NewOpenAIRecognizer creates a Whisper-backed recognizer.
func NewOpenAIRecognizer(apiKey, model string) (*OpenAIRecognizer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}

	if model == "" {
		model = openai.Whisper1
	}

	return &OpenAIRecognizer{
		client: openai.NewClient(apiKey),
		model:  model,
	}, nil
}

// Recognize sends the WAV clip to the Whisper transcription endpoint and
// returns the recognized text.
func (r *OpenAIRecognizer) Recognize(ctx context.Context, wavData []byte) (string, error) {
	req := openai.AudioRequest{
		Model:    r.model,
		FilePath: "segment.wav",
		Reader:   bytes.NewReader(wavData),
	}

	resp, err := r.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("whisper transcription failed: %w", err)
	}

	return resp.Text, nil
}
