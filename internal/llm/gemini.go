package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const transcribePrompt = "Please transcribe the audio content. Return ONLY the transcribed text, word for word. Do not add commentary."

// GeminiConfig holds the parameters for the Gemini-backed model.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Gemini implements Model using the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini model client.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("model name is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: cfg.Model}, nil
}

// GenerateText sends a text-only prompt.
func (g *Gemini) GenerateText(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned empty response")
	}
	return text, nil
}

// TranscribeAudio sends inline audio bytes together with the transcription
// instruction and returns the transcript.
func (g *Gemini) TranscribeAudio(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("audio payload is empty")
	}
	if mimeType == "" {
		mimeType = "audio/mpeg"
	}
	parts := []*genai.Part{
		genai.NewPartFromBytes(data, mimeType),
		genai.NewPartFromText(transcribePrompt),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("model returned empty transcript")
	}
	return text, nil
}
