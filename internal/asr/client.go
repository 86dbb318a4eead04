package asr

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Client sends audio to the Whisper transcription endpoint through the OpenAI SDK.
type Client struct {
	client openai.Client
}

// NewClient creates a transcription client. baseURL may be empty for the public API.
func NewClient(cfg Config) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")+"/"))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &Client{client: openai.NewClient(opts...)}
}

// Transcribe sends one audio file and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, data []byte, filename, contentType string, req Request) (string, error) {
	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(data), filename, contentType),
		Model: openai.AudioModel(req.Model),
	}
	if req.Language != "" && req.Language != "auto" {
		params.Language = openai.String(req.Language)
	}
	if req.Prompt != "" {
		params.Prompt = openai.String(req.Prompt)
	}

	transcription, err := c.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("transcription failed: %w", err)
	}
	return strings.TrimSpace(transcription.Text), nil
}

// Request holds per-call transcription options
type Request struct {
	Model    string
	Language string // ISO-639-1, empty or "auto" to detect
	Prompt   string
}
