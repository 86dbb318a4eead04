package asr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/bmbmjmdm/hear-you-out/internal/audio"
)

var ErrNoAPIKey = errors.New("OpenAI API key is required")

// Config represents ASR service configuration
type Config struct {
	APIKey     string
	BaseURL    string
	Model      string
	Language   string
	Timeout    time.Duration
	MaxRetries int
}

// DefaultConfig returns default ASR configuration
func DefaultConfig() Config {
	return Config{
		Model:      "whisper-1",
		Language:   "", // Auto-detect
		Timeout:    60 * time.Second,
		MaxRetries: 2,
	}
}

// Service turns a recorded answer, or a received one, into a text preview.
type Service struct {
	client *Client
	config Config
	log    *zap.SugaredLogger
}

// NewService creates a new ASR service
func NewService(config Config, log *zap.SugaredLogger) (*Service, error) {
	if config.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{client: NewClient(config), config: config, log: log}, nil
}

// TranscribeFile transcribes an audio file to text
func (s *Service) TranscribeFile(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read audio file: %w", err)
	}
	return s.transcribe(ctx, data, filepath.Base(path))
}

// TranscribeAudio transcribes an in-memory WAV or MP3 payload, e.g. a decoded answer card.
func (s *Service) TranscribeAudio(ctx context.Context, data []byte) (string, error) {
	name := "answer.wav"
	if audio.DetectFormat(data) == audio.FormatMP3 {
		name = "answer.mp3"
	}
	return s.transcribe(ctx, data, name)
}

func (s *Service) transcribe(ctx context.Context, data []byte, name string) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("nothing to transcribe: %w", audio.ErrNoSamples)
	}

	contentType := "audio/wav"
	if audio.DetectFormat(data) == audio.FormatMP3 {
		contentType = "audio/mpeg"
	}

	start := time.Now()
	text, err := s.client.Transcribe(ctx, data, name, contentType, Request{
		Model:    s.config.Model,
		Language: s.config.Language,
	})
	if err != nil {
		s.log.Warnw("Transcription failed", "file", name, "error", err)
		return "", err
	}
	s.log.Infow("Transcription done", "file", name, "chars", len(text), "took", time.Since(start))
	return text, nil
}
