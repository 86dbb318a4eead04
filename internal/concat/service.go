package concat

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	FFmpegPath string
	Timeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		FFmpegPath: "ffmpeg",
		Timeout:    60 * time.Second,
	}
}

// Service merges the segments listed in a manifest into one file with ffmpeg.
type Service struct {
	config Config
	log    *zap.SugaredLogger
}

func New(config Config, log *zap.SugaredLogger) *Service {
	if config.FFmpegPath == "" {
		config.FFmpegPath = DefaultConfig().FFmpegPath
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Service{config: config, log: log}
}

// Concatenate 按清单顺序拼接音频 (stream copy, no re-encode)
func (s *Service) Concatenate(ctx context.Context, manifestPath, outputPath string) error {
	inputs, err := ReadManifest(manifestPath)
	if err != nil {
		return &Fault{Manifest: manifestPath, Err: err}
	}
	for _, in := range inputs {
		if _, err := os.Stat(in); err != nil {
			return &Fault{Manifest: manifestPath, Err: fmt.Errorf("%w: %s", ErrMissingInput, in)}
		}
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "concat",
		"-safe", "0",
		"-i", manifestPath,
		"-c", "copy",
		outputPath,
	}

	start := time.Now()
	if err := s.run(ctx, args); err != nil {
		return &Fault{Manifest: manifestPath, Err: err}
	}

	if info, err := os.Stat(outputPath); err != nil || info.Size() == 0 {
		return &Fault{Manifest: manifestPath, Err: ErrNoOutput}
	}

	s.log.Debugw("Concatenated segments", "inputs", len(inputs), "output", outputPath, "took", time.Since(start))
	return nil
}

func (s *Service) run(ctx context.Context, args []string) error {
	runCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.config.FFmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	s.log.Debugw("Running ffmpeg", "args", args)

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return ErrFFmpegTimeout
		}
		if errors.Is(err, exec.ErrNotFound) {
			return ErrFFmpegNotFound
		}
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// CheckAvailable runs `ffmpeg -version`.
func (s *Service) CheckAvailable(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, s.config.FFmpegPath, "-version")
	if err := cmd.Run(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return ErrFFmpegNotFound
		}
		return fmt.Errorf("ffmpeg check failed: %w", err)
	}
	return nil
}

// ReadManifest returns the file paths listed in a concat-demuxer manifest.
func ReadManifest(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	var files []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "file ") {
			continue
		}
		name := strings.TrimSpace(strings.TrimPrefix(line, "file "))
		name = strings.TrimPrefix(name, "'")
		name = strings.TrimSuffix(name, "'")
		files = append(files, strings.ReplaceAll(name, `'\''`, "'"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: manifest is empty", ErrMissingInput)
	}
	return files, nil
}
