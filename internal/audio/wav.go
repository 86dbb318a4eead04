package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/youpy/go-wav"
)

const bitsPerSample = 16

// WriteWAV writes mono float32 samples as 16-bit PCM.
func WriteWAV(w io.Writer, samples []float32, sampleRate int) error {
	writer := wav.NewWriter(w, uint32(len(samples)), 1, uint32(sampleRate), bitsPerSample)

	buf := make([]wav.Sample, len(samples))
	for i, s := range samples {
		buf[i].Values[0] = int(clamp(s) * 32767)
	}

	if err := writer.WriteSamples(buf); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	return nil
}

// SaveWAV creates (or truncates) filename and writes the samples to it.
func SaveWAV(filename string, samples []float32, sampleRate int) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create WAV file: %w", err)
	}

	if err := WriteWAV(file, samples, sampleRate); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close WAV file: %w", err)
	}
	return nil
}

// decodeWAV 用 go-wav 解码, 立体声混成单声道
func decodeWAV(data []byte) ([]float32, int, error) {
	reader := wav.NewReader(bytes.NewReader(data))

	format, err := reader.Format()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read WAV format: %w", err)
	}

	scale := float32(int64(1) << (format.BitsPerSample - 1))
	if format.BitsPerSample == 8 {
		scale = 128
	}

	var samples []float32
	for {
		chunk, err := reader.ReadSamples()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("failed to read WAV samples: %w", err)
		}
		if len(chunk) == 0 {
			break
		}

		for _, s := range chunk {
			v := float32(reader.IntValue(s, 0)) / scale
			if format.NumChannels == 2 {
				v = (v + float32(reader.IntValue(s, 1))/scale) / 2
			}
			samples = append(samples, clamp(v))
		}
	}

	return samples, int(format.SampleRate), nil
}

// WAVDuration returns the playing time of a WAV file.
func WAVDuration(filename string) (time.Duration, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return 0, fmt.Errorf("failed to read file: %w", err)
	}
	samples, rate, err := decodeWAV(data)
	if err != nil {
		return 0, err
	}
	return samplesDuration(len(samples), rate), nil
}

func samplesDuration(n, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second / time.Duration(rate)
}

func clamp(v float32) float32 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
