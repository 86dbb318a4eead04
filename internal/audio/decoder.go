package audio

import (
	"bytes"
	"fmt"
	"os"

	"github.com/tosone/minimp3"
)

// Format 音频格式
type Format string

const (
	FormatWAV     Format = "wav"
	FormatMP3     Format = "mp3"
	FormatUnknown Format = "unknown"
)

// DetectFormat 根据文件头检测格式
func DetectFormat(data []byte) Format {
	if len(data) < 4 {
		return FormatUnknown
	}
	if bytes.Equal(data[:4], []byte("RIFF")) {
		return FormatWAV
	}
	if bytes.Equal(data[:3], []byte("ID3")) {
		return FormatMP3
	}
	// MPEG frame sync
	if data[0] == 0xFF && (data[1]&0xE0) == 0xE0 {
		return FormatMP3
	}
	return FormatUnknown
}

// Decode 解码音频数据为单声道 float32 样本
func Decode(data []byte) ([]float32, int, error) {
	switch DetectFormat(data) {
	case FormatWAV:
		return decodeWAV(data)
	case FormatMP3:
		return decodeMP3(data)
	default:
		return nil, 0, ErrUnknownFormat
	}
}

// DecodeFile 读取并解码音频文件
func DecodeFile(filename string) ([]float32, int, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read file: %w", err)
	}
	return Decode(data)
}

func decodeMP3(data []byte) ([]float32, int, error) {
	dec, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}
	defer dec.Close()

	channels := dec.Channels
	if channels < 1 {
		channels = 1
	}

	frames := len(pcm) / 2 / channels
	samples := make([]float32, 0, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			off := (i*channels + c) * 2
			raw := int16(pcm[off]) | int16(pcm[off+1])<<8
			sum += float32(raw) / 32768.0
		}
		samples = append(samples, clamp(sum/float32(channels)))
	}

	return samples, dec.SampleRate, nil
}
