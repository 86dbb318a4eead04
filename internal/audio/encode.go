package audio

import (
	"encoding/base64"
	"fmt"
	"os"
)

// EncodeFile returns the whole file as standard base64 for the answer upload.
func EncodeFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read recording: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("failed to encode recording: %w", ErrNoSamples)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// DecodeBase64 is the inverse used for answers received from the server.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode audio payload: %w", err)
	}
	return data, nil
}
