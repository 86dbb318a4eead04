package audio

import (
	"github.com/gordonklaus/portaudio"
)

const framesPerBuffer = 1024

// Stream is the part of *portaudio.Stream the recorder and player drive.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// StreamOpener opens a mono stream whose callback is fed (capture) or drained (playback).
type StreamOpener func(sampleRate int, callback func([]float32)) (Stream, error)

// OpenInput opens the default capture device.
func OpenInput(sampleRate int, callback func([]float32)) (Stream, error) {
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerBuffer, func(in []float32) {
		callback(in)
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// OpenOutput opens the default playback device.
func OpenOutput(sampleRate int, callback func([]float32)) (Stream, error) {
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), framesPerBuffer, func(out []float32) {
		callback(out)
	})
	if err != nil {
		return nil, err
	}
	return stream, nil
}
