package audio

import (
	"fmt"
	"sync"
	"time"
)

// Recorder captures mono samples from an input stream into one WAV file per Start/Stop.
type Recorder struct {
	mu         sync.Mutex
	sampleRate int
	open       StreamOpener

	stream  Stream
	path    string
	samples []float32
	running bool
	meter   levelMeter
}

func NewRecorder(sampleRate int, open StreamOpener) *Recorder {
	return &Recorder{sampleRate: sampleRate, open: open}
}

func (r *Recorder) callback(in []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.samples = append(r.samples, in...)
	r.meter.update(in)
}

// Start opens the capture stream and begins accumulating samples for path.
func (r *Recorder) Start(path string) error {
	r.mu.Lock()
	if r.stream != nil {
		r.mu.Unlock()
		return ErrBusy
	}
	r.mu.Unlock()

	stream, err := r.open(r.sampleRate, r.callback)
	if err != nil {
		return fmt.Errorf("failed to open input stream: %w", err)
	}

	r.mu.Lock()
	r.stream = stream
	r.path = path
	r.samples = r.samples[:0]
	r.running = true
	r.mu.Unlock()

	if err := stream.Start(); err != nil {
		r.reset()
		stream.Close()
		return fmt.Errorf("failed to start input stream: %w", err)
	}
	return nil
}

// Pause stops the stream but keeps the samples and the target path.
func (r *Recorder) Pause() error {
	r.mu.Lock()
	stream := r.stream
	if stream == nil || !r.running {
		r.mu.Unlock()
		return ErrNotRecording
	}
	r.running = false
	r.mu.Unlock()

	r.meter.reset()
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	return nil
}

func (r *Recorder) Resume() error {
	r.mu.Lock()
	stream := r.stream
	if stream == nil {
		r.mu.Unlock()
		return ErrNotRecording
	}
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	if err := stream.Start(); err != nil {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		return fmt.Errorf("failed to restart input stream: %w", err)
	}
	return nil
}

// Stop closes the stream and writes the accumulated samples to the file given to Start.
func (r *Recorder) Stop() (time.Duration, error) {
	r.mu.Lock()
	stream := r.stream
	if stream == nil {
		r.mu.Unlock()
		return 0, ErrNotRecording
	}
	wasRunning := r.running
	r.running = false
	r.mu.Unlock()

	if wasRunning {
		if err := stream.Stop(); err != nil {
			r.reset()
			stream.Close()
			return 0, fmt.Errorf("failed to stop input stream: %w", err)
		}
	}
	closeErr := stream.Close()

	r.mu.Lock()
	path := r.path
	samples := make([]float32, len(r.samples))
	copy(samples, r.samples)
	r.mu.Unlock()
	r.reset()

	if closeErr != nil {
		return 0, fmt.Errorf("failed to close input stream: %w", closeErr)
	}
	if err := SaveWAV(path, samples, r.sampleRate); err != nil {
		return 0, err
	}
	return samplesDuration(len(samples), r.sampleRate), nil
}

// Discard closes the stream without writing the file.
func (r *Recorder) Discard() {
	r.mu.Lock()
	stream := r.stream
	running := r.running
	r.mu.Unlock()

	if stream != nil {
		if running {
			stream.Stop()
		}
		stream.Close()
	}
	r.reset()
}

func (r *Recorder) reset() {
	r.mu.Lock()
	r.stream = nil
	r.path = ""
	r.samples = nil
	r.running = false
	r.mu.Unlock()
	r.meter.reset()
}

// Active reports whether a file is open (recording or paused).
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stream != nil
}

func (r *Recorder) Level() float64 {
	return r.meter.level()
}
