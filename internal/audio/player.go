package audio

import (
	"fmt"
	"sync"
	"time"
)

// Player 播放已解码的单声道样本, 支持暂停/继续/跳转
type Player struct {
	mu         sync.Mutex
	sampleRate int
	open       StreamOpener

	stream    Stream
	samples   []float32
	position  int
	running   bool
	streaming bool
	finished  chan struct{}
}

func NewPlayer(sampleRate int, open StreamOpener) *Player {
	return &Player{sampleRate: sampleRate, open: open}
}

// callback 音频回调函数
func (p *Player) callback(out []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		for i := range out {
			out[i] = 0
		}
		return
	}

	n := copy(out, p.samples[p.position:])
	p.position += n
	for i := n; i < len(out); i++ {
		out[i] = 0
	}

	if p.position >= len(p.samples) {
		p.running = false
		select {
		case p.finished <- struct{}{}:
		default:
		}
	}
}

// Play loads samples (already at the player rate) and starts from the beginning.
// The returned channel receives once when the end is reached.
func (p *Player) Play(samples []float32) (<-chan struct{}, error) {
	if len(samples) == 0 {
		return nil, ErrNoSamples
	}

	p.Stop()

	stream, err := p.open(p.sampleRate, p.callback)
	if err != nil {
		return nil, fmt.Errorf("failed to open output stream: %w", err)
	}

	finished := make(chan struct{}, 1)
	p.mu.Lock()
	p.stream = stream
	p.samples = samples
	p.position = 0
	p.running = true
	p.streaming = true
	p.finished = finished
	p.mu.Unlock()

	if err := stream.Start(); err != nil {
		p.Stop()
		return nil, fmt.Errorf("failed to start audio stream: %w", err)
	}
	return finished, nil
}

func (p *Player) Pause() error {
	p.mu.Lock()
	stream := p.stream
	if stream == nil {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	p.running = false
	streaming := p.streaming
	p.streaming = false
	p.mu.Unlock()

	if !streaming {
		return nil
	}
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("failed to pause audio stream: %w", err)
	}
	return nil
}

// Resume continues from the current position.
func (p *Player) Resume() error {
	p.mu.Lock()
	stream := p.stream
	if stream == nil {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	if p.position >= len(p.samples) {
		p.position = 0
	}
	p.running = true
	streaming := p.streaming
	p.streaming = true
	p.mu.Unlock()

	if streaming {
		return nil
	}
	if err := stream.Start(); err != nil {
		p.mu.Lock()
		p.running = false
		p.streaming = false
		p.mu.Unlock()
		return fmt.Errorf("failed to resume audio stream: %w", err)
	}
	return nil
}

// Seek moves the read position; it is clamped to the loaded samples.
func (p *Player) Seek(offset time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return ErrNotPlaying
	}
	pos := int(offset * time.Duration(p.sampleRate) / time.Second)
	if pos < 0 {
		pos = 0
	}
	if pos > len(p.samples) {
		pos = len(p.samples)
	}
	p.position = pos
	return nil
}

// Stop 停止并关闭当前流
func (p *Player) Stop() error {
	p.mu.Lock()
	stream := p.stream
	streaming := p.streaming
	p.stream = nil
	p.running = false
	p.streaming = false
	p.samples = nil
	p.position = 0
	p.mu.Unlock()

	if stream == nil {
		return nil
	}
	if streaming {
		stream.Stop()
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}
	return nil
}

// Position returns the playback position and the total length.
func (p *Player) Position() (time.Duration, time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return samplesDuration(p.position, p.sampleRate), samplesDuration(len(p.samples), p.sampleRate)
}

func (p *Player) Loaded() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stream != nil
}

func (p *Player) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
