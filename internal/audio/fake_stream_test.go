package audio

import (
	"errors"
	"sync"
)

type fakeStream struct {
	mu       sync.Mutex
	started  bool
	closed   bool
	starts   int
	startErr error
}

func (s *fakeStream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startErr != nil {
		return s.startErr
	}
	s.started = true
	s.starts++
	return nil
}

func (s *fakeStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return errors.New("stream is stopped")
	}
	s.started = false
	return nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// fakeDevice hands out fake streams and remembers the last callback.
type fakeDevice struct {
	mu       sync.Mutex
	stream   *fakeStream
	callback func([]float32)
	openErr  error
}

func (d *fakeDevice) open(_ int, cb func([]float32)) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.stream = &fakeStream{}
	d.callback = cb
	return d.stream, nil
}

func (d *fakeDevice) feed(buf []float32) {
	d.mu.Lock()
	cb := d.callback
	d.mu.Unlock()
	cb(buf)
}

func (d *fakeDevice) current() *fakeStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stream
}

func tone(n int) []float32 {
	buf := make([]float32, n)
	for i := range buf {
		buf[i] = float32(i%32)/32 - 0.5
	}
	return buf
}
