package audio

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

type Config struct {
	SampleRate    int
	MeterInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate:    16000,
		MeterInterval: 100 * time.Millisecond,
	}
}

// Engine 录音和播放适配器, 同一时间只有一个活动操作
type Engine struct {
	cfg      Config
	log      *zap.SugaredLogger
	manager  *Manager
	recorder *Recorder
	player   *Player

	mu         sync.Mutex
	onMeter    func(level float64)
	onPosition func(pos, total time.Duration)
	onComplete func()
	stopMeter  chan struct{}
	stopWatch  chan struct{}
}

// NewEngine opens the default PortAudio devices.
func NewEngine(cfg Config, log *zap.SugaredLogger) (*Engine, error) {
	manager := GetManager()
	if err := manager.Acquire(); err != nil {
		return nil, fault("init", err)
	}
	e := NewEngineWithStreams(cfg, log, OpenInput, OpenOutput)
	e.manager = manager
	return e, nil
}

// NewEngineWithStreams builds an engine over custom stream openers.
func NewEngineWithStreams(cfg Config, log *zap.SugaredLogger, in, out StreamOpener) *Engine {
	def := DefaultConfig()
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = def.SampleRate
	}
	if cfg.MeterInterval <= 0 {
		cfg.MeterInterval = def.MeterInterval
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		cfg:      cfg,
		log:      log,
		recorder: NewRecorder(cfg.SampleRate, in),
		player:   NewPlayer(cfg.SampleRate, out),
	}
}

func (e *Engine) SampleRate() int {
	return e.cfg.SampleRate
}

func (e *Engine) SetMeterHandler(h func(level float64)) {
	e.mu.Lock()
	e.onMeter = h
	e.mu.Unlock()
}

func (e *Engine) SetPositionHandler(h func(pos, total time.Duration)) {
	e.mu.Lock()
	e.onPosition = h
	e.mu.Unlock()
}

func (e *Engine) SetCompletionHandler(h func()) {
	e.mu.Lock()
	e.onComplete = h
	e.mu.Unlock()
}

func (e *Engine) ClearHandlers() {
	e.mu.Lock()
	e.onMeter = nil
	e.onPosition = nil
	e.onComplete = nil
	e.mu.Unlock()
}

// StartRecording opens a new segment file at path.
func (e *Engine) StartRecording(path string) error {
	if e.player.Playing() {
		return fault("start recording", ErrBusy)
	}
	if err := e.recorder.Start(path); err != nil {
		return fault("start recording", err)
	}
	e.startMeter()
	e.log.Debugw("Recording started", "path", path)
	return nil
}

func (e *Engine) PauseRecording() error {
	e.stopMeterLoop()
	return fault("pause recording", e.recorder.Pause())
}

func (e *Engine) ResumeRecording() error {
	if err := e.recorder.Resume(); err != nil {
		return fault("resume recording", err)
	}
	e.startMeter()
	return nil
}

// StopRecording finalizes the open segment file.
func (e *Engine) StopRecording() error {
	e.stopMeterLoop()
	d, err := e.recorder.Stop()
	if err != nil {
		return fault("stop recording", err)
	}
	e.log.Debugw("Recording stopped", "duration", d)
	return nil
}

// StartPlayback decodes the file at path and plays it from the start.
func (e *Engine) StartPlayback(path string) error {
	samples, rate, err := DecodeFile(path)
	if err != nil {
		return fault("start playback", err)
	}
	return fault("start playback", e.play(samples, rate))
}

// PlayData plays an in-memory WAV or MP3 payload.
func (e *Engine) PlayData(data []byte) error {
	samples, rate, err := Decode(data)
	if err != nil {
		return fault("play data", err)
	}
	return fault("play data", e.play(samples, rate))
}

func (e *Engine) play(samples []float32, rate int) error {
	if e.recorder.Active() {
		return ErrBusy
	}
	samples, err := Resample(samples, rate, e.cfg.SampleRate)
	if err != nil {
		return fmt.Errorf("failed to resample audio: %w", err)
	}

	e.stopWatchLoop()
	finished, err := e.player.Play(samples)
	if err != nil {
		return err
	}
	e.startWatch(finished)
	return nil
}

func (e *Engine) PausePlayback() error {
	return fault("pause playback", e.player.Pause())
}

func (e *Engine) ResumePlayback() error {
	return fault("resume playback", e.player.Resume())
}

func (e *Engine) StopPlayback() error {
	e.stopWatchLoop()
	return fault("stop playback", e.player.Stop())
}

func (e *Engine) Seek(ms int) error {
	return fault("seek", e.player.Seek(time.Duration(ms)*time.Millisecond))
}

func (e *Engine) startMeter() {
	stop := make(chan struct{})
	e.mu.Lock()
	if e.stopMeter != nil {
		close(e.stopMeter)
	}
	e.stopMeter = stop
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.cfg.MeterInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.mu.Lock()
				h := e.onMeter
				e.mu.Unlock()
				if h != nil {
					h(e.recorder.Level())
				}
			}
		}
	}()
}

func (e *Engine) stopMeterLoop() {
	e.mu.Lock()
	if e.stopMeter != nil {
		close(e.stopMeter)
		e.stopMeter = nil
	}
	e.mu.Unlock()
}

// startWatch reports position while playing and fires the completion handler at the end.
func (e *Engine) startWatch(finished <-chan struct{}) {
	stop := make(chan struct{})
	e.mu.Lock()
	e.stopWatch = stop
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.cfg.MeterInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				e.emitPosition()
			case <-finished:
				select {
				case <-stop:
					return
				default:
				}
				if err := e.player.Pause(); err != nil {
					e.log.Warnw("Failed to stop finished playback", "error", err)
				}
				e.emitPosition()
				e.mu.Lock()
				h := e.onComplete
				if e.stopWatch == stop {
					e.stopWatch = nil
				}
				e.mu.Unlock()
				if h != nil {
					h()
				}
				return
			}
		}
	}()
}

func (e *Engine) emitPosition() {
	e.mu.Lock()
	h := e.onPosition
	e.mu.Unlock()
	if h != nil {
		pos, total := e.player.Position()
		h(pos, total)
	}
}

func (e *Engine) stopWatchLoop() {
	e.mu.Lock()
	if e.stopWatch != nil {
		close(e.stopWatch)
		e.stopWatch = nil
	}
	e.mu.Unlock()
}

// Close stops everything and releases PortAudio. An open segment is discarded.
func (e *Engine) Close() error {
	e.ClearHandlers()
	e.stopMeterLoop()
	e.stopWatchLoop()

	var firstErr error
	if err := e.player.Stop(); err != nil {
		firstErr = err
	}
	if e.recorder.Active() {
		e.recorder.Discard()
	}
	if e.manager != nil {
		if err := e.manager.Release(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return fault("close", firstErr)
}
