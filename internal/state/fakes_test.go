package state

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/bmbmjmdm/hear-you-out/internal/concat"
)

// fakeDevice writes one byte per simulated second into the open segment.
type fakeDevice struct {
	mu    sync.Mutex
	calls []string

	path      string
	buf       []byte
	capturing bool

	startErr error
	pauseErr error
	stopErr  error
	playErr  error
	playing  string
	onMeter  func(float64)
	onPos    func(pos, total time.Duration)
	onDone   func()
	cleared  bool
}

func (d *fakeDevice) record(call string) {
	d.calls = append(d.calls, call)
}

func (d *fakeDevice) StartRecording(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("start")
	if d.startErr != nil {
		return d.startErr
	}
	d.path = path
	d.buf = nil
	d.capturing = true
	return os.WriteFile(path, nil, 0644)
}

func (d *fakeDevice) PauseRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("pause")
	if d.pauseErr != nil {
		return d.pauseErr
	}
	d.capturing = false
	return nil
}

func (d *fakeDevice) ResumeRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("resume")
	d.capturing = true
	return nil
}

func (d *fakeDevice) StopRecording() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("stop")
	if d.stopErr != nil {
		return d.stopErr
	}
	d.capturing = false
	path, buf := d.path, d.buf
	d.path, d.buf = "", nil
	return os.WriteFile(path, buf, 0644)
}

// advance simulates n seconds of captured audio.
func (d *fakeDevice) advance(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.capturing {
		return
	}
	for i := 0; i < n; i++ {
		d.buf = append(d.buf, 'x')
	}
}

func (d *fakeDevice) StartPlayback(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("play")
	if d.playErr != nil {
		return d.playErr
	}
	d.playing = path
	return nil
}

func (d *fakeDevice) PausePlayback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("pause-playback")
	return nil
}

func (d *fakeDevice) ResumePlayback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("resume-playback")
	return nil
}

func (d *fakeDevice) StopPlayback() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("stop-playback")
	d.playing = ""
	return nil
}

func (d *fakeDevice) Seek(ms int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("seek")
	return nil
}

func (d *fakeDevice) SetMeterHandler(h func(float64)) {
	d.mu.Lock()
	d.onMeter = h
	d.mu.Unlock()
}

func (d *fakeDevice) SetPositionHandler(h func(pos, total time.Duration)) {
	d.mu.Lock()
	d.onPos = h
	d.mu.Unlock()
}

func (d *fakeDevice) SetCompletionHandler(h func()) {
	d.mu.Lock()
	d.onDone = h
	d.mu.Unlock()
}

func (d *fakeDevice) ClearHandlers() {
	d.mu.Lock()
	d.onMeter, d.onPos, d.onDone = nil, nil, nil
	d.cleared = true
	d.mu.Unlock()
}

func (d *fakeDevice) finishPlayback() {
	d.mu.Lock()
	h := d.onDone
	d.mu.Unlock()
	if h != nil {
		h()
	}
}

func (d *fakeDevice) count(call string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.calls {
		if c == call {
			n++
		}
	}
	return n
}

// fakeConcat joins the manifest inputs byte for byte.
type fakeConcat struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *fakeConcat) Concatenate(_ context.Context, manifest, output string) error {
	c.mu.Lock()
	c.calls++
	err := c.err
	c.mu.Unlock()
	if err != nil {
		return err
	}

	inputs, err := concat.ReadManifest(manifest)
	if err != nil {
		return err
	}
	var out []byte
	for _, in := range inputs {
		data, err := os.ReadFile(in)
		if err != nil {
			return &concat.Fault{Manifest: manifest, Err: concat.ErrMissingInput}
		}
		out = append(out, data...)
	}
	return os.WriteFile(output, out, 0644)
}

func (c *fakeConcat) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type submission struct {
	questionID string
	audio      string
}

type fakeSubmitter struct {
	mu    sync.Mutex
	posts []submission
	err   error
}

func (s *fakeSubmitter) SubmitAnswer(_ context.Context, questionID, audioBase64 string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, submission{questionID, audioBase64})
	if s.err != nil {
		return "", s.err
	}
	return "answer-1", nil
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []NoticeKind
	alerts  []error
	fatals  []error
	changes int
	last    Snapshot
}

func (n *fakeNotifier) Changed(snap Snapshot) {
	n.mu.Lock()
	n.changes++
	n.last = snap
	n.mu.Unlock()
}

func (n *fakeNotifier) Notice(kind NoticeKind) {
	n.mu.Lock()
	n.notices = append(n.notices, kind)
	n.mu.Unlock()
}

func (n *fakeNotifier) Alert(err error) {
	n.mu.Lock()
	n.alerts = append(n.alerts, err)
	n.mu.Unlock()
}

func (n *fakeNotifier) Fatal(err error) {
	n.mu.Lock()
	n.fatals = append(n.fatals, err)
	n.mu.Unlock()
}

func (n *fakeNotifier) Meter(float64)                     {}
func (n *fakeNotifier) Progress(pos, total time.Duration) {}

func (n *fakeNotifier) noticeList() []NoticeKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]NoticeKind(nil), n.notices...)
}

func (n *fakeNotifier) fatalCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.fatals)
}

func (n *fakeNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

type fakeTranscriber struct{}

func (fakeTranscriber) TranscribeFile(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty recording")
	}
	return "transcribed", nil
}
