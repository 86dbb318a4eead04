package audio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*Engine, *fakeDevice, *fakeDevice) {
	t.Helper()
	in, out := &fakeDevice{}, &fakeDevice{}
	e := NewEngineWithStreams(Config{SampleRate: 8000, MeterInterval: 5 * time.Millisecond}, nil, in.open, out.open)
	t.Cleanup(func() { e.Close() })
	return e, in, out
}

func TestEngineRecordThenPlay(t *testing.T) {
	e, in, out := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "original.wav")

	var levels atomic.Int32
	e.SetMeterHandler(func(float64) { levels.Add(1) })

	require.NoError(t, e.StartRecording(path))
	in.feed(tone(4000))
	assert.Eventually(t, func() bool { return levels.Load() > 0 }, time.Second, 5*time.Millisecond)
	require.NoError(t, e.StopRecording())

	done := make(chan struct{})
	e.SetCompletionHandler(func() { close(done) })
	require.NoError(t, e.StartPlayback(path))

	buf := make([]float32, 4000)
	out.feed(buf)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("completion handler not called")
	}
	assert.False(t, out.current().isStarted())
}

func TestEngineOneOperationAtATime(t *testing.T) {
	e, in, _ := newTestEngine(t)
	dir := t.TempDir()

	require.NoError(t, e.StartRecording(filepath.Join(dir, "a.wav")))
	in.feed(tone(800))

	var wav bytes.Buffer
	require.NoError(t, WriteWAV(&wav, tone(800), 8000))

	var fault *RecorderFault
	err := e.PlayData(wav.Bytes())
	require.ErrorAs(t, err, &fault)
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, e.PauseRecording())
	require.NoError(t, e.ResumeRecording())
	require.NoError(t, e.StopRecording())

	err = e.StopRecording()
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "stop recording", fault.Op)
	assert.ErrorIs(t, err, ErrNotRecording)
}

func TestEnginePlayDataAndSeek(t *testing.T) {
	e, _, out := newTestEngine(t)

	var wav bytes.Buffer
	require.NoError(t, WriteWAV(&wav, tone(16000), 16000))

	var positions atomic.Int32
	e.SetPositionHandler(func(pos, total time.Duration) {
		if total == time.Second {
			positions.Add(1)
		}
	})

	require.NoError(t, e.PlayData(wav.Bytes()))
	require.NoError(t, e.Seek(500))
	assert.Eventually(t, func() bool { return positions.Load() > 0 }, time.Second, 5*time.Millisecond)

	require.NoError(t, e.PausePlayback())
	require.NoError(t, e.ResumePlayback())
	require.NoError(t, e.StopPlayback())
	assert.True(t, out.current().closed)

	assert.Error(t, e.PausePlayback())
}

func TestEngineStartFailure(t *testing.T) {
	in := &fakeDevice{openErr: errors.New("device unavailable")}
	e := NewEngineWithStreams(Config{}, nil, in.open, (&fakeDevice{}).open)
	defer e.Close()

	err := e.StartRecording(filepath.Join(t.TempDir(), "a.wav"))
	var fault *RecorderFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "start recording", fault.Op)
}

func TestEngineClearHandlers(t *testing.T) {
	e, _, out := newTestEngine(t)

	var wav bytes.Buffer
	require.NoError(t, WriteWAV(&wav, tone(800), 8000))

	called := atomic.Bool{}
	e.SetCompletionHandler(func() { called.Store(true) })
	e.ClearHandlers()

	require.NoError(t, e.PlayData(wav.Bytes()))
	out.feed(make([]float32, 1000))
	time.Sleep(30 * time.Millisecond)
	assert.False(t, called.Load())
}

func TestEngineCloseDiscardsOpenSegment(t *testing.T) {
	e, in, _ := newTestEngine(t)
	path := filepath.Join(t.TempDir(), "a.wav")

	require.NoError(t, e.StartRecording(path))
	in.feed(tone(800))
	require.NoError(t, e.Close())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
