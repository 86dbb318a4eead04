package audio

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderWritesWAV(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(16000, dev.open)
	path := filepath.Join(t.TempDir(), "original.wav")

	require.NoError(t, r.Start(path))
	dev.feed(tone(8000))
	dev.feed(tone(8000))
	assert.Greater(t, r.Level(), 0.0)

	d, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, time.Second, d)
	assert.True(t, dev.current().closed)
	assert.Zero(t, r.Level())

	got, err := WAVDuration(path)
	require.NoError(t, err)
	assert.Equal(t, time.Second, got)
}

func TestRecorderPauseDropsSamples(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(16000, dev.open)
	path := filepath.Join(t.TempDir(), "original.wav")

	require.NoError(t, r.Start(path))
	dev.feed(tone(16000))
	require.NoError(t, r.Pause())
	assert.False(t, dev.current().isStarted())

	// callbacks that arrive while paused are ignored
	dev.feed(tone(16000))

	require.NoError(t, r.Resume())
	dev.feed(tone(16000))

	d, err := r.Stop()
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)
}

func TestRecorderStopWhilePaused(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(16000, dev.open)

	require.NoError(t, r.Start(filepath.Join(t.TempDir(), "a.wav")))
	dev.feed(tone(1600))
	require.NoError(t, r.Pause())

	_, err := r.Stop()
	require.NoError(t, err)
	assert.False(t, r.Active())
}

func TestRecorderErrors(t *testing.T) {
	dev := &fakeDevice{}
	r := NewRecorder(16000, dev.open)

	assert.ErrorIs(t, r.Pause(), ErrNotRecording)
	assert.ErrorIs(t, r.Resume(), ErrNotRecording)
	_, err := r.Stop()
	assert.ErrorIs(t, err, ErrNotRecording)

	require.NoError(t, r.Start(filepath.Join(t.TempDir(), "a.wav")))
	assert.ErrorIs(t, r.Start(filepath.Join(t.TempDir(), "b.wav")), ErrBusy)
	r.Discard()
	assert.False(t, r.Active())

	dev.openErr = errors.New("no device")
	assert.Error(t, r.Start(filepath.Join(t.TempDir(), "c.wav")))
	assert.False(t, r.Active())
}
