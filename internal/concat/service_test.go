package concat

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	wav "github.com/youpy/go-wav"

	"github.com/bmbmjmdm/hear-you-out/internal/segment"
)

// fakeFFmpeg appends the manifest inputs to the output path, like `-c copy` on raw bytes.
const fakeFFmpeg = `#!/bin/sh
if [ "$1" = "-version" ]; then echo "ffmpeg version fake"; exit 0; fi
prev=""
man=""
out=""
for a in "$@"; do
  if [ "$prev" = "-i" ]; then man="$a"; fi
  prev="$a"
  out="$a"
done
: > "$out"
sed -e "s/^file '//" -e "s/'\$//" "$man" | while IFS= read -r f; do cat "$f" >> "$out"; done
`

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(t.TempDir(), "ffmpeg")
	require.NoError(t, os.WriteFile(path, []byte(body), 0755))
	return path
}

func newSession(t *testing.T) *segment.Store {
	t.Helper()
	s := segment.NewStore(filepath.Join(t.TempDir(), "session"))
	require.NoError(t, s.Init())
	return s
}

func TestConcatenateOrdersInputs(t *testing.T) {
	svc := New(Config{FFmpegPath: writeScript(t, fakeFFmpeg), Timeout: 5 * time.Second}, nil)
	s := newSession(t)

	require.NoError(t, os.WriteFile(s.Path(segment.Original), []byte("first|"), 0644))
	require.NoError(t, os.WriteFile(s.Path(segment.Additional), []byte("second"), 0644))

	err := svc.Concatenate(context.Background(), s.ManifestPath(), s.Path(segment.Concatenated))
	require.NoError(t, err)

	data, err := os.ReadFile(s.Path(segment.Concatenated))
	require.NoError(t, err)
	assert.Equal(t, "first|second", string(data))
}

func TestConcatenateMissingInput(t *testing.T) {
	svc := New(Config{FFmpegPath: writeScript(t, fakeFFmpeg), Timeout: 5 * time.Second}, nil)
	s := newSession(t)
	require.NoError(t, os.WriteFile(s.Path(segment.Original), []byte("first"), 0644))

	err := svc.Concatenate(context.Background(), s.ManifestPath(), s.Path(segment.Concatenated))

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.False(t, s.Exists(segment.Concatenated))
}

func TestConcatenateProcessFailure(t *testing.T) {
	script := "#!/bin/sh\necho 'Invalid data found when processing input' >&2\nexit 1\n"
	svc := New(Config{FFmpegPath: writeScript(t, script), Timeout: 5 * time.Second}, nil)
	s := newSession(t)
	require.NoError(t, os.WriteFile(s.Path(segment.Original), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(s.Path(segment.Additional), []byte("b"), 0644))

	err := svc.Concatenate(context.Background(), s.ManifestPath(), s.Path(segment.Concatenated))

	var fault *Fault
	require.ErrorAs(t, err, &fault)
	assert.Contains(t, err.Error(), "Invalid data found")
}

func TestConcatenateTimeout(t *testing.T) {
	svc := New(Config{FFmpegPath: writeScript(t, "#!/bin/sh\nexec sleep 5\n"), Timeout: 100 * time.Millisecond}, nil)
	s := newSession(t)
	require.NoError(t, os.WriteFile(s.Path(segment.Original), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(s.Path(segment.Additional), []byte("b"), 0644))

	err := svc.Concatenate(context.Background(), s.ManifestPath(), s.Path(segment.Concatenated))
	assert.ErrorIs(t, err, ErrFFmpegTimeout)
}

func TestConcatenateBinaryNotFound(t *testing.T) {
	svc := New(Config{FFmpegPath: "hyo-no-such-ffmpeg", Timeout: time.Second}, nil)
	s := newSession(t)
	require.NoError(t, os.WriteFile(s.Path(segment.Original), []byte("a"), 0644))
	require.NoError(t, os.WriteFile(s.Path(segment.Additional), []byte("b"), 0644))

	err := svc.Concatenate(context.Background(), s.ManifestPath(), s.Path(segment.Concatenated))
	assert.ErrorIs(t, err, ErrFFmpegNotFound)
	assert.ErrorIs(t, svc.CheckAvailable(context.Background()), ErrFFmpegNotFound)
}

func TestReadManifestUnescapesQuotes(t *testing.T) {
	s := segment.NewStore(filepath.Join(t.TempDir(), "it's"))
	require.NoError(t, s.Init())

	files, err := ReadManifest(s.ManifestPath())
	require.NoError(t, err)
	assert.Equal(t, []string{s.Path(segment.Original), s.Path(segment.Additional)}, files)
}

func writeTone(t *testing.T, path string, samples int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := wav.NewWriter(f, uint32(samples), 1, 16000, 16)
	buf := make([]wav.Sample, samples)
	for i := range buf {
		buf[i].Values[0] = (i % 64) * 100
	}
	require.NoError(t, w.WriteSamples(buf))
}

func TestConcatenateRealFFmpeg(t *testing.T) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg not installed")
	}
	svc := New(Config{FFmpegPath: path, Timeout: 30 * time.Second}, nil)
	require.NoError(t, svc.CheckAvailable(context.Background()))

	s := newSession(t)
	writeTone(t, s.Path(segment.Original), 16000)
	writeTone(t, s.Path(segment.Additional), 8000)

	err = svc.Concatenate(context.Background(), s.ManifestPath(), s.Path(segment.Concatenated))
	if errors.Is(err, ErrFFmpegNotFound) {
		t.Skip("ffmpeg not runnable")
	}
	require.NoError(t, err)

	f, err := os.Open(s.Path(segment.Concatenated))
	require.NoError(t, err)
	defer f.Close()

	r := wav.NewReader(f)
	total := 0
	for {
		samples, err := r.ReadSamples()
		if len(samples) == 0 || err != nil {
			break
		}
		total += len(samples)
	}
	assert.InDelta(t, 24000, total, 100)
}
