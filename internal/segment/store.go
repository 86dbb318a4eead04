package segment

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Segment names one of the fixed audio files of a recording session.
type Segment int

const (
	Original Segment = iota
	Additional
	Concatenated
)

const manifestName = "segments.txt"

func (s Segment) String() string {
	switch s {
	case Original:
		return "original"
	case Additional:
		return "additional"
	case Concatenated:
		return "concatenated"
	default:
		return "unknown"
	}
}

// Store owns the segment files and the concat manifest of one session directory.
type Store struct {
	dir string
	ext string
}

// NewStore creates a store rooted at dir. Nothing touches the disk until Init.
func NewStore(dir string) *Store {
	abs, err := filepath.Abs(dir)
	if err == nil {
		dir = abs
	}
	return &Store{dir: dir, ext: ".wav"}
}

// Dir returns the session directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the fixed path of a segment.
func (s *Store) Path(seg Segment) string {
	return filepath.Join(s.dir, seg.String()+s.ext)
}

// ManifestPath returns the path of the manifest listing original then additional.
func (s *Store) ManifestPath() string {
	return filepath.Join(s.dir, manifestName)
}

// Init creates the session directory and writes the manifest.
// It must succeed before anything is recorded.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	var b strings.Builder
	for _, seg := range []Segment{Original, Additional} {
		fmt.Fprintf(&b, "file '%s'\n", quote(s.Path(seg)))
	}

	if err := os.WriteFile(s.ManifestPath(), []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// quote escapes single quotes for the ffmpeg concat demuxer.
func quote(path string) string {
	return strings.ReplaceAll(path, "'", `'\''`)
}

// Exists reports whether the segment file is on disk.
func (s *Store) Exists(seg Segment) bool {
	_, err := os.Stat(s.Path(seg))
	return err == nil
}

// Delete removes a segment file. A missing file is not an error.
func (s *Store) Delete(seg Segment) error {
	if err := os.Remove(s.Path(seg)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s segment: %w", seg, err)
	}
	return nil
}

// PromoteConcatenated moves the merged file over original and drops the stale additional.
func (s *Store) PromoteConcatenated() error {
	if err := os.Rename(s.Path(Concatenated), s.Path(Original)); err != nil {
		return fmt.Errorf("failed to promote concatenated segment: %w", err)
	}
	return s.Delete(Additional)
}

// Clear deletes every segment file and keeps the manifest.
func (s *Store) Clear() error {
	var errs []error
	for _, seg := range []Segment{Original, Additional, Concatenated} {
		if err := s.Delete(seg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remove deletes the whole session directory.
func (s *Store) Remove() error {
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove session directory: %w", err)
	}
	return nil
}
