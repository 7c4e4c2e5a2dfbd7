package video

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	ExtPano  = "_pano"
	ExtThumb = "_thumb.jpg"

	// FileTimeLayout defines the format of filenames.
	// See https://golang.org/src/time/format.go.
	FileTimeLayout = "20060102-150405-Z0700"
)

// Entry names the files produced for one stitched video.
type Entry struct {
	Time      time.Time
	Input     string
	PanoPath  string
	ThumbPath string
}

// Library lays out panoramas produced by the daemon under a base directory.
type Library struct {
	BasePath string

	// Ext is the panorama image format, including the dot.
	Ext string
}

func NewLibrary(path, ext string) (*Library, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, err
	}
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Library{
		BasePath: path,
		Ext:      ext,
	}, nil
}

// NewEntry returns the paths for a panorama of input triggered at t. The
// input's base name is kept so entries stay recognizable on disk.
func (l *Library) NewEntry(t time.Time, input string) *Entry {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	base := filepath.Join(l.BasePath, t.Format(FileTimeLayout)+"_"+sanitize(name))
	return &Entry{
		Time:      t,
		Input:     input,
		PanoPath:  base + ExtPano + l.Ext,
		ThumbPath: base + ExtThumb,
	}
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// IsVideo reports whether path has an extension the daemon will stitch.
func IsVideo(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v":
		return true
	}
	return false
}
