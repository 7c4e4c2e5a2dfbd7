package video

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"pano/video/source"
)

// ErrInvalidInterval is returned when the sampling interval is less than one.
var ErrInvalidInterval = errors.New("sampling interval must be at least 1")

// Samples holds the frames retained while sampling a source, oldest first.
type Samples struct {
	Frames []source.Frame

	// Read counts every frame read from the source, retained or not.
	Read int
}

// Len returns the number of retained frames.
func (s *Samples) Len() int {
	return len(s.Frames)
}

// Close releases all retained frames.
func (s *Samples) Close() {
	for i := range s.Frames {
		s.Frames[i].Close()
	}
	s.Frames = nil
}

// Sample reads src until it is exhausted, keeping the frames at positions
// 0, interval, 2*interval, ... The caller owns the returned frames and must
// Close the Samples. The source is not closed.
func Sample(src source.Source, interval int) (*Samples, error) {
	if interval < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, interval)
	}
	s := &Samples{}
	for {
		f, ok := src.Read()
		if !ok {
			break
		}
		if s.Read%interval == 0 {
			s.Frames = append(s.Frames, f.Clone())
		}
		s.Read++
	}
	log.Debugf("Sampled %d of %d frames at interval %d", len(s.Frames), s.Read, interval)
	return s, nil
}

// SampleFile opens the video at path, samples it and closes it again before
// returning.
func SampleFile(path string, interval int) (*Samples, error) {
	if interval < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, interval)
	}
	src, err := source.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := src.Close(); err != nil {
			log.Warnf("Failed to release video source %v: %v", path, err)
		}
	}()
	return Sample(src, interval)
}
