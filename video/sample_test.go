package video

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"pano/video/sink"
	"pano/video/source"
)

// fakeSource yields n small frames whose first channel holds index % 256.
type fakeSource struct {
	n, pos int
	cur    gocv.Mat
	has    bool
	closed bool
}

func (s *fakeSource) Read() (source.Frame, bool) {
	if s.pos >= s.n {
		return source.Frame{}, false
	}
	if s.has {
		s.cur.Close()
	}
	s.cur = gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(s.pos%256), 0, 0, 0), 8, 8, gocv.MatTypeCV8UC3)
	s.has = true
	f := source.Frame{Mat: s.cur, Index: s.pos}
	s.pos++
	return f, true
}

func (s *fakeSource) Close() error {
	if s.has {
		s.cur.Close()
		s.has = false
	}
	s.closed = true
	return nil
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func TestSampleCountAndPositions(t *testing.T) {
	for _, frames := range []int{0, 1, 2, 9, 10, 11, 300} {
		for _, interval := range []int{1, 2, 3, 10, 30, 500} {
			t.Run(fmt.Sprintf("F=%d/N=%d", frames, interval), func(t *testing.T) {
				src := &fakeSource{n: frames}
				defer src.Close()

				s, err := Sample(src, interval)
				require.NoError(t, err)
				defer s.Close()

				assert.Equal(t, frames, s.Read)
				require.Equal(t, ceilDiv(frames, interval), s.Len())
				for i, f := range s.Frames {
					assert.Equal(t, i*interval, f.Index)
					// Retained frames must survive the source moving on.
					assert.Equal(t, uint8((i*interval)%256), f.Mat.GetVecbAt(0, 0)[0])
				}
				assert.False(t, src.closed, "Sample must not close the source")
			})
		}
	}
}

func TestSampleIdentity(t *testing.T) {
	src := &fakeSource{n: 25}
	defer src.Close()

	s, err := Sample(src, 1)
	require.NoError(t, err)
	defer s.Close()

	require.Equal(t, 25, s.Len())
	for i, f := range s.Frames {
		assert.Equal(t, i, f.Index)
	}
}

func TestSampleEmptySource(t *testing.T) {
	s, err := Sample(&fakeSource{}, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0, s.Read)
	s.Close()
}

func TestSampleInvalidInterval(t *testing.T) {
	for _, interval := range []int{0, -1} {
		src := &fakeSource{n: 5}
		_, err := Sample(src, interval)
		assert.ErrorIs(t, err, ErrInvalidInterval)
		assert.Equal(t, 0, src.pos, "no frames should be read")
	}
}

func TestSampleFileMissing(t *testing.T) {
	_, err := SampleFile(filepath.Join(t.TempDir(), "missing.mp4"), 5)
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}

func TestSampleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.avi")
	v, err := sink.NewVideo(path, "MJPG", 25, 64, 48)
	require.NoError(t, err)
	for i := 0; i < 12; i++ {
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(float64(i*20), 100, 50, 0), 48, 64, gocv.MatTypeCV8UC3)
		require.NoError(t, v.Put(m))
		m.Close()
	}
	require.NoError(t, v.Close())

	s, err := SampleFile(path, 5)
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, 12, s.Read)
	require.Equal(t, 3, s.Len())
	for i, f := range s.Frames {
		assert.Equal(t, i*5, f.Index)
		assert.Equal(t, 64, f.Mat.Cols())
		assert.Equal(t, 48, f.Mat.Rows())
	}
}

func TestProbe(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.avi")
	v, err := sink.NewVideo(path, "MJPG", 25, 64, 48)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 48, 64, gocv.MatTypeCV8UC3)
		require.NoError(t, v.Put(m))
		m.Close()
	}
	require.NoError(t, v.Close())

	info, err := source.Probe(path)
	require.NoError(t, err)
	assert.Equal(t, 64, info.Size.X)
	assert.Equal(t, 48, info.Size.Y)
	assert.InDelta(t, 25, info.FPS, 0.5)
	assert.Zero(t, info.DurationSec, "only mp4 durations are read")

	_, err = source.Probe(filepath.Join(t.TempDir(), "missing.avi"))
	assert.ErrorIs(t, err, source.ErrSourceUnavailable)
}
