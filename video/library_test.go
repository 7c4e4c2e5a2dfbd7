package video

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLibraryNewEntry(t *testing.T) {
	dir := t.TempDir()
	lib, err := NewLibrary(filepath.Join(dir, "lib"), "png")
	require.NoError(t, err)
	assert.DirExists(t, lib.BasePath)
	assert.Equal(t, ".png", lib.Ext)

	ts := time.Date(2024, 5, 6, 7, 8, 9, 0, time.FixedZone("PDT", -7*3600))
	e := lib.NewEntry(ts, "/videos/my trip.mp4")

	assert.Equal(t, filepath.Join(lib.BasePath, "20240506-070809-0700_my_trip_pano.png"), e.PanoPath)
	assert.Equal(t, filepath.Join(lib.BasePath, "20240506-070809-0700_my_trip_thumb.jpg"), e.ThumbPath)
	assert.Equal(t, "/videos/my trip.mp4", e.Input)
}

func TestIsVideo(t *testing.T) {
	assert.True(t, IsVideo("a.mp4"))
	assert.True(t, IsVideo("/x/B.MOV"))
	assert.True(t, IsVideo("c.avi"))
	assert.False(t, IsVideo("d.jpg"))
	assert.False(t, IsVideo("e.mp4.temp"))
	assert.False(t, IsVideo(""))
}
