package sink

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"gocv.io/x/gocv"
)

const (
	ExtTemp = ".temp"
)

var supportedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
	".ppm":  true,
	".pgm":  true,
}

// ImageFile writes images to disk, encoded according to the path's extension.
// The file is written next to its destination and renamed into place, so a
// failed write never leaves a partial image behind.
type ImageFile struct {
	// Perm is the file mode for new files. Defaults to 0644.
	Perm os.FileMode
}

func (w *ImageFile) Write(path string, img gocv.Mat) error {
	if img.Empty() {
		return errors.New("refusing to write empty image")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExt[ext] {
		return fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}

	buf, err := gocv.IMEncode(gocv.FileExt(ext), img)
	if err != nil {
		return fmt.Errorf("encoding %v: %w", ext, err)
	}
	defer buf.Close()

	perm := w.Perm
	if perm == 0 {
		perm = 0644
	}
	tmp := path + ExtTemp
	if err := os.WriteFile(tmp, buf.GetBytes(), perm); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ThumbHeight is the height of panorama thumbnails in pixels.
const ThumbHeight = 135

// WriteThumb writes a JPEG thumbnail of img to path, scaled to ThumbHeight
// while keeping the aspect ratio.
func WriteThumb(path string, img gocv.Mat) error {
	if img.Empty() {
		return errors.New("refusing to thumbnail empty image")
	}
	width := img.Cols() * ThumbHeight / img.Rows()
	if width < 1 {
		width = 1
	}

	tmat := gocv.NewMat()
	defer tmat.Close()
	gocv.Resize(img, &tmat, image.Point{X: width, Y: ThumbHeight}, 0, 0, gocv.InterpolationArea)

	jpeg, err := gocv.IMEncode(gocv.JPEGFileExt, tmat)
	if err != nil {
		return err
	}
	defer jpeg.Close()

	return os.WriteFile(path, jpeg.GetBytes(), 0644)
}

// ThumbFile writes a thumbnail of the image stored at src to dst.
func ThumbFile(src, dst string) error {
	img := gocv.IMRead(src, gocv.IMReadColor)
	defer img.Close()
	if img.Empty() {
		return fmt.Errorf("unable to read image %v", src)
	}
	return WriteThumb(dst, img)
}
