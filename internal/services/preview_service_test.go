package services

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPreviewPath(t *testing.T) {
	assert.Equal(t, "images/.thumbs/CATTLE_2024-01-01_10-00-00_preview.jpg",
		PreviewPath("images/CATTLE_2024-01-01_10-00-00.png"))
}

func TestPreviewService(t *testing.T) {
	t.Run("downscales and rotates", func(t *testing.T) {
		dir := t.TempDir()
		svc := NewPreviewService(dir, 100)

		rel, err := svc.Generate(testPNG(t, 400, 200), "images/CATTLE_x.png", 6)
		require.NoError(t, err)

		f, err := os.Open(svc.FullPath("images/CATTLE_x.png"))
		require.NoError(t, err)
		defer f.Close()
		img, err := jpeg.Decode(f)
		require.NoError(t, err)

		// orientation 6 swaps the axes before fitting into 100x100
		assert.Equal(t, 50, img.Bounds().Dx())
		assert.Equal(t, 100, img.Bounds().Dy())
		assert.Equal(t, "images/.thumbs/CATTLE_x_preview.jpg", rel)
	})

	t.Run("keeps small images at size", func(t *testing.T) {
		svc := NewPreviewService(t.TempDir(), 640)

		_, err := svc.Generate(testPNG(t, 40, 30), "images/small.png", 1)
		require.NoError(t, err)
	})

	t.Run("fails on garbage", func(t *testing.T) {
		svc := NewPreviewService(t.TempDir(), 640)

		_, err := svc.Generate([]byte("not an image"), "images/bad.jpg", 1)
		assert.Error(t, err)
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		svc := NewPreviewService(t.TempDir(), 640)
		_, err := svc.Generate(testPNG(t, 10, 10), "images/d.png", 1)
		require.NoError(t, err)

		svc.Delete("images/d.png")
		svc.Delete("images/d.png")
		assert.NoFileExists(t, svc.FullPath("images/d.png"))
	})
}

func TestEXIFServiceWithoutExif(t *testing.T) {
	meta := NewEXIFService().Extract(testPNG(t, 4, 4))

	assert.Equal(t, 1, meta.Orientation)
	assert.Nil(t, meta.DateTaken)
	assert.False(t, meta.HasLocation())
}
