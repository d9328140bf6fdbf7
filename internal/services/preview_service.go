package services

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/jdeng/goheif"
)

const previewQuality = 80

// PreviewService renders a downscaled, orientation-corrected JPEG next to
// each captured image in images/.thumbs/
type PreviewService struct {
	basePath string
	maxDim   int
}

// NewPreviewService creates a PreviewService; maxDim bounds the longer edge
func NewPreviewService(basePath string, maxDim int) *PreviewService {
	if maxDim <= 0 {
		maxDim = 640
	}
	return &PreviewService{basePath: basePath, maxDim: maxDim}
}

// PreviewPath is the stored path of the preview for storedPath
func PreviewPath(storedPath string) string {
	dir, file := path.Split(storedPath)
	stem := strings.TrimSuffix(file, path.Ext(file))
	return path.Join(dir, ".thumbs", stem+"_preview.jpg")
}

// Generate decodes imageData, applies the EXIF orientation and writes the preview
func (s *PreviewService) Generate(imageData []byte, storedPath string, orientation int) (string, error) {
	img, err := decodeImage(imageData, storedPath)
	if err != nil {
		return "", err
	}

	img = applyOrientation(img, orientation)
	if b := img.Bounds(); b.Dx() > s.maxDim || b.Dy() > s.maxDim {
		img = imaging.Fit(img, s.maxDim, s.maxDim, imaging.Lanczos)
	}

	rel := PreviewPath(storedPath)
	full := filepath.Join(s.basePath, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return "", fmt.Errorf("failed to create preview directory: %w", err)
	}

	out, err := os.Create(full)
	if err != nil {
		return "", fmt.Errorf("failed to create preview file: %w", err)
	}
	defer out.Close()

	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: previewQuality}); err != nil {
		os.Remove(full)
		return "", fmt.Errorf("failed to encode preview: %w", err)
	}

	return rel, nil
}

// FullPath resolves the preview of storedPath on disk
func (s *PreviewService) FullPath(storedPath string) string {
	return filepath.Join(s.basePath, filepath.FromSlash(PreviewPath(storedPath)))
}

// Delete removes the preview of storedPath if there is one
func (s *PreviewService) Delete(storedPath string) {
	os.Remove(s.FullPath(storedPath))
}

// ListPreviews returns the stored paths of all preview files
func (s *PreviewService) ListPreviews() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, imagesDir, ".thumbs"))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), "_preview.jpg") {
			out = append(out, path.Join(imagesDir, ".thumbs", e.Name()))
		}
	}
	return out, nil
}

// RemovePreview deletes a preview by its own stored path
func (s *PreviewService) RemovePreview(previewPath string) error {
	return os.Remove(filepath.Join(s.basePath, filepath.FromSlash(previewPath)))
}

func decodeImage(data []byte, name string) (image.Image, error) {
	if IsHEIC(name) {
		img, err := goheif.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decode HEIC image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// applyOrientation maps EXIF orientation 1-8 onto upright pixels
func applyOrientation(img image.Image, orientation int) image.Image {
	switch orientation {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}

// IsHEIC checks if the file is HEIC/HEIF format
func IsHEIC(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".heic" || ext == ".heif"
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
