package services

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cattlebreed/server/internal/models"
)

const imagesDir = "images"

// ImageStorageService keeps captured photos under <base>/images
type ImageStorageService struct {
	basePath          string
	allowedExtensions map[string]bool
	maxFileSizeBytes  int64
}

// NewImageStorageService creates the storage root if needed
func NewImageStorageService(basePath string, allowedExtensions []string, maxFileSizeMB int64) (*ImageStorageService, error) {
	if strings.TrimSpace(basePath) == "" {
		return nil, fmt.Errorf("base path cannot be empty")
	}

	absPath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(absPath, imagesDir), 0755); err != nil {
		return nil, err
	}

	if len(allowedExtensions) == 0 {
		allowedExtensions = []string{".jpg", ".jpeg", ".png", ".heic", ".heif"}
	}
	extSet := make(map[string]bool, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		extSet[strings.ToLower(ext)] = true
	}

	return &ImageStorageService{
		basePath:          absPath,
		allowedExtensions: extSet,
		maxFileSizeBytes:  maxFileSizeMB * 1024 * 1024,
	}, nil
}

// MaxFileSize returns the upload limit in bytes
func (s *ImageStorageService) MaxFileSize() int64 {
	return s.maxFileSizeBytes
}

// CaptureFileName is CATTLE_<yyyy-MM-dd_HH-mm-ss><ext>
func CaptureFileName(capturedAt time.Time, ext string) string {
	return "CATTLE_" + capturedAt.Format("2006-01-02_15-04-05") + strings.ToLower(ext)
}

// Store writes the image as images/CATTLE_<timestamp><ext> and returns that
// slash-separated relative path. The extension is taken from originalFilename.
func (s *ImageStorageService) Store(r io.Reader, originalFilename string, capturedAt time.Time) (string, int64, error) {
	ext := strings.ToLower(filepath.Ext(sanitizeFilename(originalFilename)))
	if ext == "" {
		ext = ".jpg"
	}
	if !s.allowedExtensions[ext] {
		return "", 0, models.ErrInvalidExtension
	}

	folder := filepath.Join(s.basePath, imagesDir)
	name := generateUniqueFilename(CaptureFileName(capturedAt, ext), folder)
	fullPath := filepath.Join(folder, name)
	if !s.within(fullPath) {
		return "", 0, models.ErrPathTraversal
	}

	file, err := os.OpenFile(fullPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return "", 0, err
	}

	// One byte over the limit is enough to know it is too large
	n, err := io.Copy(file, io.LimitReader(r, s.maxFileSizeBytes+1))
	closeErr := file.Close()
	switch {
	case err != nil:
	case closeErr != nil:
		err = closeErr
	case n == 0:
		err = models.ErrEmptyImage
	case n > s.maxFileSizeBytes:
		err = models.ErrFileTooLarge
	}
	if err != nil {
		os.Remove(fullPath)
		return "", 0, err
	}

	return imagesDir + "/" + name, n, nil
}

// Delete removes a stored image; it reports whether a file was removed
func (s *ImageStorageService) Delete(storedPath string) bool {
	fullPath, err := s.GetFullPath(storedPath)
	if err != nil {
		return false
	}
	return os.Remove(fullPath) == nil
}

// GetFullPath resolves a stored path, refusing anything outside the base path
func (s *ImageStorageService) GetFullPath(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", models.ErrEmptyImagePath
	}

	absPath, err := filepath.Abs(filepath.Join(s.basePath, filepath.FromSlash(storedPath)))
	if err != nil {
		return "", err
	}
	if !s.within(absPath) {
		return "", models.ErrPathTraversal
	}
	return absPath, nil
}

// ResolveStored returns the canonical images/<name> form of storedPath when
// it names an existing capture file directly under images/. Anything else,
// previews and files elsewhere under the base path included, is refused.
func (s *ImageStorageService) ResolveStored(storedPath string) (string, error) {
	if strings.TrimSpace(storedPath) == "" {
		return "", models.ErrEmptyImagePath
	}

	clean := path.Clean(strings.ReplaceAll(storedPath, "\\", "/"))
	dir, name := path.Split(clean)
	if dir != imagesDir+"/" || name == "" || strings.HasPrefix(name, ".") {
		return "", models.ErrNotStoredImage
	}
	if !s.allowedExtensions[strings.ToLower(path.Ext(name))] {
		return "", models.ErrNotStoredImage
	}

	fullPath, err := s.GetFullPath(clean)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return "", models.ErrImageNotFound
	}
	if !info.Mode().IsRegular() {
		return "", models.ErrNotStoredImage
	}
	return clean, nil
}

// Size returns the size of a stored image or 0 when it is missing
func (s *ImageStorageService) Size(storedPath string) int64 {
	fullPath, err := s.GetFullPath(storedPath)
	if err != nil {
		return 0
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0
	}
	return info.Size()
}

// Exists checks if a file exists at the given stored path
func (s *ImageStorageService) Exists(storedPath string) bool {
	fullPath, err := s.GetFullPath(storedPath)
	if err != nil {
		return false
	}
	_, err = os.Stat(fullPath)
	return err == nil
}

// Open returns the stored image for reading
func (s *ImageStorageService) Open(storedPath string) (*os.File, error) {
	fullPath, err := s.GetFullPath(storedPath)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(fullPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, models.ErrImageNotFound
	}
	return f, err
}

// StoredImage is a file found in the image folder
type StoredImage struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// ListImages returns the files directly under images/, skipping hidden entries
// such as the preview folder
func (s *ImageStorageService) ListImages() ([]StoredImage, error) {
	entries, err := os.ReadDir(filepath.Join(s.basePath, imagesDir))
	if err != nil {
		return nil, err
	}

	images := make([]StoredImage, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		images = append(images, StoredImage{
			Path:    imagesDir + "/" + e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return images, nil
}

func (s *ImageStorageService) within(path string) bool {
	rel, err := filepath.Rel(s.basePath, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// sanitizeFilename drops directories and characters unsafe in file names
func sanitizeFilename(filename string) string {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))

	replacer := strings.NewReplacer(
		"..", "",
		"/", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

// generateUniqueFilename appends _001, _002... while the name is taken
func generateUniqueFilename(filename, folderPath string) string {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	candidate := filename

	for counter := 1; ; counter++ {
		if _, err := os.Stat(filepath.Join(folderPath, candidate)); os.IsNotExist(err) {
			return candidate
		}
		if counter > 9999 {
			return fmt.Sprintf("%s_%d%s", stem, time.Now().UnixNano(), ext)
		}
		candidate = fmt.Sprintf("%s_%03d%s", stem, counter, ext)
	}
}
