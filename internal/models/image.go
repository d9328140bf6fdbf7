package models

// ImageError reports a rejected or missing capture image
type ImageError struct {
	Message string
}

func (e ImageError) Error() string {
	return e.Message
}

var (
	ErrEmptyImage       = ImageError{"image is empty"}
	ErrInvalidExtension = ImageError{"file extension not allowed"}
	ErrFileTooLarge     = ImageError{"file size exceeds maximum allowed"}
	ErrPathTraversal    = ImageError{"invalid path - path traversal detected"}
	ErrImageNotFound    = ImageError{"image not found"}
	ErrNotStoredImage   = ImageError{"image path must name a stored capture under images/"}
)
