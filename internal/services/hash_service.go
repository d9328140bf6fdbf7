package services

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"regexp"
	"strings"
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// HashService computes the checksums published with export files
type HashService struct{}

// NewHashService creates a new HashService
func NewHashService() *HashService {
	return &HashService{}
}

// ComputeHash computes the SHA256 hash of a reader
func (s *HashService) ComputeHash(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ComputeFileHash hashes the file at path
func (s *HashService) ComputeFileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return s.ComputeHash(f)
}

// Matches compares a client supplied checksum, with or without a "sha256:" prefix
func (s *HashService) Matches(expected, actual string) bool {
	normalized := strings.ToLower(strings.TrimSpace(expected))
	normalized = strings.TrimPrefix(normalized, "sha256:")
	return sha256Pattern.MatchString(normalized) && normalized == actual
}
