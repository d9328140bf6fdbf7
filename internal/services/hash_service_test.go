package services

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashService_ComputeHash(t *testing.T) {
	svc := NewHashService()

	t.Run("returns consistent hash for same content", func(t *testing.T) {
		content := []byte("ID,Animal ID\n1,A-1\n")

		hash1, err := svc.ComputeHash(bytes.NewReader(content))
		require.NoError(t, err)
		hash2, err := svc.ComputeHash(bytes.NewReader(content))
		require.NoError(t, err)

		assert.Equal(t, hash1, hash2)
		assert.Len(t, hash1, 64)
		assert.Equal(t, strings.ToLower(hash1), hash1)
	})

	t.Run("known vector", func(t *testing.T) {
		hash, err := svc.ComputeHash(strings.NewReader("abc"))
		require.NoError(t, err)
		assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", hash)
	})
}

func TestHashService_ComputeFileHash(t *testing.T) {
	svc := NewHashService()
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0644))

	hash, err := svc.ComputeFileHash(path)
	require.NoError(t, err)
	assert.True(t, svc.Matches("SHA256:"+strings.ToUpper(hash), hash))
	assert.False(t, svc.Matches("not-a-hash", hash))

	_, err = svc.ComputeFileHash(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
