package services

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaintenanceService_RunNow(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*recordFixture, string, string) {
		f := setupRecords(t)
		res, err := f.svc.Capture(ctx, bytes.NewReader(testPNG(t, 300, 200)), "cow.png", "camera")
		require.NoError(t, err)

		stray, _, err := f.images.Store(bytes.NewReader(testPNG(t, 10, 10)), "stray.png", time.Date(2023, 1, 2, 3, 4, 5, 0, time.UTC))
		require.NoError(t, err)
		return f, res.Record.ImagePath, stray
	}

	t.Run("removes orphans and restores previews", func(t *testing.T) {
		f, kept, stray := setup(t)
		previews := NewPreviewService(f.images.basePath, 64)

		f.svc.previews.Delete(kept)
		ghost := filepath.Join(f.images.basePath, "images", ".thumbs", "GHOST_preview.jpg")
		require.NoError(t, os.WriteFile(ghost, []byte("x"), 0644))

		m := NewMaintenanceService(f.repo, f.images, previews, MaintenanceOptions{
			Clock: &fakeClock{now: time.Now().Add(time.Hour)},
		})
		st := m.RunNow(ctx)

		assert.Empty(t, st.Errors)
		assert.Equal(t, 1, st.OrphanImages)
		assert.Equal(t, 1, st.OrphanPreviews)
		assert.Equal(t, 1, st.PreviewsGenerated)
		assert.Positive(t, st.BytesReclaimed)
		assert.False(t, st.Running)

		assert.True(t, f.images.Exists(kept))
		assert.False(t, f.images.Exists(stray))
		assert.FileExists(t, previews.FullPath(kept))
		assert.NoFileExists(t, ghost)

		again := m.RunNow(ctx)
		assert.Zero(t, again.OrphanImages)
		assert.Zero(t, again.OrphanPreviews)
		assert.Zero(t, again.PreviewsGenerated)
	})

	t.Run("recent unreferenced images are kept", func(t *testing.T) {
		f, _, stray := setup(t)

		m := NewMaintenanceService(f.repo, f.images, nil, MaintenanceOptions{
			Clock: &fakeClock{now: time.Now()},
		})
		st := m.RunNow(ctx)

		assert.Zero(t, st.OrphanImages)
		assert.True(t, f.images.Exists(stray))
		assert.Equal(t, st.LastRun, m.Status().LastRun)
	})
}
