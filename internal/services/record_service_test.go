package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cattlebreed/server/internal/models"
	"github.com/cattlebreed/server/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []WSMessage
}

func (p *recordingPublisher) Publish(_ string, msg WSMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type recordFixture struct {
	svc    *RecordService
	repo   *repository.AnimalRecordRepository
	images *ImageStorageService
	events *recordingPublisher
	clock  *fakeClock
}

func setupRecords(t *testing.T) *recordFixture {
	t.Helper()
	base := t.TempDir()

	db, err := repository.NewSQLiteDB(filepath.Join(base, "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	images, err := NewImageStorageService(base, nil, 1)
	require.NoError(t, err)

	f := &recordFixture{
		repo:   repository.NewAnimalRecordRepository(db),
		images: images,
		events: &recordingPublisher{},
		clock:  &fakeClock{now: time.Date(2024, 7, 10, 6, 30, 0, 0, time.UTC)},
	}
	f.svc = NewRecordService(f.repo, images, RecordOptions{
		Previews: NewPreviewService(base, 64),
		Scorer: func([]byte) models.Measurements {
			return models.Measurements{BodyLength: 120, Height: 130, ChestWidth: 60, RumpAngle: 15, ATCScore: 88}
		},
		Clock:  f.clock,
		Events: f.events,
	})
	return f
}

// storeImage drops a capture file straight into images/ and returns its stored path
func (f *recordFixture) storeImage(t *testing.T, name string) string {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(f.images.basePath, imagesDir, name), []byte("jpeg"), 0644))
	return imagesDir + "/" + name
}

func TestRecordService_Capture(t *testing.T) {
	ctx := context.Background()

	t.Run("stores image and record", func(t *testing.T) {
		f := setupRecords(t)

		result, err := f.svc.Capture(ctx, bytes.NewReader(testPNG(t, 32, 32)), "photo.png", "upload")
		require.NoError(t, err)

		assert.Equal(t, "Animal record saved successfully!", result.Message)
		assert.NotZero(t, result.Record.ID)
		assert.Equal(t, "images/CATTLE_2024-07-10_06-30-00.png", result.Record.ImagePath)
		assert.Equal(t, 88, result.Record.ATCScore)
		assert.False(t, result.Record.Synced)
		assert.False(t, result.DateFromEXIF)
		assert.True(t, result.HasPreview)
		assert.Nil(t, result.Location)
		assert.True(t, f.images.Exists(result.Record.ImagePath))

		stored, err := f.svc.Get(ctx, result.Record.ID)
		require.NoError(t, err)
		assert.Equal(t, result.Record.AnimalID, stored.AnimalID)
		assert.Equal(t, []string{WSTypeRecordCreated}, f.events.types())
	})

	t.Run("non-image bytes are kept without preview", func(t *testing.T) {
		f := setupRecords(t)

		result, err := f.svc.Capture(ctx, bytes.NewReader([]byte("raw sensor dump")), "frame.jpg", "camera")
		require.NoError(t, err)
		assert.False(t, result.HasPreview)
	})

	t.Run("rejects empty, oversized and disallowed files", func(t *testing.T) {
		f := setupRecords(t)

		_, err := f.svc.Capture(ctx, bytes.NewReader(nil), "a.jpg", "upload")
		assert.ErrorIs(t, err, models.ErrEmptyImage)

		big := bytes.Repeat([]byte("x"), int(f.images.MaxFileSize())+1)
		_, err = f.svc.Capture(ctx, bytes.NewReader(big), "a.jpg", "upload")
		assert.ErrorIs(t, err, models.ErrFileTooLarge)

		_, err = f.svc.Capture(ctx, bytes.NewReader([]byte("x")), "a.exe", "upload")
		assert.ErrorIs(t, err, models.ErrInvalidExtension)

		count, err := f.repo.GetCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestRecordService_Lifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("create update delete", func(t *testing.T) {
		f := setupRecords(t)
		date := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

		rec, err := f.svc.Create(ctx, models.CreateRecordRequest{
			ImagePath:    f.storeImage(t, "manual.jpg"),
			Date:         &date,
			Measurements: &models.Measurements{BodyLength: 110, Height: 125, ChestWidth: 55, RumpAngle: 12, ATCScore: 75},
		})
		require.NoError(t, err)
		assert.Equal(t, date, rec.Date)

		_, err = f.svc.Create(ctx, models.CreateRecordRequest{})
		assert.ErrorIs(t, err, models.ErrEmptyImagePath)

		req := models.UpdateRecordRequest{
			AnimalID: rec.AnimalID, BodyLength: 111, Height: 126, ChestWidth: 56, RumpAngle: 13, ATCScore: 101,
		}
		_, err = f.svc.Update(ctx, rec.ID, req)
		assert.ErrorIs(t, err, models.ErrInvalidATCScore)

		req.ATCScore = 80
		req.Synced = true
		updated, err := f.svc.Update(ctx, rec.ID, req)
		require.NoError(t, err)
		assert.Equal(t, 80, updated.ATCScore)
		assert.True(t, updated.Synced)
		assert.Equal(t, date, updated.Date)

		req.Synced = false
		updated, err = f.svc.Update(ctx, rec.ID, req)
		require.NoError(t, err)
		assert.True(t, updated.Synced, "synced never reverts")

		require.NoError(t, f.svc.Delete(ctx, rec.ID))
		assert.ErrorIs(t, f.svc.Delete(ctx, rec.ID), models.ErrRecordNotFound)
		_, err = f.svc.Update(ctx, 9999, req)
		assert.ErrorIs(t, err, models.ErrRecordNotFound)
	})

	t.Run("delete removes the image", func(t *testing.T) {
		f := setupRecords(t)
		result, err := f.svc.Capture(ctx, bytes.NewReader(testPNG(t, 8, 8)), "p.png", "upload")
		require.NoError(t, err)

		require.NoError(t, f.svc.Delete(ctx, result.Record.ID))
		assert.False(t, f.images.Exists(result.Record.ImagePath))
	})

	t.Run("list paginates newest first", func(t *testing.T) {
		f := setupRecords(t)
		for i := 0; i < 5; i++ {
			d := time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC)
			_, err := f.svc.Create(ctx, models.CreateRecordRequest{
				ImagePath: f.storeImage(t, fmt.Sprintf("x%d.jpg", i)),
				Date:      &d,
			})
			require.NoError(t, err)
		}

		page, err := f.svc.List(ctx, 1, 2)
		require.NoError(t, err)
		require.Len(t, page.Records, 2)
		assert.Equal(t, 5, page.Records[0].Date.Day())
		assert.Equal(t, 3, page.Pagination.TotalPages)
		assert.True(t, page.Pagination.HasNext)

		last, err := f.svc.List(ctx, 3, 2)
		require.NoError(t, err)
		assert.Len(t, last.Records, 1)
		assert.False(t, last.Pagination.HasNext)

		empty, err := f.svc.List(ctx, 10, 2)
		require.NoError(t, err)
		assert.NotNil(t, empty.Records)
		assert.Empty(t, empty.Records)
	})

	t.Run("sync lifecycle", func(t *testing.T) {
		f := setupRecords(t)
		var ids []int64
		for i := 0; i < 3; i++ {
			rec, err := f.svc.Create(ctx, models.CreateRecordRequest{ImagePath: f.storeImage(t, fmt.Sprintf("s%d.jpg", i))})
			require.NoError(t, err)
			ids = append(ids, rec.ID)
		}

		user := models.NewUser(testPhone, f.clock.Now())
		user.FarmName = "Sunrise Dairy"
		batch, err := f.svc.PendingSyncBatch(ctx, user)
		require.NoError(t, err)
		require.Len(t, batch.Records, 3)
		assert.Equal(t, testPhone, batch.Records[0].UserID)
		require.NotNil(t, batch.Records[0].Location)
		assert.Equal(t, "Sunrise Dairy", *batch.Records[0].Location.FarmName)

		n, err := f.svc.MarkSynced(ctx, ids[:2])
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		unsynced, err := f.svc.Unsynced(ctx)
		require.NoError(t, err)
		require.Len(t, unsynced, 1)
		assert.Equal(t, ids[2], unsynced[0].ID)

		n, err = f.svc.MarkSynced(ctx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)

		guest, err := f.svc.PendingSyncBatch(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, "guest", guest.Records[0].UserID)
		_, err = json.Marshal(guest)
		assert.NoError(t, err)
	})

	t.Run("delete all", func(t *testing.T) {
		f := setupRecords(t)
		_, err := f.svc.Capture(ctx, bytes.NewReader(testPNG(t, 8, 8)), "a.png", "upload")
		require.NoError(t, err)
		manual := f.storeImage(t, "b.jpg")
		_, err = f.svc.Create(ctx, models.CreateRecordRequest{ImagePath: manual})
		require.NoError(t, err)

		n, err := f.svc.DeleteAll(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)

		count, err := f.repo.GetCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.False(t, f.images.Exists(manual))
		assert.Contains(t, f.events.types(), WSTypeRecordsCleared)
	})

	t.Run("preview is regenerated on demand", func(t *testing.T) {
		f := setupRecords(t)
		result, err := f.svc.Capture(ctx, bytes.NewReader(testPNG(t, 8, 8)), "a.png", "upload")
		require.NoError(t, err)

		f.svc.previews.Delete(result.Record.ImagePath)
		path, err := f.svc.Preview(ctx, result.Record.ID)
		require.NoError(t, err)
		assert.FileExists(t, path)

		_, _, err = f.svc.Image(ctx, 4242)
		assert.ErrorIs(t, err, models.ErrRecordNotFound)
	})
}

func TestRecordService_ImageOwnership(t *testing.T) {
	ctx := context.Background()

	t.Run("create only accepts unused captures under images", func(t *testing.T) {
		f := setupRecords(t)
		owner, err := f.svc.Capture(ctx, bytes.NewReader(testPNG(t, 8, 8)), "a.png", "upload")
		require.NoError(t, err)

		_, err = f.svc.Create(ctx, models.CreateRecordRequest{ImagePath: owner.Record.ImagePath})
		assert.ErrorIs(t, err, models.ErrImageInUse)

		for _, p := range []string{
			"records.db",
			"images/../records.db",
			"images/.thumbs/a_preview.jpg",
			"/etc/passwd",
			"images/missing.jpg",
		} {
			_, err = f.svc.Create(ctx, models.CreateRecordRequest{ImagePath: p})
			assert.Error(t, err, p)
		}

		count, err := f.repo.GetCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("delete leaves files it does not own", func(t *testing.T) {
		f := setupRecords(t)
		db := filepath.Join(f.images.basePath, "records.db")

		owner, err := f.svc.Capture(ctx, bytes.NewReader(testPNG(t, 8, 8)), "a.png", "upload")
		require.NoError(t, err)
		other, err := f.svc.Create(ctx, models.CreateRecordRequest{ImagePath: f.storeImage(t, "other.jpg")})
		require.NoError(t, err)

		_, err = f.svc.Update(ctx, other.ID, models.UpdateRecordRequest{
			AnimalID: other.AnimalID, ImagePath: owner.Record.ImagePath, ATCScore: 70,
		})
		assert.ErrorIs(t, err, models.ErrImageInUse)
		_, err = f.svc.Update(ctx, other.ID, models.UpdateRecordRequest{
			AnimalID: other.AnimalID, ImagePath: "records.db", ATCScore: 70,
		})
		assert.ErrorIs(t, err, models.ErrNotStoredImage)

		require.NoError(t, f.svc.Delete(ctx, other.ID))
		assert.True(t, f.images.Exists(owner.Record.ImagePath))
		assert.FileExists(t, db)
	})

	t.Run("changing the image releases the old one", func(t *testing.T) {
		f := setupRecords(t)
		first := f.storeImage(t, "first.jpg")
		rec, err := f.svc.Create(ctx, models.CreateRecordRequest{ImagePath: first})
		require.NoError(t, err)

		second := f.storeImage(t, "second.jpg")
		updated, err := f.svc.Update(ctx, rec.ID, models.UpdateRecordRequest{
			AnimalID: rec.AnimalID, ImagePath: second, ATCScore: 70,
		})
		require.NoError(t, err)
		assert.Equal(t, second, updated.ImagePath)
		assert.False(t, f.images.Exists(first))
		assert.True(t, f.images.Exists(second))
	})
}
