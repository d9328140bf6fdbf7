package models

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAnimalRecord(t *testing.T) {
	t.Run("creates unsynced record", func(t *testing.T) {
		captured := time.Date(2024, 3, 15, 10, 30, 45, 123456789, time.FixedZone("IST", 5*3600+1800))
		m := Measurements{BodyLength: 120, Height: 130, ChestWidth: 60, RumpAngle: 12, ATCScore: 88}

		rec, err := NewAnimalRecord("images/CATTLE_1.jpg", captured, m)

		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^ANIMAL_[0-9A-F]{8}$`), rec.AnimalID)
		assert.Equal(t, time.Date(2024, 3, 15, 5, 0, 45, 0, time.UTC), rec.Date)
		assert.Equal(t, "images/CATTLE_1.jpg", rec.ImagePath)
		assert.Equal(t, m, rec.Measurements())
		assert.False(t, rec.Synced)
		assert.Zero(t, rec.ID)
	})

	t.Run("zero time defaults to now", func(t *testing.T) {
		rec, err := NewAnimalRecord("a.jpg", time.Time{}, PlaceholderMeasurements())
		require.NoError(t, err)
		assert.WithinDuration(t, time.Now().UTC(), rec.Date, 5*time.Second)
	})

	t.Run("rejects empty image path", func(t *testing.T) {
		_, err := NewAnimalRecord("  ", time.Now(), PlaceholderMeasurements())
		assert.ErrorIs(t, err, ErrEmptyImagePath)
	})

	t.Run("rejects out of range score", func(t *testing.T) {
		_, err := NewAnimalRecord("a.jpg", time.Now(), Measurements{ATCScore: 101})
		assert.ErrorIs(t, err, ErrInvalidATCScore)
	})

	t.Run("rejects negative measurement", func(t *testing.T) {
		_, err := NewAnimalRecord("a.jpg", time.Now(), Measurements{Height: -1})
		assert.ErrorIs(t, err, ErrInvalidMeasurement)
	})

	t.Run("animal ids are unique", func(t *testing.T) {
		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			id := NewAnimalID()
			assert.False(t, seen[id])
			seen[id] = true
		}
	})
}

func TestPlaceholderMeasurements(t *testing.T) {
	for i := 0; i < 500; i++ {
		m := PlaceholderMeasurements()
		assert.True(t, m.BodyLength >= 100 && m.BodyLength <= 150, "body length %v", m.BodyLength)
		assert.True(t, m.Height >= 120 && m.Height <= 150, "height %v", m.Height)
		assert.True(t, m.ChestWidth >= 50 && m.ChestWidth <= 70, "chest width %v", m.ChestWidth)
		assert.True(t, m.RumpAngle >= 10 && m.RumpAngle <= 25, "rump angle %v", m.RumpAngle)
		assert.True(t, m.ATCScore >= 70 && m.ATCScore <= 100, "score %v", m.ATCScore)
		assert.Equal(t, float64(int(m.BodyLength)), m.BodyLength)
	}
}

func TestUpdateRecordRequestApply(t *testing.T) {
	t.Run("synced flag is monotonic", func(t *testing.T) {
		rec := &AnimalRecord{AnimalID: "ANIMAL_X", ImagePath: "a.jpg", Date: time.Now(), Synced: true}

		UpdateRecordRequest{AnimalID: "ANIMAL_Y", ATCScore: 90, Synced: false}.Apply(rec)

		assert.True(t, rec.Synced)
		assert.Equal(t, "ANIMAL_Y", rec.AnimalID)
		assert.Equal(t, 90, rec.ATCScore)
		assert.Equal(t, "a.jpg", rec.ImagePath)
	})

	t.Run("can set synced", func(t *testing.T) {
		rec := &AnimalRecord{}
		UpdateRecordRequest{Synced: true}.Apply(rec)
		assert.True(t, rec.Synced)
	})
}
