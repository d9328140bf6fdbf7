package repository

import (
	"context"

	"github.com/cattlebreed/server/internal/models"
)

// AnimalRecordRepo defines persistence for captured animal records.
// GetByID returns nil, nil when the record does not exist.
type AnimalRecordRepo interface {
	GetByID(ctx context.Context, id int64) (*models.AnimalRecord, error)
	// GetAll returns records newest first; take <= 0 means no limit
	GetAll(ctx context.Context, skip, take int) ([]*models.AnimalRecord, error)
	GetCount(ctx context.Context) (int, error)
	GetUnsynced(ctx context.Context) ([]*models.AnimalRecord, error)
	// CountByImagePath counts the records pointing at a stored image
	CountByImagePath(ctx context.Context, imagePath string) (int, error)
	Add(ctx context.Context, rec *models.AnimalRecord) (int64, error)
	Update(ctx context.Context, rec *models.AnimalRecord) (bool, error)
	Delete(ctx context.Context, id int64) (bool, error)
	DeleteAll(ctx context.Context) (int64, error)
	MarkSynced(ctx context.Context, ids []int64) (int64, error)
	Ping(ctx context.Context) error
}

// PreferenceStore is a small string key-value store for device settings.
// Get reports ok=false for a missing key.
type PreferenceStore interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
