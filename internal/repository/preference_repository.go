package repository

import (
	"context"
	"database/sql"
	"time"
)

// Preference keys
const (
	PrefCurrentUserPhone  = "current_user_phone"
	PrefAuthToken         = "auth_token"
	PrefGuestMode         = "is_guest_mode"
	PrefPreferredLanguage = "preferred_language"
	prefUserPrefix        = "user:"
)

// UserKey is the key holding the JSON profile of phone
func UserKey(phone string) string {
	return prefUserPrefix + phone
}

// PreferenceRepository is a PreferenceStore over the preferences table.
// It uses $n placeholders, which both sqlite3 and postgres drivers accept.
type PreferenceRepository struct {
	db *sql.DB
}

// NewPreferenceRepository creates a new PreferenceRepository
func NewPreferenceRepository(db *sql.DB) *PreferenceRepository {
	return &PreferenceRepository{db: db}
}

func (r *PreferenceRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT pref_value FROM preferences WHERE pref_key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

// Set upserts key
func (r *PreferenceRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (pref_key, pref_value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (pref_key) DO UPDATE
		SET pref_value = EXCLUDED.pref_value,
		    updated_at = EXCLUDED.updated_at
	`, key, value, time.Now().UTC())
	return err
}

// Delete removes the keys; missing keys are ignored
func (r *PreferenceRepository) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM preferences WHERE pref_key = $1`, key); err != nil {
			return err
		}
	}
	return tx.Commit()
}
