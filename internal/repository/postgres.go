package repository

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

// NewPostgresDB connects with driver "postgres" (lib/pq) or "pgx" and creates the schema
func NewPostgresDB(driver, connStr string) (*sql.DB, error) {
	if driver != "postgres" && driver != "pgx" {
		return nil, fmt.Errorf("unsupported postgres driver %q", driver)
	}

	db, err := sql.Open(driver, connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := createPostgresTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createPostgresTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS animal_records (
		id BIGSERIAL PRIMARY KEY,
		animal_id TEXT NOT NULL,
		date TIMESTAMPTZ NOT NULL,
		image_path TEXT NOT NULL,
		body_length DOUBLE PRECISION NOT NULL,
		height DOUBLE PRECISION NOT NULL,
		chest_width DOUBLE PRECISION NOT NULL,
		rump_angle DOUBLE PRECISION NOT NULL,
		atc_score INTEGER NOT NULL,
		synced BOOLEAN NOT NULL DEFAULT FALSE
	);

	CREATE INDEX IF NOT EXISTS idx_animal_records_date ON animal_records(date);
	CREATE INDEX IF NOT EXISTS idx_animal_records_synced ON animal_records(synced);
	CREATE INDEX IF NOT EXISTS idx_animal_records_image_path ON animal_records(image_path);

	CREATE TABLE IF NOT EXISTS preferences (
		pref_key TEXT PRIMARY KEY,
		pref_value TEXT NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
