package repository

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

// NewSQLiteDB opens the local database file and creates the schema
func NewSQLiteDB(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}

	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS animal_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		animal_id TEXT NOT NULL,
		date DATETIME NOT NULL,
		image_path TEXT NOT NULL,
		body_length REAL NOT NULL,
		height REAL NOT NULL,
		chest_width REAL NOT NULL,
		rump_angle REAL NOT NULL,
		atc_score INTEGER NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_animal_records_date ON animal_records(date);
	CREATE INDEX IF NOT EXISTS idx_animal_records_synced ON animal_records(synced);
	CREATE INDEX IF NOT EXISTS idx_animal_records_image_path ON animal_records(image_path);

	CREATE TABLE IF NOT EXISTS preferences (
		pref_key TEXT PRIMARY KEY,
		pref_value TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`

	_, err := db.Exec(schema)
	return err
}
