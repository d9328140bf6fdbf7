package repository

import (
	"context"
	"database/sql"

	"github.com/cattlebreed/server/internal/models"
)

const recordColumns = `id, animal_id, date, image_path, body_length, height, chest_width, rump_angle, atc_score, synced`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.AnimalRecord, error) {
	var rec models.AnimalRecord
	err := row.Scan(
		&rec.ID,
		&rec.AnimalID,
		&rec.Date,
		&rec.ImagePath,
		&rec.BodyLength,
		&rec.Height,
		&rec.ChestWidth,
		&rec.RumpAngle,
		&rec.ATCScore,
		&rec.Synced,
	)
	if err != nil {
		return nil, err
	}
	rec.Date = rec.Date.UTC()
	return &rec, nil
}

func scanRecords(rows *sql.Rows) ([]*models.AnimalRecord, error) {
	defer rows.Close()

	records := make([]*models.AnimalRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// AnimalRecordRepository stores records in sqlite
type AnimalRecordRepository struct {
	db *sql.DB
}

// NewAnimalRecordRepository creates a new AnimalRecordRepository
func NewAnimalRecordRepository(db *sql.DB) *AnimalRecordRepository {
	return &AnimalRecordRepository{db: db}
}

// GetByID retrieves a record by id
func (r *AnimalRecordRepository) GetByID(ctx context.Context, id int64) (*models.AnimalRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM animal_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// GetAll returns records ordered by capture date, newest first
func (r *AnimalRecordRepository) GetAll(ctx context.Context, skip, take int) ([]*models.AnimalRecord, error) {
	if take <= 0 {
		take = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM animal_records
		ORDER BY date DESC, id DESC
		LIMIT ? OFFSET ?
	`, take, skip)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// GetCount returns the number of stored records
func (r *AnimalRecordRepository) GetCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM animal_records`).Scan(&count)
	return count, err
}

// CountByImagePath returns how many records reference imagePath
func (r *AnimalRecordRepository) CountByImagePath(ctx context.Context, imagePath string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM animal_records WHERE image_path = ?`, imagePath).Scan(&count)
	return count, err
}

// GetUnsynced returns records not yet pushed to the server, oldest first
func (r *AnimalRecordRepository) GetUnsynced(ctx context.Context) ([]*models.AnimalRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM animal_records
		WHERE synced = 0
		ORDER BY date ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

// Add inserts rec, sets rec.ID and returns it
func (r *AnimalRecordRepository) Add(ctx context.Context, rec *models.AnimalRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO animal_records (animal_id, date, image_path, body_length, height, chest_width, rump_angle, atc_score, synced)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.AnimalID,
		rec.Date.UTC(),
		rec.ImagePath,
		rec.BodyLength,
		rec.Height,
		rec.ChestWidth,
		rec.RumpAngle,
		rec.ATCScore,
		rec.Synced,
	)
	if err != nil {
		return 0, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

// Update overwrites a record. A synced record stays synced.
func (r *AnimalRecordRepository) Update(ctx context.Context, rec *models.AnimalRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE animal_records
		SET animal_id = ?, date = ?, image_path = ?, body_length = ?, height = ?,
		    chest_width = ?, rump_angle = ?, atc_score = ?,
		    synced = CASE WHEN synced = 1 THEN 1 ELSE ? END
		WHERE id = ?
	`,
		rec.AnimalID,
		rec.Date.UTC(),
		rec.ImagePath,
		rec.BodyLength,
		rec.Height,
		rec.ChestWidth,
		rec.RumpAngle,
		rec.ATCScore,
		rec.Synced,
		rec.ID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// Delete removes a record by id
func (r *AnimalRecordRepository) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM animal_records WHERE id = ?`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteAll removes every record and returns how many were deleted
func (r *AnimalRecordRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM animal_records`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkSynced flips the given records to synced and returns how many changed
func (r *AnimalRecordRepository) MarkSynced(ctx context.Context, ids []int64) (int64, error) {
	return markSynced(ctx, r.db, `UPDATE animal_records SET synced = 1 WHERE id = ? AND synced = 0`, ids)
}

// Ping checks the connection
func (r *AnimalRecordRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func markSynced(ctx context.Context, db *sql.DB, stmt string, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	prepared, err := tx.PrepareContext(ctx, stmt)
	if err != nil {
		return 0, err
	}
	defer prepared.Close()

	var total int64
	for _, id := range ids {
		res, err := prepared.ExecContext(ctx, id)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		total += n
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}
