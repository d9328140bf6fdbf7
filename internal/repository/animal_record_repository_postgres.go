package repository

import (
	"context"
	"database/sql"

	"github.com/cattlebreed/server/internal/models"
)

// AnimalRecordRepositoryPostgres stores records in PostgreSQL
type AnimalRecordRepositoryPostgres struct {
	db *sql.DB
}

// NewAnimalRecordRepositoryPostgres creates a new AnimalRecordRepositoryPostgres
func NewAnimalRecordRepositoryPostgres(db *sql.DB) *AnimalRecordRepositoryPostgres {
	return &AnimalRecordRepositoryPostgres{db: db}
}

func (r *AnimalRecordRepositoryPostgres) GetByID(ctx context.Context, id int64) (*models.AnimalRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM animal_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

func (r *AnimalRecordRepositoryPostgres) GetAll(ctx context.Context, skip, take int) ([]*models.AnimalRecord, error) {
	// LIMIT NULL means no limit
	var limit any
	if take > 0 {
		limit = take
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM animal_records
		ORDER BY date DESC, id DESC
		LIMIT $1 OFFSET $2
	`, limit, skip)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *AnimalRecordRepositoryPostgres) GetCount(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM animal_records`).Scan(&count)
	return count, err
}

func (r *AnimalRecordRepositoryPostgres) CountByImagePath(ctx context.Context, imagePath string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM animal_records WHERE image_path = $1`, imagePath).Scan(&count)
	return count, err
}

func (r *AnimalRecordRepositoryPostgres) GetUnsynced(ctx context.Context) ([]*models.AnimalRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM animal_records
		WHERE NOT synced
		ORDER BY date ASC, id ASC
	`)
	if err != nil {
		return nil, err
	}
	return scanRecords(rows)
}

func (r *AnimalRecordRepositoryPostgres) Add(ctx context.Context, rec *models.AnimalRecord) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO animal_records (animal_id, date, image_path, body_length, height, chest_width, rump_angle, atc_score, synced)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
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
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	rec.ID = id
	return id, nil
}

func (r *AnimalRecordRepositoryPostgres) Update(ctx context.Context, rec *models.AnimalRecord) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE animal_records
		SET animal_id = $1, date = $2, image_path = $3, body_length = $4, height = $5,
		    chest_width = $6, rump_angle = $7, atc_score = $8, synced = synced OR $9
		WHERE id = $10
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

func (r *AnimalRecordRepositoryPostgres) Delete(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM animal_records WHERE id = $1`, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *AnimalRecordRepositoryPostgres) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM animal_records`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *AnimalRecordRepositoryPostgres) MarkSynced(ctx context.Context, ids []int64) (int64, error) {
	return markSynced(ctx, r.db, `UPDATE animal_records SET synced = TRUE WHERE id = $1 AND NOT synced`, ids)
}

func (r *AnimalRecordRepositoryPostgres) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
