package attendance

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record is a stored attendance event as the devserver keeps it.
type Record struct {
	ID            string    `json:"id"`
	EmployeePhone string    `json:"employee_phone"`
	Type          string    `json:"type"`
	DateDay       string    `json:"date_day"`
	CapturedAtUtc string    `json:"captured_at_utc"`
	AssetName     string    `json:"asset_name"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	CreatedAt     time.Time `json:"created_at"`
}

// Repository persists attendance records in Postgres.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repo.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Insert writes a new record.
func (r *Repository) Insert(ctx context.Context, rec Record) (Record, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO attendance_records (id, employee_phone, type, date_day, captured_at_utc, asset_name, latitude, longitude)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, rec.ID, rec.EmployeePhone, rec.Type, rec.DateDay, rec.CapturedAtUtc, rec.AssetName, rec.Latitude, rec.Longitude)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Exists reports whether a record of the given type exists for the phone
// on the given vendor-format day.
func (r *Repository) Exists(ctx context.Context, phone, recordType, dateDay string) (bool, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM attendance_records
		WHERE employee_phone = $1 AND type = $2 AND date_day = $3
		LIMIT 1
	`, phone, recordType, dateDay)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns the most recent records for a phone.
func (r *Repository) List(ctx context.Context, phone string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, employee_phone, type, date_day, captured_at_utc, asset_name, latitude, longitude, created_at
		FROM attendance_records
		WHERE employee_phone = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, phone, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.EmployeePhone, &rec.Type, &rec.DateDay, &rec.CapturedAtUtc, &rec.AssetName, &rec.Latitude, &rec.Longitude, &rec.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, rec)
	}
	return res, rows.Err()
}
