package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"smartdate"
)

type DetectionSQLite struct {
	db *sql.DB
}

func NewDetectionSQLite(db *sql.DB) *DetectionSQLite { return &DetectionSQLite{db: db} }

// Insert writes one detection. If ID or CreatedAt are empty, they're set.
// The "none" sentinel is rejected upstream; this layer stores whatever it is
// handed.
func (r *DetectionSQLite) Insert(ctx context.Context, d smartdate.Detection) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	} else {
		d.CreatedAt = d.CreatedAt.UTC()
	}

	var rawPtr *string
	if len(d.Raw) > 0 {
		s := string(d.Raw)
		rawPtr = &s
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO detections (id, label, confidence, ts, temp, humidity, image_url, raw, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.ID,
		d.Label,
		d.Confidence,
		d.Timestamp,
		d.Temperature,
		d.Humidity,
		nullIfEmpty(d.ImageURL),
		rawPtr,
		d.CreatedAt,
	)
	return err
}

// Recent returns up to limit detections, newest first by creation time.
func (r *DetectionSQLite) Recent(ctx context.Context, limit int) ([]smartdate.Detection, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, label, confidence, ts, temp, humidity, image_url, raw, created_at
		FROM detections ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]smartdate.Detection, 0, limit)
	for rows.Next() {
		var (
			d        smartdate.Detection
			temp     sql.NullFloat64
			humidity sql.NullFloat64
			imageURL sql.NullString
			raw      sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Label, &d.Confidence, &d.Timestamp,
			&temp, &humidity, &imageURL, &raw, &d.CreatedAt); err != nil {
			return nil, err
		}
		if temp.Valid {
			v := temp.Float64
			d.Temperature = &v
		}
		if humidity.Valid {
			v := humidity.Float64
			d.Humidity = &v
		}
		if imageURL.Valid {
			d.ImageURL = imageURL.String
		}
		if raw.Valid && raw.String != "" {
			d.Raw = []byte(raw.String)
		}
		d.CreatedAt = d.CreatedAt.UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// Total counts all persisted detections.
func (r *DetectionSQLite) Total(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM detections`).Scan(&n)
	return n, err
}

// CountSince counts detections created at or after the given instant.
func (r *DetectionSQLite) CountSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM detections WHERE created_at >= ?`, since.UTC()).Scan(&n)
	return n, err
}

// AverageConfidence returns the mean confidence over all persisted
// detections, 0 when the table is empty.
func (r *DetectionSQLite) AverageConfidence(ctx context.Context) (float64, error) {
	var avg sql.NullFloat64
	err := r.db.QueryRowContext(ctx,
		`SELECT AVG(confidence) FROM detections`).Scan(&avg)
	if err != nil {
		return 0, err
	}
	if !avg.Valid {
		return 0, nil
	}
	return avg.Float64, nil
}

// CountByLabel returns the per-label distribution, largest group first.
func (r *DetectionSQLite) CountByLabel(ctx context.Context) ([]smartdate.TypeCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT label, COUNT(*) AS cnt FROM detections GROUP BY label ORDER BY cnt DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []smartdate.TypeCount
	for rows.Next() {
		var tc smartdate.TypeCount
		if err := rows.Scan(&tc.Label, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
