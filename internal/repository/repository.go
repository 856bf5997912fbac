package repository

import (
	"context"
	"database/sql"
	"time"

	"smartdate"
	repodb "smartdate/internal/repository/db"
)

// DetectionRepo is the durable-store contract: one insert path plus the
// aggregate reads the stats service is built on.
type DetectionRepo interface {
	Insert(ctx context.Context, d smartdate.Detection) error
	Recent(ctx context.Context, limit int) ([]smartdate.Detection, error)
	Total(ctx context.Context) (int, error)
	CountSince(ctx context.Context, since time.Time) (int, error)
	AverageConfidence(ctx context.Context) (float64, error)
	CountByLabel(ctx context.Context) ([]smartdate.TypeCount, error)
}

// Pinger exposes store reachability for health checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Repository struct {
	Detections DetectionRepo
	db         *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		Detections: NewDetectionSQLite(db),
		db:         db,
	}
}

// Ping reports whether the underlying store is reachable.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// InitDB opens the SQLite file and bootstraps the schema.
func InitDB(path string) (*sql.DB, error) {
	return repodb.InitDB(path)
}
