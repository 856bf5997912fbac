package service

import (
	"context"

	"smartdate"
	"smartdate/internal/repository"
)

// DefaultHistoryLimit bounds the recent-history fetch.
const DefaultHistoryLimit = 200

type HistoryService struct {
	repo repository.DetectionRepo
}

func NewHistoryService(repo repository.DetectionRepo) *HistoryService {
	return &HistoryService{repo: repo}
}

// Recent returns up to limit persisted detections, newest first. A
// non-positive or oversized limit falls back to DefaultHistoryLimit.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]smartdate.Detection, error) {
	if limit <= 0 || limit > DefaultHistoryLimit {
		limit = DefaultHistoryLimit
	}
	return s.repo.Recent(ctx, limit)
}
