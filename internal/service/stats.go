package service

import (
	"context"
	"time"

	"smartdate"
	"smartdate/internal/logger"
	"smartdate/internal/repository"
)

// StatsService is the stateless read path over durable storage. Each
// sub-aggregate is queried independently; one failing does not fail the
// combined fetch — the result is best-effort with Partial set.
type StatsService struct {
	repo repository.DetectionRepo
	log  *logger.Logger
	now  func() time.Time
}

func NewStatsService(repo repository.DetectionRepo, log *logger.Logger) *StatsService {
	return &StatsService{repo: repo, log: log, now: time.Now}
}

// Stats returns {total, today, avgConfidence, byType}. "Today" is counted
// from local midnight in the deployment's time zone, matching the store's
// record creation times.
func (s *StatsService) Stats(ctx context.Context) (smartdate.Stats, error) {
	var out smartdate.Stats

	total, err := s.repo.Total(ctx)
	if err != nil {
		s.warn("stats_total_failed", err)
		out.Partial = true
	} else {
		out.Total = total
	}

	today, err := s.repo.CountSince(ctx, s.todayStart())
	if err != nil {
		s.warn("stats_today_failed", err)
		out.Partial = true
	} else {
		out.Today = today
	}

	avg, err := s.repo.AverageConfidence(ctx)
	if err != nil {
		s.warn("stats_avg_failed", err)
		out.Partial = true
	} else {
		out.AvgConfidence = avg
	}

	byType, err := s.repo.CountByLabel(ctx)
	if err != nil {
		s.warn("stats_by_type_failed", err)
		out.Partial = true
	} else {
		out.ByType = byType
	}

	return out, nil
}

func (s *StatsService) todayStart() time.Time {
	now := s.now()
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
}

func (s *StatsService) warn(msg string, err error) {
	if s.log != nil {
		s.log.Warnw(msg, "err", err)
	}
}
