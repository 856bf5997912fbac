package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"smartdate"
)

// fakeDetectionRepo lets each aggregate succeed or fail independently.
type fakeDetectionRepo struct {
	total    int
	totalErr error

	since    int
	sinceErr error
	lastSince time.Time

	avg    float64
	avgErr error

	byType    []smartdate.TypeCount
	byTypeErr error

	recent    []smartdate.Detection
	recentErr error
	lastLimit int

	inserted []smartdate.Detection
}

func (f *fakeDetectionRepo) Insert(_ context.Context, d smartdate.Detection) error {
	f.inserted = append(f.inserted, d)
	return nil
}
func (f *fakeDetectionRepo) Recent(_ context.Context, limit int) ([]smartdate.Detection, error) {
	f.lastLimit = limit
	return f.recent, f.recentErr
}
func (f *fakeDetectionRepo) Total(context.Context) (int, error) { return f.total, f.totalErr }
func (f *fakeDetectionRepo) CountSince(_ context.Context, since time.Time) (int, error) {
	f.lastSince = since
	return f.since, f.sinceErr
}
func (f *fakeDetectionRepo) AverageConfidence(context.Context) (float64, error) {
	return f.avg, f.avgErr
}
func (f *fakeDetectionRepo) CountByLabel(context.Context) ([]smartdate.TypeCount, error) {
	return f.byType, f.byTypeErr
}

func TestStats_AllAggregates(t *testing.T) {
	t.Parallel()

	repo := &fakeDetectionRepo{
		total: 42, since: 7, avg: 86.5,
		byType: []smartdate.TypeCount{{Label: "alig", Count: 30}},
	}
	s := NewStatsService(repo, nil)
	s.now = func() time.Time {
		return time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	}

	got, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if got.Total != 42 || got.Today != 7 || got.AvgConfidence != 86.5 {
		t.Fatalf("unexpected stats: %+v", got)
	}
	if got.Partial {
		t.Fatalf("Partial should be false: %+v", got)
	}
	want := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	if !repo.lastSince.Equal(want) {
		t.Fatalf("today boundary: want %v, got %v", want, repo.lastSince)
	}
}

func TestStats_PartialFailure(t *testing.T) {
	t.Parallel()

	repo := &fakeDetectionRepo{
		total:  42,
		avgErr: errors.New("aggregate down"),
		byType: []smartdate.TypeCount{{Label: "kenta", Count: 5}},
	}
	s := NewStatsService(repo, nil)

	got, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats must not fail on sub-aggregate error: %v", err)
	}
	if !got.Partial {
		t.Fatalf("expected Partial flag: %+v", got)
	}
	if got.Total != 42 || got.AvgConfidence != 0 || len(got.ByType) != 1 {
		t.Fatalf("best-effort fields wrong: %+v", got)
	}
}

func TestHistory_LimitClamping(t *testing.T) {
	t.Parallel()

	repo := &fakeDetectionRepo{}
	s := NewHistoryService(repo)

	for _, limit := range []int{0, -3, 500} {
		if _, err := s.Recent(context.Background(), limit); err != nil {
			t.Fatalf("Recent(%d): %v", limit, err)
		}
		if repo.lastLimit != DefaultHistoryLimit {
			t.Fatalf("limit %d not clamped: got %d", limit, repo.lastLimit)
		}
	}

	if _, err := s.Recent(context.Background(), 50); err != nil {
		t.Fatalf("Recent(50): %v", err)
	}
	if repo.lastLimit != 50 {
		t.Fatalf("valid limit overridden: got %d", repo.lastLimit)
	}
}
