// Package reconciler merges the push stream of accepted detections with
// periodic snapshot and aggregate refreshes into one consistent view: a
// 7-day activity histogram, a bounded recent-history list and a session
// running confidence average for today.
//
// Push-driven increments are provisional; every snapshot refresh replaces
// the history wholesale and rebuilds the histogram from it, so drift from
// duplicated or missed push events is corrected at the next boundary.
package reconciler

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"smartdate"
	"smartdate/internal/logger"
)

const (
	windowDays              = 7
	defaultHistoryLimit     = 200
	defaultSnapshotInterval = 30 * time.Second
	defaultStatsInterval    = 10 * time.Second
	defaultPerPage          = 20
)

// Config tunes the reconciler.
type Config struct {
	HistoryLimit     int
	MinConfidence    int  // push-path display filter; 0 disables
	RollWindow       bool // re-derive day boundaries at each snapshot rebuild
	SnapshotInterval time.Duration
	StatsInterval    time.Duration
}

// SnapshotFetcher re-fetches recent persisted history.
type SnapshotFetcher interface {
	Recent(ctx context.Context, limit int) ([]smartdate.Detection, error)
}

// StatsFetcher fetches the combined server-side aggregates.
type StatsFetcher interface {
	Stats(ctx context.Context) (smartdate.Stats, error)
}

// DayBin is one histogram bin, one per trailing calendar day.
type DayBin struct {
	Day   string `json:"day"`  // weekday abbreviation
	Date  string `json:"date"` // 2006-01-02
	Count int    `json:"count"`
}

// Filter narrows and pages the materialized history list.
type Filter struct {
	Label   string    // empty = all
	Day     time.Time // zero = all days; matched on calendar day of Timestamp
	Page    int       // 1-based
	PerPage int
}

// Reconciler owns the merged display state. All exported methods are safe
// for concurrent use.
type Reconciler struct {
	mu        sync.Mutex
	cfg       Config
	snapshots SnapshotFetcher
	stats     StatsFetcher
	log       *logger.Logger
	now       func() time.Time

	anchor           time.Time // window anchor set at construction
	history          []smartdate.Detection
	bins             []DayBin
	todayConfidences []int
	kpis             smartdate.Stats
}

func New(cfg Config, snapshots SnapshotFetcher, stats StatsFetcher, log *logger.Logger) *Reconciler {
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.SnapshotInterval <= 0 {
		cfg.SnapshotInterval = defaultSnapshotInterval
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = defaultStatsInterval
	}
	r := &Reconciler{
		cfg:       cfg,
		snapshots: snapshots,
		stats:     stats,
		log:       log,
		now:       time.Now,
	}
	r.anchor = r.now()
	r.bins = emptyWeek(r.anchor)
	return r
}

// Run seeds the view, then keeps it current from the push channel and the
// periodic refresh tickers until ctx is canceled. All tickers stop before
// Run returns.
func (r *Reconciler) Run(ctx context.Context, push <-chan smartdate.Detection) {
	r.refreshSnapshot(ctx)
	r.refreshStats(ctx)

	snapTicker := time.NewTicker(r.cfg.SnapshotInterval)
	statsTicker := time.NewTicker(r.cfg.StatsInterval)
	defer func() {
		snapTicker.Stop()
		statsTicker.Stop()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case d := <-push:
			r.ApplyPush(d)
		case <-snapTicker.C:
			r.refreshSnapshot(ctx)
		case <-statsTicker.C:
			r.refreshStats(ctx)
		}
	}
}

func (r *Reconciler) refreshSnapshot(ctx context.Context) {
	list, err := r.snapshots.Recent(ctx, r.cfg.HistoryLimit)
	if err != nil {
		if r.log != nil {
			r.log.Warnw("snapshot_refresh_failed", "err", err)
		}
		return
	}
	r.ApplySnapshot(list)
}

func (r *Reconciler) refreshStats(ctx context.Context) {
	st, err := r.stats.Stats(ctx)
	if err != nil {
		if r.log != nil {
			r.log.Warnw("stats_refresh_failed", "err", err)
		}
		return
	}
	r.ApplyStats(st)
}

// ApplyPush folds one push-delivered detection into the view. "none"
// detections and those below the display threshold are ignored.
func (r *Reconciler) ApplyPush(d smartdate.Detection) {
	if !d.Persistable() {
		return
	}
	if r.cfg.MinConfidence > 0 && d.Confidence < r.cfg.MinConfidence {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = append([]smartdate.Detection{d}, r.history...)
	if len(r.history) > r.cfg.HistoryLimit {
		r.history = r.history[:r.cfg.HistoryLimit]
	}
	incrementBin(r.bins, d.Timestamp)

	if sameDay(time.Unix(d.Timestamp, 0), r.now()) {
		r.todayConfidences = append(r.todayConfidences, d.Confidence)
	}
}

// ApplySnapshot replaces the history wholesale and rebuilds the histogram
// from the replaced list, so the view reflects ground truth rather than
// accumulated push increments. The today-confidence series is untouched:
// it is a session-scoped, push-only accumulator.
func (r *Reconciler) ApplySnapshot(list []smartdate.Detection) {
	filtered := make([]smartdate.Detection, 0, len(list))
	for _, d := range list {
		if d.Persistable() {
			filtered = append(filtered, d)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp > filtered[j].Timestamp
	})
	if len(filtered) > r.cfg.HistoryLimit {
		filtered = filtered[:r.cfg.HistoryLimit]
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.history = filtered

	base := r.anchor
	if r.cfg.RollWindow {
		base = r.now()
	}
	r.bins = emptyWeek(base)
	for _, d := range filtered {
		incrementBin(r.bins, d.Timestamp)
	}
}

// ApplyStats stores the latest server-side KPIs.
func (r *Reconciler) ApplyStats(st smartdate.Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kpis = st
}

// Histogram returns a copy of the 7-day activity bins, oldest first.
func (r *Reconciler) Histogram() []DayBin {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]DayBin, len(r.bins))
	copy(out, r.bins)
	return out
}

// KPIs returns the most recently fetched server-side aggregates.
func (r *Reconciler) KPIs() smartdate.Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.kpis
}

// TodayAverage is the live running average of confidences pushed today in
// this session, rounded to the nearest integer. A restart starts over at
// zero until new push events arrive.
func (r *Reconciler) TodayAverage() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.todayConfidences) == 0 {
		return 0
	}
	sum := 0
	for _, c := range r.todayConfidences {
		sum += c
	}
	return int(math.Round(float64(sum) / float64(len(r.todayConfidences))))
}

// History filters and pages the materialized list. It never triggers a
// fetch. The second return value is the total match count before paging.
func (r *Reconciler) History(f Filter) ([]smartdate.Detection, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	label := strings.ToLower(strings.TrimSpace(f.Label))
	matched := make([]smartdate.Detection, 0, len(r.history))
	for _, d := range r.history {
		if label != "" && strings.ToLower(strings.TrimSpace(d.Label)) != label {
			continue
		}
		if !f.Day.IsZero() && !sameDay(time.Unix(d.Timestamp, 0), f.Day) {
			continue
		}
		matched = append(matched, d)
	}
	total := len(matched)

	perPage := f.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * perPage
	if start >= total {
		return []smartdate.Detection{}, total
	}
	end := start + perPage
	if end > total {
		end = total
	}
	return matched[start:end], total
}

// Clear hides the currently materialized rows. Persisted records and
// server-side state are untouched; the next snapshot refresh repopulates
// the list from ground truth.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = nil
}

// ---- helpers ----

func emptyWeek(base time.Time) []DayBin {
	bins := make([]DayBin, windowDays)
	for i := 0; i < windowDays; i++ {
		day := base.AddDate(0, 0, -(windowDays - 1 - i))
		bins[i] = DayBin{Day: day.Format("Mon"), Date: day.Format("2006-01-02")}
	}
	return bins
}

func incrementBin(bins []DayBin, ts int64) {
	date := time.Unix(ts, 0).Format("2006-01-02")
	for i := range bins {
		if bins[i].Date == date {
			bins[i].Count++
			return
		}
	}
	// outside the window: ignored
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
