package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"smartdate"
	"smartdate/internal/bus"
	"smartdate/internal/reconciler"
	"smartdate/internal/service"
)

// ---- Service Mocks ----

type mockStats struct {
	resp  smartdate.Stats
	err   error
	calls int
}

func (m *mockStats) Stats(ctx context.Context) (smartdate.Stats, error) {
	m.calls++
	return m.resp, m.err
}

type mockHistory struct {
	resp      []smartdate.Detection
	err       error
	lastLimit int
}

func (m *mockHistory) Recent(ctx context.Context, limit int) ([]smartdate.Detection, error) {
	m.lastLimit = limit
	return m.resp, m.err
}

type mockMonitoring struct {
	health    service.Health
	latest    smartdate.Detection
	hasLatest bool
}

func (m *mockMonitoring) Health(ctx context.Context) service.Health { return m.health }
func (m *mockMonitoring) Latest() (smartdate.Detection, bool)       { return m.latest, m.hasLatest }

// ---- Shared Test Helpers ----

type mockDashboard struct {
	bins       []reconciler.DayBin
	kpis       smartdate.Stats
	todayAvg   int
	rows       []smartdate.Detection
	total      int
	lastFilter reconciler.Filter
	cleared    int
}

func (m *mockDashboard) Histogram() []reconciler.DayBin { return m.bins }
func (m *mockDashboard) KPIs() smartdate.Stats          { return m.kpis }
func (m *mockDashboard) TodayAverage() int              { return m.todayAvg }
func (m *mockDashboard) History(f reconciler.Filter) ([]smartdate.Detection, int) {
	m.lastFilter = f
	return m.rows, m.total
}
func (m *mockDashboard) Clear() { m.cleared++ }

func newTestRouter(s *service.Service, events *bus.Bus, uploadsDir string) *gin.Engine {
	return newTestRouterWithDash(s, events, nil, uploadsDir)
}

func newTestRouterWithDash(s *service.Service, events *bus.Bus, dash DashboardView, uploadsDir string) *gin.Engine {
	if events == nil {
		events = bus.New()
	}
	h := NewHandler(s, events, dash, uploadsDir, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}
