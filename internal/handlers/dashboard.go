package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartdate/internal/reconciler"
)

const dayParamLayout = "2006-01-02"

// @Summary      Dashboard view
// @Description  Reconciled 7-day activity histogram, server-side KPIs and the session's running today-average confidence
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/dashboard [get]
func (h *Handler) dashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"activity":           h.dash.Histogram(),
		"kpis":               h.dash.KPIs(),
		"todayAvgConfidence": h.dash.TodayAverage(),
	})
}

// @Summary      Dashboard history
// @Description  Filters and pages the materialized recent-history list; never triggers a fetch
// @Tags         dashboard
// @Produce      json
// @Param        label     query  string  false  "filter by category"
// @Param        day       query  string  false  "filter by calendar day (2006-01-02)"
// @Param        page      query  int     false  "1-based page"
// @Param        per_page  query  int     false  "rows per page"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /api/dashboard/history [get]
func (h *Handler) dashboardHistory(c *gin.Context) {
	var f reconciler.Filter
	f.Label = c.Query("label")
	if s := c.Query("day"); s != "" {
		day, err := time.ParseInLocation(dayParamLayout, s, time.Local)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid day: " + s})
			return
		}
		f.Day = day
	}
	if s := c.Query("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			f.Page = v
		}
	}
	if s := c.Query("per_page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			f.PerPage = v
		}
	}

	rows, total := h.dash.History(f)
	c.JSON(http.StatusOK, gin.H{"rows": rows, "total": total})
}

// @Summary      Clear dashboard rows
// @Description  Hides currently materialized rows; persisted records are untouched
// @Tags         dashboard
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /api/dashboard/clear [post]
func (h *Handler) dashboardClear(c *gin.Context) {
	h.dash.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
