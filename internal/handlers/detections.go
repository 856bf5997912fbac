package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"smartdate/internal/service"
)

// Common response/error constants to avoid magic strings and typos.
const (
	errNoDataYet  = "no data yet"
	errNoFile     = "no file"
	errGetHistory = "failed to load history"
	errGetStats   = "failed to load stats"
	errSaveUpload = "failed to store upload"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// @Summary      API liveness banner
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api [get]
func (h *Handler) apiRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "api working",
		"time":    time.Now().UTC(),
	})
}

// @Summary      Health check
// @Description  Store reachability and broker connection state
// @Tags         system
// @Produce      json
// @Success      200  {object}  service.Health
// @Router       /api/health [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, h.services.Monitoring.Health(c.Request.Context()))
}

// @Summary      Latest detection
// @Description  Current latest-cache contents; 404 until the first message ever arrives
// @Tags         detections
// @Produce      json
// @Success      200  {object}  smartdate.Detection
// @Failure      404  {object}  map[string]string
// @Router       /api/latest [get]
func (h *Handler) latest(c *gin.Context) {
	d, ok := h.services.Monitoring.Latest()
	if !ok {
		// explicit "no data yet", not a zero-value detection
		c.JSON(http.StatusNotFound, gin.H{"error": errNoDataYet})
		return
	}
	c.JSON(http.StatusOK, d)
}

// @Summary      Recent history
// @Description  Up to 200 most recent persisted detections, newest first
// @Tags         detections
// @Produce      json
// @Param        limit  query  int  false  "max rows (default 200)"
// @Success      200  {array}   smartdate.Detection
// @Failure      500  {object}  map[string]string
// @Router       /api/history [get]
func (h *Handler) history(c *gin.Context) {
	limit := service.DefaultHistoryLimit
	if s := c.Query("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	list, err := h.services.History.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetHistory, "history_failed", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary      Aggregate statistics
// @Description  Combined total/today/avgConfidence/byType fetch; best-effort partial on sub-aggregate failure
// @Tags         detections
// @Produce      json
// @Success      200  {object}  smartdate.Stats
// @Failure      500  {object}  map[string]string
// @Router       /api/stats [get]
func (h *Handler) stats(c *gin.Context) {
	st, err := h.services.Stats.Stats(c.Request.Context())
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStats, "stats_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary      Upload detection image
// @Description  Side-channel image ingestion; stores the file and returns its public URL
// @Tags         detections
// @Accept       mpfd
// @Produce      json
// @Param        image  formData  file  true  "image file"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /api/upload [post]
func (h *Handler) upload(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errNoFile})
		return
	}

	name := fmt.Sprintf("det_%d%s", time.Now().UnixMilli(), filepath.Ext(file.Filename))
	dst := filepath.Join(h.uploadsDir, name)
	if err := c.SaveUploadedFile(file, dst); err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errSaveUpload, "upload_save_failed", err, "dst", dst)
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "url": "/uploads/" + name})
}
