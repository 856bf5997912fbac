package handlers

import (
	"smartdate"
	"smartdate/internal/bus"
	"smartdate/internal/logger"
	"smartdate/internal/reconciler"
	"smartdate/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// DashboardView is the reconciler's read surface consumed by the dashboard
// endpoints.
type DashboardView interface {
	Histogram() []reconciler.DayBin
	KPIs() smartdate.Stats
	TodayAverage() int
	History(f reconciler.Filter) ([]smartdate.Detection, int)
	Clear()
}

// Handler wires HTTP layer to services, the detection bus and logging.
type Handler struct {
	services   *service.Service
	events     *bus.Bus
	dash       DashboardView
	log        *logger.Logger
	uploadsDir string
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, events *bus.Bus, dash DashboardView, uploadsDir string, log *logger.Logger) *Handler {
	return &Handler{services: services, events: events, dash: dash, uploadsDir: uploadsDir, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	h.registerAPIRoutes(router)

	// Uploaded detection images, served statically
	if h.uploadsDir != "" {
		router.Static("/uploads", h.uploadsDir)
	}

	// Detection push stream (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.GET("", h.apiRoot)
		api.GET("/health", h.health)
		api.GET("/latest", h.latest)
		api.GET("/history", h.history)
		api.GET("/stats", h.stats)
		api.POST("/upload", h.upload)
	}
	if h.dash != nil {
		h.registerDashboardRoutes(r)
	}
}

func (h *Handler) registerDashboardRoutes(r *gin.Engine) {
	dash := r.Group("/api/dashboard")
	{
		dash.GET("", h.dashboard)
		dash.GET("/history", h.dashboardHistory)
		dash.POST("/clear", h.dashboardClear)
	}
}
