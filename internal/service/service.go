package service

import (
	"context"

	"smartdate"
	"smartdate/internal/cache"
	"smartdate/internal/logger"
	"smartdate/internal/repository"
)

// Stats exposes the combined aggregate fetch over durable storage.
type Stats interface {
	Stats(ctx context.Context) (smartdate.Stats, error)
}

// History exposes read access to recently persisted detections.
type History interface {
	Recent(ctx context.Context, limit int) ([]smartdate.Detection, error)
}

// Monitoring exposes health/connectivity state for health-check consumers.
type Monitoring interface {
	Health(ctx context.Context) Health
	Latest() (smartdate.Detection, bool)
}

// ConnStatus is implemented by the ingestion subscriber; the monitoring
// service reads it, never mutates it.
type ConnStatus interface {
	State() smartdate.ConnectionState
}

// Health is the health-check response body.
type Health struct {
	Backend       bool `json:"backend"`
	MQTTConnected bool `json:"mqttConnected"`
}

//
// Root Service aggregates all sub-services.
//

type Service struct {
	Stats
	History
	Monitoring
}

func NewService(repos *repository.Repository, latest *cache.Latest, conn ConnStatus, log *logger.Logger) *Service {
	return &Service{
		Stats:      NewStatsService(repos.Detections, log),
		History:    NewHistoryService(repos.Detections),
		Monitoring: NewMonitoringService(repos, latest, conn),
	}
}
