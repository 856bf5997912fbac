package service

import (
	"context"
	"time"

	"smartdate"
	"smartdate/internal/cache"
	"smartdate/internal/repository"
)

const healthPingTimeout = 2 * time.Second

// MonitoringService answers health checks: store reachability plus broker
// connection state, and surfaces the latest-cache slot.
type MonitoringService struct {
	store  repository.Pinger
	latest *cache.Latest
	conn   ConnStatus
}

func NewMonitoringService(store repository.Pinger, latest *cache.Latest, conn ConnStatus) *MonitoringService {
	return &MonitoringService{store: store, latest: latest, conn: conn}
}

// Health reports backend (store) reachability and broker connectivity.
// It never returns an error: failures surface as false flags.
func (s *MonitoringService) Health(ctx context.Context) Health {
	pingCtx, cancel := context.WithTimeout(ctx, healthPingTimeout)
	defer cancel()

	backend := s.store != nil && s.store.Ping(pingCtx) == nil
	connected := s.conn != nil && s.conn.State() == smartdate.StateConnected

	return Health{Backend: backend, MQTTConnected: connected}
}

// Latest returns the most recent accepted detection, if any has ever arrived.
func (s *MonitoringService) Latest() (smartdate.Detection, bool) {
	if s.latest == nil {
		return smartdate.Detection{}, false
	}
	return s.latest.Get()
}
