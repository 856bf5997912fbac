package smartdate

import (
	"encoding/json"
	"time"
)

// LabelNone is the sentinel label meaning "no date present". Detections
// carrying it are never persisted and never appear in aggregates.
const LabelNone = "none"

// Detection is one classification event produced by the sensing device.
type Detection struct {
	ID             string          `json:"id,omitempty"`
	Label          string          `json:"label"`
	Confidence     int             `json:"confidence"` // percentage 0..100
	Timestamp      int64           `json:"timestamp"`  // unix seconds
	Temperature    *float64        `json:"temp,omitempty"`
	Humidity       *float64        `json:"humidity,omitempty"`
	Image          string          `json:"image,omitempty"` // base64-encoded blob
	ImageURL       string          `json:"imageUrl,omitempty"`
	Recommendation string          `json:"recommendation"`
	Raw            json.RawMessage `json:"raw,omitempty"`
	CreatedAt      time.Time       `json:"created_at,omitempty"` // store-assigned
}

// Persistable reports whether the detection qualifies for durable storage.
func (d Detection) Persistable() bool {
	return d.Label != LabelNone
}

// TypeCount is one row of the per-label distribution.
type TypeCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// Stats is the combined aggregate fetch. Partial is set when one or more
// sub-aggregates failed and the corresponding field holds its zero value.
type Stats struct {
	Total         int         `json:"total"`
	Today         int         `json:"today"`
	AvgConfidence float64     `json:"avgConfidence"`
	ByType        []TypeCount `json:"byType"`
	Partial       bool        `json:"partial,omitempty"`
}

// ConnectionState describes the subscriber's broker connection lifecycle.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}
