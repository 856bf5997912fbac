// Package cache holds the single-slot most-recent-detection cache shared
// between the ingestion subscriber (sole writer) and HTTP readers.
package cache

import (
	"sync"
	"time"

	"smartdate"
)

// Latest is the process-wide latest-detection slot. It is constructed at
// service start and passed by reference; reads and writes are synchronized so
// readers never observe a half-written record.
type Latest struct {
	mu         sync.RWMutex
	detection  smartdate.Detection
	hasValue   bool
	lastUpdate time.Time
}

func NewLatest() *Latest {
	return &Latest{}
}

// Set overwrites the slot unconditionally and records the update time.
// "none" detections land here too: the slot reflects the newest message
// regardless of label so health consumers keep a freshness signal.
func (l *Latest) Set(d smartdate.Detection) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.detection = d
	l.hasValue = true
	l.lastUpdate = time.Now()
}

// Get returns the current slot contents. The second return value is false
// until the first message ever arrives, letting callers distinguish "no data
// yet" from a real zero-confidence detection.
func (l *Latest) Get() (smartdate.Detection, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.detection, l.hasValue
}

// LastUpdate returns when the slot was last written (zero if never).
func (l *Latest) LastUpdate() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastUpdate
}
