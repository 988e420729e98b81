// Package performance provides lightweight performance tracking for
// Tourloop operations with multi-environment support.
package performance

import (
	"fmt"
	"sync"
	"time"
)

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation     string         `json:"operation"` // e.g. "content:start", "event:track"
	EnvironmentID string         `json:"environmentId"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
	Duration      time.Duration  `json:"duration"`
	Success       bool           `json:"success"`
	Error         string         `json:"error,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Completed     bool           `json:"completed"`
}

// Complete marks the operation as finished and calculates final metrics
func (m *Marker) Complete() {
	if m.Completed {
		return
	}
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true
}

// SetSuccess marks the operation as successful or failed
func (m *Marker) SetSuccess(success bool) {
	m.Success = success
}

// SetError sets an error message and marks the operation as failed
func (m *Marker) SetError(err error) {
	if err != nil {
		m.Error = err.Error()
		m.Success = false
	}
}

// AddMetadata adds key-value metadata to the marker
func (m *Marker) AddMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	markers    map[string]*Marker
	maxMarkers int
	counter    uint64
	mu         sync.RWMutex
	started    time.Time
}

// NewTracker creates a new performance tracker
func NewTracker() *Tracker {
	return &Tracker{
		markers:    make(map[string]*Marker),
		maxMarkers: 10000,
		started:    time.Now(),
	}
}

// StartOperation begins tracking a new operation and returns its marker
func (t *Tracker) StartOperation(operation, environmentID string) *Marker {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counter++
	id := fmt.Sprintf("%s:%s:%d", operation, environmentID, t.counter)

	marker := &Marker{
		Operation:     operation,
		EnvironmentID: environmentID,
		StartTime:     time.Now(),
		Success:       true,
	}

	if len(t.markers) >= t.maxMarkers {
		t.evictOldestLocked()
	}
	t.markers[id] = marker

	return marker
}

// evictOldestLocked removes the oldest marker. Caller must hold t.mu.
func (t *Tracker) evictOldestLocked() {
	var oldestID string
	oldestTime := time.Now()
	for id, m := range t.markers {
		if m.StartTime.Before(oldestTime) {
			oldestTime = m.StartTime
			oldestID = id
		}
	}
	if oldestID != "" {
		delete(t.markers, oldestID)
	}
}

// CompletedCount returns how many tracked operations have completed
func (t *Tracker) CompletedCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, m := range t.markers {
		if m.Completed {
			count++
		}
	}
	return count
}

// Uptime returns how long the tracker has been running
func (t *Tracker) Uptime() time.Duration {
	return time.Since(t.started)
}
