// Package health tracks cmcored's own liveness for the admin dashboard's
// /health endpoint and an external process supervisor, independent of the
// Link Registry's per-datalink liveness tracking in internal/linkregistry.
// Adapted from pkg/health/health.go's check/watchdog split: the teacher's
// watchdog panicked the process on a stall, which is the wrong failure mode
// for a connection manager with open DLM sockets — here a stalled watchdog
// only flips the "watchdog" component unhealthy so /health reports it and a
// supervisor (systemd, init) decides whether to restart.
package health

import (
	"sync"
	"time"
)

// ComponentStatus is the last known health of one named component (a
// transport listener, a registry, the push engine's ack loop).
type ComponentStatus struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"last_check"`
}

// Status is a point-in-time snapshot of the monitor's state.
type Status struct {
	Healthy           bool                       `json:"healthy"`
	Timestamp         time.Time                  `json:"timestamp"`
	UptimeSeconds     int64                      `json:"uptime_seconds"`
	MessagesProcessed int64                      `json:"messages_processed"`
	ErrorCount        int64                      `json:"error_count"`
	LastError         string                     `json:"last_error,omitempty"`
	Components        map[string]ComponentStatus `json:"components"`
}

// Monitor aggregates component health and a watchdog heartbeat into one
// overall healthy/unhealthy verdict.
type Monitor struct {
	mu         sync.RWMutex
	startTime  time.Time
	components map[string]ComponentStatus
	messages   int64
	errors     int64
	lastError  string

	watchdogTimeout time.Duration
	lastTouch       time.Time
	stopCh          chan struct{}
}

// NewMonitor builds a Monitor and, if watchdogTimeout is positive, starts a
// background loop that marks the "watchdog" component unhealthy once Touch
// hasn't been called within watchdogTimeout.
func NewMonitor(watchdogTimeout time.Duration) *Monitor {
	m := &Monitor{
		startTime:       time.Now(),
		components:      make(map[string]ComponentStatus),
		watchdogTimeout: watchdogTimeout,
		lastTouch:       time.Now(),
		stopCh:          make(chan struct{}),
	}
	if watchdogTimeout > 0 {
		go m.watchdogLoop()
	}
	return m
}

// Touch records a heartbeat from the main dispatch loop, resetting the
// watchdog's stall timer.
func (m *Monitor) Touch() {
	m.mu.Lock()
	m.lastTouch = time.Now()
	m.mu.Unlock()
}

// UpdateComponent records the health of one named component.
func (m *Monitor) UpdateComponent(name string, healthy bool, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.components[name] = ComponentStatus{
		Name:      name,
		Healthy:   healthy,
		Message:   message,
		LastCheck: time.Now(),
	}
}

// RecordMessage increments the processed-message counter, used as a coarse
// throughput indicator on the dashboard.
func (m *Monitor) RecordMessage() {
	m.mu.Lock()
	m.messages++
	m.mu.Unlock()
}

// RecordError increments the error counter and remembers the latest error text.
func (m *Monitor) RecordError(err error) {
	m.mu.Lock()
	m.errors++
	m.lastError = err.Error()
	m.mu.Unlock()
}

// Snapshot returns the current aggregate status. Overall health is the AND
// of every recorded component.
func (m *Monitor) Snapshot() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	components := make(map[string]ComponentStatus, len(m.components))
	healthy := true
	for name, c := range m.components {
		components[name] = c
		if !c.Healthy {
			healthy = false
		}
	}

	return Status{
		Healthy:           healthy,
		Timestamp:         time.Now(),
		UptimeSeconds:     int64(time.Since(m.startTime).Seconds()),
		MessagesProcessed: m.messages,
		ErrorCount:        m.errors,
		LastError:         m.lastError,
		Components:        components,
	}
}

// IsHealthy reports the overall verdict without building a full snapshot.
func (m *Monitor) IsHealthy() bool {
	return m.Snapshot().Healthy
}

// Stop ends the watchdog loop, if one was started.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) watchdogLoop() {
	ticker := time.NewTicker(m.watchdogTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.mu.RLock()
			stalled := time.Since(m.lastTouch) > m.watchdogTimeout
			m.mu.RUnlock()
			m.UpdateComponent("watchdog", !stalled, watchdogMessage(stalled))
		}
	}
}

func watchdogMessage(stalled bool) string {
	if stalled {
		return "main dispatch loop has not reported activity within the watchdog timeout"
	}
	return ""
}
