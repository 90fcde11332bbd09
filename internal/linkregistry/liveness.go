package linkregistry

import (
	"time"

	"github.com/arinc839/cmcore/internal/logger"
)

// StartLivenessMonitor launches the background goroutine that scans for
// links whose last heartbeat exceeded the configured timeout and marks them
// DOWN, replacing magic_lmi.c's heartbeat_monitor_thread_func polling loop.
// Call Stop to shut it down.
func (r *Registry) StartLivenessMonitor() {
	r.started = true
	go r.livenessLoop()
}

func (r *Registry) livenessLoop() {
	defer close(r.doneCh)
	ticker := time.NewTicker(r.scanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.scanForTimeouts()
		}
	}
}

func (r *Registry) scanForTimeouts() {
	now := time.Now()
	var timedOut []string

	r.mu.Lock()
	for name, link := range r.links {
		if link.State != LinkStateUp {
			continue
		}
		if now.Sub(link.LastSeen) > r.heartbeatTimeout {
			timedOut = append(timedOut, name)
		}
	}
	r.mu.Unlock()

	for _, name := range timedOut {
		logger.Warn("link heartbeat timeout, marking down", "link", name, "timeout", r.heartbeatTimeout.String())
		if err := r.MarkDown(name); err != nil {
			logger.Error("failed to mark timed-out link down", err, "link", name)
		}
	}
}

// Stop halts the liveness monitor goroutine and waits for it to exit.
func (r *Registry) Stop() {
	if !r.started {
		return
	}
	r.stopOnce.Do(func() {
		close(r.stopCh)
	})
	<-r.doneCh
}
