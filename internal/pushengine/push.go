package pushengine

import (
	"sync"
	"time"

	"github.com/arinc839/cmcore/internal/logger"
	"github.com/arinc839/cmcore/internal/sessionregistry"
)

// MNTRParams carries the fields of an outbound MNTR push (§4.6).
type MNTRParams struct {
	SessionID         string
	ForceSend         bool
	MagicStatusCode   uint32
	ErrorMessage      string
	NewGrantedFwdBWKbps uint32
	NewGrantedRetBWKbps uint32
}

// MNTRSender delivers an MNTR over the north-bound transport. Returning an
// error means the send itself failed (not that the client rejected it).
type MNTRSender func(params MNTRParams) error

// mntrState tracks the storm-suppression and ack bookkeeping for one
// session — the Go equivalent of the extra fields ClientSession carries in
// magic_cic_push.c (last_mntr_sent_time, last_notified_bw_kbps, mntr_pending_ack).
type mntrState struct {
	lastSentAt       time.Time
	lastNotifiedBW   uint32
	pendingAck       bool
	ackDeadline      time.Time
}

// Engine owns push bookkeeping and the configured thresholds (§4.6). It
// holds no session data of its own beyond the per-session storm/ack state;
// session identity and link binding stay in sessionregistry.
type Engine struct {
	mu     sync.Mutex
	states map[string]*mntrState

	minIntervalSec     float64
	changeThresholdPct float64
	ackTimeout         time.Duration

	sessions *sessionregistry.Registry
	send     MNTRSender
}

// NewEngine builds a push engine against the given session registry and MNTR transport.
func NewEngine(sessions *sessionregistry.Registry, send MNTRSender, minIntervalSec, changeThresholdPct float64, ackTimeout time.Duration) *Engine {
	return &Engine{
		states:             make(map[string]*mntrState),
		minIntervalSec:     minIntervalSec,
		changeThresholdPct: changeThresholdPct,
		ackTimeout:         ackTimeout,
		sessions:           sessions,
		send:               send,
	}
}

func (e *Engine) stateFor(sessionID string) *mntrState {
	st, ok := e.states[sessionID]
	if !ok {
		st = &mntrState{}
		e.states[sessionID] = st
	}
	return st
}

// NotifyBandwidthChange sends an MNTR for a granted-bandwidth change,
// subject to storm suppression, unless force is set.
func (e *Engine) NotifyBandwidthChange(sessionID string, newFwdBW, newRetBW uint32, force bool) error {
	e.mu.Lock()
	st := e.stateFor(sessionID)

	var elapsed float64 = -1
	if !st.lastSentAt.IsZero() {
		elapsed = time.Since(st.lastSentAt).Seconds()
	}

	if !ShouldSendMNTR(st.lastNotifiedBW, newFwdBW, elapsed, e.minIntervalSec, e.changeThresholdPct, force) {
		e.mu.Unlock()
		logger.Debug("MNTR suppressed by storm control", "session", sessionID)
		return nil
	}

	st.lastSentAt = time.Now()
	st.lastNotifiedBW = newFwdBW
	st.pendingAck = true
	st.ackDeadline = st.lastSentAt.Add(e.ackTimeout)
	e.mu.Unlock()

	return e.send(MNTRParams{
		SessionID:           sessionID,
		ForceSend:           force,
		NewGrantedFwdBWKbps: newFwdBW,
		NewGrantedRetBWKbps: newRetBW,
	})
}

// OnMNTA processes an MNTA ack: clears the pending flag, and logs a
// rejection (non-success result) without tearing the session down — only a
// timeout forces closure (ack-not-received is distinct from ack-negative).
func (e *Engine) OnMNTA(sessionID string, resultCode uint32) {
	e.mu.Lock()
	st, ok := e.states[sessionID]
	if ok {
		st.pendingAck = false
	}
	e.mu.Unlock()

	if resultCode == 2001 {
		logger.Debug("MNTA received: success", "session", sessionID)
	} else {
		logger.Warn("MNTA received: failure", "session", sessionID, "result_code", resultCode)
	}
}

// CheckMNTRTimeouts scans every session with a pending ack past its
// deadline and force-closes it, a direct port of magic_cic_check_mntr_timeouts.
func (e *Engine) CheckMNTRTimeouts() {
	now := time.Now()
	var timedOut []string

	e.mu.Lock()
	for sessionID, st := range e.states {
		if st.pendingAck && now.After(st.ackDeadline) {
			timedOut = append(timedOut, sessionID)
			st.pendingAck = false
		}
	}
	e.mu.Unlock()

	for _, sessionID := range timedOut {
		logger.Error("MNTR ack timeout, force-closing session", nil, "session", sessionID)
		if err := e.sessions.Close(sessionID); err != nil {
			logger.Error("failed to force-close timed-out session", err, "session", sessionID)
		}
	}
}

// StartAckTimeoutLoop runs CheckMNTRTimeouts on the given interval until stopCh closes.
func (e *Engine) StartAckTimeoutLoop(interval time.Duration, stopCh <-chan struct{}) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				e.CheckMNTRTimeouts()
			}
		}
	}()
}
