package pushengine

import (
	"github.com/arinc839/cmcore/internal/logger"
)

// StatusChangeType distinguishes the two MSCR broadcast triggers (§4.6).
type StatusChangeType int

const (
	StatusChangeClientJoin StatusChangeType = iota
	StatusChangeClientLeave
	StatusChangeDLM
)

// MSCRParams carries the fields of an outbound MSCR status broadcast.
type MSCRParams struct {
	Type             StatusChangeType
	RegisteredClients int
	DLMName          string
	DLMAvailable     bool
}

// MSCRSender delivers an MSCR over the north-bound transport to one
// session. Returning an error (or a non-success MSCA result, reported via
// OnMSCA) causes the subscription to be dropped, per mscr_answer_callback.
type MSCRSender func(sessionID string, params MSCRParams) error

const (
	subscriptionNeedDLMBit = 2 // level >= 2 implies DLM-status interest
)

func needMagic(level int) bool {
	return level == 1 || level == 3 || level == 7
}

func needDLM(level int) bool {
	return level >= subscriptionNeedDLMBit
}

// BroadcastMSCR fans an MSCR out to every subscribed session whose
// subscription level matches the status-change type, a port of
// magic_cic_broadcast_mscr's per-session need_magic/need_dlm gating.
func (e *Engine) BroadcastMSCR(send MSCRSender, params MSCRParams) int {
	sent := 0
	for _, sess := range e.sessions.All() {
		if sess.SubscriptionLevel == 0 {
			continue
		}
		shouldSend := needDLM(sess.SubscriptionLevel)
		if params.Type == StatusChangeClientJoin || params.Type == StatusChangeClientLeave {
			shouldSend = needMagic(sess.SubscriptionLevel)
		}
		if !shouldSend {
			continue
		}
		if err := send(sess.SessionID, params); err != nil {
			logger.Warn("MSCR send failed, dropping subscription", "session", sess.SessionID, "error", err.Error())
			e.OnMSCA(sess.SessionID, 0)
			continue
		}
		sent++
	}
	return sent
}

// OnMSCA processes an MSCA answer: a send failure or any non-success result
// code (anything but 2001) removes the session's subscription, mirroring
// mscr_answer_callback.
func (e *Engine) OnMSCA(sessionID string, resultCode uint32) {
	if resultCode == 2001 {
		return
	}
	if err := e.sessions.SetSubscriptionLevel(sessionID, 0); err != nil {
		logger.Warn("failed to clear subscription after MSCA failure", "session", sessionID, "error", err.Error())
	}
}

// OnLinkStatusChange is the force-send MNTR fan-out triggered by a link
// transitioning up or down, a port of magic_cic_on_link_status_change: the
// session's granted bandwidth is updated first (set to restoredFwdBW and
// restoredRetBW on UP, zeroed on DOWN), then the MNTR is sent — state
// mutation always precedes the notification it describes. The MNTR carries
// the new granted rates only: no MAGIC-Status-Code (LINK_ERROR or SUCCESS)
// is set on it, and the session's state is left unchanged (it is not moved
// to SUSPENDED).
func (e *Engine) OnLinkStatusChange(linkName string, isUp bool, restoredFwdBW, restoredRetBW uint32) {
	affected := e.sessions.ByLink(linkName)
	for _, sess := range affected {
		if isUp {
			if err := e.sessions.BindLink(sess.SessionID, linkName, restoredFwdBW, restoredRetBW); err != nil {
				logger.Warn("failed to restore session bandwidth on link up", "session", sess.SessionID, "error", err.Error())
				continue
			}
			if err := e.NotifyBandwidthChange(sess.SessionID, restoredFwdBW, restoredRetBW, true); err != nil {
				logger.Warn("failed to send link-recovery MNTR", "session", sess.SessionID, "error", err.Error())
			}
		} else {
			if err := e.sessions.BindLink(sess.SessionID, linkName, 0, 0); err != nil {
				logger.Warn("failed to zero session bandwidth on link down", "session", sess.SessionID, "error", err.Error())
				continue
			}
			if err := e.NotifyBandwidthChange(sess.SessionID, 0, 0, true); err != nil {
				logger.Warn("failed to send link-down MNTR", "session", sess.SessionID, "error", err.Error())
			}
		}
	}
}
