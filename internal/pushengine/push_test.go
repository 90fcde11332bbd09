package pushengine

import (
	"fmt"
	"testing"
	"time"

	"github.com/arinc839/cmcore/internal/sessionregistry"
)

func TestShouldSendMNTR(t *testing.T) {
	cases := []struct {
		name     string
		lastBW   uint32
		newBW    uint32
		elapsed  float64
		minInt   float64
		thresh   float64
		force    bool
		wantSend bool
	}{
		{"force bypasses everything", 100, 101, 0, 10, 50, true, true},
		{"within min interval suppressed", 100, 200, 1, 10, 10, false, false},
		{"below change threshold suppressed", 1000, 1050, 100, 10, 10, false, false},
		{"above change threshold sends", 1000, 1500, 100, 10, 10, false, true},
		{"qualitative zero transition always sends", 0, 500, 0, 10, 10, false, true},
		{"down transition always sends", 500, 0, 100, 10, 50, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ShouldSendMNTR(tc.lastBW, tc.newBW, tc.elapsed, tc.minInt, tc.thresh, tc.force)
			if got != tc.wantSend {
				t.Fatalf("ShouldSendMNTR(%+v): got %v want %v", tc, got, tc.wantSend)
			}
		})
	}
}

func activeSession(t *testing.T, sessions *sessionregistry.Registry, id, link string) {
	t.Helper()
	if _, err := sessions.Create(id, "client-"+id); err != nil {
		t.Fatalf("Create: %v", err)
	}
	sessions.Authenticate(id, "realm", "profile")
	sessions.Transition(id, sessionregistry.StateActive)
	sessions.BindLink(id, link, 1000, 200)
}

func TestNotifyBandwidthChangeTracksAckState(t *testing.T) {
	sessions := sessionregistry.NewRegistry(4)
	activeSession(t, sessions, "sess-1", "vdl2-left")

	var sent []MNTRParams
	send := func(p MNTRParams) error {
		sent = append(sent, p)
		return nil
	}
	e := NewEngine(sessions, send, 0, 10, 5*time.Second)

	if err := e.NotifyBandwidthChange("sess-1", 2000, 400, true); err != nil {
		t.Fatalf("NotifyBandwidthChange: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 MNTR sent, got %d", len(sent))
	}

	e.OnMNTA("sess-1", 2001)
	e.mu.Lock()
	pending := e.states["sess-1"].pendingAck
	e.mu.Unlock()
	if pending {
		t.Fatal("expected pendingAck cleared after successful MNTA")
	}
}

func TestCheckMNTRTimeoutsForceClosesSession(t *testing.T) {
	sessions := sessionregistry.NewRegistry(4)
	activeSession(t, sessions, "sess-1", "ku-sat-0")

	send := func(p MNTRParams) error { return nil }
	e := NewEngine(sessions, send, 0, 10, 10*time.Millisecond)

	if err := e.NotifyBandwidthChange("sess-1", 500, 100, true); err != nil {
		t.Fatalf("NotifyBandwidthChange: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	e.CheckMNTRTimeouts()

	if _, ok := sessions.Get("sess-1"); ok {
		t.Fatal("expected session to be force-closed after MNTR ack timeout")
	}
}

func TestBroadcastMSCRGatesBySubscriptionLevel(t *testing.T) {
	sessions := sessionregistry.NewRegistry(4)
	activeSession(t, sessions, "sess-dlm", "vdl2-left")
	activeSession(t, sessions, "sess-magic", "ku-sat-0")
	sessions.SetSubscriptionLevel("sess-dlm", 2)
	sessions.SetSubscriptionLevel("sess-magic", 1)

	send := func(p MNTRParams) error { return nil }
	e := NewEngine(sessions, send, 0, 10, time.Second)

	var recipients []string
	mscrSend := func(sessionID string, p MSCRParams) error {
		recipients = append(recipients, sessionID)
		return nil
	}

	sent := e.BroadcastMSCR(mscrSend, MSCRParams{Type: StatusChangeDLM, DLMName: "vdl2-left"})
	if sent != 1 || recipients[0] != "sess-dlm" {
		t.Fatalf("expected only DLM-subscribed session to receive DLM status change, got %v", recipients)
	}

	recipients = nil
	sent = e.BroadcastMSCR(mscrSend, MSCRParams{Type: StatusChangeClientJoin})
	if sent != 1 || recipients[0] != "sess-magic" {
		t.Fatalf("expected only MAGIC-subscribed session to receive client-join change, got %v", recipients)
	}
}

func TestMSCRSendFailureDropsSubscription(t *testing.T) {
	sessions := sessionregistry.NewRegistry(4)
	activeSession(t, sessions, "sess-1", "vdl2-left")
	sessions.SetSubscriptionLevel("sess-1", 7)

	send := func(p MNTRParams) error { return nil }
	e := NewEngine(sessions, send, 0, 10, time.Second)

	mscrSend := func(sessionID string, p MSCRParams) error {
		return fmt.Errorf("transport closed")
	}
	e.BroadcastMSCR(mscrSend, MSCRParams{Type: StatusChangeClientJoin})

	sess, _ := sessions.Get("sess-1")
	if sess.SubscriptionLevel != 0 {
		t.Fatalf("expected subscription dropped after send failure, got level %d", sess.SubscriptionLevel)
	}
}

func TestOnLinkStatusChangeNotifiesBoundSessions(t *testing.T) {
	sessions := sessionregistry.NewRegistry(4)
	activeSession(t, sessions, "sess-1", "vdl2-left")

	var sent []MNTRParams
	send := func(p MNTRParams) error {
		sent = append(sent, p)
		return nil
	}
	e := NewEngine(sessions, send, 0, 10, time.Second)

	e.OnLinkStatusChange("vdl2-left", false, 0, 0)
	if len(sent) != 1 || sent[0].NewGrantedFwdBWKbps != 0 {
		t.Fatalf("expected link-down MNTR with zero bandwidth, got %+v", sent)
	}

	sess, _ := sessions.Get("sess-1")
	if sess.GrantedBandwidthKbps != 0 {
		t.Fatalf("expected session bandwidth zeroed on link down, got %d", sess.GrantedBandwidthKbps)
	}
}
