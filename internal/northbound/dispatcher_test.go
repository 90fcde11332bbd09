package northbound

import (
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/arinc839/cmcore/internal/config"
	"github.com/arinc839/cmcore/internal/dictionary"
	"github.com/arinc839/cmcore/internal/linkregistry"
	"github.com/arinc839/cmcore/internal/pushengine"
	"github.com/arinc839/cmcore/internal/sessionregistry"
	"github.com/arinc839/cmcore/internal/wire/diameterwire"
)

func testDispatcher(t *testing.T) (*Dispatcher, *sessionregistry.Registry, *linkregistry.Registry) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("topsecret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	cfg := &config.Config{
		Security: config.SecurityConfig{ClientCredentialHash: string(hash)},
		ClientProfiles: []config.ClientProfileConfig{
			{ClientID: "cockpit-video", Enabled: true, MaxBandwidthKbps: 5000},
		},
		Policy: config.PolicyConfig{
			TrafficClasses: []config.TrafficClassDefinition{{Name: "BEST_EFFORT", IsDefault: true}},
			Rulesets: []config.PolicyRuleset{
				{FlightPhase: "CRUISE", Rules: []config.PolicyRule{
					{TrafficClass: "ALL_TRAFFIC", Preferences: []config.PathPreference{{LinkName: "vdl2-left", Ranking: 1}}},
				}},
			},
		},
	}

	sessions := sessionregistry.NewRegistry(8)
	links := linkregistry.NewRegistry(4, 30*time.Second, 5*time.Second)
	links.Register("vdl2-left", dictionary.LinkTypeVDL2, 32, 2000, 0)
	links.MarkUp("vdl2-left", linkregistry.Parameters{})

	push := pushengine.NewEngine(sessions, func(pushengine.MNTRParams) error { return nil }, 0, 10, time.Second)

	return NewDispatcher(cfg, sessions, links, push), sessions, links
}

func TestHandleMCARSuccess(t *testing.T) {
	d, sessions, _ := testDispatcher(t)

	req := diameterwire.Message{
		Header: diameterwire.Header{Flags: 0x80, CommandCode: commandNumbers[dictionary.CmdMCAR]},
		AVPs: []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPUserName, "cockpit-video"),
			diameterwire.StringAVP(dictionary.AVPClientPassword, "topsecret"),
			diameterwire.StringAVP(dictionary.AVPSessionID, "sess-1"),
			diameterwire.StringAVP(dictionary.AVPOriginRealm, "aircraft.example"),
		},
	}

	answer := d.Handle(dictionary.CmdMCAR, req)
	rc, _ := answer.FindUint32(dictionary.AVPResultCode)
	if rc != dictionary.ResultSuccess {
		t.Fatalf("expected success result code, got %d", rc)
	}

	sess, ok := sessions.Get("sess-1")
	if !ok || sess.State != sessionregistry.StateActive {
		t.Fatalf("expected active session after MCAR, got %+v ok=%v", sess, ok)
	}
}

func TestHandleMCARBadCredentials(t *testing.T) {
	d, _, _ := testDispatcher(t)
	req := diameterwire.Message{
		Header: diameterwire.Header{Flags: 0x80, CommandCode: commandNumbers[dictionary.CmdMCAR]},
		AVPs: []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPUserName, "cockpit-video"),
			diameterwire.StringAVP(dictionary.AVPClientPassword, "wrong"),
			diameterwire.StringAVP(dictionary.AVPSessionID, "sess-2"),
		},
	}
	answer := d.Handle(dictionary.CmdMCAR, req)
	rc, _ := answer.FindUint32(dictionary.AVPResultCode)
	if rc != dictionary.ResultInvalidCredentials {
		t.Fatalf("expected invalid credentials result, got %d", rc)
	}
}

func TestHandleMCCRSelectsLink(t *testing.T) {
	d, sessions, _ := testDispatcher(t)
	sessions.Create("sess-3", "cockpit-video")
	sessions.Authenticate("sess-3", "realm", "profile")
	sessions.Transition("sess-3", sessionregistry.StateActive)

	req := diameterwire.Message{
		Header: diameterwire.Header{Flags: 0x80, CommandCode: commandNumbers[dictionary.CmdMCCR]},
		AVPs: []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPSessionID, "sess-3"),
			diameterwire.StringAVP(dictionary.AVPFlightPhase, "CRUISE"),
			diameterwire.Uint32AVP(dictionary.AVPRequestedBandwidth, 10),
		},
	}
	answer := d.Handle(dictionary.CmdMCCR, req)
	rc, _ := answer.FindUint32(dictionary.AVPResultCode)
	if rc != dictionary.ResultSuccess {
		t.Fatalf("expected success, got result %d", rc)
	}
	dlm, _ := answer.FindString(dictionary.AVPDLMName)
	if dlm != "vdl2-left" {
		t.Fatalf("expected vdl2-left selected, got %s", dlm)
	}

	sess, _ := sessions.Get("sess-3")
	if sess.CurrentLink != "vdl2-left" {
		t.Fatalf("expected session bound to vdl2-left, got %s", sess.CurrentLink)
	}
}

func TestHandleMCCRUnknownSessionRejected(t *testing.T) {
	d, _, _ := testDispatcher(t)
	req := diameterwire.Message{
		Header: diameterwire.Header{Flags: 0x80, CommandCode: commandNumbers[dictionary.CmdMCCR]},
		AVPs:   []diameterwire.AVP{diameterwire.StringAVP(dictionary.AVPSessionID, "ghost")},
	}
	answer := d.Handle(dictionary.CmdMCCR, req)
	rc, _ := answer.FindUint32(dictionary.AVPResultCode)
	if rc != dictionary.ResultAuthFailed {
		t.Fatalf("expected auth-failed result for unknown session, got %d", rc)
	}
}

func TestHandleMSCRSetsSubscriptionLevel(t *testing.T) {
	d, sessions, _ := testDispatcher(t)
	sessions.Create("sess-4", "cockpit-video")

	req := diameterwire.Message{
		Header: diameterwire.Header{Flags: 0x80, CommandCode: commandNumbers[dictionary.CmdMSCR]},
		AVPs: []diameterwire.AVP{
			diameterwire.StringAVP(dictionary.AVPSessionID, "sess-4"),
			diameterwire.Uint32AVP(dictionary.AVPSubscriptionLevel, 3),
		},
	}
	d.Handle(dictionary.CmdMSCR, req)
	sess, _ := sessions.Get("sess-4")
	if sess.SubscriptionLevel != 3 {
		t.Fatalf("expected subscription level 3, got %d", sess.SubscriptionLevel)
	}
}

func TestHandleUnknownCommand(t *testing.T) {
	d, _, _ := testDispatcher(t)
	answer := d.Handle("ZZZZ", diameterwire.Message{})
	rc, _ := answer.FindUint32(dictionary.AVPResultCode)
	if rc != dictionary.ResultInvalidRequest {
		t.Fatalf("expected invalid-request result for unknown command, got %d", rc)
	}
}
