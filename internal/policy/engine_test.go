package policy

import (
	"testing"
	"time"

	"github.com/arinc839/cmcore/internal/config"
	"github.com/arinc839/cmcore/internal/dictionary"
)

func testConfig() *config.Config {
	return &config.Config{
		ClientProfiles: []config.ClientProfileConfig{
			{ClientID: "cockpit-video", Enabled: true, MaxBandwidthKbps: 5000},
			{ClientID: "disabled-client", Enabled: false, MaxBandwidthKbps: 5000},
			{ClientID: "picky-client", Enabled: true, MaxBandwidthKbps: 5000, PreferredLink: "vdl2-left", AllowedLinks: []string{"vdl2-left", "ku-sat-0"}},
		},
		Policy: config.PolicyConfig{
			MinDwellTimeSec:      10,
			HysteresisPercentage: 20,
			TrafficClasses: []config.TrafficClassDefinition{
				{Name: "VIDEO", MatchQoSLevel: []int{5}},
				{Name: "BEST_EFFORT", IsDefault: true},
			},
			Rulesets: []config.PolicyRuleset{
				{
					FlightPhase: "CRUISE",
					Rules: []config.PolicyRule{
						{
							TrafficClass: "VIDEO",
							Preferences: []config.PathPreference{
								{LinkName: "ku-sat-0", Ranking: 1},
								{LinkName: "vdl2-left", Ranking: 2},
							},
						},
						{
							TrafficClass: "ALL_TRAFFIC",
							Preferences: []config.PathPreference{
								{LinkName: "vdl2-left", Ranking: 1},
							},
						},
					},
				},
			},
		},
	}
}

func testLinks() map[string]CandidateLink {
	return map[string]CandidateLink{
		"ku-sat-0": {LinkName: "ku-sat-0", LinkType: dictionary.LinkTypeSatcomKu, MaxBandwidthKbps: 4096, TypicalLatencyMs: 600, IsActive: true},
		"vdl2-left": {LinkName: "vdl2-left", LinkType: dictionary.LinkTypeVDL2, MaxBandwidthKbps: 32, TypicalLatencyMs: 2000, IsActive: true},
	}
}

func source(links map[string]CandidateLink) LinkSource {
	return func(name string) (CandidateLink, bool) {
		l, ok := links[name]
		return l, ok
	}
}

func TestSelectLinkPicksHighestRankedActiveLink(t *testing.T) {
	cfg := testConfig()
	dec := SelectLink(cfg, Request{
		ClientID:           "cockpit-video",
		FlightPhase:        "CRUISE",
		QoSLevel:           5,
		RequestedFwdBWKbps: 1000,
	}, source(testLinks()))

	if !dec.Success {
		t.Fatalf("expected success, got reason %q", dec.Reason)
	}
	if dec.SelectedLinkName != "ku-sat-0" {
		t.Fatalf("expected ku-sat-0 (ranking 1), got %s (score %d)", dec.SelectedLinkName, dec.Score)
	}
	if dec.MatchedTrafficClass != "VIDEO" {
		t.Fatalf("expected VIDEO traffic class, got %s", dec.MatchedTrafficClass)
	}
}

func TestSelectLinkRejectsUnknownClient(t *testing.T) {
	cfg := testConfig()
	dec := SelectLink(cfg, Request{ClientID: "ghost", FlightPhase: "CRUISE"}, source(testLinks()))
	if dec.Success {
		t.Fatal("expected failure for unknown client")
	}
}

func TestSelectLinkRejectsDisabledClient(t *testing.T) {
	cfg := testConfig()
	dec := SelectLink(cfg, Request{ClientID: "disabled-client", FlightPhase: "CRUISE"}, source(testLinks()))
	if dec.Success {
		t.Fatal("expected failure for disabled client")
	}
}

func TestSelectLinkRejectsOverBandwidthRequest(t *testing.T) {
	cfg := testConfig()
	dec := SelectLink(cfg, Request{ClientID: "cockpit-video", FlightPhase: "CRUISE", RequestedFwdBWKbps: 99999}, source(testLinks()))
	if dec.Success {
		t.Fatal("expected failure when requested bandwidth exceeds client limit")
	}
}

func TestSelectLinkDefaultClassFallsBackToAllTrafficRule(t *testing.T) {
	cfg := testConfig()
	dec := SelectLink(cfg, Request{
		ClientID:           "picky-client",
		FlightPhase:        "CRUISE",
		RequestedFwdBWKbps: 10,
	}, source(testLinks()))

	if !dec.Success {
		t.Fatalf("expected success, got %q", dec.Reason)
	}
	if dec.SelectedLinkName != "vdl2-left" {
		t.Fatalf("expected vdl2-left, the only ALL_TRAFFIC candidate, got %s", dec.SelectedLinkName)
	}
}

func TestSelectLinkFallsBackToFirstRulesetForUnknownPhase(t *testing.T) {
	cfg := testConfig()
	dec := SelectLink(cfg, Request{
		ClientID:           "cockpit-video",
		FlightPhase:        "UNKNOWN_PHASE",
		QoSLevel:           5,
		RequestedFwdBWKbps: 1000,
	}, source(testLinks()))
	if !dec.Success {
		t.Fatalf("expected fallback ruleset to still produce a decision, got %q", dec.Reason)
	}
}

func TestClassifyTrafficWildcardFallback(t *testing.T) {
	defs := []config.TrafficClassDefinition{
		{Name: "VIDEO", MatchPatterns: []string{"*video*"}},
		{Name: "BEST_EFFORT", IsDefault: true},
	}
	if got := ClassifyTraffic(defs, 0, 0, "cockpit-video-uplink"); got != "VIDEO" {
		t.Fatalf("expected VIDEO via pattern match, got %s", got)
	}
	if got := ClassifyTraffic(defs, 0, 0, "telemetry"); got != "BEST_EFFORT" {
		t.Fatalf("expected default fallback, got %s", got)
	}
}

func TestCanSwitchLinkHysteresis(t *testing.T) {
	cases := []struct {
		name       string
		current    string
		next       string
		lastSwitch time.Time
		currentBW  uint32
		newBW      uint32
		wantAllow  bool
	}{
		{"first assignment", "", "vdl2-left", time.Time{}, 0, 0, true},
		{"same link", "vdl2-left", "vdl2-left", time.Time{}, 50, 50, false},
		{"dwell time not met", "vdl2-left", "ku-sat-0", time.Now(), 50, 90, false},
		{"hysteresis not met", "vdl2-left", "ku-sat-0", time.Now().Add(-time.Hour), 50, 55, false},
		{"hysteresis met", "vdl2-left", "ku-sat-0", time.Now().Add(-time.Hour), 50, 70, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dec := CanSwitchLink(tc.current, tc.next, tc.lastSwitch, 10*time.Second, tc.currentBW, tc.newBW, 20)
			if dec.Allow != tc.wantAllow {
				t.Fatalf("CanSwitchLink(%s -> %s): got allow=%v reason=%q, want allow=%v", tc.current, tc.next, dec.Allow, dec.Reason, tc.wantAllow)
			}
		})
	}
}

func TestCheckCoverage(t *testing.T) {
	box := config.CoverageBox{Enabled: true, MinLat: 30, MaxLat: 50, MinLon: -10, MaxLon: 10, MinAltFeet: 0, MaxAltFeet: 40000}
	if !CheckCoverage(box, false, 40, 0, 10000) {
		t.Fatal("expected position inside box to pass")
	}
	if CheckCoverage(box, false, 60, 0, 10000) {
		t.Fatal("expected out-of-range latitude to fail")
	}
	if !CheckCoverage(box, true, 60, 0, 10000) {
		t.Fatal("ADIF degraded mode should fail open")
	}
	disabled := config.CoverageBox{Enabled: false}
	if !CheckCoverage(disabled, false, 999, 999, 999) {
		t.Fatal("disabled coverage box should always pass")
	}
}
