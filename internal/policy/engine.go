package policy

import (
	"fmt"

	"github.com/arinc839/cmcore/internal/config"
	"github.com/arinc839/cmcore/internal/dictionary"
)

// CandidateLink is everything the scoring function needs about one link
// that a preference entry could point at — the merge of its static catalog
// entry (config.DatalinkConfig) and its live registry state.
type CandidateLink struct {
	LinkName         string
	LinkType         dictionary.LinkType
	MaxBandwidthKbps uint32
	TypicalLatencyMs uint32
	IsActive         bool
	ActiveBearers    int
	Coverage         config.CoverageBox
}

// Request is one link-selection decision request (§4.3).
type Request struct {
	ClientID         string
	FlightPhase      string
	PriorityClass    int
	QoSLevel         int
	ProfileName      string
	RequestedFwdBWKbps uint32
	RequestedRetBWKbps uint32
	HasADIFData      bool
	ADIFDegraded     bool
	AircraftLat      float64
	AircraftLon      float64
	AircraftAltM     float64
	OnGround         bool
}

// Decision is the outcome of SelectLink.
type Decision struct {
	Success            bool
	SelectedLinkName   string
	MatchedTrafficClass string
	GrantedFwdBWKbps   uint32
	GrantedRetBWKbps   uint32
	Reason             string
	Score              int
}

// LinkSource supplies the live registry state SelectLink needs without this
// package importing linkregistry directly, keeping the policy engine a pure
// function of its inputs (§4.3: "the policy engine holds no state of its
// own").
type LinkSource func(linkName string) (CandidateLink, bool)

// SelectLink runs the five-step decision magic_policy_select_path performs:
// client lookup/admission check, ruleset resolution by flight phase,
// dynamic traffic classification + rule resolution, per-candidate scoring
// with load balancing and preferred-link bonus, and finally picking the
// highest-scoring surviving candidate.
func SelectLink(cfg *config.Config, req Request, links LinkSource) Decision {
	client, ok := cfg.FindClientProfile(req.ClientID)
	if !ok {
		return Decision{Reason: fmt.Sprintf("client %q not found in configuration", req.ClientID)}
	}
	if !client.Enabled {
		return Decision{Reason: fmt.Sprintf("client %q profile is disabled", req.ClientID)}
	}

	maxClientBW := client.MaxBandwidthKbps
	if maxClientBW == 0 {
		maxClientBW = 10000
	}
	if req.RequestedFwdBWKbps > maxClientBW {
		return Decision{Reason: fmt.Sprintf("requested bandwidth (%d kbps) exceeds client limit (%d kbps)", req.RequestedFwdBWKbps, maxClientBW)}
	}

	ruleset := cfg.RulesetForPhase(req.FlightPhase)

	trafficClass := ClassifyTraffic(cfg.Policy.TrafficClasses, req.PriorityClass, req.QoSLevel, req.ProfileName)
	rule, ok := RuleForTrafficClass(ruleset, trafficClass, req.PriorityClass)
	if !ok {
		return Decision{MatchedTrafficClass: trafficClass, Reason: fmt.Sprintf("no policy rule for traffic class %q", trafficClass)}
	}

	bestScore := -999999
	var bestLink CandidateLink
	var bestPref config.PathPreference
	found := false

	for _, pref := range rule.Preferences {
		if pref.Action == "PROHIBIT" {
			continue
		}
		if !clientAllowsLink(client, pref.LinkName) {
			continue
		}
		cand, ok := links(pref.LinkName)
		if !ok || !cand.IsActive {
			continue
		}
		if req.HasADIFData && !req.ADIFDegraded && cand.Coverage.Enabled {
			if req.AircraftLat != 0 || req.AircraftLon != 0 {
				if !CheckCoverage(cand.Coverage, req.ADIFDegraded, req.AircraftLat, req.AircraftLon, req.AircraftAltM) {
					continue
				}
			}
		}
		if req.HasADIFData {
			if pref.OnGroundOnly && !req.OnGround {
				continue
			}
			if pref.AirborneOnly && req.OnGround {
				continue
			}
		}

		score := calculateLinkScore(cand, pref, req.RequestedFwdBWKbps)
		if score == -999999 {
			continue
		}
		score -= cand.ActiveBearers * 600
		if client.PreferredLink != "" && client.PreferredLink == pref.LinkName {
			score += 500
		}

		if score > bestScore {
			bestScore = score
			bestLink = cand
			bestPref = pref
			found = true
		}
	}

	if !found {
		return Decision{MatchedTrafficClass: trafficClass, Reason: "no eligible link survived scoring"}
	}

	return Decision{
		Success:            true,
		SelectedLinkName:   bestLink.LinkName,
		MatchedTrafficClass: trafficClass,
		GrantedFwdBWKbps:   req.RequestedFwdBWKbps,
		GrantedRetBWKbps:   req.RequestedRetBWKbps,
		Reason:             fmt.Sprintf("selected %s (ranking %d, score %d)", bestLink.LinkName, bestPref.Ranking, bestScore),
		Score:              bestScore,
	}
}

func clientAllowsLink(client config.ClientProfileConfig, linkName string) bool {
	if len(client.AllowedLinks) == 0 {
		return true
	}
	for _, l := range client.AllowedLinks {
		if l == linkName {
			return true
		}
	}
	return false
}

// calculateLinkScore is a direct port of calculate_link_score: hard latency
// rejection, ranking weight, bandwidth-headroom bonus, latency bonus/penalty,
// and link-type stability bonus.
func calculateLinkScore(dlm CandidateLink, pref config.PathPreference, requestedBW uint32) int {
	if pref.MaxLatencyMs > 0 && dlm.TypicalLatencyMs > pref.MaxLatencyMs {
		return -999999
	}

	score := (10 - pref.Ranking) * 1000

	if dlm.MaxBandwidthKbps >= requestedBW {
		headroom := dlm.MaxBandwidthKbps - requestedBW
		score += int(headroom / 100)
	} else {
		score -= 5000
	}

	if dlm.TypicalLatencyMs < 50 {
		score += 100
	} else if dlm.TypicalLatencyMs > 500 {
		score -= 50
	}

	switch {
	case dlm.LinkType.IsSatellite():
		score += 5
	case dlm.LinkType.IsCellular():
		score += 3
	case dlm.LinkType.IsHybrid():
		score += 4
	}

	return score
}
