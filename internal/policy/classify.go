// Package policy is the Policy Engine: a pure function from (client profile,
// flight phase, traffic request, link registry snapshot) to a selected
// link. It is grounded directly on original_source/app_magic/magic_policy.c
// — traffic classification, geographic coverage, link-switch hysteresis,
// and link scoring are each a literal port of that file's corresponding
// function, expressed without any global/static state.
package policy

import (
	"strconv"
	"strings"

	"github.com/arinc839/cmcore/internal/config"
)

// ClassifyTraffic resolves a client's traffic class from its priority
// class, QoS level, and profile name, in the order magic_policy_classify_traffic
// checks them against each definition: priority class, then QoS level,
// then profile-name wildcard, before moving to the next definition. The
// definition flagged is_default is remembered but only returned if nothing
// else matched; "BEST_EFFORT" is the final fallback if no definitions exist.
func ClassifyTraffic(defs []config.TrafficClassDefinition, priorityClass, qosLevel int, profileName string) string {
	const defaultClass = "BEST_EFFORT"
	matchedDefault := defaultClass

	for _, def := range defs {
		if def.IsDefault {
			matchedDefault = def.Name
			continue
		}
		for _, pc := range def.MatchPriorityClass {
			if pc == priorityClass {
				return def.Name
			}
		}
		for _, ql := range def.MatchQoSLevel {
			if ql == qosLevel {
				return def.Name
			}
		}
		if profileName != "" {
			for _, pattern := range def.MatchPatterns {
				if wildcardMatch(pattern, profileName) {
					return def.Name
				}
			}
		}
	}
	return matchedDefault
}

// wildcardMatch is a case-insensitive glob over '*' (any run) and '?' (any
// one character), a direct port of magic_policy_wildcard_match — it exists
// so traffic-class patterns don't depend on filepath.Match's shell-glob
// semantics (which treat '/' specially, unwanted here).
func wildcardMatch(pattern, str string) bool {
	if pattern == "" && str == "" {
		return true
	}
	return wildcardMatchRunes([]rune(strings.ToLower(pattern)), []rune(strings.ToLower(str)))
}

func wildcardMatchRunes(pattern, str []rune) bool {
	for len(pattern) > 0 && len(str) > 0 {
		switch pattern[0] {
		case '*':
			pattern = pattern[1:]
			if len(pattern) == 0 {
				return true
			}
			for i := 0; i <= len(str); i++ {
				if wildcardMatchRunes(pattern, str[i:]) {
					return true
				}
			}
			return false
		case '?':
			pattern = pattern[1:]
			str = str[1:]
		default:
			if pattern[0] != str[0] {
				return false
			}
			pattern = pattern[1:]
			str = str[1:]
		}
	}
	for len(pattern) > 0 && pattern[0] == '*' {
		pattern = pattern[1:]
	}
	return len(pattern) == 0 && len(str) == 0
}

// RuleForTrafficClass resolves a rule within a ruleset: exact traffic-class
// match, then the "ALL_TRAFFIC" wildcard, then the "PRIORITY_<n>" synonym
// (tried only when priorityClass > 0).
func RuleForTrafficClass(ruleset config.PolicyRuleset, trafficClass string, priorityClass int) (config.PolicyRule, bool) {
	for _, rule := range ruleset.Rules {
		if rule.TrafficClass == trafficClass {
			return rule, true
		}
	}
	for _, rule := range ruleset.Rules {
		if rule.TrafficClass == "ALL_TRAFFIC" {
			return rule, true
		}
	}
	if priorityClass > 0 {
		synonym := prioritySynonym(priorityClass)
		for _, rule := range ruleset.Rules {
			if rule.TrafficClass == synonym {
				return rule, true
			}
		}
	}
	return config.PolicyRule{}, false
}

func prioritySynonym(priorityClass int) string {
	return "PRIORITY_" + strconv.Itoa(priorityClass)
}
