package policy

import "github.com/arinc839/cmcore/internal/config"

// metersToFeet is the conversion magic_policy_check_coverage applies before
// comparing against a coverage box's altitude bounds (1m ~ 3.28084ft).
const metersToFeet = 3.28084

// CheckCoverage reports whether an aircraft position falls inside a link's
// configured coverage box. A disabled box, or ADIF running in degraded
// mode (no reliable position available), always passes — the same
// fail-open behavior as magic_policy_check_coverage's NULL/disabled cases.
func CheckCoverage(box config.CoverageBox, adifDegraded bool, lat, lon, altMeters float64) bool {
	if !box.Enabled || adifDegraded {
		return true
	}
	if lat < box.MinLat || lat > box.MaxLat {
		return false
	}
	if lon < box.MinLon || lon > box.MaxLon {
		return false
	}
	altFeet := altMeters * metersToFeet
	if altFeet < box.MinAltFeet || altFeet > box.MaxAltFeet {
		return false
	}
	return true
}
