package coding

import (
	"github.com/Masterminds/semver/v3"
)

// LatestRulesetVersion returns whichever of candidates parses as the
// highest semver version, so a mapping/rule table with several
// ruleset_version snapshots resolves deterministically to the newest one
// instead of whatever row a query happens to return first. Candidates
// that don't parse as semver (including the empty string used by rows
// written before this versioning existed) sort below every valid
// version; if none parse, the first candidate is returned unchanged so
// callers never lose a row just because its version tag is freeform.
func LatestRulesetVersion(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}

	best := candidates[0]
	var bestVer *semver.Version
	for _, c := range candidates {
		v, err := semver.NewVersion(c)
		if err != nil {
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			bestVer = v
			best = c
		}
	}
	return best
}
