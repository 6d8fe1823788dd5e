package store

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultBreakingChanges returns the curated list of cache format breaks.
// It is empty: every released cache format is still readable, so caches
// survive upgrades. Add an entry when a release changes the segment or index
// layout, e.g. "0.2.x": "0.3.0" to drop all 0.2 caches from 0.3.0 on.
func DefaultBreakingChanges() map[string]string {
	return map[string]string{}
}

// Compatible reports whether an index written by cached can be used by
// running under rules, which map a cached-version pattern to the minimum
// running version that rejects it.
//
// A rule only applies when running >= its minimum. A pattern ending in ".x"
// rejects every cached version with the same major.minor; any other pattern
// rejects cached versions <= it. Identical versions are always compatible,
// and versions that are not semantic versions never match a rule.
func Compatible(cached, running string, rules map[string]string) bool {
	if cached == running {
		return true
	}
	cur, err := semver.NewVersion(running)
	if err != nil {
		return true
	}
	cv, err := semver.NewVersion(cached)
	if err != nil {
		return true
	}

	for pattern, minimum := range rules {
		minVer, err := semver.NewVersion(minimum)
		if err != nil || cur.LessThan(minVer) {
			continue
		}
		if prefix, ok := strings.CutSuffix(pattern, ".x"); ok {
			pv, err := semver.NewVersion(prefix)
			if err == nil && cv.Major() == pv.Major() && cv.Minor() == pv.Minor() {
				return false
			}
			continue
		}
		breaking, err := semver.NewVersion(pattern)
		if err == nil && !cv.GreaterThan(breaking) {
			return false
		}
	}
	return true
}
