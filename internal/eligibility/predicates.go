// Package eligibility implements the composable filter predicates an
// account candidate must satisfy. internal/store applies the cheap,
// SQL-expressible predicates (purpose-level, region, reuse/short cooldown)
// directly in the candidate query for index-friendliness. The functions
// here state the same rules in Go; internal/engine calls only the ones the
// store does not filter on (encounter budget, login caps, softban). The
// purpose-level, region and reuse/short cooldown functions are not called
// outside this package's tests, and get_availability's dry run uses the
// store's own queries.
package eligibility

import (
	"github.com/domizei385/pogoAccountServer/internal/geo"
	"github.com/domizei385/pogoAccountServer/internal/model"
)

// Purpose constants for the supported request purposes.
const (
	PurposeIV       = "iv"
	PurposeQuest    = "quest"
	PurposeQuestIV  = "quest_iv"
	PurposeMonRaid  = "mon_raid"
	PurposeLevel    = "level"
)

// PurposeLevelBounds returns the level constraint implied by purpose.
// hasMin/hasMax report whether minLevel/maxLevelExclusive apply.
func PurposeLevelBounds(purpose string) (minLevel int, hasMin bool, maxLevelExclusive int, hasMax bool) {
	switch purpose {
	case PurposeIV, PurposeQuest, PurposeQuestIV:
		return 30, true, 0, false
	case PurposeMonRaid:
		return 8, true, 0, false
	case PurposeLevel:
		return 0, false, 30, true
	default:
		return 0, false, 0, false
	}
}

// PurposeLevelOK reports whether level satisfies purpose's constraint.
func PurposeLevelOK(purpose string, level int) bool {
	min, hasMin, max, hasMax := PurposeLevelBounds(purpose)
	if hasMin && level < min {
		return false
	}
	if hasMax && level >= max {
		return false
	}
	return true
}

// RegionOK implements the region predicate: a shared account (nil or empty
// region) always matches; otherwise the account's region must equal the
// requested region. An empty requestedRegion applies no filter.
func RegionOK(accountRegion *string, requestedRegion string) bool {
	if accountRegion == nil || *accountRegion == "" {
		return true
	}
	if requestedRegion == "" {
		return true
	}
	return *accountRegion == requestedRegion
}

// ReuseCooldownOK implements predicate R: the account is acceptable once a
// cooldown-triggering release has aged out, or was never released, or was
// released without a reason.
func ReuseCooldownOK(lastReturned *int64, lastReason *string, now, cooldownSeconds int64) bool {
	if lastReturned == nil {
		return true
	}
	if lastReason == nil {
		return true
	}
	tCD := now - cooldownSeconds
	return *lastReturned < tCD
}

// ShortCooldownOK implements predicate S: unlevelled accounts (level < 30)
// bypass the short cooldown entirely, to maximise levelling throughput.
func ShortCooldownOK(lastUse int64, level int, now, shortCooldownSeconds int64) bool {
	if level < 30 {
		return true
	}
	tSCD := now - shortCooldownSeconds
	return lastUse < tSCD
}

// EncounterBudgetOK implements predicate E: the rolling sum of encounters
// over the configured window must stay strictly below fraction*limit.
// fraction is 0.8 for new picks, 0.9 for sticky reuse.
func EncounterBudgetOK(encounterSum, encounterLimit int, fraction float64) bool {
	threshold := fraction * float64(encounterLimit)
	return float64(encounterSum) < threshold
}

// LoginCapOK implements the per-account and per-device login-rate caps: the
// count of qualifying history rows in the trailing hour must not exceed max.
func LoginCapOK(loginsLastHour, max int) bool {
	return loginsLastHour <= max
}

// DeviceLoginGateOK implements the device-level gate: selection is refused
// once device_logins_last_hour exceeds the configured maximum.
func DeviceLoginGateOK(loginsLastHour, max int) bool {
	return loginsLastHour <= max
}

// SoftbanOK implements the mandatory spatial cooldown: an account with no
// softban record is always acceptable; one with a softban record is only
// acceptable if the caller supplied a scan location and enough time has
// passed for the calculated travel delay.
func SoftbanOK(softbanTime *int64, softbanLocation *model.Location, scanLocation *model.Location, now int64) bool {
	if softbanTime == nil {
		return true
	}
	if scanLocation == nil {
		// Conservative: a softban record with no location to compare
		// against cannot be cleared.
		return false
	}

	var distance float64
	if softbanLocation != nil {
		distance = geo.DistanceMeters(softbanLocation.Lat, softbanLocation.Lng, scanLocation.Lat, scanLocation.Lng)
	}
	cooldown := geo.CooldownSeconds(distance)
	return float64(now) > float64(*softbanTime)+cooldown
}
