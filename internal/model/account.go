// Package model holds the two persistent entities the account broker
// manages plus their wire-facing Location type.
package model

// Account is a credential row, keyed by Username.
type Account struct {
	Username        string
	Password        string
	Level           int
	Region          *string // nil = shared pool
	InUseBy         *string // nil = free
	LastUse         int64   // epoch seconds
	LastReturned    *int64  // epoch seconds, nil if never returned
	LastReason      *string
	LastBurned      *int64 // epoch seconds, nil if never burned
	LastUpdated     int64  // epoch seconds
	Purpose         *string
	SoftbanTime     *int64 // epoch seconds
	SoftbanLocation *Location
}

// Bound reports whether the account is currently held by a device.
func (a *Account) Bound() bool {
	return a.InUseBy != nil
}

// IsBurnt reports true iff cooldownTimestamp < Level — an epoch-seconds
// timestamp compared against an integer level column. cooldownTimestamp is
// T_cd = now - cooldown_seconds. This reads as an odd comparison, kept
// verbatim rather than silently corrected.
func (a *Account) IsBurnt(cooldownTimestamp int64) bool {
	return cooldownTimestamp < int64(a.Level)
}

// RemainingEncounters returns max(0, encounterLimit - encounters).
func RemainingEncounters(encounterLimit, encounters int) int {
	remaining := encounterLimit - encounters
	if remaining < 0 {
		return 0
	}
	return remaining
}
