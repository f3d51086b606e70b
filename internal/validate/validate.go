// Package validate enforces the closed vocabularies for request-supplied
// purpose and reason strings with a simple allow-list/deny-list checker and
// counters, rather than a regex or injection-detection layer — the only
// untrusted strings here are short enum-like fields.
package validate

import (
	"sync"
)

// Config governs which purpose/reason values are accepted.
type Config struct {
	AllowedPurposes    []string
	AllowedReasons     []string
	DisableIVPurpose   bool // a config toggle rather than a hard-coded branch
}

// DefaultConfig returns the default purpose/reason vocabulary.
func DefaultConfig() Config {
	return Config{
		AllowedPurposes: []string{"iv", "quest", "quest_iv", "mon_raid", "level"},
		AllowedReasons: []string{
			"logout", "maintenance", "rotation", "level", "teleport",
			"limit", "login", "prelogin", "nologin", "reset",
		},
	}
}

// Stats tracks validator outcomes.
type Stats struct {
	TotalChecks    int64
	Accepted       int64
	Rejected       int64
	IVPurposeGated int64
}

// Validator checks purpose/reason strings against the configured
// vocabulary.
type Validator struct {
	cfg             Config
	allowedPurposes map[string]bool
	allowedReasons  map[string]bool

	mu    sync.Mutex
	stats Stats
}

// New builds a Validator from cfg.
func New(cfg Config) *Validator {
	v := &Validator{
		cfg:             cfg,
		allowedPurposes: toSet(cfg.AllowedPurposes),
		allowedReasons:  toSet(cfg.AllowedReasons),
	}
	return v
}

func toSet(values []string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Purpose reports whether purpose is an accepted value. When
// DisableIVPurpose is set, the "iv" purpose is rejected even though it
// remains in the allow-list, so operators can gate it without editing the
// vocabulary.
func (v *Validator) Purpose(purpose string) bool {
	v.mu.Lock()
	v.stats.TotalChecks++
	v.mu.Unlock()

	if v.cfg.DisableIVPurpose && purpose == "iv" {
		v.mu.Lock()
		v.stats.IVPurposeGated++
		v.stats.Rejected++
		v.mu.Unlock()
		return false
	}

	ok := v.allowedPurposes[purpose]
	v.record(ok)
	return ok
}

// Reason reports whether reason is an accepted value. An empty reason is
// always accepted, since most endpoints treat a missing reason as NULL.
func (v *Validator) Reason(reason string) bool {
	if reason == "" {
		return true
	}
	v.mu.Lock()
	v.stats.TotalChecks++
	v.mu.Unlock()

	ok := v.allowedReasons[reason]
	v.record(ok)
	return ok
}

func (v *Validator) record(ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if ok {
		v.stats.Accepted++
	} else {
		v.stats.Rejected++
	}
}

// GetStats returns a snapshot of validation counters.
func (v *Validator) GetStats() Stats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats
}
