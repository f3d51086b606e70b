package model

// HistoryEntry is one append-only row of accounts_history, keyed by the
// surrogate ID.
type HistoryEntry struct {
	ID         int64
	Username   string
	Device     string
	Acquired   int64  // epoch seconds
	Returned   *int64 // nil = still open
	Reason     *string
	Encounters int
	Purpose    *string
}

// Open reports whether this is still an open binding (no Returned time).
func (h *HistoryEntry) Open() bool {
	return h.Returned == nil
}

// Reason taxonomy. Release reasons overlap with the last_reason column on
// Account; login/prelogin/nologin/reset are history-only classifications.
const (
	ReasonLogout      = "logout"
	ReasonMaintenance = "maintenance"
	ReasonRotation    = "rotation"
	ReasonLevel       = "level"
	ReasonTeleport    = "teleport"
	ReasonLimit       = "limit"
	ReasonLogin       = "login"
	ReasonPrelogin    = "prelogin"
	ReasonNologin     = "nologin"
	ReasonReset       = "reset"
)
