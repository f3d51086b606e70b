package engine

import (
	"context"

	"github.com/domizei385/pogoAccountServer/internal/model"
	"github.com/domizei385/pogoAccountServer/internal/store"
)

// candidateTx is the subset of *store.CandidateTx the engine needs: commit
// a locked candidate row to a device, or release it untouched.
type candidateTx interface {
	Reserve(ctx context.Context, username string) error
	Reject() error
}

// accountStore is the subset of *store.Store the engine depends on, kept
// narrow so the candidate retry loop, binding rules, and level monotonicity
// can be unit-tested against a fake without a live database.
type accountStore interface {
	FindReusable(ctx context.Context, device string, params store.CandidateParams) (*model.Account, error)
	PeekReusable(ctx context.Context, device string, params store.CandidateParams) (bool, error)
	PeekCandidate(ctx context.Context, params store.CandidateParams) (bool, error)
	BeginCandidateSearch(ctx context.Context, device string, params store.CandidateParams) (candidateTx, *model.Account, error)
	ResetDeviceBinding(ctx context.Context, device string, now int64) error
	CloseDanglingHistory(ctx context.Context, device string, now int64) error
	LoginsLastHour(ctx context.Context, byDevice bool, value string, now int64) (int, error)
	EncounterSum(ctx context.Context, username string, now, windowSeconds int64) (int, error)
	HistoryOpenUpdate(ctx context.Context, device, username string, now int64, upd store.HistoryUpdate) error
	BoundUsername(ctx context.Context, device string) (*model.Account, error)
	SetLevel(ctx context.Context, username string, level int, now int64) error
	SetSoftban(ctx context.Context, username string, at int64, loc *model.Location, now int64) error
	ReleaseByDevice(ctx context.Context, device, reason string, now int64) (string, error)
	MarkBurned(ctx context.Context, username string, now int64) error
	LastReasonForBinding(ctx context.Context, device, username string) (*string, error)
	Stats(ctx context.Context) (map[string]*store.RegionStats, error)
}

// storeAdapter wraps *store.Store to satisfy accountStore. It exists only
// because BeginCandidateSearch's concrete *store.CandidateTx return type
// doesn't itself match the candidateTx interface method signature; a nil
// *store.CandidateTx is translated to a nil candidateTx so callers can still
// compare against nil.
type storeAdapter struct {
	*store.Store
}

func (a storeAdapter) BeginCandidateSearch(ctx context.Context, device string, params store.CandidateParams) (candidateTx, *model.Account, error) {
	tx, acct, err := a.Store.BeginCandidateSearch(ctx, device, params)
	if tx == nil {
		return nil, acct, err
	}
	return tx, acct, err
}
