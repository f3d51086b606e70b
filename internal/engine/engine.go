package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/domizei385/pogoAccountServer/internal/clock"
	"github.com/domizei385/pogoAccountServer/internal/config"
	"github.com/domizei385/pogoAccountServer/internal/eligibility"
	"github.com/domizei385/pogoAccountServer/internal/model"
	"github.com/domizei385/pogoAccountServer/internal/store"
	"github.com/domizei385/pogoAccountServer/internal/validate"
)

// maxCandidateIterations bounds the pool-path retry loop: the number of
// candidates the engine will skip past before giving up.
const maxCandidateIterations = 20

// Engine wires the store against the eligibility predicates and
// configuration to implement the broker's endpoint-level operations.
type Engine struct {
	store     accountStore
	clock     clock.Clock
	cfg       config.Settings
	validator *validate.Validator
}

// New constructs an Engine from its dependencies.
func New(st *store.Store, c clock.Clock, cfg config.Settings, v *validate.Validator) *Engine {
	return &Engine{store: storeAdapter{st}, clock: c, cfg: cfg, validator: v}
}

func (e *Engine) now() int64 {
	return clock.Unix(e.clock)
}

// AvailabilityResult is the engine-level reply to get_availability.
type AvailabilityResult struct {
	Available int
	Type      string
}

// AccountResponse is the engine-level reply to get_account /
// get_account_info.
type AccountResponse struct {
	Username            string
	Password            string
	Level               int
	RemainingEncounters int
	IsBurnt             int
	LastReturned        *int64
	LastReason          *string
	SoftbanTime         *int64
	SoftbanLocation     *model.Location
}

func wrapStoreErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrStoreError, err)
}

func (e *Engine) candidateParams(purpose, region string) store.CandidateParams {
	now := e.now()
	return store.CandidateParams{
		Purpose:        purpose,
		Region:         region,
		Now:            now,
		Cooldown:       e.cfg.CooldownSeconds(),
		ShortCD:        e.cfg.ShortCooldownSeconds(),
		EncounterLimit: e.cfg.EncounterLimit,
	}
}

// checkPurpose requires a purpose and applies the disable_iv_purpose
// toggle. A disabled iv purpose reports no candidate (204) rather than a bad
// request. A purpose outside the configured vocabulary is accepted and
// carries no level restriction.
func (e *Engine) checkPurpose(purpose string) error {
	if purpose == "" {
		return ErrBadRequest
	}
	if e.validator.Purpose(purpose) {
		return nil
	}
	if e.cfg.DisableIVPurpose && purpose == eligibility.PurposeIV {
		return ErrNoCandidate
	}
	return nil
}

// GetAvailability implements get_availability: a read-only check that must
// not acquire row locks, so it goes through store.Peek* rather than
// FindReusable/BeginCandidateSearch.
func (e *Engine) GetAvailability(ctx context.Context, device, purpose, region string) (*AvailabilityResult, error) {
	if err := e.checkPurpose(purpose); err != nil {
		if errors.Is(err, ErrNoCandidate) {
			return &AvailabilityResult{Available: 0, Type: "pool"}, nil
		}
		return nil, err
	}

	params := e.candidateParams(purpose, region)

	reusable, err := e.store.PeekReusable(ctx, device, params)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if reusable {
		return &AvailabilityResult{Available: 1, Type: "reuse"}, nil
	}

	has, err := e.store.PeekCandidate(ctx, params)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	available := 0
	if has {
		available = 1
	}
	return &AvailabilityResult{Available: available, Type: "pool"}, nil
}

// GetAccount implements get_account.
func (e *Engine) GetAccount(ctx context.Context, device, purpose, region, reason string, loc *model.Location) (*AccountResponse, error) {
	if err := e.checkPurpose(purpose); err != nil {
		return nil, err
	}
	if reason != "" && !e.validator.Reason(reason) {
		return nil, ErrBadRequest
	}

	now := e.now()
	params := e.candidateParams(purpose, region)

	// Step 1: sticky reuse.
	acct, err := e.store.FindReusable(ctx, device, params)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if acct != nil {
		if err := e.recordHandout(ctx, device, acct.Username, purpose, now); err != nil {
			return nil, err
		}
		return e.buildAccountResponse(ctx, acct, now)
	}

	// Step 2: reuse failed or device held nothing bindable — reset and
	// close any dangling history before attempting the pool.
	if err := e.store.ResetDeviceBinding(ctx, device, now); err != nil && !errors.Is(err, store.ErrNoBinding) {
		return nil, wrapStoreErr(err)
	}
	if err := e.store.CloseDanglingHistory(ctx, device, now); err != nil {
		return nil, wrapStoreErr(err)
	}

	// Step 3: device login gate.
	deviceLogins, err := e.store.LoginsLastHour(ctx, true, device, now)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	if !eligibility.DeviceLoginGateOK(deviceLogins, e.cfg.DeviceMaxLoginsHour) {
		return nil, ErrNoCandidate
	}

	// Step 4: candidate retry loop.
	excluded := make([]string, 0, maxCandidateIterations)
	for i := 0; i < maxCandidateIterations; i++ {
		attemptParams := params
		attemptParams.Excluded = append(append([]string{}, excluded...))

		candTx, candidate, err := e.store.BeginCandidateSearch(ctx, device, attemptParams)
		if err != nil {
			return nil, wrapStoreErr(err)
		}
		if candidate == nil {
			break
		}

		ok, err := e.candidatePassesGoSidePredicates(ctx, candidate, purpose, loc, now)
		if err != nil {
			_ = candTx.Reject()
			return nil, err
		}
		if !ok {
			if err := candTx.Reject(); err != nil {
				return nil, wrapStoreErr(err)
			}
			excluded = append(excluded, candidate.Username)
			continue
		}

		if err := candTx.Reserve(ctx, candidate.Username); err != nil {
			return nil, wrapStoreErr(err)
		}
		if err := e.recordHandout(ctx, device, candidate.Username, purpose, now); err != nil {
			return nil, err
		}
		return e.buildAccountResponse(ctx, candidate, now)
	}

	// Step 5: nothing passed.
	return nil, ErrNoCandidate
}

// candidatePassesGoSidePredicates evaluates the predicates the candidate
// query cannot express: encounter budget, per-account login cap, and
// softban spatial cooldown.
func (e *Engine) candidatePassesGoSidePredicates(ctx context.Context, a *model.Account, purpose string, loc *model.Location, now int64) (bool, error) {
	sum, err := e.store.EncounterSum(ctx, a.Username, now, e.cfg.CooldownSeconds())
	if err != nil {
		return false, wrapStoreErr(err)
	}
	if !eligibility.EncounterBudgetOK(sum, e.cfg.EncounterLimit, 0.8) {
		return false, nil
	}

	accountLogins, err := e.store.LoginsLastHour(ctx, false, a.Username, now)
	if err != nil {
		return false, wrapStoreErr(err)
	}
	if !eligibility.LoginCapOK(accountLogins, e.cfg.AccountMaxLoginsHour) {
		return false, nil
	}

	if !eligibility.SoftbanOK(a.SoftbanTime, a.SoftbanLocation, loc, now) {
		return false, nil
	}

	return true, nil
}

// recordHandout writes the history "open or update" row for a fresh
// hand-out. The open row is found by (device, username); if none exists
// (first hand-out, or one just closed by CloseDanglingHistory) a new row is
// opened.
func (e *Engine) recordHandout(ctx context.Context, device, username, purpose string, now int64) error {
	if err := e.store.HistoryOpenUpdate(ctx, device, username, now, store.HistoryUpdate{
		Purpose: &purpose,
	}); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

func (e *Engine) buildAccountResponse(ctx context.Context, a *model.Account, now int64) (*AccountResponse, error) {
	resp := &AccountResponse{
		Username:        a.Username,
		Password:        a.Password,
		Level:           a.Level,
		IsBurnt:         0,
		LastReturned:    a.LastReturned,
		LastReason:      a.LastReason,
		SoftbanTime:     a.SoftbanTime,
		SoftbanLocation: a.SoftbanLocation,
	}
	if a.IsBurnt(now - e.cfg.CooldownSeconds()) {
		resp.IsBurnt = 1
	}

	sum, err := e.store.EncounterSum(ctx, a.Username, now, e.cfg.CooldownSeconds())
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	resp.RemainingEncounters = model.RemainingEncounters(e.cfg.EncounterLimit, sum)

	return resp, nil
}

// SetLevel implements set_level: idempotent, no-op if the bound account is
// already at that level.
func (e *Engine) SetLevel(ctx context.Context, device string, level int) error {
	acct, err := e.store.BoundUsername(ctx, device)
	if err != nil {
		if errors.Is(err, store.ErrNoBinding) {
			return ErrNoBinding
		}
		return wrapStoreErr(err)
	}
	if acct.Level == level {
		return ErrIgnored
	}
	if err := e.store.SetLevel(ctx, acct.Username, level, e.now()); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// SetSoftban implements set_softban.
func (e *Engine) SetSoftban(ctx context.Context, device string, at int64, loc *model.Location) error {
	acct, err := e.store.BoundUsername(ctx, device)
	if err != nil {
		if errors.Is(err, store.ErrNoBinding) {
			return ErrNoBinding
		}
		return wrapStoreErr(err)
	}
	if err := e.store.SetSoftban(ctx, acct.Username, at, loc, e.now()); err != nil {
		return wrapStoreErr(err)
	}
	return nil
}

// SetLogin implements set_login: a history "login" event against the
// device's currently bound account.
func (e *Engine) SetLogin(ctx context.Context, device string) (string, error) {
	acct, err := e.store.BoundUsername(ctx, device)
	if err != nil {
		if errors.Is(err, store.ErrNoBinding) {
			return "", ErrNoBinding
		}
		return "", wrapStoreErr(err)
	}
	reason := model.ReasonLogin
	if err := e.store.HistoryOpenUpdate(ctx, device, acct.Username, e.now(), store.HistoryUpdate{Reason: &reason}); err != nil {
		return "", wrapStoreErr(err)
	}
	return acct.Username, nil
}

// SetLogout implements set_logout: release with reason NULL so the account
// is immediately reusable, closing history with reason="logout".
func (e *Engine) SetLogout(ctx context.Context, device string, encounters *int, level *int) (string, error) {
	acct, err := e.store.BoundUsername(ctx, device)
	if err != nil {
		if errors.Is(err, store.ErrNoBinding) {
			return "", ErrNoBinding
		}
		return "", wrapStoreErr(err)
	}

	now := e.now()

	if level != nil && *level > acct.Level {
		if err := e.store.SetLevel(ctx, acct.Username, *level, now); err != nil {
			return "", wrapStoreErr(err)
		}
	}

	if _, err := e.store.ReleaseByDevice(ctx, device, "", now); err != nil && !errors.Is(err, store.ErrNoBinding) {
		return "", wrapStoreErr(err)
	}

	reason := model.ReasonLogout
	upd := store.HistoryUpdate{Returned: &now, Reason: &reason}
	if encounters != nil {
		upd.Encounters = encounters
	}
	if err := e.store.HistoryOpenUpdate(ctx, device, acct.Username, now, upd); err != nil {
		return "", wrapStoreErr(err)
	}

	return acct.Username, nil
}

// SetBurned implements set_burned: release with the given reason, mark
// last_burned when the reason is "maintenance", raise level if the hint
// exceeds the stored value, and close history.
func (e *Engine) SetBurned(ctx context.Context, device, reason string, encounters *int, level *int) (string, error) {
	if reason != "" && !e.validator.Reason(reason) {
		return "", ErrBadRequest
	}

	acct, err := e.store.BoundUsername(ctx, device)
	if err != nil {
		if errors.Is(err, store.ErrNoBinding) {
			return "", ErrNoBinding
		}
		return "", wrapStoreErr(err)
	}

	now := e.now()

	if level != nil && *level > acct.Level {
		if err := e.store.SetLevel(ctx, acct.Username, *level, now); err != nil {
			return "", wrapStoreErr(err)
		}
	}

	if _, err := e.store.ReleaseByDevice(ctx, device, reason, now); err != nil && !errors.Is(err, store.ErrNoBinding) {
		return "", wrapStoreErr(err)
	}

	if reason == model.ReasonMaintenance {
		if err := e.store.MarkBurned(ctx, acct.Username, now); err != nil {
			return "", wrapStoreErr(err)
		}
	}

	upd := store.HistoryUpdate{Returned: &now}
	if reason != "" {
		upd.Reason = &reason
	}
	if encounters != nil {
		upd.Encounters = encounters
	}
	if err := e.store.HistoryOpenUpdate(ctx, device, acct.Username, now, upd); err != nil {
		return "", wrapStoreErr(err)
	}

	return acct.Username, nil
}

// GetAccountInfo implements get_account_info.
func (e *Engine) GetAccountInfo(ctx context.Context, device string) (*AccountResponse, error) {
	acct, err := e.store.BoundUsername(ctx, device)
	if err != nil {
		if errors.Is(err, store.ErrNoBinding) {
			return nil, ErrNoBinding
		}
		return nil, wrapStoreErr(err)
	}

	now := e.now()
	resp, err := e.buildAccountResponse(ctx, acct, now)
	if err != nil {
		return nil, err
	}

	if override, err := e.store.LastReasonForBinding(ctx, device, acct.Username); err != nil {
		return nil, wrapStoreErr(err)
	} else if override != nil {
		resp.LastReason = override
	}

	return resp, nil
}

// Stats reports the per-region account breakdown.
func (e *Engine) Stats(ctx context.Context) (map[string]*store.RegionStats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, wrapStoreErr(err)
	}
	return stats, nil
}
