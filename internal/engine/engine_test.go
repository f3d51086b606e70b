package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domizei385/pogoAccountServer/internal/clock"
	"github.com/domizei385/pogoAccountServer/internal/config"
	"github.com/domizei385/pogoAccountServer/internal/model"
	"github.com/domizei385/pogoAccountServer/internal/store"
	"github.com/domizei385/pogoAccountServer/internal/validate"
)

// fakeCandidateTx records whether it was reserved or rejected.
type fakeCandidateTx struct {
	username string
	reserved bool
	rejected bool
}

func (f *fakeCandidateTx) Reserve(ctx context.Context, username string) error {
	f.reserved = true
	f.username = username
	return nil
}

func (f *fakeCandidateTx) Reject() error {
	f.rejected = true
	return nil
}

// fakeStore is a hand-rolled accountStore double: no goroutines, no SQL,
// just enough state to drive the engine's candidate loop and binding rules.
type fakeStore struct {
	reusable       *model.Account
	reusableErr    error
	poolCandidates []*model.Account // consumed front-to-back by BeginCandidateSearch
	candidateTxs   []*fakeCandidateTx

	bound    map[string]*model.Account // device -> account
	reasons  map[string]*string        // device -> last reason override
	sums     map[string]int            // username -> encounter sum
	logins   map[string]int            // device or username -> logins last hour
	history  []store.HistoryUpdate

	resetCalled      []string
	danglingClosed   []string
	releasedReason   map[string]string
	levelUpdates     map[string]int
	softbanUpdates   map[string]int64
	burnedUsernames  []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		bound:          make(map[string]*model.Account),
		reasons:        make(map[string]*string),
		sums:           make(map[string]int),
		logins:         make(map[string]int),
		releasedReason: make(map[string]string),
		levelUpdates:   make(map[string]int),
		softbanUpdates: make(map[string]int64),
	}
}

func (f *fakeStore) FindReusable(ctx context.Context, device string, params store.CandidateParams) (*model.Account, error) {
	return f.reusable, f.reusableErr
}

func (f *fakeStore) PeekReusable(ctx context.Context, device string, params store.CandidateParams) (bool, error) {
	return f.reusable != nil, nil
}

func (f *fakeStore) PeekCandidate(ctx context.Context, params store.CandidateParams) (bool, error) {
	return len(f.poolCandidates) > 0, nil
}

func (f *fakeStore) BeginCandidateSearch(ctx context.Context, device string, params store.CandidateParams) (candidateTx, *model.Account, error) {
	for _, a := range f.poolCandidates {
		excluded := false
		for _, u := range params.Excluded {
			if u == a.Username {
				excluded = true
				break
			}
		}
		if !excluded {
			tx := &fakeCandidateTx{}
			f.candidateTxs = append(f.candidateTxs, tx)
			return tx, a, nil
		}
	}
	return nil, nil, nil
}

func (f *fakeStore) ResetDeviceBinding(ctx context.Context, device string, now int64) error {
	f.resetCalled = append(f.resetCalled, device)
	return nil
}

func (f *fakeStore) CloseDanglingHistory(ctx context.Context, device string, now int64) error {
	f.danglingClosed = append(f.danglingClosed, device)
	return nil
}

func (f *fakeStore) LoginsLastHour(ctx context.Context, byDevice bool, value string, now int64) (int, error) {
	return f.logins[value], nil
}

func (f *fakeStore) EncounterSum(ctx context.Context, username string, now, windowSeconds int64) (int, error) {
	return f.sums[username], nil
}

func (f *fakeStore) HistoryOpenUpdate(ctx context.Context, device, username string, now int64, upd store.HistoryUpdate) error {
	f.history = append(f.history, upd)
	return nil
}

func (f *fakeStore) BoundUsername(ctx context.Context, device string) (*model.Account, error) {
	a, ok := f.bound[device]
	if !ok {
		return nil, store.ErrNoBinding
	}
	return a, nil
}

func (f *fakeStore) SetLevel(ctx context.Context, username string, level int, now int64) error {
	f.levelUpdates[username] = level
	return nil
}

func (f *fakeStore) SetSoftban(ctx context.Context, username string, at int64, loc *model.Location, now int64) error {
	f.softbanUpdates[username] = at
	return nil
}

func (f *fakeStore) ReleaseByDevice(ctx context.Context, device, reason string, now int64) (string, error) {
	a, ok := f.bound[device]
	if !ok {
		return "", store.ErrNoBinding
	}
	f.releasedReason[device] = reason
	delete(f.bound, device)
	return a.Username, nil
}

func (f *fakeStore) MarkBurned(ctx context.Context, username string, now int64) error {
	f.burnedUsernames = append(f.burnedUsernames, username)
	return nil
}

func (f *fakeStore) LastReasonForBinding(ctx context.Context, device, username string) (*string, error) {
	return f.reasons[device], nil
}

func (f *fakeStore) Stats(ctx context.Context) (map[string]*store.RegionStats, error) {
	return nil, nil
}

func newTestEngine(fs *fakeStore) *Engine {
	return &Engine{
		store:     fs,
		clock:     clock.NewFixed(time.Unix(1_000_000, 0)),
		cfg:       config.Default(),
		validator: validate.New(validate.DefaultConfig()),
	}
}

func TestGetAccountPrefersStickyReuse(t *testing.T) {
	fs := newFakeStore()
	fs.reusable = &model.Account{Username: "sticky1", Password: "pw", Level: 30}
	fs.poolCandidates = []*model.Account{{Username: "pool1", Password: "pw2", Level: 30}}
	fs.sums["sticky1"] = 100

	eng := newTestEngine(fs)
	resp, err := eng.GetAccount(context.Background(), "device1", "iv", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "sticky1", resp.Username)

	// The pool path must never have been touched.
	assert.Empty(t, fs.candidateTxs)
	assert.Equal(t, eng.cfg.EncounterLimit-100, resp.RemainingEncounters)
}

func TestGetAccountFallsThroughToPoolWhenNoReuse(t *testing.T) {
	fs := newFakeStore()
	fs.poolCandidates = []*model.Account{{Username: "pool1", Password: "pw", Level: 30}}

	eng := newTestEngine(fs)
	resp, err := eng.GetAccount(context.Background(), "device1", "iv", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "pool1", resp.Username)
	require.Len(t, fs.candidateTxs, 1)
	assert.True(t, fs.candidateTxs[0].reserved)

	// Reset and dangling-history cleanup must run before the pool is tried.
	assert.Equal(t, []string{"device1"}, fs.resetCalled)
	assert.Equal(t, []string{"device1"}, fs.danglingClosed)
}

func TestGetAccountSkipsIneligibleCandidatesAndRetries(t *testing.T) {
	fs := newFakeStore()
	fs.poolCandidates = []*model.Account{
		{Username: "overbudget", Password: "pw", Level: 30},
		{Username: "ok", Password: "pw", Level: 30},
	}
	eng := newTestEngine(fs)
	eng.cfg.EncounterLimit = 100
	fs.sums["overbudget"] = 90 // >= 0.8*100 threshold, fails EncounterBudgetOK

	resp, err := eng.GetAccount(context.Background(), "device1", "iv", "", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Username)

	require.Len(t, fs.candidateTxs, 2)
	assert.True(t, fs.candidateTxs[0].rejected)
	assert.True(t, fs.candidateTxs[1].reserved)
}

func TestGetAccountGivesUpAfterMaxCandidateIterations(t *testing.T) {
	fs := newFakeStore()
	eng := newTestEngine(fs)
	eng.cfg.EncounterLimit = 100

	for i := 0; i < maxCandidateIterations+5; i++ {
		username := "bad" + string(rune('a'+i%26)) + string(rune('0'+i/26))
		fs.poolCandidates = append(fs.poolCandidates, &model.Account{Username: username, Password: "pw", Level: 30})
		fs.sums[username] = 90
	}

	_, err := eng.GetAccount(context.Background(), "device1", "iv", "", "", nil)
	assert.ErrorIs(t, err, ErrNoCandidate)
	assert.LessOrEqual(t, len(fs.candidateTxs), maxCandidateIterations)
}

func TestSetLogoutOnlyRaisesLevel(t *testing.T) {
	fs := newFakeStore()
	fs.bound["device1"] = &model.Account{Username: "u1", Level: 20}
	eng := newTestEngine(fs)

	lower := 10
	_, err := eng.SetLogout(context.Background(), "device1", nil, &lower)
	require.NoError(t, err)
	assert.NotContains(t, fs.levelUpdates, "u1")

	fs.bound["device1"] = &model.Account{Username: "u1", Level: 20}
	higher := 25
	_, err = eng.SetLogout(context.Background(), "device1", nil, &higher)
	require.NoError(t, err)
	assert.Equal(t, 25, fs.levelUpdates["u1"])
}

func TestSetBurnedOnlyRaisesLevel(t *testing.T) {
	fs := newFakeStore()
	fs.bound["device1"] = &model.Account{Username: "u1", Level: 20}
	eng := newTestEngine(fs)

	lower := 5
	_, err := eng.SetBurned(context.Background(), "device1", model.ReasonMaintenance, nil, &lower)
	require.NoError(t, err)
	assert.NotContains(t, fs.levelUpdates, "u1")
	assert.Contains(t, fs.burnedUsernames, "u1")
}

func TestSetLevelIsIgnoredWhenUnchanged(t *testing.T) {
	fs := newFakeStore()
	fs.bound["device1"] = &model.Account{Username: "u1", Level: 20}
	eng := newTestEngine(fs)

	err := eng.SetLevel(context.Background(), "device1", 20)
	assert.ErrorIs(t, err, ErrIgnored)
	assert.NotContains(t, fs.levelUpdates, "u1")

	err = eng.SetLevel(context.Background(), "device1", 21)
	require.NoError(t, err)
	assert.Equal(t, 21, fs.levelUpdates["u1"])
}

func TestGetAccountInfoReturnsNoBindingWithoutError(t *testing.T) {
	fs := newFakeStore()
	eng := newTestEngine(fs)

	_, err := eng.GetAccountInfo(context.Background(), "device-nobody")
	assert.ErrorIs(t, err, ErrNoBinding)
	assert.False(t, errors.Is(err, ErrStoreError))
}

func TestCheckPurposeDisabledIVReportsNoCandidate(t *testing.T) {
	fs := newFakeStore()
	eng := newTestEngine(fs)
	eng.cfg.DisableIVPurpose = true

	err := eng.checkPurpose("iv")
	assert.ErrorIs(t, err, ErrNoCandidate)
}
