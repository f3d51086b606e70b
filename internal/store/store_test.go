package store

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domizei385/pogoAccountServer/internal/clock"
	"github.com/domizei385/pogoAccountServer/internal/model"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return New(db, clock.NewFixed(time.Unix(1000, 0))), mock
}

var accountRowColumns = []string{
	"username", "password", "level", "region", "in_use_by", "last_use",
	"last_returned", "last_reason", "last_burned", "last_updated",
	"purpose", "softban_time", "softban_location",
}

// TestFindReusableBindsDeviceNotUsername guards the sticky-reuse binding
// invariant: reclaiming an account must stamp in_use_by with the requesting
// device, not the account's own username.
func TestFindReusableBindsDeviceNotUsername(t *testing.T) {
	st, mock := newMockStore(t)

	row := sqlmock.NewRows(accountRowColumns).
		AddRow("sticky1", "pw", 30, nil, "device1", int64(900), nil, nil, nil, int64(900), nil, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM accounts WHERE in_use_by = \?`).
		WithArgs("device1", 30, int64(500)).
		WillReturnRows(row)
	mock.ExpectQuery(`FROM accounts_history`).
		WithArgs("sticky1", int64(500)).
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(0))
	mock.ExpectExec(`UPDATE accounts SET in_use_by = \?`).
		WithArgs("device1", int64(1000), int64(1000), "sticky1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	params := CandidateParams{Purpose: "iv", Now: 1000, Cooldown: 500, EncounterLimit: 0}
	acct, err := st.FindReusable(context.Background(), "device1", params)
	require.NoError(t, err)
	require.NotNil(t, acct)
	assert.Equal(t, "sticky1", acct.Username)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestUpsertAccountsDoesNotRewriteLevelOrRegion guards bootstrap idempotency:
// re-running the seed file on every restart must refresh only password, not
// clobber the level/region an account has accumulated through play.
func TestUpsertAccountsDoesNotRewriteLevelOrRegion(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectPrepare(`ON DUPLICATE KEY UPDATE password = VALUES\(password\), last_updated = VALUES\(last_updated\)`)
	mock.ExpectExec(`ON DUPLICATE KEY UPDATE password = VALUES\(password\), last_updated = VALUES\(last_updated\)`).
		WithArgs("user1", "pass1", 0, nil, int64(1000)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	count, err := st.UpsertAccounts(context.Background(), []model.Account{{Username: "user1", Password: "pass1"}}, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestStatsCountsReleasedAccountsRegardlessOfAge guards the documented
// always-true stats predicate: an account released with a reason counts as
// cooling down no matter how long ago it was released.
func TestStatsCountsReleasedAccountsRegardlessOfAge(t *testing.T) {
	st, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"region", "in_use_by", "level", "last_returned", "last_reason"}).
		AddRow(nil, nil, 35, int64(100), "logout")

	mock.ExpectQuery(`SELECT region, in_use_by, level, last_returned, last_reason FROM accounts`).
		WillReturnRows(rows)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)

	shared := stats["shared"]
	require.NotNil(t, shared)
	assert.Equal(t, 1, shared.Cooldown["logout"])
	assert.Equal(t, 0, shared.AvailTotal)
	require.NoError(t, mock.ExpectationsWereMet())
}

// TestReleaseByDeviceBindsEmptyReasonAsNull guards the logout reuse escape
// hatch: SetLogout releases with reason "" so the account is immediately
// reusable, which requires last_reason to land as SQL NULL rather than the
// literal empty string (ReuseCooldownOK/the candidate query both branch on
// "last_reason IS NULL").
func TestReleaseByDeviceBindsEmptyReasonAsNull(t *testing.T) {
	st, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT username FROM accounts WHERE in_use_by = \? FOR UPDATE`).
		WithArgs("device1").
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("acct1"))
	mock.ExpectExec(`UPDATE accounts SET in_use_by = NULL`).
		WithArgs(int64(1000), nil, int64(1000), "acct1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	username, err := st.ReleaseByDevice(context.Background(), "device1", "", 1000)
	require.NoError(t, err)
	assert.Equal(t, "acct1", username)
	require.NoError(t, mock.ExpectationsWereMet())
}
