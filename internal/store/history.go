package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/domizei385/pogoAccountServer/internal/model"
)

// HistoryUpdate carries the optional fields a caller of HistoryOpenUpdate may
// supply; nil means "leave unchanged" on an UPDATE, or "omit" on an INSERT.
type HistoryUpdate struct {
	Acquired   *int64 // only meaningful when inserting a new row
	Returned   *int64
	Reason     *string
	Encounters *int
	Purpose    *string
}

// HistoryOpenUpdate is the single entry point for every history write. It
// deliberately keeps both of the rules it implements — reason rewrite and
// encounter monotonicity — in this one function rather than splitting them
// across helpers, since both derive the same stored row and a
// read-then-branch split would risk one rule seeing stale state.
func (s *Store) HistoryOpenUpdate(ctx context.Context, device, username string, now int64, upd HistoryUpdate) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		const findQuery = `SELECT id, reason, encounters FROM accounts_history
			WHERE device = ? AND username = ? AND returned IS NULL AND acquired > ?
			ORDER BY acquired DESC LIMIT 1 FOR UPDATE`

		var (
			id                int64
			storedReason      sql.NullString
			storedEncounters  int
		)
		row := tx.QueryRowContext(ctx, findQuery, device, username, now-24*3600)
		err := row.Scan(&id, &storedReason, &storedEncounters)

		switch {
		case err == sql.ErrNoRows:
			acquired := now
			if upd.Acquired != nil {
				acquired = *upd.Acquired
			}
			encounters := 0
			if upd.Encounters != nil {
				encounters = *upd.Encounters
			}
			const insertQuery = `INSERT INTO accounts_history
				(device, username, acquired, returned, reason, encounters, purpose)
				VALUES (?, ?, ?, ?, ?, ?, ?)`
			_, err := tx.ExecContext(ctx, insertQuery, device, username, acquired,
				nullableInt64(upd.Returned), nullableString(upd.Reason), encounters, nullableString(upd.Purpose))
			if err != nil {
				return fmt.Errorf("store: inserting history row: %w", err)
			}
			return nil

		case err != nil:
			return fmt.Errorf("store: locating open history row: %w", err)
		}

		newReason := storedReason
		if upd.Reason != nil {
			// Reason rewrite: prelogin -> logout with zero encounters
			// really means the device never logged in at all.
			if storedReason.Valid && storedReason.String == model.ReasonPrelogin &&
				*upd.Reason == model.ReasonLogout && encountersOrZero(upd.Encounters) == 0 {
				newReason = sql.NullString{String: model.ReasonNologin, Valid: true}
			} else {
				newReason = sql.NullString{String: *upd.Reason, Valid: true}
			}
		}

		newEncounters := storedEncounters
		if upd.Encounters != nil {
			n := *upd.Encounters
			if storedEncounters > n && storedEncounters > 0 && n > 0 {
				newEncounters = storedEncounters + n
			} else if n > storedEncounters {
				newEncounters = n
			}
		}

		const updateQuery = `UPDATE accounts_history SET returned = COALESCE(?, returned),
			reason = ?, encounters = ?, purpose = COALESCE(?, purpose) WHERE id = ?`
		_, err = tx.ExecContext(ctx, updateQuery, nullableInt64(upd.Returned), newReason, newEncounters, nullableString(upd.Purpose), id)
		if err != nil {
			return fmt.Errorf("store: updating history row: %w", err)
		}
		return nil
	})
}

func encountersOrZero(e *int) int {
	if e == nil {
		return 0
	}
	return *e
}

// CloseDanglingHistory closes the newest open history row for device with
// reason="reset", scoped to rows acquired within the last 5 days.
func (s *Store) CloseDanglingHistory(ctx context.Context, device string, now int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		const findQuery = `SELECT id FROM accounts_history
			WHERE device = ? AND returned IS NULL AND acquired > ?
			ORDER BY acquired DESC LIMIT 1 FOR UPDATE`
		var id int64
		row := tx.QueryRowContext(ctx, findQuery, device, now-5*24*3600)
		err := row.Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: locating dangling history row: %w", err)
		}

		const updateQuery = `UPDATE accounts_history SET returned = ?, reason = ? WHERE id = ?`
		_, err = tx.ExecContext(ctx, updateQuery, now, model.ReasonReset, id)
		if err != nil {
			return fmt.Errorf("store: closing dangling history row: %w", err)
		}
		return nil
	})
}

// EncounterSum returns the sum of encounters over the trailing window
// returned > now-windowSeconds for username, used by the encounter-budget
// predicate. A NULL sum (no matching rows) is treated as 0.
func (s *Store) EncounterSum(ctx context.Context, username string, now, windowSeconds int64) (int, error) {
	const query = `SELECT COALESCE(SUM(encounters), 0) FROM accounts_history
		WHERE username = ? AND returned > ?`
	var sum int
	row := s.db.QueryRowContext(ctx, query, username, now-windowSeconds)
	if err := row.Scan(&sum); err != nil {
		return 0, fmt.Errorf("store: summing encounters: %w", err)
	}
	return sum, nil
}

// LoginsLastHour counts qualifying history rows acquired in the trailing
// hour, used for both the per-account cap (byDevice=false) and the
// per-device gate (byDevice=true).
func (s *Store) LoginsLastHour(ctx context.Context, byDevice bool, value string, now int64) (int, error) {
	query := `SELECT COUNT(*) FROM accounts_history WHERE username = ? AND acquired > ?`
	if byDevice {
		query = `SELECT COUNT(*) FROM accounts_history WHERE device = ? AND acquired > ?`
	}
	var n int
	row := s.db.QueryRowContext(ctx, query, value, now-3600)
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("store: counting logins last hour: %w", err)
	}
	return n, nil
}

// LastReasonForBinding returns the most recent history reason recorded for
// (device, username), used by get_account_info's last_reason override.
func (s *Store) LastReasonForBinding(ctx context.Context, device, username string) (*string, error) {
	const query = `SELECT reason FROM accounts_history WHERE device = ? AND username = ?
		ORDER BY acquired DESC LIMIT 1`
	var reason sql.NullString
	row := s.db.QueryRowContext(ctx, query, device, username)
	err := row.Scan(&reason)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: fetching last reason: %w", err)
	}
	if !reason.Valid {
		return nil, nil
	}
	return &reason.String, nil
}
