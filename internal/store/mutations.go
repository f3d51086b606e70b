package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/domizei385/pogoAccountServer/internal/model"
)

// ReleaseByDevice clears the binding on the account currently held by
// device, stamping last_returned/last_reason, and returns the username that
// was released (empty if the device held nothing).
func (s *Store) ReleaseByDevice(ctx context.Context, device, reason string, now int64) (string, error) {
	var username string

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, `SELECT username FROM accounts WHERE in_use_by = ? FOR UPDATE`, device)
		if err := row.Scan(&username); err != nil {
			if err == sql.ErrNoRows {
				username = ""
				return ErrNoBinding
			}
			return fmt.Errorf("store: looking up device binding: %w", err)
		}

		const query = `UPDATE accounts SET in_use_by = NULL, last_returned = ?, last_reason = ?, last_updated = ? WHERE username = ?`
		_, err := tx.ExecContext(ctx, query, now, nullIfEmpty(reason), now, username)
		if err != nil {
			return fmt.Errorf("store: releasing account: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return username, nil
}

// SetLevel updates an account's level, used on level-up notifications.
func (s *Store) SetLevel(ctx context.Context, username string, level int, now int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET level = ?, last_updated = ? WHERE username = ?`, level, now, username)
		if err != nil {
			return fmt.Errorf("store: setting level: %w", err)
		}
		return requireRowsAffected(res)
	})
}

// SetSoftban records a softban sighting against an account.
func (s *Store) SetSoftban(ctx context.Context, username string, at int64, loc *model.Location, now int64) error {
	locJSON, err := locationJSON(loc)
	if err != nil {
		return err
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		const query = `UPDATE accounts SET softban_time = ?, softban_location = ?, last_updated = ? WHERE username = ?`
		res, err := tx.ExecContext(ctx, query, at, locJSON, now, username)
		if err != nil {
			return fmt.Errorf("store: setting softban: %w", err)
		}
		return requireRowsAffected(res)
	})
}

// ResetDeviceBinding unconditionally clears in_use_by for the account the
// device holds, without touching last_returned/last_reason — used by
// get_account to drop a lingering binding when sticky reuse failed, before
// it searches the free pool.
func (s *Store) ResetDeviceBinding(ctx context.Context, device string, now int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET in_use_by = NULL, last_updated = ? WHERE in_use_by = ?`, now, device)
		if err != nil {
			return fmt.Errorf("store: resetting device binding: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("store: checking reset result: %w", err)
		}
		if n == 0 {
			return ErrNoBinding
		}
		return nil
	})
}

// MarkBurned stamps last_burned on an account reported as banned/burnt.
func (s *Store) MarkBurned(ctx context.Context, username string, now int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE accounts SET last_burned = ?, last_updated = ? WHERE username = ?`, now, now, username)
		if err != nil {
			return fmt.Errorf("store: marking account burned: %w", err)
		}
		return requireRowsAffected(res)
	})
}

// GetByUsername fetches a single account for diagnostic/info endpoints.
func (s *Store) GetByUsername(ctx context.Context, username string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: fetching account: %w", err)
	}
	return a, nil
}

// BoundUsername returns the account currently bound to device, or
// ErrNoBinding if the device holds nothing.
func (s *Store) BoundUsername(ctx context.Context, device string) (*model.Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE in_use_by = ?`, device)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, ErrNoBinding
	}
	if err != nil {
		return nil, fmt.Errorf("store: fetching device binding: %w", err)
	}
	return a, nil
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: checking update result: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpsertAccounts bulk-loads bootstrap rows, inserting new accounts and
// refreshing the password on existing ones. Level and region are left alone
// on an existing row: they accumulate through normal operation, and a
// bootstrap file re-applied on every restart must not reset them.
func (s *Store) UpsertAccounts(ctx context.Context, accounts []model.Account, now int64) (int, error) {
	if len(accounts) == 0 {
		return 0, nil
	}

	var count int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		const query = `INSERT INTO accounts (username, password, level, region, last_updated)
			VALUES (?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE password = VALUES(password), last_updated = VALUES(last_updated)`

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("store: preparing bootstrap upsert: %w", err)
		}
		defer stmt.Close()

		for _, a := range accounts {
			if _, err := stmt.ExecContext(ctx, a.Username, a.Password, a.Level, nullableString(a.Region), now); err != nil {
				return fmt.Errorf("store: upserting account %q: %w", a.Username, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return count, err
	}
	return count, nil
}
