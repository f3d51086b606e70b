package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/domizei385/pogoAccountServer/internal/model"
)

// CandidateParams narrows a pool-path search. Region and Purpose are applied
// in SQL; the aggregate predicates (encounter budget, login caps, softban)
// are left to the caller via internal/eligibility, since they require data
// this query does not fetch cheaply (a second aggregate query, or a geo
// calculation against the request's scan location).
type CandidateParams struct {
	Purpose        string
	Region         string
	Now            int64
	Cooldown       int64 // reuse cooldown, predicate R
	ShortCD        int64 // short cooldown, predicate S
	EncounterLimit int
	Excluded       []string
}

// CandidateTx wraps an in-flight transaction holding a row lock on a
// candidate account. The caller must call exactly one of Reserve or Reject.
type CandidateTx struct {
	tx     *sql.Tx
	device string
	now    int64
}

// FindReusable implements the sticky-reuse path: a device reclaims the
// account it last held, provided it still satisfies the purpose-level bound,
// predicate R, and the 0.9×encounter_limit budget. This is a single atomic
// operation (unlike the pool path) because softban does not gate reuse and
// no retry loop applies here — a failing reuse candidate simply falls
// through to the pool path.
func (s *Store) FindReusable(ctx context.Context, device string, params CandidateParams) (*model.Account, error) {
	var acct *model.Account

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		query, args := buildReuseQuery(device, params, true)
		row := tx.QueryRowContext(ctx, query, args...)

		a, err := scanAccount(row)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: finding reusable account: %w", err)
		}

		var encounterSum int
		const sumQuery = `SELECT COALESCE(SUM(encounters), 0) FROM accounts_history
			WHERE username = ? AND returned > ?`
		if err := tx.QueryRowContext(ctx, sumQuery, a.Username, params.Now-params.Cooldown).Scan(&encounterSum); err != nil {
			return fmt.Errorf("store: summing reuse encounters: %w", err)
		}
		if params.EncounterLimit > 0 && float64(encounterSum) >= 0.9*float64(params.EncounterLimit) {
			// Over budget: leave the row untouched and report no reusable
			// account, so the caller falls through to the pool path.
			return nil
		}

		acct = a
		return markUsed(ctx, tx, a.Username, device, params.Now)
	})
	if err != nil {
		return nil, err
	}
	return acct, nil
}

func buildReuseQuery(device string, p CandidateParams, forUpdate bool) (string, []interface{}) {
	var b strings.Builder
	args := []interface{}{device}

	b.WriteString(`SELECT ` + accountColumns + ` FROM accounts WHERE in_use_by = ?`)

	if min, hasMin, max, hasMax := purposeLevelBounds(p.Purpose); hasMin || hasMax {
		if hasMin {
			b.WriteString(` AND level >= ?`)
			args = append(args, min)
		}
		if hasMax {
			b.WriteString(` AND level < ?`)
			args = append(args, max)
		}
	}

	b.WriteString(` AND (last_returned IS NULL OR last_reason IS NULL OR last_returned < ?)`)
	args = append(args, p.Now-p.Cooldown)

	if forUpdate {
		b.WriteString(` FOR UPDATE`)
	}
	return b.String(), args
}

// PeekReusable reports whether device has a reusable sticky account, without
// taking any row lock or evaluating the encounter budget — used by
// get_availability's dry run, which must not acquire locks that a real
// pickup would.
func (s *Store) PeekReusable(ctx context.Context, device string, params CandidateParams) (bool, error) {
	query, args := buildReuseQuery(device, params, false)
	row := s.db.QueryRowContext(ctx, query, args...)
	_, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: peeking reusable account: %w", err)
	}
	return true, nil
}

// PeekCandidate reports whether at least one free-pool candidate exists
// under the SQL-expressible predicates, again without locking.
func (s *Store) PeekCandidate(ctx context.Context, params CandidateParams) (bool, error) {
	query, args := buildCandidateQuery(params, false)
	row := s.db.QueryRowContext(ctx, query, args...)
	_, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store: peeking candidate: %w", err)
	}
	return true, nil
}

// BeginCandidateSearch opens a transaction, locates the best free-pool
// candidate under the SQL-expressible predicates, and returns both the open
// transaction (wrapped in *CandidateTx) and the candidate row. The caller
// evaluates the remaining Go-side predicates (encounter budget, login caps,
// softban via the request's scan location) before calling Reserve or Reject.
// A nil *model.Account with a nil error means no candidate exists; the
// returned *CandidateTx is nil in that case, since there is nothing to
// reserve or reject.
func (s *Store) BeginCandidateSearch(ctx context.Context, device string, params CandidateParams) (*CandidateTx, *model.Account, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("store: beginning candidate search: %w", err)
	}

	query, args := buildCandidateQuery(params, true)
	row := tx.QueryRowContext(ctx, query, args...)

	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		_ = tx.Rollback()
		return nil, nil, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, nil, fmt.Errorf("store: searching for candidate: %w", err)
	}

	return &CandidateTx{tx: tx, device: device, now: params.Now}, a, nil
}

// Reserve marks the held candidate as in use by the device and commits.
func (c *CandidateTx) Reserve(ctx context.Context, username string) error {
	if err := markUsed(ctx, c.tx, username, c.device, c.now); err != nil {
		_ = c.tx.Rollback()
		return err
	}
	if err := c.tx.Commit(); err != nil {
		return fmt.Errorf("store: committing candidate reservation: %w", err)
	}
	return nil
}

// Reject rolls back without modifying the row, releasing its lock so the
// next retry iteration can consider a different candidate.
func (c *CandidateTx) Reject() error {
	if err := c.tx.Rollback(); err != nil {
		return fmt.Errorf("store: rolling back rejected candidate: %w", err)
	}
	return nil
}

// markUsed stamps an account as bound to device at timestamp now.
func markUsed(ctx context.Context, tx *sql.Tx, username, device string, now int64) error {
	const query = `UPDATE accounts SET in_use_by = ?, last_use = ?, last_updated = ? WHERE username = ?`
	_, err := tx.ExecContext(ctx, query, device, now, now, username)
	if err != nil {
		return fmt.Errorf("store: marking account used: %w", err)
	}
	return nil
}

// buildCandidateQuery assembles the free-pool SELECT. Purpose-level bounds,
// region, predicate R, and predicate S are all pushed into WHERE clauses so
// the database can use its indexes; the caller does not check R/S again.
func buildCandidateQuery(p CandidateParams, forUpdate bool) (string, []interface{}) {
	var b strings.Builder
	var args []interface{}

	b.WriteString(`SELECT ` + accountColumns + ` FROM accounts WHERE in_use_by IS NULL`)

	if min, hasMin, max, hasMax := purposeLevelBounds(p.Purpose); hasMin || hasMax {
		if hasMin {
			b.WriteString(` AND level >= ?`)
			args = append(args, min)
		}
		if hasMax {
			b.WriteString(` AND level < ?`)
			args = append(args, max)
		}
	}

	if p.Region != "" {
		b.WriteString(` AND (region IS NULL OR region = '' OR region = ?)`)
		args = append(args, p.Region)
	}

	// Predicate R: never returned, returned without a reason, or the
	// cooldown since last release has elapsed.
	b.WriteString(` AND (last_returned IS NULL OR last_reason IS NULL OR last_returned < ?)`)
	args = append(args, p.Now-p.Cooldown)

	// Predicate S: unlevelled accounts bypass the short cooldown.
	b.WriteString(` AND (level < 30 OR last_use < ?)`)
	args = append(args, p.Now-p.ShortCD)

	if len(p.Excluded) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(p.Excluded)), ",")
		b.WriteString(` AND username NOT IN (` + placeholders + `)`)
		for _, u := range p.Excluded {
			args = append(args, u)
		}
	}

	if p.Purpose == "level" {
		b.WriteString(` ORDER BY level DESC, last_use ASC`)
	} else {
		b.WriteString(` ORDER BY last_use ASC`)
	}

	b.WriteString(` LIMIT 1`)
	if forUpdate {
		b.WriteString(` FOR UPDATE`)
	}

	return b.String(), args
}

// purposeLevelBounds mirrors internal/eligibility.PurposeLevelBounds; it is
// duplicated (rather than imported) to keep internal/store free of a
// dependency on internal/eligibility.
func purposeLevelBounds(purpose string) (minLevel int, hasMin bool, maxLevelExclusive int, hasMax bool) {
	switch purpose {
	case "iv", "quest", "quest_iv":
		return 30, true, 0, false
	case "mon_raid":
		return 8, true, 0, false
	case "level":
		return 0, false, 30, true
	default:
		return 0, false, 0, false
	}
}
