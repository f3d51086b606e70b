package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/domizei385/pogoAccountServer/internal/model"
)

// accountColumns lists the columns selected for every Account row, in the
// order scanAccount expects.
const accountColumns = `username, password, level, region, in_use_by, last_use, last_returned, ` +
	`last_reason, last_burned, last_updated, purpose, softban_time, softban_location`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanAccount reads one row shaped like accountColumns into a model.Account.
func scanAccount(row rowScanner) (*model.Account, error) {
	var (
		a               model.Account
		region          sql.NullString
		inUseBy         sql.NullString
		lastReturned    sql.NullInt64
		lastReason      sql.NullString
		lastBurned      sql.NullInt64
		purpose         sql.NullString
		softbanTime     sql.NullInt64
		softbanLocation sql.NullString
	)

	if err := row.Scan(
		&a.Username, &a.Password, &a.Level, &region, &inUseBy, &a.LastUse, &lastReturned,
		&lastReason, &lastBurned, &a.LastUpdated, &purpose, &softbanTime, &softbanLocation,
	); err != nil {
		return nil, err
	}

	if region.Valid {
		a.Region = &region.String
	}
	if inUseBy.Valid {
		a.InUseBy = &inUseBy.String
	}
	if lastReturned.Valid {
		a.LastReturned = &lastReturned.Int64
	}
	if lastReason.Valid {
		a.LastReason = &lastReason.String
	}
	if lastBurned.Valid {
		a.LastBurned = &lastBurned.Int64
	}
	if purpose.Valid {
		a.Purpose = &purpose.String
	}
	if softbanTime.Valid {
		a.SoftbanTime = &softbanTime.Int64
	}
	if softbanLocation.Valid {
		var loc model.Location
		if err := json.Unmarshal([]byte(softbanLocation.String), &loc); err != nil {
			return nil, fmt.Errorf("store: decoding softban_location: %w", err)
		}
		a.SoftbanLocation = &loc
	}

	return &a, nil
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullIfEmpty binds an empty reason string as SQL NULL rather than the
// literal empty string, so ReuseCooldownOK's "last_reason IS NULL" escape
// hatch actually fires for normal (non-cooldown) releases.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt64(i *int64) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *i, Valid: true}
}

func locationJSON(l *model.Location) (sql.NullString, error) {
	if l == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("store: encoding softban_location: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
