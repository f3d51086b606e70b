package store

import (
	"context"
	"database/sql"
	"fmt"
)

// RegionStats holds the per-region account breakdown for one region bucket
// ("EU", "US", or "shared" for accounts with no region set).
type RegionStats struct {
	TotalAccounts int
	InUse         int
	Cooldown      map[string]int // last_reason (or "unknown") -> count
	Unleveled     int
	AvailTotal    int
	AvailLeveled  int
	AvailUnleveled int
}

// Stats aggregates account counts per region bucket: in-use, cooling down
// (grouped by last release reason), and available (split by leveled vs
// unleveled). Every released-with-a-reason account counts as cooling down
// regardless of how long ago it was released.
func (s *Store) Stats(ctx context.Context) (map[string]*RegionStats, error) {
	buckets := map[string]*RegionStats{
		"EU":     newRegionStats(),
		"US":     newRegionStats(),
		"shared": newRegionStats(),
	}

	const query = `SELECT region, in_use_by, level, last_returned, last_reason FROM accounts`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: querying stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			region       sql.NullString
			inUseBy      sql.NullString
			level        int
			lastReturned sql.NullInt64
			lastReason   sql.NullString
		)
		if err := rows.Scan(&region, &inUseBy, &level, &lastReturned, &lastReason); err != nil {
			return nil, fmt.Errorf("store: scanning stats row: %w", err)
		}

		bucket := regionBucket(region)
		rs := buckets[bucket]

		rs.TotalAccounts++
		if level < 30 {
			rs.Unleveled++
		}

		switch {
		case inUseBy.Valid:
			rs.InUse++
		case lastReturned.Valid && lastReason.Valid:
			reasonKey := lastReason.String
			if reasonKey == "" {
				reasonKey = "unknown"
			}
			rs.Cooldown[reasonKey]++
		default:
			rs.AvailTotal++
			if level < 30 {
				rs.AvailUnleveled++
			} else {
				rs.AvailLeveled++
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterating stats rows: %w", err)
	}

	return buckets, nil
}

func newRegionStats() *RegionStats {
	return &RegionStats{Cooldown: make(map[string]int)}
}

func regionBucket(region sql.NullString) string {
	if !region.Valid || region.String == "" {
		return "shared"
	}
	switch region.String {
	case "EU", "US":
		return region.String
	default:
		return "shared"
	}
}
