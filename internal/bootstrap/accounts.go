// Package bootstrap loads the accounts.txt seed file into the accounts
// table at startup.
package bootstrap

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/domizei385/pogoAccountServer/internal/model"
)

// accountStore is the subset of *store.Store bootstrap needs, kept narrow
// so this package doesn't import internal/store for its full surface.
type accountStore interface {
	UpsertAccounts(ctx context.Context, accounts []model.Account, now int64) (int, error)
}

// LoadFile parses path (one "username,password" record per line) and
// upserts every well-formed record. Lines with more than two comma-
// separated fields, or that otherwise fail to parse, are skipped with a
// warning rather than aborting the whole load. A missing file is not an
// error: the broker starts with whatever accounts already exist in the
// database.
func LoadFile(ctx context.Context, st accountStore, path string, now int64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("[bootstrap] %s not found - not adding accounts", path)
			return 0, nil
		}
		return 0, fmt.Errorf("bootstrap: opening %s: %w", path, err)
	}
	defer f.Close()

	var accounts []model.Account
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 2 {
			log.Printf("[bootstrap] invalid account entry at line %d: %q", lineNo, line)
			continue
		}
		username, password := strings.TrimSpace(fields[0]), strings.TrimSpace(fields[1])
		if username == "" || password == "" {
			log.Printf("[bootstrap] invalid account entry at line %d: %q", lineNo, line)
			continue
		}
		accounts = append(accounts, model.Account{Username: username, Password: password})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("bootstrap: reading %s: %w", path, err)
	}

	log.Printf("[bootstrap] loaded %d accounts from %s", len(accounts), path)

	count, err := st.UpsertAccounts(ctx, accounts, now)
	if err != nil {
		return count, fmt.Errorf("bootstrap: upserting accounts: %w", err)
	}
	return count, nil
}
