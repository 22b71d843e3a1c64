package db

import (
	"database/sql"
	"fmt"
	"net/url"
	"strings"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// validSyncModes lists the allowed values for the synchronous pragma.
var validSyncModes = map[string]bool{
	"OFF":    true,
	"NORMAL": true,
	"FULL":   true,
	"EXTRA":  true, // SQLite also supports EXTRA
}

// validJournalModes lists the journal modes a collection may be opened with.
// WAL is excluded: collections are zipped as a single file and a WAL sidecar
// would be lost.
var validJournalModes = map[string]bool{
	"DELETE":   true,
	"TRUNCATE": true,
	"MEMORY":   true,
	"OFF":      true,
}

// OpenDBConnection opens the SQLite collection database at baseDSN.
// journalMode sets the journal_mode pragma (DELETE, TRUNCATE, MEMORY, OFF).
// syncPragma sets the synchronous pragma (OFF, NORMAL, FULL, EXTRA).
// Empty values keep the SQLite defaults.
func OpenDBConnection(baseDSN string, journalMode string, syncPragma string) (*sql.DB, error) {
	params := url.Values{}

	if journalMode != "" {
		ucJournal := strings.ToUpper(journalMode)
		if !validJournalModes[ucJournal] {
			return nil, fmt.Errorf("invalid journal mode value: %s. Must be one of DELETE, TRUNCATE, MEMORY, OFF", journalMode)
		}
		params.Add("_journal_mode", ucJournal)
	}

	if syncPragma != "" {
		ucSyncPragma := strings.ToUpper(syncPragma)
		if !validSyncModes[ucSyncPragma] {
			return nil, fmt.Errorf("invalid sync pragma value: %s. Must be one of OFF, NORMAL, FULL, EXTRA", syncPragma)
		}
		params.Add("_synchronous", ucSyncPragma)
	}

	constructedDSN := baseDSN
	if len(params) > 0 {
		if strings.Contains(baseDSN, "?") {
			constructedDSN += "&" + params.Encode()
		} else {
			constructedDSN += "?" + params.Encode()
		}
	}

	db, err := sql.Open("sqlite3", constructedDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database with DSN '%s': %w", constructedDSN, err)
	}

	// A collection is a single file owned by one conversion; one connection
	// keeps every statement on the same view of it.
	db.SetMaxOpenConns(1)

	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database with DSN '%s': %w", constructedDSN, err)
	}

	return db, nil
}
