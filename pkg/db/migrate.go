package db

import (
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
)

const (
	// TargetSchemaVersion is the collection schema version (col.ver) this
	// code reads and writes.
	TargetSchemaVersion int64 = 11
)

// RequiredTables lists the tables a collection must contain to be converted.
var RequiredTables = []string{"col", "notes", "cards", "revlog", "graves"}

// GetSchemaVersion returns the ver column of the col row.
// Returns 0 if the col table does not exist or holds no row.
func GetSchemaVersion(db *sql.DB) (int64, error) {
	var version int64
	err := db.QueryRow(`SELECT ver FROM col LIMIT 1;`).Scan(&version)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		if strings.Contains(err.Error(), "no such table") {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to scan collection schema version: %w", err)
	}
	return version, nil
}

// InitializeSchema creates all collection tables and indexes. The col row is
// left to the caller because its JSON columns depend on the content.
func InitializeSchema(db *sql.DB) error {
	if _, err := db.Exec(SchemaV11); err != nil {
		return fmt.Errorf("failed to execute schema v11 SQL: %w", err)
	}
	return nil
}

// MissingTables returns the required tables absent from the database, sorted.
func MissingTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table';`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	present := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}

	var missing []string
	for _, name := range RequiredTables {
		if !present[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing, nil
}

// CheckSchemaVersion compares the collection's schema version with the one
// this code supports. dbIdentifierForLog is only used in messages.
func CheckSchemaVersion(db *sql.DB, dbIdentifierForLog string, appTargetSchemaVersion int64) error {
	currentDBVersion, err := GetSchemaVersion(db)
	if err != nil {
		return err
	}

	switch {
	case currentDBVersion == 0:
		return fmt.Errorf("collection '%s' has no schema version", dbIdentifierForLog)
	case currentDBVersion == appTargetSchemaVersion:
		return nil
	case currentDBVersion < appTargetSchemaVersion:
		return fmt.Errorf("collection '%s' has schema version %d, which is older than supported schema version %d", dbIdentifierForLog, currentDBVersion, appTargetSchemaVersion)
	default:
		return fmt.Errorf("collection '%s' has schema version %d, which is newer than supported schema version %d", dbIdentifierForLog, currentDBVersion, appTargetSchemaVersion)
	}
}
