package anki

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/db"
)

// Reader exposes the vendor tables of a collection.
type Reader interface {
	ReadDecks(ctx context.Context) ([]Deck, error)
	ReadNoteTypes(ctx context.Context) ([]NoteType, error)
	ReadNotes(ctx context.Context) ([]Note, error)
	ReadCards(ctx context.Context) ([]Card, error)
	ReadReviews(ctx context.Context) ([]Review, error)
}

var (
	_ Reader = (*Collection)(nil)
	_ Reader = (*Contents)(nil)
)

func (c *Contents) ReadDecks(context.Context) ([]Deck, error)         { return c.Decks, nil }
func (c *Contents) ReadNoteTypes(context.Context) ([]NoteType, error) { return c.NoteTypes, nil }
func (c *Contents) ReadNotes(context.Context) ([]Note, error)         { return c.Notes, nil }
func (c *Contents) ReadCards(context.Context) ([]Card, error)         { return c.Cards, nil }
func (c *Contents) ReadReviews(context.Context) ([]Review, error)     { return c.Reviews, nil }

// Collection is an open collection database file.
type Collection struct {
	db   *sql.DB
	path string
}

// OpenCollection opens an existing collection file.
func OpenCollection(path string) (*Collection, error) {
	conn, err := db.OpenDBConnection(path, "DELETE", "FULL")
	if err != nil {
		return nil, err
	}
	return &Collection{db: conn, path: path}, nil
}

// CreateCollection creates a collection file at path holding only the
// Default deck and the default deck options.
func CreateCollection(ctx context.Context, path string) (*Collection, error) {
	c, err := OpenCollection(path)
	if err != nil {
		return nil, err
	}
	if err := db.InitializeSchema(c.db); err != nil {
		c.Close()
		return nil, err
	}

	decks, err := json.Marshal(map[string]Deck{"1": DefaultDeck()})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to encode default deck: %w", err)
	}

	now := time.Now()
	crt := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.Local).Unix()
	_, err = c.db.ExecContext(ctx, `INSERT INTO col (id, crt, mod, scm, ver, dty, usn, ls, conf, models, decks, dconf, tags)
		VALUES (1, ?, ?, ?, ?, 0, 0, 0, ?, '{}', ?, ?, '{}')`,
		crt, now.UnixMilli(), now.UnixMilli(), db.TargetSchemaVersion,
		defaultCollectionConfigJSON, string(decks), defaultDeckConfigJSON)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to insert collection row: %w", err)
	}
	return c, nil
}

// Path is the file backing the collection.
func (c *Collection) Path() string { return c.path }

func (c *Collection) Close() error {
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

// DB exposes the underlying connection for schema checks.
func (c *Collection) DB() *sql.DB { return c.db }

func (c *Collection) colJSON(ctx context.Context, column string) ([]byte, error) {
	var raw string
	err := c.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM col LIMIT 1`, column)).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("failed to read col.%s: %w", column, err)
	}
	return []byte(raw), nil
}

// ReadDecks decodes col.decks, ordered by id.
func (c *Collection) ReadDecks(ctx context.Context) ([]Deck, error) {
	raw, err := c.colJSON(ctx, "decks")
	if err != nil {
		return nil, err
	}
	var byID map[string]Deck
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, fmt.Errorf("failed to decode col.decks: %w", err)
	}
	decks := make([]Deck, 0, len(byID))
	for _, d := range byID {
		decks = append(decks, d)
	}
	sort.Slice(decks, func(i, j int) bool { return decks[i].ID < decks[j].ID })
	return decks, nil
}

// ReadNoteTypes decodes col.models, ordered by id, with fields and
// templates ordered by ordinal.
func (c *Collection) ReadNoteTypes(ctx context.Context) ([]NoteType, error) {
	raw, err := c.colJSON(ctx, "models")
	if err != nil {
		return nil, err
	}
	var byID map[string]NoteType
	if err := json.Unmarshal(raw, &byID); err != nil {
		return nil, fmt.Errorf("failed to decode col.models: %w", err)
	}
	nts := make([]NoteType, 0, len(byID))
	for _, nt := range byID {
		nt.sortByOrd()
		nts = append(nts, nt)
	}
	sort.Slice(nts, func(i, j int) bool { return nts[i].ID < nts[j].ID })
	return nts, nil
}

func (c *Collection) ReadNotes(ctx context.Context) ([]Note, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.GUID, &n.ModelID, &n.Mod, &n.Usn, &n.Tags, &n.Fields, &n.SortField, &n.Checksum, &n.Flags, &n.Data); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating note rows: %w", err)
	}
	return notes, nil
}

func (c *Collection) ReadCards(ctx context.Context) ([]Card, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data
		FROM cards ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []Card
	for rows.Next() {
		var cd Card
		if err := rows.Scan(&cd.ID, &cd.NoteID, &cd.DeckID, &cd.Ord, &cd.Mod, &cd.Usn, &cd.Type, &cd.Queue, &cd.Due,
			&cd.Ivl, &cd.Factor, &cd.Reps, &cd.Lapses, &cd.Left, &cd.ODue, &cd.ODid, &cd.Flags, &cd.Data); err != nil {
			return nil, fmt.Errorf("failed to scan card row: %w", err)
		}
		cards = append(cards, cd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating card rows: %w", err)
	}
	return cards, nil
}

func (c *Collection) ReadReviews(ctx context.Context) ([]Review, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT id, cid, usn, ease, ivl, lastIvl, factor, time, type FROM revlog ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query revlog: %w", err)
	}
	defer rows.Close()

	var reviews []Review
	for rows.Next() {
		var r Review
		if err := rows.Scan(&r.ID, &r.CardID, &r.Usn, &r.Ease, &r.Ivl, &r.LastIvl, &r.Factor, &r.Time, &r.Type); err != nil {
			return nil, fmt.Errorf("failed to scan revlog row: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating revlog rows: %w", err)
	}
	return reviews, nil
}

// Write replaces the collection's content with contents in one transaction.
func (c *Collection) Write(ctx context.Context, contents Contents) error {
	decks := make(map[string]Deck, len(contents.Decks))
	for _, d := range contents.Decks {
		decks[fmt.Sprint(d.ID)] = d
	}
	models := make(map[string]NoteType, len(contents.NoteTypes))
	for _, nt := range contents.NoteTypes {
		models[fmt.Sprint(nt.ID)] = nt
	}
	tags := make(map[string]int)
	for _, n := range contents.Notes {
		for _, t := range splitTags(n.Tags) {
			tags[t] = 0
		}
	}

	decksJSON, err := json.Marshal(decks)
	if err != nil {
		return fmt.Errorf("failed to encode decks: %w", err)
	}
	modelsJSON, err := json.Marshal(models)
	if err != nil {
		return fmt.Errorf("failed to encode note types: %w", err)
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("failed to encode tags: %w", err)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE col SET decks = ?, models = ?, tags = ?, mod = ?`,
		string(decksJSON), string(modelsJSON), string(tagsJSON), time.Now().UnixMilli()); err != nil {
		return fmt.Errorf("failed to update collection row: %w", err)
	}
	for _, table := range []string{"notes", "cards", "revlog", "graves"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	noteStmt, err := tx.PrepareContext(ctx, `INSERT INTO notes (id, guid, mid, mod, usn, tags, flds, sfld, csum, flags, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare note insert: %w", err)
	}
	defer noteStmt.Close()
	for _, n := range contents.Notes {
		if _, err := noteStmt.ExecContext(ctx, n.ID, n.GUID, n.ModelID, n.Mod, n.Usn, n.Tags, n.Fields, n.SortField, n.Checksum, n.Flags, n.Data); err != nil {
			return fmt.Errorf("failed to insert note %d: %w", n.ID, err)
		}
	}

	cardStmt, err := tx.PrepareContext(ctx, `INSERT INTO cards (id, nid, did, ord, mod, usn, type, queue, due, ivl, factor, reps, lapses, left, odue, odid, flags, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare card insert: %w", err)
	}
	defer cardStmt.Close()
	for _, cd := range contents.Cards {
		if _, err := cardStmt.ExecContext(ctx, cd.ID, cd.NoteID, cd.DeckID, cd.Ord, cd.Mod, cd.Usn, cd.Type, cd.Queue, cd.Due,
			cd.Ivl, cd.Factor, cd.Reps, cd.Lapses, cd.Left, cd.ODue, cd.ODid, cd.Flags, cd.Data); err != nil {
			return fmt.Errorf("failed to insert card %d: %w", cd.ID, err)
		}
	}

	revStmt, err := tx.PrepareContext(ctx, `INSERT INTO revlog (id, cid, usn, ease, ivl, lastIvl, factor, time, type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare revlog insert: %w", err)
	}
	defer revStmt.Close()
	for _, r := range contents.Reviews {
		if !r.ID.Valid {
			return fmt.Errorf("review for card %d has no id", r.CardID)
		}
		if _, err := revStmt.ExecContext(ctx, r.ID.Int64, r.CardID, r.Usn, r.Ease, r.Ivl, r.LastIvl, r.Factor, r.Time, r.Type); err != nil {
			return fmt.Errorf("failed to insert review %d: %w", r.ID.Int64, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection: %w", err)
	}
	return nil
}
