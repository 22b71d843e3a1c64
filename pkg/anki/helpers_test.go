package anki

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/db"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

const (
	testDeckID int64 = 1700000000000
	testNoteID int64 = 1700000001000
	testCardID int64 = 1700000002000
	testRevID  int64 = 1700000003000
)

func testNow() time.Time {
	return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
}

func stockType(t *testing.T, name string) NoteType {
	t.Helper()
	nt, ok := StockNoteType(name)
	require.True(t, ok, "stock note type %q", name)
	return nt
}

// basicContents returns a vendor collection with one Basic note per value
// pair, all in "Test Deck".
func basicContents(t *testing.T, pairs ...[2]string) *Contents {
	t.Helper()
	basic := stockType(t, "Basic")
	c := &Contents{
		Decks:     []Deck{DefaultDeck(), {ID: testDeckID, Name: "Test Deck", Description: "for tests"}},
		NoteTypes: []NoteType{basic},
	}
	for i, p := range pairs {
		nid := testNoteID + int64(i)
		c.Notes = append(c.Notes, Note{ID: nid, GUID: "guid" + p[0], ModelID: basic.ID, Fields: JoinFields(p[:]), Tags: " tag1 tag2 "})
		c.Cards = append(c.Cards, Card{ID: testCardID + int64(i), NoteID: nid, DeckID: testDeckID, Ord: 0, Due: int64(i + 1)})
	}
	return c
}

func review(id int64, cardID int64, ease int) Review {
	return Review{ID: sql.NullInt64{Int64: id, Valid: true}, CardID: cardID, Ease: ease, Ivl: 1, Type: 1}
}

// universalFixture is a universal package with one reversible note, both
// of its cards and one review.
func universalFixture(t *testing.T) *srs.Package {
	t.Helper()
	u := srs.NewPackage()

	deck, err := srs.NewDeck(srs.DeckParams{Name: "Test Deck", Description: "A deck for testing"})
	require.NoError(t, err)
	require.NoError(t, u.AddDeck(deck))

	nt, err := srs.NewNoteType(srs.NoteTypeParams{
		Name:   "Basic (and reversed card)",
		Fields: []srs.Field{{ID: 0, Name: "Front"}, {ID: 1, Name: "Back"}},
		Templates: []srs.Template{
			{ID: 0, Name: "Card 1", QuestionTemplate: "{{Front}}", AnswerTemplate: "{{Back}}"},
			{ID: 1, Name: "Card 2", QuestionTemplate: "{{Back}}", AnswerTemplate: "{{Front}}"},
		},
	})
	require.NoError(t, err)
	require.NoError(t, u.AddNoteType(nt))

	fields, err := srs.ZipFields(nt, []string{"Hello", "World"})
	require.NoError(t, err)
	note, err := srs.NewNote(nt, srs.NoteParams{DeckID: deck.ID, Fields: fields, Tags: []string{"greeting"}})
	require.NoError(t, err)
	require.NoError(t, u.AddNote(note))

	var first srs.Card
	for tmpl := 0; tmpl < 2; tmpl++ {
		card, err := srs.NewCard(srs.CardParams{NoteID: note.ID, TemplateID: tmpl, Scheduling: srs.Scheduling{Type: 2, Queue: 2, Due: 10, Interval: 5, EaseFactor: 2500, Reps: 3}})
		require.NoError(t, err)
		require.NoError(t, u.AddCard(card))
		if tmpl == 0 {
			first = card
		}
	}

	rev, err := srs.NewReview(srs.ReviewParams{CardID: first.ID, Score: srs.ScoreEasy})
	require.NoError(t, err)
	require.NoError(t, u.AddReview(rev))
	return u
}

// fromUniversal converts u and registers cleanup of the package.
func fromUniversal(t *testing.T, u *srs.Package, opts ...Option) *Package {
	t.Helper()
	opts = append([]Option{WithTempDir(t.TempDir())}, opts...)
	res := FromUniversal(context.Background(), u, opts...)
	require.False(t, res.Failed(), "FromUniversal failed: %v", res.Issues)
	t.Cleanup(func() { res.Data.Close() })
	return res.Data
}

func vendorContents(t *testing.T, p *Package) Contents {
	t.Helper()
	ctx := context.Background()
	var c Contents
	var err error
	c.Decks, err = p.Collection().ReadDecks(ctx)
	require.NoError(t, err)
	c.NoteTypes, err = p.Collection().ReadNoteTypes(ctx)
	require.NoError(t, err)
	c.Notes, err = p.Collection().ReadNotes(ctx)
	require.NoError(t, err)
	c.Cards, err = p.Collection().ReadCards(ctx)
	require.NoError(t, err)
	c.Reviews, err = p.Collection().ReadReviews(ctx)
	require.NoError(t, err)
	return c
}

func encodePackage(t *testing.T, p *Package) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, p.Encode(&buf))
	return buf.Bytes()
}

func buildZip(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, data := range members {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// emptyCollectionBytes returns a valid collection database file.
func emptyCollectionBytes(t *testing.T) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), MemberCollection)
	col, err := CreateCollection(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, col.Close())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

// partialCollectionBytes returns a database holding only the named tables.
func partialCollectionBytes(t *testing.T, ddl string) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), MemberCollection)
	conn, err := db.OpenDBConnection(path, "DELETE", "")
	require.NoError(t, err)
	_, err = conn.Exec(ddl)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return b
}

func messages(list []issues.Issue) []string {
	out := make([]string, len(list))
	for i, is := range list {
		out[i] = is.Message
	}
	return out
}
