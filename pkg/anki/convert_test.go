package anki

import (
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

func TestToUniversal_UnknownNoteType(t *testing.T) {
	contents := basicContents(t, [2]string{"Q1", "A1"}, [2]string{"Q2", "A2"}, [2]string{"Q3", "A3"})
	contents.Notes[1].ModelID = 999
	contents.Cards = []Card{contents.Cards[0], contents.Cards[2]}

	t.Run("best-effort", func(t *testing.T) {
		res := ToUniversal(context.Background(), contents, nil)
		require.Equal(t, issues.StatusPartial, res.Status)
		noteIssues := res.ForItem(issues.ItemNote)
		require.Len(t, noteIssues, 1)
		assert.Equal(t, issues.SeverityError, noteIssues[0].Severity)
		assert.Contains(t, noteIssues[0].Message, "unknown note type 999")
		assert.Len(t, res.Data.Notes(), 2)
	})

	t.Run("strict", func(t *testing.T) {
		res := ToUniversal(context.Background(), contents, nil, WithErrorHandling(issues.Strict))
		require.Equal(t, issues.StatusFailure, res.Status)
		assert.Nil(t, res.Data)
		assert.Len(t, res.ForItem(issues.ItemNote), 1)
	})
}

func TestToUniversal_BadReviews(t *testing.T) {
	contents := basicContents(t, [2]string{"Q", "A"})
	contents.Reviews = []Review{
		review(testRevID, testCardID, 999),
		{ID: sql.NullInt64{}, CardID: testCardID, Ease: 3},
	}

	res := ToUniversal(context.Background(), contents, nil)
	require.Equal(t, issues.StatusPartial, res.Status)
	assert.Empty(t, res.Data.Reviews())

	reviewIssues := res.ForItem(issues.ItemReview)
	require.Len(t, reviewIssues, 2)
	assert.Contains(t, reviewIssues[0].Message, "unknown review score")
	assert.Contains(t, reviewIssues[1].Message, "review id is undefined")
	for _, is := range reviewIssues {
		assert.Equal(t, issues.SeverityError, is.Severity)
	}
}

func TestToUniversal_ReviewScores(t *testing.T) {
	contents := basicContents(t, [2]string{"Q", "A"})
	for ease := 1; ease <= 4; ease++ {
		contents.Reviews = append(contents.Reviews, review(testRevID+int64(ease), testCardID, ease))
	}

	res := ToUniversal(context.Background(), contents, nil)
	require.True(t, res.Succeeded(), "issues: %v", res.Issues)
	var got []srs.ReviewScore
	for _, r := range res.Data.Reviews() {
		got = append(got, r.Score)
		orig, ok := ParseOriginalID(r.Extensions)
		require.True(t, ok)
		assert.Equal(t, orig, r.Timestamp.UnixMilli())
	}
	assert.Equal(t, []srs.ReviewScore{srs.ScoreAgain, srs.ScoreHard, srs.ScoreNormal, srs.ScoreEasy}, got)
}

func TestToUniversal_NoteDetails(t *testing.T) {
	contents := basicContents(t, [2]string{"<b>Front</b>", "Back"})
	contents.Cards[0].ODid = testDeckID
	contents.Cards[0].DeckID = 555

	res := ToUniversal(context.Background(), contents, nil)
	require.True(t, res.Succeeded(), "issues: %v", res.Issues)

	notes := res.Data.Notes()
	require.Len(t, notes, 1)
	note := notes[0]
	assert.Equal(t, []string{"tag1", "tag2"}, note.Tags)
	assert.Equal(t, []string{"<b>Front</b>", "Back"}, note.Values())
	assert.Equal(t, testNoteID, note.CreatedAt.UnixMilli())

	deck, ok := res.Data.Deck(note.DeckID)
	require.True(t, ok)
	assert.Equal(t, "Test Deck", deck.Name)

	ms, ok := srs.IDTimestamp(note.ID)
	require.True(t, ok)
	assert.Equal(t, testNoteID, ms)
}

func TestToUniversal_FieldCountMismatchAndOrphans(t *testing.T) {
	contents := basicContents(t, [2]string{"Q", "A"})
	contents.Notes = append(contents.Notes, Note{ID: testNoteID + 50, ModelID: contents.NoteTypes[0].ID, Fields: "only one"})
	contents.Cards = append(contents.Cards,
		Card{ID: testCardID + 50, NoteID: testNoteID + 50, DeckID: testDeckID},
		Card{ID: testCardID + 51, NoteID: 424242, DeckID: testDeckID},
	)

	res := ToUniversal(context.Background(), contents, nil)
	require.Equal(t, issues.StatusPartial, res.Status)
	assert.Len(t, res.Data.Notes(), 1)
	assert.Len(t, res.Data.Cards(), 1)

	noteIssues := res.ForItem(issues.ItemNote)
	require.Len(t, noteIssues, 1)
	assert.Contains(t, noteIssues[0].Message, "has 1 field values")
	assert.Len(t, res.ForItem(issues.ItemCard), 2)
}

func TestToUniversal_MediaReferences(t *testing.T) {
	contents := basicContents(t, [2]string{`<img src="present.png"> <img src='missing.png'>`, `[sound:gone.mp3] <img src="https://example.com/x.png">`})
	media := map[string]string{"0": "present.png"}

	res := ToUniversal(context.Background(), contents, media)
	require.True(t, res.Succeeded(), "issues: %v", res.Issues)
	mediaIssues := res.ForItem(issues.ItemMedia)
	require.Len(t, mediaIssues, 2)
	assert.Contains(t, mediaIssues[0].Message, `"missing.png"`)
	assert.Contains(t, mediaIssues[1].Message, `"gone.mp3"`)
	for _, is := range mediaIssues {
		assert.Equal(t, issues.SeverityWarning, is.Severity)
	}
	assert.Len(t, res.Data.Notes(), 1)
}

func TestToUniversal_Compaction(t *testing.T) {
	contents := basicContents(t, [2]string{"Q", "A"})
	contents.NoteTypes = append(contents.NoteTypes, stockType(t, "Cloze"))

	res := ToUniversal(context.Background(), contents, nil)
	require.True(t, res.Succeeded())
	assert.Len(t, res.Data.Decks(), 2)
	assert.Len(t, res.Data.NoteTypes(), 2)

	res = ToUniversal(context.Background(), contents, nil, WithCompaction(true))
	require.True(t, res.Succeeded())
	require.Len(t, res.Data.Decks(), 1)
	assert.Equal(t, "Test Deck", res.Data.Decks()[0].Name)
	assert.Len(t, res.Data.NoteTypes(), 1)
}

func TestCloze(t *testing.T) {
	cloze := stockType(t, "Cloze")
	contents := &Contents{
		Decks:     []Deck{DefaultDeck(), {ID: testDeckID, Name: "Test Deck"}},
		NoteTypes: []NoteType{cloze},
		Notes: []Note{{ID: testNoteID, ModelID: cloze.ID,
			Fields: JoinFields([]string{"{{c1::Paris}} is the capital of {{c2::France::country}}", "extra"})}},
		Cards: []Card{
			{ID: testCardID, NoteID: testNoteID, DeckID: testDeckID, Ord: 0},
			{ID: testCardID + 1, NoteID: testNoteID, DeckID: testDeckID, Ord: 1},
			{ID: testCardID + 2, NoteID: testNoteID, DeckID: testDeckID, Ord: 4},
		},
	}

	res := ToUniversal(context.Background(), contents, nil)
	require.Equal(t, issues.StatusPartial, res.Status)
	cardIssues := res.ForItem(issues.ItemCard)
	require.Len(t, cardIssues, 1)
	assert.Contains(t, cardIssues[0].Message, "cloze ordinal 5")

	u := res.Data
	require.Len(t, u.Cards(), 2)
	nt := u.NoteTypes()[0]
	assert.Equal(t, srs.KindCloze, nt.Kind)
	for _, c := range u.Cards() {
		assert.Equal(t, nt.Templates[0].ID, c.TemplateID)
	}

	p := fromUniversal(t, u)
	vc := vendorContents(t, p)
	require.Len(t, vc.Cards, 2)
	ords := []int{vc.Cards[0].Ord, vc.Cards[1].Ord}
	sort.Ints(ords)
	assert.Equal(t, []int{0, 1}, ords)
	assert.Equal(t, []int64{testCardID, testCardID + 1}, []int64{vc.Cards[0].ID, vc.Cards[1].ID})
	require.Len(t, vc.NoteTypes, 1)
	assert.Equal(t, KindCloze, vc.NoteTypes[0].Type)
}

func TestClozeOrdinals(t *testing.T) {
	assert.Equal(t, []int{1, 2, 3}, ClozeOrdinals("{{c3::a}} {{c1::b}}", "{{c2::c::hint}} {{c1::d}}"))
	assert.Empty(t, ClozeOrdinals("no deletions", "{{c0::zero}}"))
}

func TestFromUniversal_DeckRoundTrip(t *testing.T) {
	u := srs.NewPackage()
	deck, err := srs.NewDeck(srs.DeckParams{Name: "Test Deck", Description: "A deck for testing"})
	require.NoError(t, err)
	require.NoError(t, u.AddDeck(deck))

	p := fromUniversal(t, u)
	vc := vendorContents(t, p)

	var vendorID int64
	for _, d := range vc.Decks {
		if d.Name == "Test Deck" {
			vendorID = d.ID
		}
	}
	require.NotZero(t, vendorID)
	assert.NotEqual(t, DefaultDeckID, vendorID)

	res := p.ToUniversal(context.Background())
	require.True(t, res.Succeeded(), "issues: %v", res.Issues)

	var back srs.Deck
	for _, d := range res.Data.Decks() {
		if d.Name == "Test Deck" {
			back = d
		}
	}
	assert.Equal(t, "Test Deck", back.Name)
	assert.Equal(t, "A deck for testing", back.Description)
	orig, ok := back.Extensions.OriginalID()
	require.True(t, ok)
	assert.Equal(t, strconv.FormatInt(vendorID, 10), orig)
}

func TestFromUniversal_DefaultDeck(t *testing.T) {
	p := fromUniversal(t, universalFixture(t))
	vc := vendorContents(t, p)
	require.Len(t, vc.Decks, 2)

	var names []string
	for _, d := range vc.Decks {
		names = append(names, d.Name)
		if d.ID == DefaultDeckID {
			assert.Equal(t, "Default", d.Name)
		}
	}
	assert.ElementsMatch(t, []string{"Default", "Test Deck"}, names)
}

func TestFromUniversal_FieldOrder(t *testing.T) {
	names := []string{"A", "B", "C", "D", "E", "F"}
	values := []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot"}

	u := srs.NewPackage()
	deck, err := srs.NewDeck(srs.DeckParams{Name: "Letters"})
	require.NoError(t, err)
	require.NoError(t, u.AddDeck(deck))

	var fields []srs.Field
	for i, n := range names {
		fields = append(fields, srs.Field{ID: i, Name: n})
	}
	nt, err := srs.NewNoteType(srs.NoteTypeParams{
		Name:      "Six Fields",
		Fields:    fields,
		Templates: []srs.Template{{ID: 0, Name: "Card 1", QuestionTemplate: "{{A}}", AnswerTemplate: "{{F}}"}},
	})
	require.NoError(t, err)
	require.NoError(t, u.AddNoteType(nt))

	fv, err := srs.ZipFields(nt, values)
	require.NoError(t, err)
	note, err := srs.NewNote(nt, srs.NoteParams{DeckID: deck.ID, Fields: fv})
	require.NoError(t, err)
	require.NoError(t, u.AddNote(note))

	p := fromUniversal(t, u)
	vc := vendorContents(t, p)
	require.Len(t, vc.Notes, 1)
	assert.Equal(t, strings.Join(values, FieldSeparator), vc.Notes[0].Fields)
	assert.Equal(t, "alpha", vc.Notes[0].SortField)
	assert.Equal(t, FieldChecksum(values), vc.Notes[0].Checksum)
	require.Len(t, vc.NoteTypes, 1)
	for i, f := range vc.NoteTypes[0].Fields {
		assert.Equal(t, names[i], f.Name)
		assert.Equal(t, i, f.Ord)
	}

	// The note had no universal cards, so one vendor card is created for it.
	require.Len(t, vc.Cards, 1)
	assert.Equal(t, 0, vc.Cards[0].Ord)

	res := p.ToUniversal(context.Background())
	require.True(t, res.Succeeded(), "issues: %v", res.Issues)
	require.Len(t, res.Data.Notes(), 1)
	back := res.Data.Notes()[0]
	assert.Equal(t, values, back.Values())
	for i, fv := range back.Fields {
		assert.Equal(t, names[i], fv.Name)
	}
}

type vendorIDs struct {
	decks, noteTypes, notes, cards, reviews []int64
}

func collectVendorIDs(c Contents) vendorIDs {
	var ids vendorIDs
	for _, d := range c.Decks {
		ids.decks = append(ids.decks, d.ID)
	}
	for _, nt := range c.NoteTypes {
		ids.noteTypes = append(ids.noteTypes, nt.ID)
	}
	for _, n := range c.Notes {
		ids.notes = append(ids.notes, n.ID)
	}
	for _, cd := range c.Cards {
		ids.cards = append(ids.cards, cd.ID)
	}
	for _, r := range c.Reviews {
		ids.reviews = append(ids.reviews, r.ID.Int64)
	}
	for _, s := range [][]int64{ids.decks, ids.noteTypes, ids.notes, ids.cards, ids.reviews} {
		sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
	}
	return ids
}

func TestRoundTrip_IdentityStable(t *testing.T) {
	u := universalFixture(t)
	var previous *vendorIDs

	for hop := 0; hop < 3; hop++ {
		p := fromUniversal(t, u)
		vc := vendorContents(t, p)
		ids := collectVendorIDs(vc)

		require.Len(t, ids.notes, 1, "hop %d", hop)
		require.Len(t, ids.cards, 2, "hop %d", hop)
		require.Len(t, ids.reviews, 1, "hop %d", hop)
		if previous != nil {
			assert.Equal(t, *previous, ids, "vendor ids changed on hop %d", hop)
		}
		previous = &ids

		res := p.ToUniversal(context.Background())
		require.True(t, res.Succeeded(), "hop %d: %v", hop, res.Issues)
		u = res.Data

		for _, n := range u.Notes() {
			orig, ok := ParseOriginalID(n.Extensions)
			require.True(t, ok)
			assert.Contains(t, ids.notes, orig)
			assert.Equal(t, []string{"Hello", "World"}, n.Values())
			assert.Equal(t, []string{"greeting"}, n.Tags)
		}
		for _, c := range u.Cards() {
			assert.Equal(t, 2500, c.Scheduling.EaseFactor)
			assert.Equal(t, 5, c.Scheduling.Interval)
		}
		require.Len(t, u.Reviews(), 1)
		assert.Equal(t, srs.ScoreEasy, u.Reviews()[0].Score)
	}
}

func TestFromUniversal_OriginalIDCollisions(t *testing.T) {
	u := srs.NewPackage()
	var decks []srs.Deck
	for _, name := range []string{"One", "Two", "Three"} {
		d, err := srs.NewDeck(srs.DeckParams{Name: name, Extensions: srs.Extensions{srs.ExtOriginalID: "5000"}})
		require.NoError(t, err)
		require.NoError(t, u.AddDeck(d))
		decks = append(decks, d)
	}
	bad, err := srs.NewDeck(srs.DeckParams{Name: "Bad", Extensions: srs.Extensions{srs.ExtOriginalID: "not a number"}})
	require.NoError(t, err)
	require.NoError(t, u.AddDeck(bad))

	c := issues.NewCollector(issues.BestEffort, nil)
	contents := buildVendor(u, c, testNow())

	byName := make(map[string]int64)
	seen := make(map[int64]bool)
	for _, d := range contents.Decks {
		byName[d.Name] = d.ID
		assert.False(t, seen[d.ID], "duplicate vendor deck id %d", d.ID)
		seen[d.ID] = true
	}
	assert.Equal(t, int64(5000), byName["One"])
	assert.NotEqual(t, int64(5000), byName["Two"])
	assert.NotEqual(t, int64(5000), byName["Three"])
	assert.Equal(t, DefaultDeckID, byName["Default"])

	deckIssues := c.Issues()
	require.Len(t, deckIssues, 3)
	for _, is := range deckIssues {
		assert.Equal(t, issues.SeverityWarning, is.Severity)
		assert.Equal(t, issues.ItemDeck, is.Details.ItemType)
	}
	assert.Equal(t, issues.StatusSuccess, c.Status())
}

func TestFromUniversal_DefaultDeckClaimed(t *testing.T) {
	u := srs.NewPackage()
	d, err := srs.NewDeck(srs.DeckParams{Name: "My Default", Extensions: srs.Extensions{srs.ExtOriginalID: "1"}})
	require.NoError(t, err)
	require.NoError(t, u.AddDeck(d))

	contents := buildVendor(u, issues.NewCollector(issues.BestEffort, nil), testNow())
	require.Len(t, contents.Decks, 1)
	assert.Equal(t, DefaultDeckID, contents.Decks[0].ID)
	assert.Equal(t, "My Default", contents.Decks[0].Name)
}

func TestPackage_SaveAndRead(t *testing.T) {
	p := fromUniversal(t, universalFixture(t))
	require.NoError(t, p.AddMedia("sound.mp3", strings.NewReader("mp3 bytes")))
	require.NoError(t, p.AddMedia("image.png", strings.NewReader("png bytes")))
	assert.ErrorIs(t, p.AddMedia("../escape.png", strings.NewReader("x")), ErrInvalidFilename)

	path := filepath.Join(t.TempDir(), "out.apkg")
	require.NoError(t, p.Save(path))

	res := ReadPackage(context.Background(), path, WithTempDir(t.TempDir()))
	require.True(t, res.Succeeded(), "issues: %v", res.Issues)
	loaded := res.Data
	defer loaded.Close()

	// Media is renumbered in filename order.
	assert.Equal(t, map[string]string{"0": "image.png", "1": "sound.mp3"}, loaded.MediaFiles())

	rc, err := loaded.OpenMedia("sound.mp3")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "mp3 bytes", string(data))

	_, err = loaded.OpenMedia("nope.png")
	assert.ErrorIs(t, err, ErrMediaNotFound)

	conv := loaded.ToUniversal(context.Background())
	require.True(t, conv.Succeeded(), "issues: %v", conv.Issues)
	counts := conv.Data.Counts()
	assert.Equal(t, srs.Counts{Decks: 2, NoteTypes: 1, Notes: 1, Cards: 2, Reviews: 1}, counts)

	require.NoError(t, loaded.Close())
	require.NoError(t, loaded.Close())
	assert.ErrorIs(t, loaded.Save(path), ErrPackageClosed)
	assert.True(t, loaded.ToUniversal(context.Background()).Failed())
}

func TestConvertPackageFile(t *testing.T) {
	p := fromUniversal(t, universalFixture(t))
	path := filepath.Join(t.TempDir(), "fixture.apkg")
	require.NoError(t, p.Save(path))

	res := ConvertPackageFile(context.Background(), path, WithTempDir(t.TempDir()), WithCompaction(true))
	require.True(t, res.Succeeded(), "issues: %v", res.Issues)
	assert.Len(t, res.Data.Decks(), 1)

	res = ConvertPackageFile(context.Background(), filepath.Join(t.TempDir(), "missing.apkg"))
	require.True(t, res.Failed())
	assert.Contains(t, res.Issues[0].Message, "cannot read package file")
}

func TestEncodeDecodeBytes(t *testing.T) {
	p := fromUniversal(t, universalFixture(t))
	res := ReadPackageBytes(context.Background(), encodePackage(t, p), WithTempDir(t.TempDir()))
	require.True(t, res.Succeeded(), "issues: %v", res.Issues)
	defer res.Data.Close()

	vc := vendorContents(t, res.Data)
	require.Len(t, vc.Notes, 1)
	assert.Equal(t, " greeting ", vc.Notes[0].Tags)
	assert.NotEmpty(t, vc.Notes[0].GUID)
}

// singleNoteUniversal returns a package with one note of a one-template
// note type of the given kind and n cards for it.
func singleNoteUniversal(t *testing.T, kind srs.NoteTypeKind, text string, tags []string, n int) (*srs.Package, []srs.Card) {
	t.Helper()
	u := srs.NewPackage()

	deck, err := srs.NewDeck(srs.DeckParams{Name: "Test Deck"})
	require.NoError(t, err)
	require.NoError(t, u.AddDeck(deck))

	nt, err := srs.NewNoteType(srs.NoteTypeParams{
		Name:      "Single",
		Kind:      kind,
		Fields:    []srs.Field{{ID: 0, Name: "Text"}},
		Templates: []srs.Template{{ID: 0, Name: "Card 1", QuestionTemplate: "{{Text}}", AnswerTemplate: "{{Text}}"}},
	})
	require.NoError(t, err)
	require.NoError(t, u.AddNoteType(nt))

	fields, err := srs.ZipFields(nt, []string{text})
	require.NoError(t, err)
	note, err := srs.NewNote(nt, srs.NoteParams{DeckID: deck.ID, Fields: fields, Tags: tags})
	require.NoError(t, err)
	require.NoError(t, u.AddNote(note))

	var cards []srs.Card
	for i := 0; i < n; i++ {
		card, err := srs.NewCard(srs.CardParams{NoteID: note.ID, TemplateID: 0})
		require.NoError(t, err)
		require.NoError(t, u.AddCard(card))
		cards = append(cards, card)
	}
	return u, cards
}

func TestRoundTrip_ReviewKeepsTimestamp(t *testing.T) {
	u, cards := singleNoteUniversal(t, srs.KindStandard, "front", nil, 1)
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	rev, err := srs.NewReview(srs.ReviewParams{ID: srs.NewID(), CardID: cards[0].ID, Timestamp: at, Score: srs.ScoreHard})
	require.NoError(t, err)
	require.NoError(t, u.AddReview(rev))

	p := fromUniversal(t, u)
	vc := vendorContents(t, p)
	require.Len(t, vc.Reviews, 1)
	assert.Equal(t, at.UnixMilli(), vc.Reviews[0].ID.Int64)

	res := p.ToUniversal(context.Background())
	require.True(t, res.Succeeded(), "%v", res.Issues)
	require.Len(t, res.Data.Reviews(), 1)
	assert.True(t, at.Equal(res.Data.Reviews()[0].Timestamp), "got %s", res.Data.Reviews()[0].Timestamp)
}

func TestTimestampCandidate(t *testing.T) {
	at := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	id := srs.NewIDAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, at.UnixMilli(), timestampCandidate(at, id))

	ms, _ := srs.IDTimestamp(id)
	assert.Equal(t, ms, timestampCandidate(time.Time{}, id))
}

func TestCloze_NoDeletions(t *testing.T) {
	u, _ := singleNoteUniversal(t, srs.KindCloze, "no deletion here", nil, 1)

	res := FromUniversal(context.Background(), u, WithTempDir(t.TempDir()))
	require.Equal(t, issues.StatusSuccess, res.Status, "%v", res.Issues)
	t.Cleanup(func() { res.Data.Close() })
	assert.Len(t, res.Filter(issues.SeverityWarning), 1)

	vc := vendorContents(t, res.Data)
	require.Len(t, vc.Cards, 1)
	assert.Equal(t, 0, vc.Cards[0].Ord)

	back := res.Data.ToUniversal(context.Background())
	require.Equal(t, issues.StatusSuccess, back.Status, "%v", back.Issues)
	assert.Len(t, back.Data.Cards(), 1)

	// Only ordinal 0 is accepted for a note without deletions.
	vc.Cards = append(vc.Cards, Card{ID: vc.Cards[0].ID + 1, NoteID: vc.Cards[0].NoteID, DeckID: vc.Cards[0].DeckID, Ord: 1})
	again := ToUniversal(context.Background(), &vc, nil)
	require.Equal(t, issues.StatusPartial, again.Status)
	cardIssues := again.ForItem(issues.ItemCard)
	require.Len(t, cardIssues, 1)
	assert.Contains(t, cardIssues[0].Message, "cloze ordinal 2")
	assert.Len(t, again.Data.Cards(), 1)
}

func TestFromUniversal_TagsWithWhitespace(t *testing.T) {
	u, _ := singleNoteUniversal(t, srs.KindStandard, "front", []string{"my tag", "plain"}, 1)

	res := FromUniversal(context.Background(), u, WithTempDir(t.TempDir()))
	require.Equal(t, issues.StatusSuccess, res.Status, "%v", res.Issues)
	t.Cleanup(func() { res.Data.Close() })
	noteIssues := res.ForItem(issues.ItemNote)
	require.Len(t, noteIssues, 1)
	assert.Equal(t, issues.SeverityWarning, noteIssues[0].Severity)
	assert.Contains(t, noteIssues[0].Message, `stored as "my_tag"`)

	vc := vendorContents(t, res.Data)
	require.Len(t, vc.Notes, 1)
	assert.Equal(t, " my_tag plain ", vc.Notes[0].Tags)

	back := res.Data.ToUniversal(context.Background())
	require.True(t, back.Succeeded(), "%v", back.Issues)
	assert.Equal(t, []string{"my_tag", "plain"}, back.Data.Notes()[0].Tags)
}

// brokenExportUniversal has a cloze card matching no deletion and a review
// on that card: two row-level errors when writing vendor rows.
func brokenExportUniversal(t *testing.T) *srs.Package {
	t.Helper()
	u, cards := singleNoteUniversal(t, srs.KindCloze, "{{c1::Paris}} is a capital", nil, 2)
	for _, c := range cards {
		rev, err := srs.NewReview(srs.ReviewParams{CardID: c.ID, Score: srs.ScoreNormal})
		require.NoError(t, err)
		require.NoError(t, u.AddReview(rev))
	}
	return u
}

func TestFromUniversal_BestEffortIsPartial(t *testing.T) {
	res := FromUniversal(context.Background(), brokenExportUniversal(t), WithTempDir(t.TempDir()))
	require.Equal(t, issues.StatusPartial, res.Status)
	require.NotNil(t, res.Data)
	t.Cleanup(func() { res.Data.Close() })

	errs := res.Filter(issues.SeverityError)
	require.Len(t, errs, 2, "%v", res.Issues)
	assert.Contains(t, errs[0].Message, "does not match any cloze deletion")
	assert.Contains(t, errs[1].Message, "which was not exported")

	vc := vendorContents(t, res.Data)
	assert.Len(t, vc.Notes, 1)
	assert.Len(t, vc.Cards, 1)
	assert.Len(t, vc.Reviews, 1)
}

func TestFromUniversal_StrictIsFailure(t *testing.T) {
	dir := t.TempDir()
	res := FromUniversal(context.Background(), brokenExportUniversal(t), WithTempDir(dir), WithErrorHandling(issues.Strict))
	require.Equal(t, issues.StatusFailure, res.Status)
	assert.Nil(t, res.Data)
	assert.Len(t, res.Filter(issues.SeverityError), 2)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "no package workspace may be left behind")
}
