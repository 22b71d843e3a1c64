package anki

import (
	"context"
	"fmt"
	"time"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

// scoreFromEase maps a revlog ease button to a review score.
func scoreFromEase(ease int) (srs.ReviewScore, bool) {
	switch ease {
	case 1:
		return srs.ScoreAgain, true
	case 2:
		return srs.ScoreHard, true
	case 3:
		return srs.ScoreNormal, true
	case 4:
		return srs.ScoreEasy, true
	default:
		return 0, false
	}
}

func easeFromScore(s srs.ReviewScore) int {
	switch s {
	case srs.ScoreAgain:
		return 1
	case srs.ScoreHard:
		return 2
	case srs.ScoreEasy:
		return 4
	default:
		return 3
	}
}

// ToUniversal converts the tables read from r into a universal package.
// media maps archive member names to filenames; when it is nil, media
// references are not checked.
func ToUniversal(ctx context.Context, r Reader, media map[string]string, opts ...Option) issues.Result[*srs.Package] {
	o := newOptions(opts)
	c := o.collector()
	out := toUniversal(ctx, r, media, o, c)
	if out == nil {
		return issues.CreateFailureResult[*srs.Package](c)
	}
	return issues.CreateResult(c, out)
}

type universalBuilder struct {
	c     *issues.Collector
	out   *srs.Package
	media map[string]bool

	decks      map[int64]srs.ID
	noteTypes  map[int64]srs.NoteType
	notes      map[int64]srs.Note
	noteTypeOf map[int64]srs.NoteType
	clozeOrds  map[int64][]int
	cards      map[int64]srs.ID
}

func toUniversal(ctx context.Context, r Reader, media map[string]string, o *options, c *issues.Collector) *srs.Package {
	var contents Contents
	var err error
	if contents.Decks, err = r.ReadDecks(ctx); err != nil {
		packageIssue(c, "failed to read decks: %v", err)
		return nil
	}
	if contents.NoteTypes, err = r.ReadNoteTypes(ctx); err != nil {
		packageIssue(c, "failed to read note types: %v", err)
		return nil
	}
	if contents.Notes, err = r.ReadNotes(ctx); err != nil {
		packageIssue(c, "failed to read notes: %v", err)
		return nil
	}
	if contents.Cards, err = r.ReadCards(ctx); err != nil {
		packageIssue(c, "failed to read cards: %v", err)
		return nil
	}
	if contents.Reviews, err = r.ReadReviews(ctx); err != nil {
		packageIssue(c, "failed to read reviews: %v", err)
		return nil
	}

	b := &universalBuilder{
		c:          c,
		out:        srs.NewPackage(),
		decks:      make(map[int64]srs.ID),
		noteTypes:  make(map[int64]srs.NoteType),
		notes:      make(map[int64]srs.Note),
		noteTypeOf: make(map[int64]srs.NoteType),
		clozeOrds:  make(map[int64][]int),
		cards:      make(map[int64]srs.ID),
	}
	if media != nil {
		b.media = make(map[string]bool, len(media))
		for _, name := range media {
			b.media[name] = true
		}
	}

	b.convertDecks(contents.Decks)
	b.convertNoteTypes(contents.NoteTypes)
	b.convertNotes(contents.Notes, contents.Cards)
	b.convertCards(contents.Cards)
	b.convertReviews(contents.Reviews)

	if err := ctx.Err(); err != nil {
		packageIssue(c, "conversion cancelled: %v", err)
		return nil
	}

	if o.compact {
		decks, noteTypes := b.out.Compact()
		o.logger.Debugw("Compacted universal package", "removedDecks", decks, "removedNoteTypes", noteTypes)
	}

	counts := b.out.Counts()
	o.logger.Infow("Converted package to universal model",
		"decks", counts.Decks, "noteTypes", counts.NoteTypes, "notes", counts.Notes,
		"cards", counts.Cards, "reviews", counts.Reviews, "status", c.Status())
	return b.out
}

func (b *universalBuilder) convertDecks(decks []Deck) {
	for _, d := range decks {
		cfg, _ := normalizeJSON(d.Extra).(map[string]any)
		deck, err := srs.NewDeck(srs.DeckParams{
			ID:          srs.NewIDAt(time.UnixMilli(d.ID)),
			Name:        d.Name,
			Description: d.Description,
			Config:      cfg,
			Extensions:  originalIDExt(d.ID),
		})
		if err == nil {
			err = b.out.AddDeck(deck)
		}
		if err != nil {
			b.c.Error(fmt.Sprintf("deck %d could not be converted: %v", d.ID, err), issues.Details{ItemType: issues.ItemDeck, OriginalData: d})
			continue
		}
		b.decks[d.ID] = deck.ID
	}
}

func (b *universalBuilder) convertNoteTypes(nts []NoteType) {
	for _, nt := range nts {
		kind := srs.KindStandard
		switch nt.Type {
		case KindStandard:
		case KindCloze:
			kind = srs.KindCloze
		default:
			b.c.Error(fmt.Sprintf("note type %d has unknown kind %d", nt.ID, nt.Type), issues.Details{ItemType: issues.ItemNoteType, OriginalData: nt})
			continue
		}

		payload := noteTypePayload{
			CSS:       nt.CSS,
			LatexPre:  nt.LatexPre,
			LatexPost: nt.LatexPost,
			LatexSVG:  nt.LatexSVG,
			SortField: nt.SortField,
			Req:       nt.Req,
		}
		fields := make([]srs.Field, len(nt.Fields))
		for i, f := range nt.Fields {
			fields[i] = srs.Field{ID: f.Ord, Name: f.Name}
			payload.Fields = append(payload.Fields, fieldPayload{Sticky: f.Sticky, RTL: f.RTL, Font: f.Font, Size: f.Size})
		}
		templates := make([]srs.Template, len(nt.Templates))
		for i, t := range nt.Templates {
			templates[i] = srs.Template{ID: t.Ord, Name: t.Name, QuestionTemplate: t.Qfmt, AnswerTemplate: t.Afmt}
			payload.Templates = append(payload.Templates, templatePayload{Bqfmt: t.Bqfmt, Bafmt: t.Bafmt})
		}

		converted, err := srs.NewNoteType(srs.NoteTypeParams{
			ID:         srs.NewIDAt(time.UnixMilli(nt.ID)),
			Name:       nt.Name,
			Kind:       kind,
			Fields:     fields,
			Templates:  templates,
			Extensions: withPayload(originalIDExt(nt.ID), payload),
		})
		if err == nil {
			err = b.out.AddNoteType(converted)
		}
		if err != nil {
			b.c.Error(fmt.Sprintf("note type %d could not be converted: %v", nt.ID, err), issues.Details{ItemType: issues.ItemNoteType, OriginalData: nt})
			continue
		}
		b.noteTypes[nt.ID] = converted
	}
}

func (b *universalBuilder) convertNotes(notes []Note, cards []Card) {
	cardsByNote := make(map[int64][]Card)
	for _, cd := range cards {
		cardsByNote[cd.NoteID] = append(cardsByNote[cd.NoteID], cd)
	}

	for _, n := range notes {
		details := issues.Details{ItemType: issues.ItemNote, OriginalData: n}

		nt, ok := b.noteTypes[n.ModelID]
		if !ok {
			b.c.Error(fmt.Sprintf("note %d references unknown note type %d", n.ID, n.ModelID), details)
			continue
		}

		values := SplitFields(n.Fields)
		fields, err := srs.ZipFields(nt, values)
		if err != nil {
			b.c.Error(fmt.Sprintf("note %d has %d field values but note type %q has %d fields", n.ID, len(values), nt.Name, len(nt.Fields)), details)
			continue
		}

		noteCards := cardsByNote[n.ID]
		if len(noteCards) == 0 {
			b.c.Error(fmt.Sprintf("note %d has no cards, its deck cannot be determined", n.ID), details)
			continue
		}
		vendorDeck := noteCards[0].HomeDeckID()
		deckID, ok := b.decks[vendorDeck]
		if !ok {
			b.c.Error(fmt.Sprintf("note %d is in deck %d which does not exist", n.ID, vendorDeck), details)
			continue
		}

		if b.media != nil {
			for _, v := range values {
				for _, ref := range MediaReferences(v) {
					if !b.media[ref] {
						b.c.Warning(fmt.Sprintf("note %d references missing media file %q", n.ID, ref), issues.Details{ItemType: issues.ItemMedia, OriginalData: ref})
					}
				}
			}
		}

		note, err := srs.NewNote(nt, srs.NoteParams{
			ID:         srs.NewIDAt(time.UnixMilli(n.ID)),
			DeckID:     deckID,
			Fields:     fields,
			Tags:       splitTags(n.Tags),
			CreatedAt:  time.UnixMilli(n.ID),
			ModifiedAt: time.Unix(n.Mod, 0),
			Extensions: withPayload(originalIDExt(n.ID), notePayload{GUID: n.GUID, Flags: n.Flags, Data: n.Data}),
		})
		if err == nil {
			err = b.out.AddNote(note)
		}
		if err != nil {
			b.c.Error(fmt.Sprintf("note %d could not be converted: %v", n.ID, err), details)
			continue
		}

		b.notes[n.ID] = note
		b.noteTypeOf[n.ID] = nt
		if nt.Kind == srs.KindCloze {
			b.clozeOrds[n.ID] = ClozeOrdinals(values...)
		}
	}
}

func (b *universalBuilder) convertCards(cards []Card) {
	for _, cd := range cards {
		details := issues.Details{ItemType: issues.ItemCard, OriginalData: cd}

		note, ok := b.notes[cd.NoteID]
		if !ok {
			b.c.Error(fmt.Sprintf("orphan card %d: note %d was not converted", cd.ID, cd.NoteID), details)
			continue
		}
		nt := b.noteTypeOf[cd.NoteID]

		payload := cardPayload{Data: cd.Data}
		var templateID int
		if nt.Kind == srs.KindCloze {
			ords := b.clozeOrds[cd.NoteID]
			// A note without deletions still owns the card at ordinal 0.
			if !containsInt(ords, cd.Ord+1) && (len(ords) > 0 || cd.Ord != 0) {
				b.c.Error(fmt.Sprintf("card %d has cloze ordinal %d but note %d has no matching deletion", cd.ID, cd.Ord+1, cd.NoteID), details)
				continue
			}
			templateID = nt.Templates[0].ID
			ord := cd.Ord
			payload.Ord = &ord
		} else {
			tmpl, ok := nt.Template(cd.Ord)
			if !ok {
				b.c.Error(fmt.Sprintf("card %d uses template %d which note type %q does not have", cd.ID, cd.Ord, nt.Name), details)
				continue
			}
			templateID = tmpl.ID
		}

		card, err := srs.NewCard(srs.CardParams{
			ID:         srs.NewIDAt(time.UnixMilli(cd.ID)),
			NoteID:     note.ID,
			TemplateID: templateID,
			Scheduling: srs.Scheduling{
				Type:       cd.Type,
				Queue:      cd.Queue,
				Due:        cd.Due,
				Interval:   cd.Ivl,
				EaseFactor: cd.Factor,
				Reps:       cd.Reps,
				Lapses:     cd.Lapses,
				Left:       cd.Left,
				Flags:      cd.Flags,
			},
			Extensions: withPayload(originalIDExt(cd.ID), payload),
		})
		if err == nil {
			err = b.out.AddCard(card)
		}
		if err != nil {
			b.c.Error(fmt.Sprintf("card %d could not be converted: %v", cd.ID, err), details)
			continue
		}
		b.cards[cd.ID] = card.ID
	}
}

func (b *universalBuilder) convertReviews(reviews []Review) {
	for _, r := range reviews {
		details := issues.Details{ItemType: issues.ItemReview, OriginalData: r}

		if !r.ID.Valid {
			b.c.Error("review id is undefined", details)
			continue
		}
		id := r.ID.Int64

		cardID, ok := b.cards[r.CardID]
		if !ok {
			b.c.Error(fmt.Sprintf("review %d references missing card %d", id, r.CardID), details)
			continue
		}

		score, ok := scoreFromEase(r.Ease)
		if !ok {
			b.c.Error(fmt.Sprintf("unknown review score %d in review %d", r.Ease, id), details)
			continue
		}

		review, err := srs.NewReview(srs.ReviewParams{
			ID:        srs.NewIDAt(time.UnixMilli(id)),
			CardID:    cardID,
			Timestamp: time.UnixMilli(id),
			Score:     score,
			Extensions: withPayload(originalIDExt(id), reviewPayload{
				Ivl: r.Ivl, LastIvl: r.LastIvl, Factor: r.Factor, Time: r.Time, Type: r.Type,
			}),
		})
		if err == nil {
			err = b.out.AddReview(review)
		}
		if err != nil {
			b.c.Error(fmt.Sprintf("review %d could not be converted: %v", id, err), details)
			continue
		}
	}
}
