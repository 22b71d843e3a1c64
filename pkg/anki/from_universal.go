package anki

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

// FromUniversal builds a legacy2 package from a universal package. Vendor
// ids come from recorded original ids where possible. The returned package
// must be closed by the caller; on failure it is closed already.
func FromUniversal(ctx context.Context, u *srs.Package, opts ...Option) issues.Result[*Package] {
	o := newOptions(opts)
	c := o.collector()

	contents := buildVendor(u, c, time.Now())
	o.logger.Debugw("Built vendor rows", "mode", c.Mode(), "status", c.Status())
	if c.Status() == issues.StatusFailure {
		return issues.CreateFailureResult[*Package](c)
	}

	p, err := NewPackage(ctx, opts...)
	if err != nil {
		packageIssue(c, "failed to create package: %v", err)
		return issues.CreateFailureResult[*Package](c)
	}
	if err := p.collection.Write(ctx, contents); err != nil {
		p.Close()
		packageIssue(c, "failed to write collection: %v", err)
		return issues.CreateFailureResult[*Package](c)
	}

	o.logger.Infow("Converted universal model to package",
		"decks", len(contents.Decks), "noteTypes", len(contents.NoteTypes), "notes", len(contents.Notes),
		"cards", len(contents.Cards), "reviews", len(contents.Reviews), "status", c.Status())

	res := issues.CreateResult(c, p)
	if res.Failed() {
		p.Close()
	}
	return res
}

type vendorBuilder struct {
	c   *issues.Collector
	u   *srs.Package
	now time.Time
	out Contents

	deckIDs     map[srs.ID]int64
	noteTypeIDs map[srs.ID]int64
	noteIDs     map[srs.ID]int64
	cardIDs     map[srs.ID]int64
}

// buildVendor converts u into vendor rows without touching any database.
func buildVendor(u *srs.Package, c *issues.Collector, now time.Time) Contents {
	b := &vendorBuilder{
		c:           c,
		u:           u,
		now:         now,
		deckIDs:     make(map[srs.ID]int64),
		noteTypeIDs: make(map[srs.ID]int64),
		noteIDs:     make(map[srs.ID]int64),
		cardIDs:     make(map[srs.ID]int64),
	}
	b.buildDecks()
	b.buildNoteTypes()
	emitted := b.buildNotes()
	b.buildCards(emitted)
	b.buildReviews()
	return b.out
}

func (b *vendorBuilder) buildDecks() {
	decks := b.u.Decks()
	alloc := NewIDAllocator()

	defaultClaimed := false
	for _, d := range decks {
		if id, ok := ParseOriginalID(d.Extensions); ok && id == DefaultDeckID {
			defaultClaimed = true
		}
	}
	if !defaultClaimed {
		alloc.Reserve(DefaultDeckID)
	}

	items := make([]identity, len(decks))
	for i, d := range decks {
		items[i] = identity{label: fmt.Sprintf("deck %q", d.Name), ext: d.Extensions, candidate: candidateID(d.ID, time.Time{})}
	}
	ids := resolveIDs(alloc, items, issues.ItemDeck, b.c)

	hasDefault := false
	for i, d := range decks {
		extra := defaultDeckExtra()
		for k, v := range d.Config {
			extra[k] = v
		}
		b.out.Decks = append(b.out.Decks, Deck{
			ID:          ids[i],
			Name:        d.Name,
			Description: d.Description,
			Mod:         b.now.Unix(),
			Extra:       extra,
		})
		b.deckIDs[d.ID] = ids[i]
		if ids[i] == DefaultDeckID {
			hasDefault = true
		}
	}

	if !hasDefault {
		def := DefaultDeck()
		def.Mod = b.now.Unix()
		b.out.Decks = append(b.out.Decks, def)
	}
}

func (b *vendorBuilder) buildNoteTypes() {
	nts := b.u.NoteTypes()
	items := make([]identity, len(nts))
	for i, nt := range nts {
		items[i] = identity{label: fmt.Sprintf("note type %q", nt.Name), ext: nt.Extensions, candidate: candidateID(nt.ID, time.Time{})}
	}
	ids := resolveIDs(NewIDAllocator(), items, issues.ItemNoteType, b.c)

	for i, nt := range nts {
		var payload noteTypePayload
		readPayload(nt.Extensions, &payload)

		kind := KindStandard
		css := DefaultCSS
		if nt.Kind == srs.KindCloze {
			kind = KindCloze
			css = clozeCSS
		}
		if payload.CSS != "" {
			css = payload.CSS
		}

		fields := make([]NoteTypeField, len(nt.Fields))
		for ord, f := range nt.Fields {
			fields[ord] = stockField(f.Name, ord)
			if ord < len(payload.Fields) {
				fp := payload.Fields[ord]
				fields[ord].Sticky = fp.Sticky
				fields[ord].RTL = fp.RTL
				if fp.Font != "" {
					fields[ord].Font = fp.Font
				}
				if fp.Size != 0 {
					fields[ord].Size = fp.Size
				}
			}
		}

		templates := make([]NoteTypeTemplate, len(nt.Templates))
		for ord, t := range nt.Templates {
			templates[ord] = NoteTypeTemplate{Name: t.Name, Ord: ord, Qfmt: t.QuestionTemplate, Afmt: t.AnswerTemplate}
			if ord < len(payload.Templates) {
				templates[ord].Bqfmt = payload.Templates[ord].Bqfmt
				templates[ord].Bafmt = payload.Templates[ord].Bafmt
			}
		}

		req := payload.Req
		if len(req) == 0 && kind == KindStandard {
			req = computeReq(fields, templates)
		}

		sortField := payload.SortField
		if sortField < 0 || sortField >= len(fields) {
			sortField = 0
		}

		did := DefaultDeckID
		b.out.NoteTypes = append(b.out.NoteTypes, NoteType{
			ID:        ids[i],
			Name:      nt.Name,
			Type:      kind,
			Mod:       b.now.Unix(),
			SortField: sortField,
			DeckID:    &did,
			Fields:    fields,
			Templates: templates,
			CSS:       css,
			LatexPre:  firstNonEmpty(payload.LatexPre, DefaultLatexPre),
			LatexPost: firstNonEmpty(payload.LatexPost, DefaultLatexPost),
			LatexSVG:  payload.LatexSVG,
			Req:       req,
			Tags:      []string{},
			Vers:      []any{},
		})
		b.noteTypeIDs[nt.ID] = ids[i]
	}
}

// emittedNote is a note written to the vendor rows with its field values
// in note type order.
type emittedNote struct {
	note     srs.Note
	noteType srs.NoteType
	vendorID int64
	deckID   int64
	values   []string
}

func (b *vendorBuilder) buildNotes() []emittedNote {
	notes := b.u.Notes()
	items := make([]identity, len(notes))
	for i, n := range notes {
		items[i] = identity{label: fmt.Sprintf("note %s", n.ID), ext: n.Extensions, candidate: candidateID(n.ID, n.CreatedAt)}
	}
	ids := resolveIDs(NewIDAllocator(), items, issues.ItemNote, b.c)

	var emitted []emittedNote
	for i, n := range notes {
		details := issues.Details{ItemType: issues.ItemNote, OriginalData: n}
		nt, ok := b.u.NoteType(n.NoteTypeID)
		mid, ok2 := b.noteTypeIDs[n.NoteTypeID]
		if !ok || !ok2 {
			b.c.Error(fmt.Sprintf("note %s references unknown note type %s", n.ID, n.NoteTypeID), details)
			continue
		}
		did, ok := b.deckIDs[n.DeckID]
		if !ok {
			b.c.Error(fmt.Sprintf("note %s references unknown deck %s", n.ID, n.DeckID), details)
			continue
		}

		values := make([]string, len(nt.Fields))
		for j, f := range nt.Fields {
			values[j], _ = n.Value(f.Name)
		}

		var payload notePayload
		readPayload(n.Extensions, &payload)
		guid := payload.GUID
		if guid == "" {
			guid = newGUID()
		}

		modified := n.ModifiedAt
		if modified.IsZero() {
			modified = b.now
		}

		b.out.Notes = append(b.out.Notes, Note{
			ID:        ids[i],
			GUID:      guid,
			ModelID:   mid,
			Mod:       modified.Unix(),
			Tags:      joinTags(b.vendorTags(n)),
			Fields:    JoinFields(values),
			SortField: SortField(values),
			Checksum:  FieldChecksum(values),
			Flags:     payload.Flags,
			Data:      payload.Data,
		})
		b.noteIDs[n.ID] = ids[i]
		emitted = append(emitted, emittedNote{note: n, noteType: nt, vendorID: ids[i], deckID: did, values: values})
	}
	return emitted
}

// plannedCard is a vendor card slot: the universal card filling it, or nil
// when a new card has to be created.
type plannedCard struct {
	card    *srs.Card
	note    int
	ord     int
	noteRef emittedNote
}

func (b *vendorBuilder) buildCards(notes []emittedNote) {
	var plan []plannedCard
	for ni, en := range notes {
		var slots []plannedCard
		if en.noteType.Kind == srs.KindCloze {
			slots = b.planClozeCards(en)
		} else {
			slots = b.planStandardCards(en)
		}
		for _, s := range slots {
			s.note = ni
			s.noteRef = en
			plan = append(plan, s)
		}
	}

	items := make([]identity, len(plan))
	for i, pc := range plan {
		if pc.card == nil {
			items[i] = identity{candidate: pc.noteRef.vendorID}
			continue
		}
		items[i] = identity{label: fmt.Sprintf("card %s", pc.card.ID), ext: pc.card.Extensions, candidate: candidateID(pc.card.ID, time.Time{})}
	}
	ids := resolveIDs(NewIDAllocator(), items, issues.ItemCard, b.c)

	for i, pc := range plan {
		row := Card{
			ID:     ids[i],
			NoteID: pc.noteRef.vendorID,
			DeckID: pc.noteRef.deckID,
			Ord:    pc.ord,
			Mod:    b.now.Unix(),
		}
		if pc.card == nil {
			row.Due = int64(pc.note + 1)
		} else {
			s := pc.card.Scheduling
			row.Type, row.Queue, row.Due = s.Type, s.Queue, s.Due
			row.Ivl, row.Factor, row.Reps, row.Lapses, row.Left, row.Flags = s.Interval, s.EaseFactor, s.Reps, s.Lapses, s.Left, s.Flags
			var payload cardPayload
			readPayload(pc.card.Extensions, &payload)
			row.Data = payload.Data
			b.cardIDs[pc.card.ID] = ids[i]
		}
		b.out.Cards = append(b.out.Cards, row)
	}
}

func (b *vendorBuilder) planStandardCards(en emittedNote) []plannedCard {
	byTemplate := make(map[int]*srs.Card)
	for _, cd := range b.u.CardsForNote(en.note.ID) {
		if _, ok := en.noteType.Template(cd.TemplateID); !ok {
			b.c.Error(fmt.Sprintf("card %s uses template %d which note type %q does not have", cd.ID, cd.TemplateID, en.noteType.Name),
				issues.Details{ItemType: issues.ItemCard, OriginalData: cd})
			continue
		}
		if _, dup := byTemplate[cd.TemplateID]; dup {
			b.c.Error(fmt.Sprintf("card %s duplicates template %d of note %s", cd.ID, cd.TemplateID, en.note.ID),
				issues.Details{ItemType: issues.ItemCard, OriginalData: cd})
			continue
		}
		byTemplate[cd.TemplateID] = &cd
	}

	slots := make([]plannedCard, len(en.noteType.Templates))
	for ord, t := range en.noteType.Templates {
		slots[ord] = plannedCard{card: byTemplate[t.ID], ord: ord}
		if slots[ord].card == nil {
			b.c.Warning(fmt.Sprintf("note %s has no card for template %q, creating a new card", en.note.ID, t.Name),
				issues.Details{ItemType: issues.ItemCard})
		}
	}
	return slots
}

// planClozeCards creates one slot per cloze deletion in the note. Cards
// carrying their vendor ordinal keep it; the rest fill the free slots in
// order.
func (b *vendorBuilder) planClozeCards(en emittedNote) []plannedCard {
	var ords []int
	for _, n := range ClozeOrdinals(en.values...) {
		ords = append(ords, n-1)
	}
	if len(ords) == 0 {
		b.c.Warning(fmt.Sprintf("cloze note %s has no cloze deletions", en.note.ID), issues.Details{ItemType: issues.ItemNote, OriginalData: en.note})
		ords = []int{0}
	}

	byOrd := make(map[int]*srs.Card)
	var unplaced []srs.Card
	for _, cd := range b.u.CardsForNote(en.note.ID) {
		var payload cardPayload
		if readPayload(cd.Extensions, &payload) && payload.Ord != nil {
			ord := *payload.Ord
			if containsInt(ords, ord) && byOrd[ord] == nil {
				byOrd[ord] = &cd
				continue
			}
		}
		unplaced = append(unplaced, cd)
	}

	for _, cd := range unplaced {
		placed := false
		for _, ord := range ords {
			if byOrd[ord] == nil {
				byOrd[ord] = &cd
				placed = true
				break
			}
		}
		if !placed {
			b.c.Error(fmt.Sprintf("card %s of cloze note %s does not match any cloze deletion", cd.ID, en.note.ID),
				issues.Details{ItemType: issues.ItemCard, OriginalData: cd})
		}
	}

	slots := make([]plannedCard, len(ords))
	for i, ord := range ords {
		slots[i] = plannedCard{card: byOrd[ord], ord: ord}
	}
	return slots
}

func (b *vendorBuilder) buildReviews() {
	var kept []srs.Review
	for _, r := range b.u.Reviews() {
		if _, ok := b.cardIDs[r.CardID]; !ok {
			b.c.Error(fmt.Sprintf("review %s references card %s which was not exported", r.ID, r.CardID),
				issues.Details{ItemType: issues.ItemReview, OriginalData: r})
			continue
		}
		kept = append(kept, r)
	}

	items := make([]identity, len(kept))
	for i, r := range kept {
		items[i] = identity{label: fmt.Sprintf("review %s", r.ID), ext: r.Extensions, candidate: timestampCandidate(r.Timestamp, r.ID)}
	}
	ids := resolveIDs(NewIDAllocator(), items, issues.ItemReview, b.c)

	for i, r := range kept {
		row := Review{
			ID:     sql.NullInt64{Int64: ids[i], Valid: true},
			CardID: b.cardIDs[r.CardID],
			Ease:   easeFromScore(r.Score),
			Type:   1,
		}
		var payload reviewPayload
		if readPayload(r.Extensions, &payload) {
			row.Ivl, row.LastIvl, row.Factor, row.Time, row.Type = payload.Ivl, payload.LastIvl, payload.Factor, payload.Time, payload.Type
		}
		b.out.Reviews = append(b.out.Reviews, row)
	}
}

// vendorTags returns the note's tags with inner whitespace replaced, since
// vendor tags are stored space separated.
func (b *vendorBuilder) vendorTags(n srs.Note) []string {
	out := make([]string, 0, len(n.Tags))
	for _, tag := range n.Tags {
		clean := sanitizeTag(tag)
		if clean != tag {
			b.c.Warning(fmt.Sprintf("note %s has tag %q containing whitespace, stored as %q", n.ID, tag, clean),
				issues.Details{ItemType: issues.ItemNote, OriginalData: tag})
		}
		out = append(out, clean)
	}
	return out
}

var fieldRefPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// computeReq derives the "req" list: for each template, the fields whose
// content makes the card non-empty.
func computeReq(fields []NoteTypeField, templates []NoteTypeTemplate) json.RawMessage {
	ordByName := make(map[string]int, len(fields))
	for _, f := range fields {
		ordByName[f.Name] = f.Ord
	}

	req := make([]any, 0, len(templates))
	for _, t := range templates {
		ords := []int{}
		seen := make(map[int]bool)
		for _, m := range fieldRefPattern.FindAllStringSubmatch(t.Qfmt, -1) {
			name := strings.TrimLeft(strings.TrimSpace(m[1]), "#^/")
			if i := strings.LastIndex(name, ":"); i >= 0 {
				name = name[i+1:]
			}
			if ord, ok := ordByName[strings.TrimSpace(name)]; ok && !seen[ord] {
				seen[ord] = true
				ords = append(ords, ord)
			}
		}
		mode := "any"
		if len(ords) == 0 {
			mode = "none"
		}
		req = append(req, []any{t.Ord, mode, ords})
	}

	b, err := json.Marshal(req)
	if err != nil {
		return nil
	}
	return b
}

const guidAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!#$%&()*+,-./:;<=>?@[]^_`{|}~"

// newGUID returns a random note guid in Anki's base91 form.
func newGUID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	n := binary.BigEndian.Uint64(buf[:])
	base := uint64(len(guidAlphabet))
	var out []byte
	for {
		out = append([]byte{guidAlphabet[n%base]}, out...)
		n /= base
		if n == 0 {
			break
		}
	}
	return string(out)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
