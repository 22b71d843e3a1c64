package srs

import (
	"errors"
	"fmt"
)

// Package owns a complete universal entity graph. Mutators validate
// cross-entity references eagerly, so dependencies must be inserted first:
// decks and note types, then notes, cards, reviews.
type Package struct {
	decks     map[ID]Deck
	noteTypes map[ID]NoteType
	notes     map[ID]Note
	cards     map[ID]Card
	reviews   map[ID]Review

	deckOrder     []ID
	noteTypeOrder []ID
	noteOrder     []ID
	cardOrder     []ID
	reviewOrder   []ID

	cardsByNote map[ID][]ID
}

// NewPackage returns an empty package.
func NewPackage() *Package {
	return &Package{
		decks:       make(map[ID]Deck),
		noteTypes:   make(map[ID]NoteType),
		notes:       make(map[ID]Note),
		cards:       make(map[ID]Card),
		reviews:     make(map[ID]Review),
		cardsByNote: make(map[ID][]ID),
	}
}

// Counts summarises the size of a package.
type Counts struct {
	Decks     int `json:"decks" yaml:"decks"`
	NoteTypes int `json:"noteTypes" yaml:"noteTypes"`
	Notes     int `json:"notes" yaml:"notes"`
	Cards     int `json:"cards" yaml:"cards"`
	Reviews   int `json:"reviews" yaml:"reviews"`
}

func (p *Package) Counts() Counts {
	return Counts{
		Decks:     len(p.decks),
		NoteTypes: len(p.noteTypes),
		Notes:     len(p.notes),
		Cards:     len(p.cards),
		Reviews:   len(p.reviews),
	}
}

func (p *Package) AddDeck(d Deck) error {
	if _, exists := p.decks[d.ID]; exists {
		return fmt.Errorf("%w: deck %s", ErrDuplicateID, d.ID)
	}
	p.decks[d.ID] = d
	p.deckOrder = append(p.deckOrder, d.ID)
	return nil
}

func (p *Package) AddNoteType(nt NoteType) error {
	if _, exists := p.noteTypes[nt.ID]; exists {
		return fmt.Errorf("%w: note type %s", ErrDuplicateID, nt.ID)
	}
	p.noteTypes[nt.ID] = nt
	p.noteTypeOrder = append(p.noteTypeOrder, nt.ID)
	return nil
}

// AddNote inserts n after checking that its note type and deck exist and
// that its fields follow the note type's field order.
func (p *Package) AddNote(n Note) error {
	if _, exists := p.notes[n.ID]; exists {
		return fmt.Errorf("%w: note %s", ErrDuplicateID, n.ID)
	}
	if err := p.checkNote(n); err != nil {
		return err
	}
	p.notes[n.ID] = n
	p.noteOrder = append(p.noteOrder, n.ID)
	return nil
}

func (p *Package) checkNote(n Note) error {
	nt, ok := p.noteTypes[n.NoteTypeID]
	if !ok {
		return fmt.Errorf("%w: note %s references note type %s", ErrUnknownNoteType, n.ID, n.NoteTypeID)
	}
	if _, ok := p.decks[n.DeckID]; !ok {
		return fmt.Errorf("%w: note %s references deck %s", ErrUnknownDeck, n.ID, n.DeckID)
	}
	if err := checkNoteFields(nt, n.Fields); err != nil {
		return fmt.Errorf("note %s: %w", n.ID, err)
	}
	return nil
}

// AddCard inserts c after checking that its note exists and its template
// belongs to the note's note type.
func (p *Package) AddCard(c Card) error {
	if _, exists := p.cards[c.ID]; exists {
		return fmt.Errorf("%w: card %s", ErrDuplicateID, c.ID)
	}
	if err := p.checkCard(c); err != nil {
		return err
	}
	p.cards[c.ID] = c
	p.cardOrder = append(p.cardOrder, c.ID)
	p.cardsByNote[c.NoteID] = append(p.cardsByNote[c.NoteID], c.ID)
	return nil
}

func (p *Package) checkCard(c Card) error {
	n, ok := p.notes[c.NoteID]
	if !ok {
		return fmt.Errorf("%w: card %s references note %s", ErrUnknownNote, c.ID, c.NoteID)
	}
	nt := p.noteTypes[n.NoteTypeID]
	if _, ok := nt.Template(c.TemplateID); !ok {
		return fmt.Errorf("%w: card %s references template %d of note type %q", ErrUnknownTemplate, c.ID, c.TemplateID, nt.Name)
	}
	return nil
}

func (p *Package) AddReview(r Review) error {
	if _, exists := p.reviews[r.ID]; exists {
		return fmt.Errorf("%w: review %s", ErrDuplicateID, r.ID)
	}
	if err := p.checkReview(r); err != nil {
		return err
	}
	p.reviews[r.ID] = r
	p.reviewOrder = append(p.reviewOrder, r.ID)
	return nil
}

func (p *Package) checkReview(r Review) error {
	if _, ok := p.cards[r.CardID]; !ok {
		return fmt.Errorf("%w: review %s references card %s", ErrUnknownCard, r.ID, r.CardID)
	}
	if !r.Score.Valid() {
		return fmt.Errorf("%w: review %s has unknown score %d", ErrInvalidEntity, r.ID, int(r.Score))
	}
	return nil
}

func (p *Package) Deck(id ID) (Deck, bool) {
	d, ok := p.decks[id]
	return d, ok
}

func (p *Package) NoteType(id ID) (NoteType, bool) {
	nt, ok := p.noteTypes[id]
	return nt, ok
}

func (p *Package) Note(id ID) (Note, bool) {
	n, ok := p.notes[id]
	return n, ok
}

func (p *Package) Card(id ID) (Card, bool) {
	c, ok := p.cards[id]
	return c, ok
}

func (p *Package) Review(id ID) (Review, bool) {
	r, ok := p.reviews[id]
	return r, ok
}

// Decks returns all decks in insertion order.
func (p *Package) Decks() []Deck {
	out := make([]Deck, 0, len(p.deckOrder))
	for _, id := range p.deckOrder {
		out = append(out, p.decks[id])
	}
	return out
}

func (p *Package) NoteTypes() []NoteType {
	out := make([]NoteType, 0, len(p.noteTypeOrder))
	for _, id := range p.noteTypeOrder {
		out = append(out, p.noteTypes[id])
	}
	return out
}

func (p *Package) Notes() []Note {
	out := make([]Note, 0, len(p.noteOrder))
	for _, id := range p.noteOrder {
		out = append(out, p.notes[id])
	}
	return out
}

func (p *Package) Cards() []Card {
	out := make([]Card, 0, len(p.cardOrder))
	for _, id := range p.cardOrder {
		out = append(out, p.cards[id])
	}
	return out
}

func (p *Package) Reviews() []Review {
	out := make([]Review, 0, len(p.reviewOrder))
	for _, id := range p.reviewOrder {
		out = append(out, p.reviews[id])
	}
	return out
}

// CardsForNote returns the cards of a note in insertion order.
func (p *Package) CardsForNote(noteID ID) []Card {
	ids := p.cardsByNote[noteID]
	out := make([]Card, 0, len(ids))
	for _, id := range ids {
		out = append(out, p.cards[id])
	}
	return out
}

// CheckIntegrity re-validates every cross-entity reference and returns all
// violations joined.
func (p *Package) CheckIntegrity() error {
	var errs []error
	for _, id := range p.noteOrder {
		if err := p.checkNote(p.notes[id]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range p.cardOrder {
		if err := p.checkCard(p.cards[id]); err != nil {
			errs = append(errs, err)
		}
	}
	for _, id := range p.reviewOrder {
		if err := p.checkReview(p.reviews[id]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Compact removes decks and note types that no note references. It is only
// meant as the last step of building a package.
func (p *Package) Compact() (removedDecks, removedNoteTypes int) {
	usedDecks := make(map[ID]bool)
	usedTypes := make(map[ID]bool)
	for _, n := range p.notes {
		usedDecks[n.DeckID] = true
		usedTypes[n.NoteTypeID] = true
	}

	keptDecks := p.deckOrder[:0]
	for _, id := range p.deckOrder {
		if usedDecks[id] {
			keptDecks = append(keptDecks, id)
			continue
		}
		delete(p.decks, id)
		removedDecks++
	}
	p.deckOrder = keptDecks

	keptTypes := p.noteTypeOrder[:0]
	for _, id := range p.noteTypeOrder {
		if usedTypes[id] {
			keptTypes = append(keptTypes, id)
			continue
		}
		delete(p.noteTypes, id)
		removedNoteTypes++
	}
	p.noteTypeOrder = keptTypes

	return removedDecks, removedNoteTypes
}
