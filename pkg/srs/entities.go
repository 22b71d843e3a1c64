package srs

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrInvalidEntity   = errors.New("invalid entity")
	ErrDuplicateID     = errors.New("duplicate id")
	ErrUnknownDeck     = errors.New("deck not found")
	ErrUnknownNoteType = errors.New("note type not found")
	ErrUnknownNote     = errors.New("note not found")
	ErrUnknownCard     = errors.New("card not found")
	ErrUnknownTemplate = errors.New("template not found")
	ErrFieldMismatch   = errors.New("note fields do not match note type")
)

// NewID mints a time-ordered identifier for the current instant.
func NewID() ID {
	return uuid.Must(uuid.NewV7())
}

// NewIDAt mints a UUIDv7 whose embedded timestamp is t. The random part is
// fresh on every call. uuid only mints v7 ids for the current time, so the
// layout is written out here.
func NewIDAt(t time.Time) ID {
	var id ID
	ms := t.UnixMilli()
	if ms < 0 {
		ms = 0
	}
	u := uint64(ms)
	id[0] = byte(u >> 40)
	id[1] = byte(u >> 32)
	id[2] = byte(u >> 24)
	id[3] = byte(u >> 16)
	id[4] = byte(u >> 8)
	id[5] = byte(u)
	if _, err := rand.Read(id[6:]); err != nil {
		return NewID()
	}
	id[6] = (id[6] & 0x0f) | 0x70
	id[8] = (id[8] & 0x3f) | 0x80
	return id
}

// IDTimestamp extracts the millisecond timestamp embedded in a UUIDv7.
// ok is false for other UUID versions.
func IDTimestamp(id ID) (ms int64, ok bool) {
	if id.Version() != 7 {
		return 0, false
	}
	sec, nsec := id.Time().UnixTime()
	return sec*1000 + nsec/int64(time.Millisecond), true
}

// DeckParams describes a deck to construct.
type DeckParams struct {
	ID          ID
	Name        string
	Description string
	Config      map[string]any
	Extensions  Extensions
}

// NewDeck validates p and returns a deck. A zero ID is replaced by a fresh one.
func NewDeck(p DeckParams) (Deck, error) {
	if strings.TrimSpace(p.Name) == "" {
		return Deck{}, fmt.Errorf("%w: deck name cannot be empty", ErrInvalidEntity)
	}
	id := p.ID
	if id == uuid.Nil {
		id = NewID()
	}
	var cfg map[string]any
	if len(p.Config) > 0 {
		cfg = make(map[string]any, len(p.Config))
		for k, v := range p.Config {
			cfg[k] = v
		}
	}
	return Deck{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Config:      cfg,
		Extensions:  p.Extensions.clone(),
	}, nil
}

// NoteTypeParams describes a note type to construct.
type NoteTypeParams struct {
	ID         ID
	Name       string
	Kind       NoteTypeKind
	Fields     []Field
	Templates  []Template
	Extensions Extensions
}

// NewNoteType validates the internal shape of a note type: at least one
// field and one template, unique non-empty field names, unique field and
// template ids.
func NewNoteType(p NoteTypeParams) (NoteType, error) {
	if strings.TrimSpace(p.Name) == "" {
		return NoteType{}, fmt.Errorf("%w: note type name cannot be empty", ErrInvalidEntity)
	}
	if len(p.Fields) == 0 {
		return NoteType{}, fmt.Errorf("%w: note type %q has no fields", ErrInvalidEntity, p.Name)
	}
	if len(p.Templates) == 0 {
		return NoteType{}, fmt.Errorf("%w: note type %q has no templates", ErrInvalidEntity, p.Name)
	}

	kind := p.Kind
	switch kind {
	case "":
		kind = KindStandard
	case KindStandard, KindCloze:
	default:
		return NoteType{}, fmt.Errorf("%w: unknown note type kind %q", ErrInvalidEntity, kind)
	}

	fieldIDs := make(map[int]bool, len(p.Fields))
	fieldNames := make(map[string]bool, len(p.Fields))
	for _, f := range p.Fields {
		if f.Name == "" {
			return NoteType{}, fmt.Errorf("%w: note type %q has a field without a name", ErrInvalidEntity, p.Name)
		}
		if fieldIDs[f.ID] {
			return NoteType{}, fmt.Errorf("%w: note type %q has duplicate field id %d", ErrInvalidEntity, p.Name, f.ID)
		}
		if fieldNames[f.Name] {
			return NoteType{}, fmt.Errorf("%w: note type %q has duplicate field name %q", ErrInvalidEntity, p.Name, f.Name)
		}
		fieldIDs[f.ID] = true
		fieldNames[f.Name] = true
	}

	templateIDs := make(map[int]bool, len(p.Templates))
	for _, t := range p.Templates {
		if templateIDs[t.ID] {
			return NoteType{}, fmt.Errorf("%w: note type %q has duplicate template id %d", ErrInvalidEntity, p.Name, t.ID)
		}
		templateIDs[t.ID] = true
	}

	id := p.ID
	if id == uuid.Nil {
		id = NewID()
	}
	return NoteType{
		ID:         id,
		Name:       p.Name,
		Kind:       kind,
		Fields:     append([]Field(nil), p.Fields...),
		Templates:  append([]Template(nil), p.Templates...),
		Extensions: p.Extensions.clone(),
	}, nil
}

// ZipFields pairs raw values positionally with the note type's fields.
func ZipFields(nt NoteType, values []string) ([]FieldValue, error) {
	if len(values) != len(nt.Fields) {
		return nil, fmt.Errorf("%w: note type %q has %d fields, got %d values", ErrFieldMismatch, nt.Name, len(nt.Fields), len(values))
	}
	out := make([]FieldValue, len(values))
	for i, f := range nt.Fields {
		out[i] = FieldValue{Name: f.Name, Value: values[i]}
	}
	return out, nil
}

func checkNoteFields(nt NoteType, fields []FieldValue) error {
	if len(fields) != len(nt.Fields) {
		return fmt.Errorf("%w: note type %q has %d fields, note has %d", ErrFieldMismatch, nt.Name, len(nt.Fields), len(fields))
	}
	for i, f := range nt.Fields {
		if fields[i].Name != f.Name {
			return fmt.Errorf("%w: position %d expected %q, got %q", ErrFieldMismatch, i, f.Name, fields[i].Name)
		}
	}
	return nil
}

// NoteParams describes a note to construct.
type NoteParams struct {
	ID         ID
	DeckID     ID
	Fields     []FieldValue
	Tags       []string
	CreatedAt  time.Time
	ModifiedAt time.Time
	Extensions Extensions
}

// NewNote validates the field list against nt and returns a note of that type.
// Tags are trimmed, de-duplicated and sorted.
func NewNote(nt NoteType, p NoteParams) (Note, error) {
	if err := checkNoteFields(nt, p.Fields); err != nil {
		return Note{}, err
	}
	if p.DeckID == uuid.Nil {
		return Note{}, fmt.Errorf("%w: note has no deck", ErrInvalidEntity)
	}

	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	modified := p.ModifiedAt
	if modified.IsZero() {
		modified = created
	}
	id := p.ID
	if id == uuid.Nil {
		id = NewIDAt(created)
	}

	return Note{
		ID:         id,
		NoteTypeID: nt.ID,
		DeckID:     p.DeckID,
		Fields:     append([]FieldValue(nil), p.Fields...),
		Tags:       normalizeTags(p.Tags),
		CreatedAt:  created.UTC(),
		ModifiedAt: modified.UTC(),
		Extensions: p.Extensions.clone(),
	}, nil
}

func normalizeTags(tags []string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CardParams describes a card to construct.
type CardParams struct {
	ID         ID
	NoteID     ID
	TemplateID int
	Scheduling Scheduling
	Extensions Extensions
}

func NewCard(p CardParams) (Card, error) {
	if p.NoteID == uuid.Nil {
		return Card{}, fmt.Errorf("%w: card has no note", ErrInvalidEntity)
	}
	id := p.ID
	if id == uuid.Nil {
		id = NewID()
	}
	return Card{
		ID:         id,
		NoteID:     p.NoteID,
		TemplateID: p.TemplateID,
		Scheduling: p.Scheduling,
		Extensions: p.Extensions.clone(),
	}, nil
}

// ReviewParams describes a review to construct.
type ReviewParams struct {
	ID         ID
	CardID     ID
	Timestamp  time.Time
	Score      ReviewScore
	Extensions Extensions
}

func NewReview(p ReviewParams) (Review, error) {
	if p.CardID == uuid.Nil {
		return Review{}, fmt.Errorf("%w: review has no card", ErrInvalidEntity)
	}
	if !p.Score.Valid() {
		return Review{}, fmt.Errorf("%w: unknown review score %d", ErrInvalidEntity, int(p.Score))
	}
	ts := p.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	id := p.ID
	if id == uuid.Nil {
		id = NewIDAt(ts)
	}
	return Review{
		ID:         id,
		CardID:     p.CardID,
		Timestamp:  ts.UTC(),
		Score:      p.Score,
		Extensions: p.Extensions.clone(),
	}, nil
}
