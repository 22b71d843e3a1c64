// Package srs is the vendor-neutral flashcard model: decks, note types,
// notes, cards and reviews, owned by a Package aggregate that enforces
// referential integrity on insertion.
package srs

import (
	"time"

	"github.com/google/uuid"
)

// ID identifies a universal entity. IDs are UUIDv7, so the leading 48 bits
// carry the creation time in milliseconds.
type ID = uuid.UUID

// ExtOriginalID is the reserved extension key holding a vendor-native identifier.
const ExtOriginalID = "originalId"

// Extensions holds format-specific leftovers keyed by a small set of known names.
type Extensions map[string]string

// Get returns the value stored under key.
func (e Extensions) Get(key string) (string, bool) {
	if e == nil {
		return "", false
	}
	v, ok := e[key]
	return v, ok
}

// OriginalID returns the vendor-native identifier, if one was recorded.
func (e Extensions) OriginalID() (string, bool) {
	return e.Get(ExtOriginalID)
}

func (e Extensions) clone() Extensions {
	if len(e) == 0 {
		return nil
	}
	out := make(Extensions, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// Deck is a named collection of notes.
type Deck struct {
	ID          ID             `json:"id" yaml:"id" bson:"id"`
	Name        string         `json:"name" yaml:"name" bson:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty" bson:"description,omitempty"`
	Config      map[string]any `json:"config,omitempty" yaml:"config,omitempty" bson:"config,omitempty"`
	Extensions  Extensions     `json:"extensions,omitempty" yaml:"extensions,omitempty" bson:"extensions,omitempty"`
}

// NoteTypeKind distinguishes regular note types from cloze deletion types.
type NoteTypeKind string

const (
	KindStandard NoteTypeKind = "standard"
	KindCloze    NoteTypeKind = "cloze"
)

// Field is a named slot of a note type. ID is stable within the note type.
type Field struct {
	ID   int    `json:"id" yaml:"id" bson:"id"`
	Name string `json:"name" yaml:"name" bson:"name"`
}

// Template generates one card per note.
type Template struct {
	ID               int    `json:"id" yaml:"id" bson:"id"`
	Name             string `json:"name" yaml:"name" bson:"name"`
	QuestionTemplate string `json:"questionTemplate" yaml:"questionTemplate" bson:"questionTemplate"`
	AnswerTemplate   string `json:"answerTemplate" yaml:"answerTemplate" bson:"answerTemplate"`
}

// NoteType is the schema shared by notes: ordered fields and card templates.
type NoteType struct {
	ID         ID           `json:"id" yaml:"id" bson:"id"`
	Name       string       `json:"name" yaml:"name" bson:"name"`
	Kind       NoteTypeKind `json:"kind" yaml:"kind" bson:"kind"`
	Fields     []Field      `json:"fields" yaml:"fields" bson:"fields"`
	Templates  []Template   `json:"templates" yaml:"templates" bson:"templates"`
	Extensions Extensions   `json:"extensions,omitempty" yaml:"extensions,omitempty" bson:"extensions,omitempty"`
}

// FieldNames returns the field names in declared order.
func (nt NoteType) FieldNames() []string {
	names := make([]string, len(nt.Fields))
	for i, f := range nt.Fields {
		names[i] = f.Name
	}
	return names
}

// Template returns the template with the given id.
func (nt NoteType) Template(id int) (Template, bool) {
	for _, t := range nt.Templates {
		if t.ID == id {
			return t, true
		}
	}
	return Template{}, false
}

// FieldValue is one (name, value) pair of a note.
type FieldValue struct {
	Name  string `json:"name" yaml:"name" bson:"name"`
	Value string `json:"value" yaml:"value" bson:"value"`
}

// Note holds the content of one fact, shaped by its note type.
type Note struct {
	ID         ID           `json:"id" yaml:"id" bson:"id"`
	NoteTypeID ID           `json:"noteTypeId" yaml:"noteTypeId" bson:"noteTypeId"`
	DeckID     ID           `json:"deckId" yaml:"deckId" bson:"deckId"`
	Fields     []FieldValue `json:"fields" yaml:"fields" bson:"fields"`
	Tags       []string     `json:"tags,omitempty" yaml:"tags,omitempty" bson:"tags,omitempty"`
	CreatedAt  time.Time    `json:"createdAt" yaml:"createdAt" bson:"createdAt"`
	ModifiedAt time.Time    `json:"modifiedAt" yaml:"modifiedAt" bson:"modifiedAt"`
	Extensions Extensions   `json:"extensions,omitempty" yaml:"extensions,omitempty" bson:"extensions,omitempty"`
}

// Values returns the field values in note type order.
func (n Note) Values() []string {
	values := make([]string, len(n.Fields))
	for i, f := range n.Fields {
		values[i] = f.Value
	}
	return values
}

// Value returns the value of the named field.
func (n Note) Value(name string) (string, bool) {
	for _, f := range n.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Scheduling is the spaced repetition state of a card. The converter copies
// it without interpreting it.
type Scheduling struct {
	Type       int   `json:"type" yaml:"type" bson:"type"`
	Queue      int   `json:"queue" yaml:"queue" bson:"queue"`
	Due        int64 `json:"due" yaml:"due" bson:"due"`
	Interval   int   `json:"interval" yaml:"interval" bson:"interval"`
	EaseFactor int   `json:"easeFactor" yaml:"easeFactor" bson:"easeFactor"`
	Reps       int   `json:"reps" yaml:"reps" bson:"reps"`
	Lapses     int   `json:"lapses" yaml:"lapses" bson:"lapses"`
	Left       int   `json:"left" yaml:"left" bson:"left"`
	Flags      int   `json:"flags,omitempty" yaml:"flags,omitempty" bson:"flags,omitempty"`
}

// Card is one reviewable note x template pair.
type Card struct {
	ID         ID         `json:"id" yaml:"id" bson:"id"`
	NoteID     ID         `json:"noteId" yaml:"noteId" bson:"noteId"`
	TemplateID int        `json:"templateId" yaml:"templateId" bson:"templateId"`
	Scheduling Scheduling `json:"scheduling" yaml:"scheduling" bson:"scheduling"`
	Extensions Extensions `json:"extensions,omitempty" yaml:"extensions,omitempty" bson:"extensions,omitempty"`
}

// Review is one grading event of a card.
type Review struct {
	ID         ID          `json:"id" yaml:"id" bson:"id"`
	CardID     ID          `json:"cardId" yaml:"cardId" bson:"cardId"`
	Timestamp  time.Time   `json:"timestamp" yaml:"timestamp" bson:"timestamp"`
	Score      ReviewScore `json:"score" yaml:"score" bson:"score"`
	Extensions Extensions  `json:"extensions,omitempty" yaml:"extensions,omitempty" bson:"extensions,omitempty"`
}
