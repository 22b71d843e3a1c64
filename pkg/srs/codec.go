package srs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"gopkg.in/yaml.v3"
)

// Format names a serialisation of a universal package.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatBSON Format = "bson"
)

var ErrUnknownFormat = errors.New("unknown format")

// ParseFormat accepts a format name or a file extension.
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "json", "":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "bson":
		return FormatBSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, s)
	}
}

// Document is the serialisable snapshot of a Package, entities listed in
// dependency order.
type Document struct {
	Decks     []Deck     `json:"decks" yaml:"decks" bson:"decks"`
	NoteTypes []NoteType `json:"noteTypes" yaml:"noteTypes" bson:"noteTypes"`
	Notes     []Note     `json:"notes" yaml:"notes" bson:"notes"`
	Cards     []Card     `json:"cards" yaml:"cards" bson:"cards"`
	Reviews   []Review   `json:"reviews" yaml:"reviews" bson:"reviews"`
}

// Document returns a snapshot of p.
func (p *Package) Document() Document {
	return Document{
		Decks:     p.Decks(),
		NoteTypes: p.NoteTypes(),
		Notes:     p.Notes(),
		Cards:     p.Cards(),
		Reviews:   p.Reviews(),
	}
}

// FromDocument rebuilds a package, validating every entity on the way in.
func FromDocument(doc Document) (*Package, error) {
	p := NewPackage()
	for _, d := range doc.Decks {
		deck, err := NewDeck(DeckParams{ID: d.ID, Name: d.Name, Description: d.Description, Config: d.Config, Extensions: d.Extensions})
		if err != nil {
			return nil, err
		}
		if err := p.AddDeck(deck); err != nil {
			return nil, err
		}
	}
	for _, nt := range doc.NoteTypes {
		noteType, err := NewNoteType(NoteTypeParams{ID: nt.ID, Name: nt.Name, Kind: nt.Kind, Fields: nt.Fields, Templates: nt.Templates, Extensions: nt.Extensions})
		if err != nil {
			return nil, err
		}
		if err := p.AddNoteType(noteType); err != nil {
			return nil, err
		}
	}
	for _, n := range doc.Notes {
		nt, ok := p.NoteType(n.NoteTypeID)
		if !ok {
			return nil, fmt.Errorf("%w: note %s references note type %s", ErrUnknownNoteType, n.ID, n.NoteTypeID)
		}
		note, err := NewNote(nt, NoteParams{
			ID:         n.ID,
			DeckID:     n.DeckID,
			Fields:     n.Fields,
			Tags:       n.Tags,
			CreatedAt:  n.CreatedAt,
			ModifiedAt: n.ModifiedAt,
			Extensions: n.Extensions,
		})
		if err != nil {
			return nil, fmt.Errorf("note %s: %w", n.ID, err)
		}
		if err := p.AddNote(note); err != nil {
			return nil, err
		}
	}
	for _, c := range doc.Cards {
		card, err := NewCard(CardParams{ID: c.ID, NoteID: c.NoteID, TemplateID: c.TemplateID, Scheduling: c.Scheduling, Extensions: c.Extensions})
		if err != nil {
			return nil, err
		}
		if err := p.AddCard(card); err != nil {
			return nil, err
		}
	}
	for _, r := range doc.Reviews {
		review, err := NewReview(ReviewParams{ID: r.ID, CardID: r.CardID, Timestamp: r.Timestamp, Score: r.Score, Extensions: r.Extensions})
		if err != nil {
			return nil, err
		}
		if err := p.AddReview(review); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Marshal serialises p in the given format.
func Marshal(p *Package, format Format) ([]byte, error) {
	doc := p.Document()
	switch format {
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	case FormatYAML:
		return yaml.Marshal(doc)
	case FormatBSON:
		return bson.Marshal(doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// Unmarshal parses data in the given format and rebuilds a validated package.
func Unmarshal(data []byte, format Format) (*Package, error) {
	var doc Document
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &doc)
	case FormatYAML:
		err = yaml.Unmarshal(data, &doc)
	case FormatBSON:
		err = bson.Unmarshal(data, &doc)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s package: %w", format, err)
	}
	return FromDocument(doc)
}

// FormatForPath returns format when set, otherwise the format named by the
// extension of path.
func FormatForPath(path string, format Format) (Format, error) {
	if format != "" {
		return ParseFormat(string(format))
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return FormatJSON, nil
	}
	return ParseFormat(ext)
}

// ReadFile decodes the package stored at path.
func ReadFile(path string, format Format) (*Package, error) {
	f, err := FormatForPath(path, format)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universal package: %w", err)
	}
	return Unmarshal(data, f)
}

// WriteFile encodes p to path.
func WriteFile(p *Package, path string, format Format) error {
	f, err := FormatForPath(path, format)
	if err != nil {
		return err
	}
	data, err := Marshal(p, f)
	if err != nil {
		return fmt.Errorf("failed to encode universal package: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write universal package: %w", err)
	}
	return nil
}
