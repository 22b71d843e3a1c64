// Package anki reads and writes Anki .apkg packages (legacy2 generation) and
// converts them to and from the universal srs model.
package anki

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
)

// NoteTypeKind is the vendor "type" of a note type.
type NoteTypeKind int

const (
	KindStandard NoteTypeKind = 0
	KindCloze    NoteTypeKind = 1
)

// Deck is one entry of the col.decks JSON object. Keys not modelled here are
// kept in Extra so they survive a rewrite.
type Deck struct {
	ID          int64
	Name        string
	Description string
	Mod         int64
	Usn         int
	Extra       map[string]any
}

var deckKnownKeys = map[string]bool{"id": true, "name": true, "desc": true, "mod": true, "usn": true}

func (d Deck) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(d.Extra)+5)
	for k, v := range d.Extra {
		if !deckKnownKeys[k] {
			m[k] = v
		}
	}
	m["id"] = d.ID
	m["name"] = d.Name
	m["desc"] = d.Description
	m["mod"] = d.Mod
	m["usn"] = d.Usn
	return json.Marshal(m)
}

func (d *Deck) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*d = Deck{}
	id, err := int64Value(raw["id"])
	if err != nil {
		return fmt.Errorf("deck id: %w", err)
	}
	d.ID = id
	d.Name, _ = raw["name"].(string)
	d.Description, _ = raw["desc"].(string)
	d.Mod, _ = int64Value(raw["mod"])
	usn, _ := int64Value(raw["usn"])
	d.Usn = int(usn)

	for k, v := range raw {
		if deckKnownKeys[k] {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[k] = normalizeJSON(v)
	}
	return nil
}

// NoteTypeField is one entry of a note type's "flds" list.
type NoteTypeField struct {
	Name   string   `json:"name"`
	Ord    int      `json:"ord"`
	Sticky bool     `json:"sticky"`
	RTL    bool     `json:"rtl"`
	Font   string   `json:"font"`
	Size   int      `json:"size"`
	Media  []string `json:"media"`
}

// NoteTypeTemplate is one entry of a note type's "tmpls" list.
type NoteTypeTemplate struct {
	Name  string `json:"name"`
	Ord   int    `json:"ord"`
	Qfmt  string `json:"qfmt"`
	Afmt  string `json:"afmt"`
	Bqfmt string `json:"bqfmt"`
	Bafmt string `json:"bafmt"`
	Did   *int64 `json:"did"`
}

// NoteType is one entry of the col.models JSON object.
type NoteType struct {
	ID        int64              `json:"id"`
	Name      string             `json:"name"`
	Type      NoteTypeKind       `json:"type"`
	Mod       int64              `json:"mod"`
	Usn       int                `json:"usn"`
	SortField int                `json:"sortf"`
	DeckID    *int64             `json:"did"`
	Fields    []NoteTypeField    `json:"flds"`
	Templates []NoteTypeTemplate `json:"tmpls"`
	CSS       string             `json:"css"`
	LatexPre  string             `json:"latexPre"`
	LatexPost string             `json:"latexPost"`
	LatexSVG  bool               `json:"latexsvg"`
	Req       json.RawMessage    `json:"req,omitempty"`
	Tags      []string           `json:"tags"`
	Vers      []any              `json:"vers"`
}

// sortByOrd orders fields and templates by their ordinal.
func (nt *NoteType) sortByOrd() {
	sort.SliceStable(nt.Fields, func(i, j int) bool { return nt.Fields[i].Ord < nt.Fields[j].Ord })
	sort.SliceStable(nt.Templates, func(i, j int) bool { return nt.Templates[i].Ord < nt.Templates[j].Ord })
}

// Note is a row of the notes table.
type Note struct {
	ID        int64
	GUID      string
	ModelID   int64
	Mod       int64
	Usn       int
	Tags      string
	Fields    string
	SortField string
	Checksum  int64
	Flags     int
	Data      string
}

// Card is a row of the cards table.
type Card struct {
	ID     int64
	NoteID int64
	DeckID int64
	Ord    int
	Mod    int64
	Usn    int
	Type   int
	Queue  int
	Due    int64
	Ivl    int
	Factor int
	Reps   int
	Lapses int
	Left   int
	ODue   int64
	ODid   int64
	Flags  int
	Data   string
}

// HomeDeckID is the deck the card belongs to outside of a filtered deck.
func (c Card) HomeDeckID() int64 {
	if c.ODid != 0 {
		return c.ODid
	}
	return c.DeckID
}

// Review is a row of the revlog table. ID is nullable so that rows built
// by callers without an id can be reported instead of silently accepted.
type Review struct {
	ID      sql.NullInt64
	CardID  int64
	Usn     int
	Ease    int
	Ivl     int
	LastIvl int
	Factor  int
	Time    int
	Type    int
}

// Contents is an in-memory set of vendor tables. It implements Reader and
// is what Collection.Write persists.
type Contents struct {
	Decks     []Deck
	NoteTypes []NoteType
	Notes     []Note
	Cards     []Card
	Reviews   []Review
}

func int64Value(v any) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil {
			return 0, err
		}
		return int64(f), nil
	case float64:
		return int64(n), nil
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case string:
		var i int64
		_, err := fmt.Sscan(n, &i)
		return i, err
	case nil:
		return 0, fmt.Errorf("missing value")
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}

// normalizeJSON replaces json.Number values by int64 or float64 so the
// result encodes the same way in every output format.
func normalizeJSON(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeJSON(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeJSON(val)
		}
		return out
	default:
		return v
	}
}
