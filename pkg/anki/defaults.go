package anki

import (
	"encoding/json"
	"sort"
)

// DefaultDeckID is the id of the deck every collection must contain.
const DefaultDeckID int64 = 1

const (
	DefaultCSS = ".card {\n font-family: arial;\n font-size: 20px;\n text-align: center;\n color: black;\n background-color: white;\n}\n"

	clozeCSS = DefaultCSS + "\n.cloze {\n font-weight: bold;\n color: blue;\n}\n.nightMode .cloze {\n color: lightblue;\n}\n"

	DefaultLatexPre = "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}\n"

	DefaultLatexPost = "\\end{document}"
)

// defaultDeckConfigJSON is written to col.dconf.
const defaultDeckConfigJSON = `{"1":{"id":1,"name":"Default","mod":0,"usn":0,"maxTaken":60,"autoplay":true,"timer":0,"replayq":true,"dyn":false,` +
	`"new":{"bury":false,"delays":[1,10],"initialFactor":2500,"ints":[1,4,0],"order":1,"perDay":20},` +
	`"rev":{"bury":false,"ease4":1.3,"ivlFct":1,"maxIvl":36500,"perDay":200,"hardFactor":1.2},` +
	`"lapse":{"delays":[10],"leechAction":1,"leechFails":8,"minInt":1,"mult":0}}}`

// defaultCollectionConfigJSON is written to col.conf.
const defaultCollectionConfigJSON = `{"activeDecks":[1],"curDeck":1,"newSpread":0,"collapseTime":1200,"timeLim":0,` +
	`"estTimes":true,"dueCounts":true,"curModel":null,"nextPos":1,"sortType":"noteFld","sortBackwards":false,` +
	`"addToCur":true,"schedVer":2}`

// defaultDeckExtra holds the deck keys Anki expects besides id, name and desc.
func defaultDeckExtra() map[string]any {
	return map[string]any{
		"collapsed":        false,
		"browserCollapsed": false,
		"conf":             int64(1),
		"dyn":              int64(0),
		"extendNew":        int64(0),
		"extendRev":        int64(0),
		"newToday":         []any{int64(0), int64(0)},
		"revToday":         []any{int64(0), int64(0)},
		"lrnToday":         []any{int64(0), int64(0)},
		"timeToday":        []any{int64(0), int64(0)},
	}
}

// DefaultDeck returns the "Default" deck with id 1.
func DefaultDeck() Deck {
	return Deck{ID: DefaultDeckID, Name: "Default", Extra: defaultDeckExtra()}
}

func stockField(name string, ord int) NoteTypeField {
	return NoteTypeField{Name: name, Ord: ord, Font: "Arial", Size: 20, Media: []string{}}
}

var stockNoteTypes = map[string]NoteType{
	"Basic": {
		ID:   1342697561419,
		Name: "Basic",
		Type: KindStandard,
		Fields: []NoteTypeField{
			stockField("Front", 0),
			stockField("Back", 1),
		},
		Templates: []NoteTypeTemplate{
			{Name: "Card 1", Ord: 0, Qfmt: "{{Front}}", Afmt: "{{FrontSide}}\n\n<hr id=answer>\n\n{{Back}}"},
		},
		CSS:       DefaultCSS,
		LatexPre:  DefaultLatexPre,
		LatexPost: DefaultLatexPost,
		Req:       json.RawMessage(`[[0,"any",[0]]]`),
		Tags:      []string{},
		Vers:      []any{},
	},
	"Basic (and reversed card)": {
		ID:   1342697561420,
		Name: "Basic (and reversed card)",
		Type: KindStandard,
		Fields: []NoteTypeField{
			stockField("Front", 0),
			stockField("Back", 1),
		},
		Templates: []NoteTypeTemplate{
			{Name: "Card 1", Ord: 0, Qfmt: "{{Front}}", Afmt: "{{FrontSide}}\n\n<hr id=answer>\n\n{{Back}}"},
			{Name: "Card 2", Ord: 1, Qfmt: "{{Back}}", Afmt: "{{FrontSide}}\n\n<hr id=answer>\n\n{{Front}}"},
		},
		CSS:       DefaultCSS,
		LatexPre:  DefaultLatexPre,
		LatexPost: DefaultLatexPost,
		Req:       json.RawMessage(`[[0,"any",[0]],[1,"any",[1]]]`),
		Tags:      []string{},
		Vers:      []any{},
	},
	"Cloze": {
		ID:   1342697561421,
		Name: "Cloze",
		Type: KindCloze,
		Fields: []NoteTypeField{
			stockField("Text", 0),
			stockField("Back Extra", 1),
		},
		Templates: []NoteTypeTemplate{
			{Name: "Cloze", Ord: 0, Qfmt: "{{cloze:Text}}", Afmt: "{{cloze:Text}}<br>\n{{Back Extra}}"},
		},
		CSS:       clozeCSS,
		LatexPre:  DefaultLatexPre,
		LatexPost: DefaultLatexPost,
		Tags:      []string{},
		Vers:      []any{},
	},
}

// StockNoteType returns a copy of one of the note types a new Anki
// collection ships with.
func StockNoteType(name string) (NoteType, bool) {
	nt, ok := stockNoteTypes[name]
	if !ok {
		return NoteType{}, false
	}
	nt.Fields = append([]NoteTypeField(nil), nt.Fields...)
	nt.Templates = append([]NoteTypeTemplate(nil), nt.Templates...)
	nt.Req = append(json.RawMessage(nil), nt.Req...)
	did := DefaultDeckID
	nt.DeckID = &did
	return nt, true
}

// StockNoteTypeNames lists the available stock note types, sorted.
func StockNoteTypeNames() []string {
	names := make([]string, 0, len(stockNoteTypes))
	for name := range stockNoteTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
