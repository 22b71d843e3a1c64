package anki

import (
	"encoding/json"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/srs"
)

// ExtVendor is the extension key holding vendor values the universal model
// has no place for, as JSON.
const ExtVendor = "anki"

type fieldPayload struct {
	Sticky bool   `json:"sticky,omitempty"`
	RTL    bool   `json:"rtl,omitempty"`
	Font   string `json:"font,omitempty"`
	Size   int    `json:"size,omitempty"`
}

type templatePayload struct {
	Bqfmt string `json:"bqfmt,omitempty"`
	Bafmt string `json:"bafmt,omitempty"`
}

type noteTypePayload struct {
	CSS       string            `json:"css,omitempty"`
	LatexPre  string            `json:"latexPre,omitempty"`
	LatexPost string            `json:"latexPost,omitempty"`
	LatexSVG  bool              `json:"latexsvg,omitempty"`
	SortField int               `json:"sortf,omitempty"`
	Req       json.RawMessage   `json:"req,omitempty"`
	Fields    []fieldPayload    `json:"fields,omitempty"`
	Templates []templatePayload `json:"templates,omitempty"`
}

type notePayload struct {
	GUID  string `json:"guid,omitempty"`
	Flags int    `json:"flags,omitempty"`
	Data  string `json:"data,omitempty"`
}

type cardPayload struct {
	// Ord is the cloze ordinal; standard cards derive it from the template.
	Ord  *int   `json:"ord,omitempty"`
	Data string `json:"data,omitempty"`
}

type reviewPayload struct {
	Ivl     int `json:"ivl,omitempty"`
	LastIvl int `json:"lastIvl,omitempty"`
	Factor  int `json:"factor,omitempty"`
	Time    int `json:"time,omitempty"`
	Type    int `json:"type,omitempty"`
}

// withPayload adds v under ExtVendor unless it encodes to an empty object.
func withPayload(ext srs.Extensions, v any) srs.Extensions {
	b, err := json.Marshal(v)
	if err != nil || string(b) == "{}" {
		return ext
	}
	if ext == nil {
		ext = srs.Extensions{}
	}
	ext[ExtVendor] = string(b)
	return ext
}

// readPayload decodes ExtVendor into v. It reports false when the key is
// absent or malformed, leaving v untouched in the first case.
func readPayload(ext srs.Extensions, v any) bool {
	s, ok := ext.Get(ExtVendor)
	if !ok {
		return false
	}
	return json.Unmarshal([]byte(s), v) == nil
}
