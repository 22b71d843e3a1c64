package anki

import (
	"crypto/sha1"
	"encoding/hex"
	"html"
	"regexp"
	"strconv"
	"strings"
)

// FieldSeparator joins field values in notes.flds.
const FieldSeparator = "\x1f"

var (
	styleTagPattern  = regexp.MustCompile(`(?is)<style.*?>.*?</style>`)
	scriptTagPattern = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	htmlTagPattern   = regexp.MustCompile(`(?s)<.*?>`)

	imgSrcPattern = regexp.MustCompile(`(?i)<img[^>]*?\ssrc\s*=\s*(?:"([^"]+)"|'([^']+)'|([^\s>]+))`)
	soundPattern  = regexp.MustCompile(`\[sound:([^\]]+)\]`)
)

// SplitFields splits a flds blob into its values. An empty blob is one
// empty value.
func SplitFields(blob string) []string {
	return strings.Split(blob, FieldSeparator)
}

// JoinFields is the inverse of SplitFields.
func JoinFields(values []string) string {
	return strings.Join(values, FieldSeparator)
}

// StripHTML removes markup and decodes entities.
func StripHTML(s string) string {
	s = styleTagPattern.ReplaceAllString(s, "")
	s = scriptTagPattern.ReplaceAllString(s, "")
	s = htmlTagPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(html.UnescapeString(s))
}

// SortField is the sfld value for a note: the first field with markup removed.
func SortField(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return StripHTML(values[0])
}

// FieldChecksum is the csum value for a note: the first 8 hex digits of the
// SHA-1 of the stripped first field, as an unsigned 32-bit number.
func FieldChecksum(values []string) int64 {
	sum := sha1.Sum([]byte(SortField(values)))
	n, _ := strconv.ParseUint(hex.EncodeToString(sum[:])[:8], 16, 32)
	return int64(n)
}

// MediaReferences returns the local media filenames referenced by a field
// value through <img src> or [sound:] markup, in order of appearance.
func MediaReferences(value string) []string {
	var refs []string
	seen := make(map[string]bool)
	add := func(name string) {
		name = html.UnescapeString(strings.TrimSpace(name))
		if name == "" || seen[name] || isRemote(name) {
			return
		}
		seen[name] = true
		refs = append(refs, name)
	}

	for _, m := range imgSrcPattern.FindAllStringSubmatch(value, -1) {
		for _, g := range m[1:] {
			if g != "" {
				add(g)
				break
			}
		}
	}
	for _, m := range soundPattern.FindAllStringSubmatch(value, -1) {
		add(m[1])
	}
	return refs
}

func isRemote(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "data:")
}

// joinTags renders tags the way notes.tags stores them: space separated
// with a leading and trailing space.
func joinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	return " " + strings.Join(tags, " ") + " "
}

func splitTags(s string) []string {
	return strings.Fields(s)
}

// sanitizeTag joins whitespace separated parts of a tag with underscores.
func sanitizeTag(tag string) string {
	return strings.Join(strings.Fields(tag), "_")
}
