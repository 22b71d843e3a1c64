package anki

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
)

const (
	sqliteHeaderMagic = "SQLite format 3\x00"
	sqliteHeaderSize  = 100
)

// zipSignatures are the local file header, empty archive and spanned
// archive markers.
var zipSignatures = [][]byte{
	[]byte("PK\x03\x04"),
	[]byte("PK\x05\x06"),
	[]byte("PK\x07\x08"),
}

// validatedArchive is what the container checks hand on to loading.
type validatedArchive struct {
	archive    *Archive
	version    PackageVersion
	media      map[string]string
	collection []byte
}

func packageIssue(c *issues.Collector, format string, args ...any) {
	c.Critical(fmt.Sprintf(format, args...), issues.Details{ItemType: issues.ItemPackage})
}

// validateArchive runs the container checks in order and stops at the
// first failing stage. It returns nil when a critical issue was reported.
func validateArchive(data []byte, c *issues.Collector) *validatedArchive {
	if len(data) == 0 {
		packageIssue(c, "empty file")
		return nil
	}

	if !hasZipSignature(data) {
		packageIssue(c, "not a valid archive")
		return nil
	}

	archive, err := OpenArchive(data)
	if err != nil {
		packageIssue(c, "archive is truncated or corrupted: %v", err)
		return nil
	}

	missing := false
	for _, name := range requiredMembers {
		if !archive.Has(name) {
			packageIssue(c, "missing required file in archive: %s", name)
			missing = true
		}
	}
	if missing {
		return nil
	}

	members := make(map[string][]byte, len(requiredMembers))
	for _, name := range requiredMembers {
		b, err := archive.ReadMember(name)
		if err != nil {
			packageIssue(c, "archive is truncated or corrupted: reading %s: %v", name, err)
			return nil
		}
		members[name] = b
	}

	version, err := decodeMeta(members[MemberMeta])
	if err != nil {
		packageIssue(c, "invalid package metadata: %v", err)
		return nil
	}
	if version != SupportedVersion {
		packageIssue(c, "unsupported package version: %s (%d), only %s is supported", version, int(version), SupportedVersion)
		return nil
	}

	media, err := parseMediaMapping(members[MemberMedia])
	if err != nil {
		packageIssue(c, "invalid media mapping: %v", err)
		return nil
	}

	if err := checkDatabaseHeader(members[MemberCollection]); err != nil {
		packageIssue(c, "invalid database: %v", err)
		return nil
	}

	return &validatedArchive{
		archive:    archive,
		version:    version,
		media:      media,
		collection: members[MemberCollection],
	}
}

func hasZipSignature(data []byte) bool {
	for _, sig := range zipSignatures {
		if bytes.HasPrefix(data, sig) {
			return true
		}
	}
	return false
}

// parseMediaMapping decodes the media member: a JSON object mapping archive
// member names to original filenames.
func parseMediaMapping(b []byte) (map[string]string, error) {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("malformed JSON: %v", err)
	}

	obj, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %s", jsonKind(raw))
	}

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(map[string]string, len(obj))
	for _, k := range keys {
		s, ok := obj[k].(string)
		if !ok {
			return nil, fmt.Errorf("value for key %q is %s, expected a string", k, jsonKind(obj[k]))
		}
		out[k] = s
	}
	return out, nil
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case float64:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func checkDatabaseHeader(b []byte) error {
	switch {
	case len(b) == 0:
		return fmt.Errorf("%s is empty", MemberCollection)
	case len(b) < sqliteHeaderSize:
		return fmt.Errorf("%s is too small to contain a database header (%d bytes)", MemberCollection, len(b))
	case !strings.HasPrefix(string(b[:len(sqliteHeaderMagic)]), sqliteHeaderMagic):
		return fmt.Errorf("%s has a wrong header signature", MemberCollection)
	}
	return nil
}
