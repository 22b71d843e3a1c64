package anki

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eikowagenknecht/srs-converter-sub002/pkg/issues"
)

func readBytes(t *testing.T, data []byte) issues.Result[*Package] {
	t.Helper()
	res := ReadPackageBytes(context.Background(), data, WithTempDir(t.TempDir()))
	if res.Data != nil {
		t.Cleanup(func() { res.Data.Close() })
	}
	return res
}

func validMembers(t *testing.T) map[string][]byte {
	return map[string][]byte{
		MemberMeta:       encodeMeta(VersionLegacy2),
		MemberMedia:      []byte(`{}`),
		MemberCollection: emptyCollectionBytes(t),
	}
}

func TestValidation_CheckOrdering(t *testing.T) {
	valid := buildZip(t, validMembers(t))

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"empty file", []byte{}, "empty file"},
		{"not an archive", []byte("this is just some text, not a zip"), "not a valid archive"},
		{"truncated archive", valid[:len(valid)/2], "archive is truncated or corrupted"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res := readBytes(t, tc.data)
			require.True(t, res.Failed())
			require.Len(t, res.Issues, 1)
			assert.Equal(t, issues.SeverityCritical, res.Issues[0].Severity)
			assert.Contains(t, res.Issues[0].Message, tc.want)
			assert.Nil(t, res.Data)
		})
	}

	res := readBytes(t, []byte{})
	assert.NotContains(t, res.Issues[0].Message, "not a valid archive")
	res = readBytes(t, []byte("plain text"))
	assert.NotContains(t, res.Issues[0].Message, "truncated")
}

func TestValidation_MissingMembers(t *testing.T) {
	res := readBytes(t, buildZip(t, map[string][]byte{"unrelated.txt": []byte("x")}))
	require.True(t, res.Failed())
	assert.Equal(t, []string{
		"missing required file in archive: meta",
		"missing required file in archive: media",
		"missing required file in archive: collection.anki21",
	}, messages(res.Issues))

	members := validMembers(t)
	delete(members, MemberMedia)
	res = readBytes(t, buildZip(t, members))
	assert.Equal(t, []string{"missing required file in archive: media"}, messages(res.Issues))
}

func TestValidation_UnsupportedVersion(t *testing.T) {
	for _, v := range []PackageVersion{VersionUnknown, VersionLegacy1, VersionLatest} {
		t.Run(v.String(), func(t *testing.T) {
			members := validMembers(t)
			members[MemberMeta] = encodeMeta(v)
			res := readBytes(t, buildZip(t, members))
			require.True(t, res.Failed())
			require.Len(t, res.Issues, 1)
			assert.Contains(t, res.Issues[0].Message, "unsupported package version: "+v.String())
		})
	}
}

func TestValidation_MediaMapping(t *testing.T) {
	tests := []struct {
		name  string
		media string
		want  string
	}{
		{"malformed", `{"0": "a.png"`, "invalid media mapping: malformed JSON"},
		{"array", `["a.png"]`, "invalid media mapping: expected a JSON object, got an array"},
		{"non-string value", `{"0": 12}`, `invalid media mapping: value for key "0" is a number`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			members := validMembers(t)
			members[MemberMedia] = []byte(tc.media)
			res := readBytes(t, buildZip(t, members))
			require.True(t, res.Failed())
			require.Len(t, res.Issues, 1)
			assert.Contains(t, res.Issues[0].Message, tc.want)
		})
	}
}

func TestValidation_DatabaseHeader(t *testing.T) {
	tests := []struct {
		name string
		db   []byte
		want string
	}{
		{"zero bytes", []byte{}, "is empty"},
		{"too small", []byte("SQLite format 3\x00"), "too small to contain a database header"},
		{"wrong signature", make([]byte, 4096), "wrong header signature"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			members := validMembers(t)
			members[MemberCollection] = tc.db
			res := readBytes(t, buildZip(t, members))
			require.True(t, res.Failed())
			require.Len(t, res.Issues, 1)
			assert.Contains(t, res.Issues[0].Message, "invalid database")
			assert.Contains(t, res.Issues[0].Message, tc.want)
		})
	}
}

func TestValidation_MissingTables(t *testing.T) {
	members := validMembers(t)
	members[MemberCollection] = partialCollectionBytes(t, `CREATE TABLE col (id integer primary key, ver integer)`)
	res := readBytes(t, buildZip(t, members))
	require.True(t, res.Failed())
	require.Len(t, res.Issues, 1)
	assert.Equal(t, "missing required tables: cards, graves, notes, revlog", res.Issues[0].Message)
}

func TestValidation_MissingMediaMemberIsWarning(t *testing.T) {
	members := validMembers(t)
	members[MemberMedia] = []byte(`{"0": "present.png", "1": "absent.png"}`)
	members["0"] = []byte("png bytes")
	res := readBytes(t, buildZip(t, members))

	require.True(t, res.Succeeded(), "issues: %v", res.Issues)
	require.Len(t, res.Issues, 1)
	assert.Equal(t, issues.SeverityWarning, res.Issues[0].Severity)
	assert.Equal(t, issues.ItemMedia, res.Issues[0].Details.ItemType)
	assert.Equal(t, map[string]string{"0": "present.png"}, res.Data.MediaFiles())
}

func TestMetaRoundTrip(t *testing.T) {
	v, err := decodeMeta(encodeMeta(VersionLegacy2))
	require.NoError(t, err)
	assert.Equal(t, VersionLegacy2, v)

	v, err = decodeMeta(nil)
	require.NoError(t, err)
	assert.Equal(t, VersionUnknown, v)

	_, err = decodeMeta([]byte{0x08})
	assert.Error(t, err)
}
